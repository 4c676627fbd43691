package engine

import (
	"strings"
)

// Replacement is one changed fragment found between two versions of a text.
type Replacement struct {
	Old string `json:"old_text"`
	New string `json:"new_text"`
}

// DiffReplacements compares the two texts line by line and returns the
// fragment of each changed line that differs, with the common prefix and
// suffix of the line removed. Lines are paired by index; added or removed
// trailing lines and lines that became empty produce nothing. Each old
// fragment is reported once.
func DiffReplacements(oldText, newText string) []Replacement {
	if strings.TrimSpace(oldText) == strings.TrimSpace(newText) {
		return nil
	}

	oldLines := strings.Split(oldText, "\n")
	newLines := strings.Split(newText, "\n")
	n := min(len(oldLines), len(newLines))

	var out []Replacement
	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		o := []rune(strings.TrimSpace(oldLines[i]))
		w := []rune(strings.TrimSpace(newLines[i]))
		if len(o) == 0 || len(w) == 0 || string(o) == string(w) {
			continue
		}

		prefix := 0
		for prefix < min(len(o), len(w)) && o[prefix] == w[prefix] {
			prefix++
		}
		suffix := 0
		for suffix < min(len(o)-prefix, len(w)-prefix) && o[len(o)-1-suffix] == w[len(w)-1-suffix] {
			suffix++
		}

		oldPart := strings.TrimSpace(string(o[prefix : len(o)-suffix]))
		newPart := strings.TrimSpace(string(w[prefix : len(w)-suffix]))
		if oldPart == "" || seen[oldPart] {
			continue
		}
		seen[oldPart] = true
		out = append(out, Replacement{Old: oldPart, New: newPart})
	}
	return out
}
