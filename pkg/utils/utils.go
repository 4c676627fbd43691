package utils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Operation suffixes appended to derived document files.
const (
	SuffixReordered    = "reordered"
	SuffixRotated      = "rotated"
	SuffixPagesRemoved = "pages_removed"
	SuffixEdited       = "edited"
)

var derivedSuffix = regexp.MustCompile(`_(reordered|rotated|pages_removed|edited)_\d+$`)

// DerivedPath names the output of an operation on src:
// <dir>/<stem>_<op>_<unix millis>.pdf. A previous derived suffix on the stem is
// dropped so names do not grow with every save. An empty dir keeps the file
// next to its source.
func DerivedPath(src, dir, op string, now time.Time) string {
	if dir == "" {
		dir = filepath.Dir(src)
	}
	base := filepath.Base(src)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = derivedSuffix.ReplaceAllString(stem, "")
	return filepath.Join(dir, fmt.Sprintf("%s_%s_%d.pdf", stem, op, now.UnixMilli()))
}

// DisplayTitle falls back to the file name without its .pdf extension.
func DisplayTitle(title, path string) string {
	if strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}
	base := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(base), ".pdf") {
		base = base[:len(base)-len(filepath.Ext(base))]
	}
	return base
}
