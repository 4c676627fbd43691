package models

import (
	"time"
)

// Page is one page of an open document. Number is the page's position in the
// document as it was opened; after a reorder it no longer implies position.
type Page struct {
	Number    int    `json:"number"`
	Rotation  int    `json:"rotation"`
	Thumbnail []byte `json:"thumbnail,omitempty"`
}

type PageThumbnail struct {
	Page      int    `json:"page"`
	Thumbnail []byte `json:"thumbnail"`
}

type PageDimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type DocumentInfo struct {
	PageCount int       `json:"page_count"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

type ReplaceResult struct {
	NewPath          string `json:"new_path"`
	ReplacementCount int    `json:"replacement_count"`
}

// NormalizeRotation maps any multiple-of-anything degree value into [0, 360).
func NormalizeRotation(deg int) int {
	return ((deg % 360) + 360) % 360
}

// ParsePDFDate parses the D:YYYYMMDDHHmmSS prefix of a PDF date string. Only
// the date part is required; missing time components default to zero and the
// timezone suffix is ignored.
func ParsePDFDate(s string) (time.Time, bool) {
	if len(s) < 2 || s[:2] != "D:" {
		return time.Time{}, false
	}
	digits := s[2:]
	end := 0
	for end < len(digits) && end < 14 && digits[end] >= '0' && digits[end] <= '9' {
		end++
	}
	if end < 8 {
		return time.Time{}, false
	}
	digits = digits[:end]
	for len(digits) < 14 {
		digits += "0"
	}
	t, err := time.Parse("20060102150405", digits)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
