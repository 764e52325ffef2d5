package importer

import (
	"strconv"
	"strings"
	"time"

	"github.com/omnissiah/prodledger/internal/model"
	"github.com/omnissiah/prodledger/internal/sheet"
)

// Day and month may be written with one or two digits.
var dateLayouts = []string{"2006-1-2", "2/1/2006"}

// ParseDate accepts a native date cell or text in YYYY-MM-DD or DD/MM/YYYY
// form. An ISO date followed by a time part ("2025-01-15 00:00:00") is read
// as its date.
func ParseDate(c sheet.Cell) (time.Time, bool) {
	if c.IsTime {
		return model.CivilDate(c.Time), true
	}
	return ParseDateText(c.Text)
}

// ParseDateText is ParseDate for plain text.
func ParseDateText(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if len(s) > 10 && (s[10] == ' ' || s[10] == 'T') {
		if t, err := time.Parse(model.DateLayout, s[:10]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseQuantity reads a quantity cell. Blank or non-numeric text defaults to
// 1. A digit string that is zero or does not fit an int is rejected.
func ParseQuantity(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !allDigits(s) {
		return 1, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
