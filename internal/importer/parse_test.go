package importer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/omnissiah/prodledger/internal/sheet"
)

func TestParseDateText(t *testing.T) {
	day := time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2025-02-15", day, true},
		{"15/02/2025", day, true},
		{" 15/02/2025 ", day, true},
		{"2025-02-15 00:00:00", day, true},
		{"2025-02-15T10:00:00Z", day, true},
		{"15/2/2025", day, true},
		{"2025-2-15", day, true},
		{"5/2/2025", time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC), true},
		{"05/2/2025", time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC), true},
		{"2025-1-5", time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), true},
		{"5/13/2025", time.Time{}, false},
		{"", time.Time{}, false},
		{"31/02/2025", time.Time{}, false},
		{"02-15-2025", time.Time{}, false},
		{"ontem", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDateText(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDate_NativeCellWins(t *testing.T) {
	c := sheet.Cell{Text: "garbage", Time: time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC), IsTime: true}
	got, ok := ParseDate(c)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), got)
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"", 1, true},
		{"3", 3, true},
		{" 12 ", 12, true},
		{"abc", 1, true},
		{"2.5", 1, true},
		{"-4", 1, true},
		{"0", 0, false},
		{"000", 0, false},
		{"99999999999999999999999", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseQuantity(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
