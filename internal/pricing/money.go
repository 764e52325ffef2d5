package pricing

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned by ParseAmount for text that is not a number.
var ErrInvalidAmount = eris.New("pricing: invalid amount")

// ParseAmount parses a money amount written with either decimal separator.
// When both "," and "." appear, "." is a thousands separator and "," the
// decimal separator ("1.234,56"). Blank input yields nil, nil.
func ParseAmount(s string) (*decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return nil, nil
	}
	if strings.Contains(s, ",") && strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ".", "")
	}
	s = strings.ReplaceAll(s, ",", ".")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, eris.Wrapf(ErrInvalidAmount, "%q", s)
	}
	return &d, nil
}
