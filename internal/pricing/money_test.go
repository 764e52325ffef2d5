package pricing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"120,50", "120.5"},
		{"120.50", "120.5"},
		{"1.234,56", "1234.56"},
		{"1.234.567,89", "1234567.89"},
		{" 80 ", "80"},
		{"1 234,00", "1234"},
		{"1.234", "1.234"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseAmount_Blank(t *testing.T) {
	for _, in := range []string{"", "   "} {
		got, err := ParseAmount(in)
		assert.NoError(t, err)
		assert.Nil(t, got)
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, in := range []string{"abc", "12,50,1", "R$ 10"} {
		_, err := ParseAmount(in)
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, ErrInvalidAmount), in)
	}
}
