package render

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestFormatter_Money(t *testing.T) {
	f := NewFormatter(language.AmericanEnglish)

	tests := []struct {
		in   string
		want string
	}{
		{"0", "$0.00"},
		{"12.5", "$12.50"},
		{"1234.5", "$1,234.50"},
		{"1234567.891", "$1,234,567.89"},
		{"-250", "-$250.00"},
		{"0.005", "$0.01"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Money(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestFormatter_MoneyOrBlank(t *testing.T) {
	f := NewFormatter(language.AmericanEnglish)

	assert.Equal(t, "", f.MoneyOrBlank(decimal.NullDecimal{}))
	assert.Equal(t, "$3.00", f.MoneyOrBlank(decimal.NullDecimal{Decimal: decimal.NewFromInt(3), Valid: true}))
}

func TestFormatter_Percent(t *testing.T) {
	f := NewFormatter(language.AmericanEnglish)

	assert.Equal(t, "24%", f.Percent(decimal.RequireFromString("0.24")))
	assert.Equal(t, "30%", f.Percent(decimal.RequireFromString("0.3")))
	assert.Equal(t, "12.35%", f.Percent(decimal.RequireFromString("0.123456")))
	assert.Equal(t, "0%", f.Percent(decimal.Zero))
}

func TestFormatter_Number(t *testing.T) {
	f := NewFormatter(language.AmericanEnglish)

	assert.Equal(t, "20", f.Number(decimal.NewFromInt(20)))
	assert.Equal(t, "20", f.Number(decimal.RequireFromString("20.0")))
	assert.Equal(t, "2.5", f.Number(decimal.RequireFromString("2.5")))
	assert.Equal(t, "1,500", f.Number(decimal.NewFromInt(1500)))
}
