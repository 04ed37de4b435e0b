package render

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Formatter formats money and percentages for one locale.
type Formatter struct {
	p *message.Printer
}

// NewFormatter returns a formatter for tag (e.g. language.AmericanEnglish).
func NewFormatter(tag language.Tag) Formatter {
	return Formatter{p: message.NewPrinter(tag)}
}

// Money renders d as "$1,234.50": grouped integer part, two decimals,
// minus sign before the currency symbol.
func (f Formatter) Money(d decimal.Decimal) string {
	rounded := d.Round(2)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}

	fixed := rounded.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	// Grouping comes from the locale; the exact digits come from decimal.
	whole := rounded.Truncate(0)
	grouped := intPart
	if whole.LessThan(decimal.New(1, 18)) {
		grouped = f.p.Sprintf("%d", whole.IntPart())
	}
	return sign + "$" + grouped + "." + frac
}

// MoneyOrBlank renders a nullable cell, blank when absent.
func (f Formatter) MoneyOrBlank(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return f.Money(d.Decimal)
}

// Percent renders a fraction (0.24) as "24%", keeping up to two decimals.
func (f Formatter) Percent(d decimal.Decimal) string {
	return d.Mul(decimal.NewFromInt(100)).Round(2).String() + "%"
}

// Number renders a plain decimal with locale grouping for whole numbers.
func (f Formatter) Number(d decimal.Decimal) string {
	if d.Equal(d.Truncate(0)) && d.Abs().LessThan(decimal.New(1, 18)) {
		return f.p.Sprintf("%d", d.IntPart())
	}
	return d.String()
}
