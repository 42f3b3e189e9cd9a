package rates

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Converter converts amounts between currencies using a configured rate
// table. Rates are expressed as units of a currency per one unit of the
// base currency.
type Converter struct {
	base  string
	rates map[string]decimal.Decimal
}

// NewConverter creates a currency converter. The base currency always has
// an implicit rate of 1.
func NewConverter(baseCurrency string, rates map[string]float64) *Converter {
	table := make(map[string]decimal.Decimal, len(rates)+1)
	for code, rate := range rates {
		if rate > 0 {
			table[strings.ToUpper(code)] = decimal.NewFromFloat(rate)
		}
	}
	base := strings.ToUpper(baseCurrency)
	table[base] = decimal.NewFromInt(1)
	return &Converter{base: base, rates: table}
}

// Base returns the converter's base currency.
func (c *Converter) Base() string {
	return c.base
}

// Convert converts an amount between currencies. Amounts in an unknown
// currency pass through unchanged; shipping computation degrades to
// unconverted costs rather than failing the cart.
func (c *Converter) Convert(amount decimal.Decimal, from, to string) decimal.Decimal {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == to || from == "" || to == "" {
		return amount
	}

	fromRate, okFrom := c.rates[from]
	toRate, okTo := c.rates[to]
	if !okFrom || !okTo || fromRate.IsZero() {
		return amount
	}

	// Route through the base currency and keep cent precision.
	return amount.Div(fromRate).Mul(toRate).Round(2)
}
