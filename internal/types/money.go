// README: Common money value object used across modules.
package types

// Money is an amount in the currency's minor unit (centavos for BRL).
type Money struct {
	Amount   int64
	Currency string
}

// BRL wraps an amount of centavos in the default currency.
func BRL(centavos int64) Money {
	return Money{Amount: centavos, Currency: "BRL"}
}

// Positive reports whether the amount is strictly greater than zero.
func (m Money) Positive() bool {
	return m.Amount > 0
}
