// Package money implements decimal-correct, dual-currency (USD/LBP) arithmetic. All
// monetary amounts in the system are represented as an (USD, LBP) pair rather than a
// single value, since the business operates in both currencies simultaneously and
// postings must balance independently in each one.
package money

import "github.com/shopspring/decimal"

// USDScale and LBPScale are the quantization scales for each currency leg: USD carries
// four decimal places (sub-cent precision needed for unit costs), LBP carries two.
const (
	USDScale = 4
	LBPScale = 2
)

// Dual is a (USD, LBP) amount pair. Every persisted monetary column comes in this shape.
type Dual struct {
	USD decimal.Decimal
	LBP decimal.Decimal
}

// Zero returns a Dual with both legs at zero.
func Zero() Dual {
	return Dual{USD: decimal.Zero, LBP: decimal.Zero}
}

// QUSD rounds x half-up to USDScale decimals.
func QUSD(x decimal.Decimal) decimal.Decimal {
	return x.Round(USDScale)
}

// QLBP rounds x half-up to LBPScale decimals.
func QLBP(x decimal.Decimal) decimal.Decimal {
	return x.Round(LBPScale)
}

// Quantize rounds both legs of d to their canonical scales.
func Quantize(d Dual) Dual {
	return Dual{USD: QUSD(d.USD), LBP: QLBP(d.LBP)}
}

// Sign returns -1, 0 or 1 for x's sign.
func Sign(x decimal.Decimal) int {
	return x.Sign()
}

// Normalize fills in whichever leg of d is zero from the other leg via rate (USD→LBP),
// when exactly one leg is zero and rate is known and positive. It never recomputes a
// leg that was explicitly provided — both-nonzero inputs pass through unchanged.
func Normalize(d Dual, usdToLBP decimal.Decimal) Dual {
	usdZero := d.USD.IsZero()
	lbpZero := d.LBP.IsZero()

	switch {
	case usdZero && !lbpZero && usdToLBP.IsPositive():
		return Dual{USD: QUSD(d.LBP.Div(usdToLBP)), LBP: d.LBP}
	case lbpZero && !usdZero && usdToLBP.IsPositive():
		return Dual{USD: d.USD, LBP: QLBP(d.USD.Mul(usdToLBP))}
	default:
		return d
	}
}

// Add returns a+b, leg by leg, unquantized (callers quantize once at the end of a sum).
func Add(a, b Dual) Dual {
	return Dual{USD: a.USD.Add(b.USD), LBP: a.LBP.Add(b.LBP)}
}

// Sub returns a-b, leg by leg.
func Sub(a, b Dual) Dual {
	return Dual{USD: a.USD.Sub(b.USD), LBP: a.LBP.Sub(b.LBP)}
}

// Neg returns the additive inverse of d, used when mirroring entries for a reversal.
func Neg(d Dual) Dual {
	return Dual{USD: d.USD.Neg(), LBP: d.LBP.Neg()}
}

// IsZero reports whether both legs are exactly zero.
func (d Dual) IsZero() bool {
	return d.USD.IsZero() && d.LBP.IsZero()
}
