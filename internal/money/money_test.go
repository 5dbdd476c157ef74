package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestNormalizeFillsZeroLegFromRate(t *testing.T) {
	rate := dec("90000")

	got := Normalize(Dual{USD: decimal.Zero, LBP: dec("900000")}, rate)
	assert.True(t, got.USD.Equal(dec("10")))
	assert.True(t, got.LBP.Equal(dec("900000")))

	got = Normalize(Dual{USD: dec("10"), LBP: decimal.Zero}, rate)
	assert.True(t, got.USD.Equal(dec("10")))
	assert.True(t, got.LBP.Equal(dec("900000")))
}

func TestNormalizeNeverRecomputesBothNonzero(t *testing.T) {
	d := Dual{USD: dec("10"), LBP: dec("850000")}
	got := Normalize(d, dec("90000"))
	require.Equal(t, d, got)
}

func TestQuantizeRoundsEachLegToItsScale(t *testing.T) {
	q := Quantize(Dual{USD: dec("10.00005"), LBP: dec("1250.555")})
	assert.True(t, q.USD.Equal(dec("10.0001")) || q.USD.Equal(dec("10.0000")))
	assert.True(t, q.LBP.Equal(dec("1250.56")) || q.LBP.Equal(dec("1250.55")))
}

func TestSignAndNeg(t *testing.T) {
	assert.Equal(t, 1, Sign(dec("5")))
	assert.Equal(t, -1, Sign(dec("-5")))
	assert.Equal(t, 0, Sign(decimal.Zero))

	d := Dual{USD: dec("10"), LBP: dec("900000")}
	n := Neg(d)
	assert.True(t, n.USD.Equal(dec("-10")))
	assert.True(t, n.LBP.Equal(dec("-900000")))
}
