package uom

import (
	"testing"

	"github.com/baytretail/core/internal/apperr"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestResolveBaseUOM(t *testing.T) {
	line, err := Resolve(Input{QtyBase: dec("10"), BaseUOM: "EA"}, nil)
	require.NoError(t, err)
	require.Equal(t, "EA", line.UOM)
	require.True(t, line.QtyFactor.Equal(dec("1")))
}

func TestResolveNonBaseUOMDerivesEntered(t *testing.T) {
	conversions := []Conversion{{UOM: "CASE", QtyFactor: dec("12.000000"), Active: true}}
	line, err := Resolve(Input{QtyBase: dec("24"), UOM: "CASE", BaseUOM: "EA"}, conversions)
	require.NoError(t, err)
	require.True(t, line.QtyEntered.Equal(dec("2")))
}

func TestResolveRejectsInconsistentQty(t *testing.T) {
	conversions := []Conversion{{UOM: "CASE", QtyFactor: dec("12.000000"), Active: true}}
	entered := dec("3")
	_, err := Resolve(Input{QtyBase: dec("24"), QtyEntered: &entered, UOM: "CASE", BaseUOM: "EA"}, conversions)
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestResolveRejectsUnknownConversion(t *testing.T) {
	_, err := Resolve(Input{QtyBase: dec("10"), UOM: "PALLET", BaseUOM: "EA"}, nil)
	require.Error(t, err)
}

func TestResolveRejectsNonPositiveQtyBase(t *testing.T) {
	_, err := Resolve(Input{QtyBase: dec("0"), BaseUOM: "EA"}, nil)
	require.Error(t, err)
}

func TestAcceptFactorLegacy4dpBucketKeepsInput(t *testing.T) {
	canonical := dec("0.333333")
	got, err := acceptFactor(dec("0.3333"), canonical)
	require.NoError(t, err)
	require.True(t, got.Equal(dec("0.3333")))
}

func TestAcceptFactorWithinDeviationKeepsInput(t *testing.T) {
	canonical := dec("1.000000")
	got, err := acceptFactor(dec("1.00004"), canonical)
	require.NoError(t, err)
	require.True(t, got.Equal(dec("1.00004")))
}

// A line captured under the legacy 4dp factor snapshot: qty_base agrees with
// qty_entered x the 4dp input factor but not with the canonical 6dp factor. The accepted
// input factor drives the consistency check, while the stored factor stays canonical.
func TestResolveLegacyFactorDriftStillValidates(t *testing.T) {
	conversions := []Conversion{{UOM: "PACK", QtyFactor: dec("0.333333"), Active: true}}
	entered := dec("3")
	legacy := dec("0.3333")
	line, err := Resolve(Input{
		QtyBase: dec("0.9999"), QtyEntered: &entered, UOM: "PACK", QtyFactor: &legacy, BaseUOM: "EA",
	}, conversions)
	require.NoError(t, err)
	require.True(t, line.QtyFactor.Equal(dec("0.333333")))
	require.True(t, line.QtyEntered.Equal(dec("3")))
}

func TestAcceptFactorBeyondDeviationFails(t *testing.T) {
	canonical := dec("1.000000")
	_, err := acceptFactor(dec("1.01"), canonical)
	require.Error(t, err)
}
