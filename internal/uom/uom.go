// Package uom resolves entered quantities against an item's base unit of measure,
// enforcing the 6dp canonical factor while tolerating legacy 4dp inputs.
package uom

import (
	"github.com/baytretail/core/internal/apperr"
	"github.com/shopspring/decimal"
)

const (
	factorScale        = 6
	legacyFactorScale  = 4
	qtyConsistencyEps  = 0.000001
	legacyDeviationMax = 0.00005
)

var epsConsistency = decimal.NewFromFloat(qtyConsistencyEps)
var epsLegacyDeviation = decimal.NewFromFloat(legacyDeviationMax)

// Conversion is an active entered-uom -> base-uom factor for an item.
type Conversion struct {
	UOM       string
	QtyFactor decimal.Decimal // canonical, 6dp
	Active    bool
}

// Line is a resolved quantity triple ready to persist on a stock move or document line.
type Line struct {
	UOM         string
	QtyFactor   decimal.Decimal // canonical 6dp
	QtyEntered  decimal.Decimal // 6dp
	QtyBase     decimal.Decimal
}

// Input is the raw per-line quantity data a caller supplies before resolution.
type Input struct {
	QtyBase    decimal.Decimal
	QtyEntered *decimal.Decimal
	UOM        string // empty means base uom
	QtyFactor  *decimal.Decimal
	BaseUOM    string
}

// Resolve validates and canonicalizes Input against the item's base uom and active
// conversions, returning a Line ready to persist.
func Resolve(in Input, conversions []Conversion) (Line, error) {
	if !in.QtyBase.IsPositive() {
		return Line{}, apperr.New(apperr.KindValidation, "qty_base must be positive")
	}

	uomCode := in.UOM
	if uomCode == "" {
		uomCode = in.BaseUOM
	}

	if uomCode == in.BaseUOM {
		return Line{
			UOM:        in.BaseUOM,
			QtyFactor:  decimal.NewFromInt(1).Round(factorScale),
			QtyEntered: in.QtyBase.Round(factorScale),
			QtyBase:    in.QtyBase,
		}, nil
	}

	conv := findActive(conversions, uomCode)
	if conv == nil {
		return Line{}, apperr.Newf(apperr.KindValidation, "no active conversion for uom %q", uomCode)
	}
	canonical := conv.QtyFactor.Round(factorScale)

	factor := canonical
	if in.QtyFactor != nil {
		accepted, err := acceptFactor(*in.QtyFactor, canonical)
		if err != nil {
			return Line{}, err
		}
		factor = accepted
	}

	if in.QtyEntered != nil && in.QtyEntered.IsPositive() {
		expectedBase := in.QtyEntered.Mul(factor)
		if expectedBase.Sub(in.QtyBase).Abs().GreaterThan(epsConsistency) {
			return Line{}, apperr.Newf(apperr.KindValidation,
				"qty_base %s inconsistent with qty_entered %s x factor %s", in.QtyBase, in.QtyEntered, factor)
		}
		return Line{
			UOM:        uomCode,
			QtyFactor:  canonical,
			QtyEntered: in.QtyEntered.Round(factorScale),
			QtyBase:    in.QtyBase,
		}, nil
	}

	entered := in.QtyBase.Div(canonical).Round(factorScale)
	return Line{
		UOM:        uomCode,
		QtyFactor:  canonical,
		QtyEntered: entered,
		QtyBase:    in.QtyBase,
	}, nil
}

// acceptFactor implements the legacy-compatibility rule: a 4dp input factor is accepted
// when its 4dp bucket equals the canonical value rounded to 4dp, or when its absolute
// deviation from canonical is within legacyDeviationMax. The stored factor is always the
// canonical 6dp value; the ACCEPTED INPUT factor is what the consistency check upstream
// multiplies with, so a line captured under the legacy 4dp snapshot still validates.
func acceptFactor(input, canonical decimal.Decimal) (decimal.Decimal, error) {
	inputAt4 := input.Round(legacyFactorScale)
	canonicalAt4 := canonical.Round(legacyFactorScale)
	if inputAt4.Equal(canonicalAt4) {
		return input, nil
	}
	if input.Sub(canonical).Abs().LessThanOrEqual(epsLegacyDeviation) {
		return input, nil
	}
	return decimal.Zero, apperr.Newf(apperr.KindValidation,
		"qty_factor %s deviates from canonical %s beyond legacy tolerance", input, canonical)
}

func findActive(conversions []Conversion, uom string) *Conversion {
	for i := range conversions {
		if conversions[i].Active && conversions[i].UOM == uom {
			return &conversions[i]
		}
	}
	return nil
}
