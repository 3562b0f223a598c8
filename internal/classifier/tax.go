package classifier

import (
	"github.com/aleister1102/tariffwatch/internal/config"
	"github.com/shopspring/decimal"
)

const (
	energyPlaces       = 6
	subscriptionPlaces = 2
)

// TaxConverter moves prices between pre-tax (HT) and tax-included (TTC)
// values. Results are not rounded; callers round once when building records.
type TaxConverter struct {
	vat  decimal.Decimal
	levy decimal.Decimal
	cta  decimal.Decimal
	one  decimal.Decimal
}

// NewTaxConverter creates a converter from the configured coefficients.
func NewTaxConverter(cfg config.TaxConfig) *TaxConverter {
	return &TaxConverter{
		vat:  decimal.NewFromFloat(cfg.VATRate),
		levy: decimal.NewFromFloat(cfg.EnergyLevyPerKWh),
		cta:  decimal.NewFromFloat(cfg.CTARate),
		one:  decimal.NewFromInt(1),
	}
}

// EnergyTTC returns (ht + levy) * (1 + vat).
func (tc *TaxConverter) EnergyTTC(ht decimal.Decimal) decimal.Decimal {
	return ht.Add(tc.levy).Mul(tc.one.Add(tc.vat))
}

// EnergyHT returns ttc / (1 + vat) - levy.
func (tc *TaxConverter) EnergyHT(ttc decimal.Decimal) decimal.Decimal {
	return ttc.DivRound(tc.one.Add(tc.vat), 16).Sub(tc.levy)
}

// SubscriptionTTC returns ht * (1 + vat + cta).
func (tc *TaxConverter) SubscriptionTTC(ht decimal.Decimal) decimal.Decimal {
	return ht.Mul(tc.one.Add(tc.vat).Add(tc.cta))
}

// SubscriptionHT returns ttc / (1 + vat + cta).
func (tc *TaxConverter) SubscriptionHT(ttc decimal.Decimal) decimal.Decimal {
	return ttc.DivRound(tc.one.Add(tc.vat).Add(tc.cta), 16)
}

// Prices returns the rounded (HT, TTC) pair of a published value.
func (tc *TaxConverter) Prices(value float64, energy, publishedHT bool) (float64, float64) {
	v := decimal.NewFromFloat(value)
	var ht, ttc decimal.Decimal
	switch {
	case energy && publishedHT:
		ht, ttc = v, tc.EnergyTTC(v)
	case energy:
		ht, ttc = tc.EnergyHT(v), v
	case publishedHT:
		ht, ttc = v, tc.SubscriptionTTC(v)
	default:
		ht, ttc = tc.SubscriptionHT(v), v
	}

	places := int32(subscriptionPlaces)
	if energy {
		places = energyPlaces
	}
	return ht.Round(places).InexactFloat64(), ttc.Round(places).InexactFloat64()
}
