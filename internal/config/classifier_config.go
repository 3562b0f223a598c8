package config

// BandConfig is an inclusive plausible value range.
type BandConfig struct {
	Min float64 `json:"min" yaml:"min" validate:"gte=0"`
	Max float64 `json:"max" yaml:"max" validate:"gtfield=Min"`
}

// Contains reports whether v lies inside the band, bounds included.
func (b BandConfig) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// TaxConfig holds the coefficients used to move between pre-tax and
// tax-included prices.
type TaxConfig struct {
	VATRate          float64 `json:"vat_rate" yaml:"vat_rate" validate:"gte=0,lt=1"`
	EnergyLevyPerKWh float64 `json:"energy_levy_per_kwh" yaml:"energy_levy_per_kwh" validate:"gte=0"`
	CTARate          float64 `json:"cta_rate" yaml:"cta_rate" validate:"gte=0,lt=1"`
}

// OptionRangeConfig maps an energy price range to a tariff option when no
// keyword in the context names one.
type OptionRangeConfig struct {
	Option string     `json:"option" yaml:"option" validate:"required"`
	Band   BandConfig `json:"band" yaml:"band"`
}

// ClassifierConfig defines the provider-agnostic classification defaults.
type ClassifierConfig struct {
	EnergyBand           BandConfig          `json:"energy_band" yaml:"energy_band"`
	SubscriptionBand     BandConfig          `json:"subscription_band" yaml:"subscription_band"`
	Tax                  TaxConfig           `json:"tax" yaml:"tax"`
	PowerCatalog         []int               `json:"power_catalog,omitempty" yaml:"power_catalog,omitempty" validate:"omitempty,dive,min=1"`
	DedupTolerance       float64             `json:"dedup_tolerance,omitempty" yaml:"dedup_tolerance,omitempty" validate:"omitempty,gte=0"`
	MaxCandidatesPerSlot int                 `json:"max_candidates_per_slot,omitempty" yaml:"max_candidates_per_slot,omitempty" validate:"omitempty,min=1"`
	OptionRanges         []OptionRangeConfig `json:"option_ranges,omitempty" yaml:"option_ranges,omitempty" validate:"dive"`
}

// NewDefaultClassifierConfig creates default classifier configuration
func NewDefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		EnergyBand:       BandConfig{Min: DefaultEnergyBandMin, Max: DefaultEnergyBandMax},
		SubscriptionBand: BandConfig{Min: DefaultSubscriptionBandMin, Max: DefaultSubscriptionBandMax},
		Tax: TaxConfig{
			VATRate:          DefaultVATRate,
			EnergyLevyPerKWh: DefaultEnergyLevyPerKWh,
			CTARate:          DefaultCTARate,
		},
		PowerCatalog:   append([]int(nil), DefaultPowerCatalog...),
		DedupTolerance: DefaultDedupTolerance,
	}
}
