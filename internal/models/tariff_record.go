package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PriceType separates per-kWh energy prices from monthly subscriptions.
type PriceType string

const (
	PriceEnergy       PriceType = "energy"
	PriceSubscription PriceType = "subscription"
)

// Canonical record units.
const (
	RecordUnitEnergy       = "€/kWh"
	RecordUnitSubscription = "€/month"
)

// TariffRecord is one normalized price entry. Records are built once by the
// classifier and only filtered or deduplicated afterwards.
type TariffRecord struct {
	Provider        string           `json:"provider"`
	OfferLabel      string           `json:"offer_label"`
	OfferCanonical  string           `json:"offer_label_canonical,omitempty"`
	OfferConfidence float64          `json:"offer_confidence"`
	PriceType       PriceType        `json:"price_type"`
	Unit            string           `json:"unit"`
	PriceHT         float64          `json:"price_ht"`
	PriceTTC        float64          `json:"price_ttc"`
	PowerKVA        *int             `json:"power_tier_kva,omitempty"`
	TariffOption    string           `json:"tariff_option,omitempty"`
	Confidence      float64          `json:"confidence"`
	Frequency       int              `json:"frequency"`
	Rank            int              `json:"rank"`
	Source          ResourceIdentity `json:"source"`
	ExtractedAt     time.Time        `json:"extracted_at"`
}

// Offer returns the canonical offer name when one was resolved, otherwise the
// free-text label.
func (r TariffRecord) Offer() string {
	if r.OfferCanonical != "" {
		return r.OfferCanonical
	}
	return r.OfferLabel
}

// DedupKey is the natural key used by storage collaborators: provider, offer,
// power tier, price type and price.
func (r TariffRecord) DedupKey() string {
	power := "-"
	if r.PowerKVA != nil {
		power = strconv.Itoa(*r.PowerKVA)
	}
	return strings.Join([]string{
		r.Provider,
		r.Offer(),
		power,
		string(r.PriceType),
		strconv.FormatFloat(r.PriceTTC, 'f', 6, 64),
	}, "|")
}

// Validate checks the unit and tier invariants of a record.
func (r TariffRecord) Validate() error {
	switch r.PriceType {
	case PriceEnergy:
		if r.Unit != RecordUnitEnergy {
			return fmt.Errorf("energy record with unit %q", r.Unit)
		}
		if r.PowerKVA != nil {
			return fmt.Errorf("energy record carries a power tier")
		}
	case PriceSubscription:
		if r.Unit != RecordUnitSubscription {
			return fmt.Errorf("subscription record with unit %q", r.Unit)
		}
	default:
		return fmt.Errorf("unknown price type %q", r.PriceType)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %.3f outside [0,1]", r.Confidence)
	}
	return nil
}

// IntPtr is a small helper for optional power tiers.
func IntPtr(v int) *int {
	return &v
}
