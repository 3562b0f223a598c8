package models

import "strings"

// Unit markers attached to a numeric token when the source printed one next
// to the number.
const (
	UnitNone        = ""
	UnitEuro        = "€"
	UnitEuroPerKWh  = "€/kWh"
	UnitCentPerKWh  = "c€/kWh"
	UnitEuroPerMon  = "€/mois"
	UnitKWh         = "kWh"
	UnitEuroPerYear = "€/an"
)

// RawToken is a numeric value found by the extractor together with the
// neighbouring lines it was found in.
type RawToken struct {
	Value    float64
	Raw      string
	Unit     string
	Context  []string
	// Anchor is the index in Context of the line holding the token
	Anchor   int
	Line     int
	Position int
}

// ContextText joins the context window into one lower-cased string.
func (t RawToken) ContextText() string {
	return strings.ToLower(strings.Join(t.Context, "\n"))
}
