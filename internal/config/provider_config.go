package config

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Strategy kinds accepted in a provider's strategy override.
const (
	StrategyHTTPGet        = "http_get"
	StrategyHeadlessRender = "headless_render"
	StrategyPagePDFLink    = "page_pdf_link"
	StrategyStaticURL      = "static_url"
	StrategyLocalFile      = "local_file"
)

// ValidStrategyKinds lists every strategy the fetcher can dispatch.
var ValidStrategyKinds = []string{
	StrategyHTTPGet,
	StrategyHeadlessRender,
	StrategyPagePDFLink,
	StrategyStaticURL,
	StrategyLocalFile,
}

// OfferRule maps a label pattern to a canonical offer name.
type OfferRule struct {
	Pattern    string  `json:"pattern" yaml:"pattern" validate:"required,regexp"`
	Canonical  string  `json:"canonical" yaml:"canonical" validate:"required"`
	Confidence float64 `json:"confidence" yaml:"confidence" validate:"gte=0,lte=1"`
}

// LinkFilterConfig narrows the document links discovered on a page.
type LinkFilterConfig struct {
	Include []string `json:"include,omitempty" yaml:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
}

// ResourceConfig describes one tracked resource of a provider.
//
// For pdf resources PageURL is the page the document link is discovered on,
// URL a direct link and FallbackURLs further stable links tried in order.
// For local_file resources Path may be a file or a directory scanned with Pattern.
type ResourceConfig struct {
	Kind         string   `json:"kind" yaml:"kind" validate:"required,resourcekind"`
	URL          string   `json:"url,omitempty" yaml:"url,omitempty" validate:"omitempty,url"`
	PageURL      string   `json:"page_url,omitempty" yaml:"page_url,omitempty" validate:"omitempty,url"`
	FallbackURLs []string `json:"fallback_urls,omitempty" yaml:"fallback_urls,omitempty" validate:"omitempty,dive,url"`
	Path         string   `json:"path,omitempty" yaml:"path,omitempty"`
	Pattern      string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	NameFilter   string   `json:"name_filter,omitempty" yaml:"name_filter,omitempty"`
	Offer        string   `json:"offer,omitempty" yaml:"offer,omitempty"`
}

// Location returns the identity location of the resource.
func (rc ResourceConfig) Location() string {
	switch {
	case rc.URL != "":
		return rc.URL
	case rc.PageURL != "":
		return rc.PageURL
	default:
		return rc.Path
	}
}

// ProviderConfig carries every per-provider override. Zero values fall back
// to the global sections.
type ProviderConfig struct {
	Name             string           `json:"name" yaml:"name" validate:"required"`
	PriceBasis       string           `json:"price_basis,omitempty" yaml:"price_basis,omitempty" validate:"omitempty,pricebasis"`
	OCRLanguage      string           `json:"ocr_language,omitempty" yaml:"ocr_language,omitempty"`
	Strategies       []string         `json:"strategies,omitempty" yaml:"strategies,omitempty" validate:"omitempty,dive,strategykind"`
	ClickSelector    string           `json:"click_selector,omitempty" yaml:"click_selector,omitempty"`
	TimeoutSecs      int              `json:"timeout_secs,omitempty" yaml:"timeout_secs,omitempty" validate:"omitempty,min=1"`
	LinkFilter       LinkFilterConfig `json:"link_filter,omitempty" yaml:"link_filter,omitempty"`
	ContentKeywords  []string         `json:"content_keywords,omitempty" yaml:"content_keywords,omitempty"`
	EnergyBand       *BandConfig      `json:"energy_band,omitempty" yaml:"energy_band,omitempty"`
	SubscriptionBand *BandConfig      `json:"subscription_band,omitempty" yaml:"subscription_band,omitempty"`
	PowerCatalog     []int            `json:"power_catalog,omitempty" yaml:"power_catalog,omitempty" validate:"omitempty,dive,min=1"`
	DefaultOffer     string           `json:"default_offer,omitempty" yaml:"default_offer,omitempty"`
	OfferRules       []OfferRule      `json:"offer_rules,omitempty" yaml:"offer_rules,omitempty" validate:"dive"`
	Resources        []ResourceConfig `json:"resources" yaml:"resources" validate:"required,min=1,dive"`
}

// IsHT reports whether the provider publishes pre-tax figures.
func (pc ProviderConfig) IsHT() bool {
	return strings.EqualFold(pc.PriceBasis, DefaultPriceBasisHT)
}

// DefaultOfferRules returns the built-in alias table of a known provider.
// Patterns are matched against accent-folded lower-case labels.
func DefaultOfferRules(providerName string) []OfferRule {
	switch FoldLabel(providerName) {
	case "ohm energie", "ohm":
		return []OfferRule{
			{Pattern: `\b(be\s*ohm|be\s*base|be)\b`, Canonical: "Be Ohm Base", Confidence: 0.9},
			{Pattern: `\b(classic|classique)\b`, Canonical: "Classique", Confidence: 0.9},
			{Pattern: `(soir\s*&?\s*week\s*-?\s*end|week\s*end)`, Canonical: "Soir & Week-end", Confidence: 0.9},
			{Pattern: `\bmaxi\b`, Canonical: "Maxi", Confidence: 0.9},
			{Pattern: `\bfixe?\b`, Canonical: "Fixe", Confidence: 0.8},
			{Pattern: `\b(ec|eco)\b`, Canonical: "Éco", Confidence: 0.8},
			{Pattern: `\bliberte\b`, Canonical: "Liberté", Confidence: 0.8},
		}
	}
	return nil
}

// DefaultOptionRanges are the energy price ranges historically used to guess
// a tariff option. They are opt-in through ClassifierConfig.OptionRanges.
func DefaultOptionRanges() []OptionRangeConfig {
	return []OptionRangeConfig{
		{Option: "Heures Creuses", Band: BandConfig{Min: 0.05, Max: 0.12}},
		{Option: "Heures Pleines", Band: BandConfig{Min: 0.13, Max: 0.22}},
		{Option: "Soir & Week-end", Band: BandConfig{Min: 0.23, Max: 0.35}},
	}
}

// FoldLabel lower-cases s, strips diacritics and collapses whitespace.
func FoldLabel(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
