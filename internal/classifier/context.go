package classifier

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aleister1102/tariffwatch/internal/config"
	"github.com/aleister1102/tariffwatch/internal/models"
)

// ProviderContext carries the per-provider settings the classifier needs
// for one document. Nil bands and an empty catalog fall back to the
// classifier defaults.
type ProviderContext struct {
	Provider         string
	PublishedHT      bool
	EnergyBand       *config.BandConfig
	SubscriptionBand *config.BandConfig
	PowerCatalog     []int
	OfferRules       []config.OfferRule
	// OfferLabel is used for tokens whose context names no known offer.
	OfferLabel  string
	Source      models.ResourceIdentity
	ExtractedAt time.Time
}

// NewProviderContext resolves the context of one resource of provider.
// The fallback offer label is, in order, the resource offer, the provider
// default offer and a label derived from the document file name.
func NewProviderContext(provider *config.ProviderConfig, resource config.ResourceConfig, source models.ResourceIdentity) ProviderContext {
	rules := provider.OfferRules
	if len(rules) == 0 {
		rules = config.DefaultOfferRules(provider.Name)
	}

	label := resource.Offer
	if label == "" {
		label = provider.DefaultOffer
	}
	if label == "" && source.Kind != models.KindPage {
		label = OfferLabelFromFileName(source.Location, provider.Name)
	}

	return ProviderContext{
		Provider:         provider.Name,
		PublishedHT:      provider.IsHT(),
		EnergyBand:       provider.EnergyBand,
		SubscriptionBand: provider.SubscriptionBand,
		PowerCatalog:     provider.PowerCatalog,
		OfferRules:       rules,
		OfferLabel:       label,
		Source:           source,
		ExtractedAt:      time.Now().UTC(),
	}
}

var (
	fileNoiseWords = map[string]struct{}{
		"grille": {}, "grilles": {}, "tarifaire": {}, "tarifaires": {}, "tarif": {}, "tarifs": {},
		"pdf": {}, "de": {}, "des": {}, "du": {}, "la": {}, "le": {},
	}
	fileSeparators = regexp.MustCompile(`[\s_\-.+]+`)
	digitsOnly     = regexp.MustCompile(`^\d+$`)
)

// OfferLabelFromFileName derives an offer label from a document name by
// dropping generic words, the provider name and numbers.
func OfferLabelFromFileName(location, provider string) string {
	base := filepath.Base(strings.TrimRight(location, "/"))
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))

	providerWords := make(map[string]struct{})
	for _, w := range strings.Fields(config.FoldLabel(provider)) {
		providerWords[w] = struct{}{}
	}

	var kept []string
	for _, w := range fileSeparators.Split(config.FoldLabel(base), -1) {
		if w == "" || digitsOnly.MatchString(w) {
			continue
		}
		if _, noise := fileNoiseWords[w]; noise {
			continue
		}
		if _, own := providerWords[w]; own {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}
