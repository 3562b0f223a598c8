package classifier

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/aleister1102/tariffwatch/internal/config"
	"github.com/aleister1102/tariffwatch/internal/models"
	"github.com/rs/zerolog"
)

// Drop reasons recorded per token.
const (
	DropOutOfBand = "out_of_band"
	DropSlotCap   = "slot_cap"
)

// Base confidences before frequency scaling.
const (
	confidenceWithUnit    = 0.9
	confidenceWithoutUnit = 0.6
)

// DroppedToken explains why a token did not become a record.
type DroppedToken struct {
	Value  float64 `json:"value"`
	Raw    string  `json:"raw"`
	Line   int     `json:"line"`
	Reason string  `json:"reason"`
}

// Result is the outcome of classifying one document. Empty Records is a
// valid result that the caller reports as models.ErrClassificationEmpty.
type Result struct {
	Records []models.TariffRecord `json:"records"`
	Dropped []DroppedToken        `json:"dropped,omitempty"`
}

// Empty reports whether no record survived classification.
func (r Result) Empty() bool {
	return len(r.Records) == 0
}

// Classifier turns raw tokens into normalized tariff records.
type Classifier struct {
	cfg    config.ClassifierConfig
	tax    *TaxConverter
	logger zerolog.Logger
}

// New creates a classifier with the provider-agnostic defaults of cfg.
func New(cfg config.ClassifierConfig, logger zerolog.Logger) *Classifier {
	return &Classifier{
		cfg:    cfg,
		tax:    NewTaxConverter(cfg.Tax),
		logger: logger.With().Str("component", "Classifier").Logger(),
	}
}

// candidate is a token that passed the band filter, before ranking.
type candidate struct {
	priceType  models.PriceType
	value      float64
	offer      OfferMatch
	option     string
	power      *int
	explicit   bool
	confidence float64
	frequency  int
}

func (c candidate) slot() string {
	power := "-"
	if c.power != nil {
		power = strconv.Itoa(*c.power)
	}
	return strings.Join([]string{string(c.priceType), c.offer.Canonical, c.offer.Label, power, c.option}, "|")
}

func (c candidate) key() string {
	return c.slot() + "|" + strconv.FormatFloat(c.value, 'f', -1, 64)
}

// Normalize classifies tokens. Unclassifiable tokens are dropped with a
// reason; it never fails.
func (c *Classifier) Normalize(tokens []models.RawToken, pc ProviderContext) Result {
	energyBand := c.cfg.EnergyBand
	if pc.EnergyBand != nil {
		energyBand = *pc.EnergyBand
	}
	subscriptionBand := c.cfg.SubscriptionBand
	if pc.SubscriptionBand != nil {
		subscriptionBand = *pc.SubscriptionBand
	}
	catalog := c.cfg.PowerCatalog
	if len(pc.PowerCatalog) > 0 {
		catalog = pc.PowerCatalog
	}
	if len(catalog) == 0 {
		catalog = config.DefaultPowerCatalog
	}

	matcher := NewOfferMatcher(pc.OfferRules, c.logger)
	fallbackOffer := matcher.Match(pc.OfferLabel)

	var result Result
	var candidates []candidate

	for _, tok := range tokens {
		value, priceType, ok := classifyBand(tok, energyBand, subscriptionBand)
		if !ok {
			result.Dropped = append(result.Dropped, DroppedToken{Value: tok.Value, Raw: tok.Raw, Line: tok.Line, Reason: DropOutOfBand})
			continue
		}

		anchor := anchorLine(tok)
		offer, found := matcher.FindIn(tok.Context, anchor)
		if !found {
			offer = fallbackOffer
		}

		cand := candidate{
			priceType:  priceType,
			value:      value,
			offer:      offer,
			option:     detectOption(tok.Context, anchor),
			confidence: confidenceWithoutUnit,
		}
		if tok.Unit != models.UnitNone && tok.Unit != models.UnitEuro {
			cand.confidence = confidenceWithUnit
		}
		if priceType == models.PriceEnergy && cand.option == "" {
			cand.option = optionFromRange(value, c.cfg.OptionRanges)
		}
		if priceType == models.PriceSubscription {
			if p := explicitPower(tok.Context, anchor); p != nil {
				cand.power, cand.explicit = p, true
			}
		}
		candidates = append(candidates, cand)
	}

	assignPowerTiers(candidates, catalog, c.dedupTolerance())

	records, capped := c.rank(candidates, pc)
	result.Records = records
	result.Dropped = append(result.Dropped, capped...)

	c.logger.Debug().
		Str("provider", pc.Provider).
		Int("tokens", len(tokens)).
		Int("records", len(result.Records)).
		Int("dropped", len(result.Dropped)).
		Msg("Tokens classified")
	return result
}

func (c *Classifier) dedupTolerance() float64 {
	if c.cfg.DedupTolerance > 0 {
		return c.cfg.DedupTolerance
	}
	return config.DefaultDedupTolerance
}

// classifyBand returns the monthly or per-kWh value of tok and its price
// type. The unit marker restricts which band a token may fall in.
func classifyBand(tok models.RawToken, energy, subscription config.BandConfig) (float64, models.PriceType, bool) {
	value := tok.Value
	energyOK, subscriptionOK := true, true

	switch tok.Unit {
	case models.UnitCentPerKWh:
		value = value / 100
		subscriptionOK = false
	case models.UnitEuroPerKWh, models.UnitKWh:
		subscriptionOK = false
	case models.UnitEuroPerMon:
		energyOK = false
	case models.UnitEuroPerYear:
		value = value / 12
		energyOK = false
	}

	switch {
	case energyOK && energy.Contains(value):
		return value, models.PriceEnergy, true
	case subscriptionOK && subscription.Contains(value):
		return value, models.PriceSubscription, true
	default:
		return value, "", false
	}
}

// assignPowerTiers infers tiers per offer and option so that two offers
// with distinct price ladders do not share one ladder.
func assignPowerTiers(candidates []candidate, catalog []int, tolerance float64) {
	groups := make(map[string][]int)
	var order []string
	for i, cand := range candidates {
		if cand.priceType != models.PriceSubscription || cand.explicit {
			continue
		}
		g := cand.offer.Canonical + "|" + cand.offer.Label + "|" + cand.option
		if _, ok := groups[g]; !ok {
			order = append(order, g)
		}
		groups[g] = append(groups[g], i)
	}

	for _, g := range order {
		prices := make([]float64, 0, len(groups[g]))
		for _, i := range groups[g] {
			prices = append(prices, candidates[i].value)
		}
		tiers := InferPowerTiers(prices, catalog, tolerance)
		for _, i := range groups[g] {
			candidates[i].power = tiers.TierOf(candidates[i].value)
		}
	}
}

// rank merges identical candidates, orders competing values of each slot by
// frequency and builds the records.
func (c *Classifier) rank(candidates []candidate, pc ProviderContext) ([]models.TariffRecord, []DroppedToken) {
	merged := make(map[string]*candidate)
	var keys []string
	for _, cand := range candidates {
		cand.value = roundValue(cand.value, cand.priceType)
		k := cand.key()
		if m, ok := merged[k]; ok {
			m.frequency++
			m.confidence = math.Max(m.confidence, cand.confidence)
			continue
		}
		cand.frequency = 1
		cp := cand
		merged[k] = &cp
		keys = append(keys, k)
	}

	slots := make(map[string][]*candidate)
	var slotOrder []string
	for _, k := range keys {
		cand := merged[k]
		s := cand.slot()
		if _, ok := slots[s]; !ok {
			slotOrder = append(slotOrder, s)
		}
		slots[s] = append(slots[s], cand)
	}

	var records []models.TariffRecord
	var dropped []DroppedToken
	for _, s := range slotOrder {
		group := slots[s]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].frequency != group[j].frequency {
				return group[i].frequency > group[j].frequency
			}
			return group[i].value < group[j].value
		})

		total := 0
		for _, cand := range group {
			total += cand.frequency
		}

		for rank, cand := range group {
			if c.cfg.MaxCandidatesPerSlot > 0 && rank >= c.cfg.MaxCandidatesPerSlot {
				dropped = append(dropped, DroppedToken{Value: cand.value, Raw: strconv.FormatFloat(cand.value, 'f', -1, 64), Reason: DropSlotCap})
				continue
			}
			share := float64(cand.frequency) / float64(total)
			records = append(records, c.buildRecord(*cand, rank+1, share, pc))
		}
	}
	return records, dropped
}

func (c *Classifier) buildRecord(cand candidate, rank int, share float64, pc ProviderContext) models.TariffRecord {
	energy := cand.priceType == models.PriceEnergy
	ht, ttc := c.tax.Prices(cand.value, energy, pc.PublishedHT)

	unit := models.RecordUnitSubscription
	if energy {
		unit = models.RecordUnitEnergy
	}

	label := cand.offer.Label
	if label == "" {
		label = pc.OfferLabel
	}

	rec := models.TariffRecord{
		Provider:        pc.Provider,
		OfferLabel:      label,
		OfferCanonical:  cand.offer.Canonical,
		OfferConfidence: cand.offer.Confidence,
		PriceType:       cand.priceType,
		Unit:            unit,
		PriceHT:         ht,
		PriceTTC:        ttc,
		TariffOption:    cand.option,
		Confidence:      math.Round(cand.confidence*share*1000) / 1000,
		Frequency:       cand.frequency,
		Rank:            rank,
		Source:          pc.Source,
		ExtractedAt:     pc.ExtractedAt,
	}
	if !energy {
		rec.PowerKVA = cand.power
	}
	return rec
}

// anchorLine returns the index of the context line holding the token.
func anchorLine(tok models.RawToken) int {
	if tok.Anchor > 0 && tok.Anchor < len(tok.Context) {
		return tok.Anchor
	}
	for i, line := range tok.Context {
		if strings.Contains(line, tok.Raw) {
			return i
		}
	}
	return 0
}

func roundValue(v float64, pt models.PriceType) float64 {
	places := float64(subscriptionPlaces)
	if pt == models.PriceEnergy {
		places = energyPlaces
	}
	p := math.Pow(10, places)
	return math.Round(v*p) / p
}
