package classifier

import (
	"testing"
	"time"

	"github.com/aleister1102/tariffwatch/internal/config"
	"github.com/aleister1102/tariffwatch/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tok(value float64, unit string) models.RawToken {
	return models.RawToken{Value: value, Unit: unit, Context: []string{""}}
}

func testContext() ProviderContext {
	return ProviderContext{
		Provider:    "Test Energie",
		OfferLabel:  "grille",
		Source:      models.NewResourceIdentity("Test Energie", "https://t.example/grille.pdf", models.KindPDF),
		ExtractedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newTestClassifier(mutate func(*config.ClassifierConfig)) *Classifier {
	cfg := config.NewDefaultClassifierConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg, zerolog.Nop())
}

func TestNormalize_NoisyPDF(t *testing.T) {
	tokens := []models.RawToken{
		tok(0.42, models.UnitNone),
		tok(0.1560, models.UnitNone),
		tok(0.1560, models.UnitNone),
		tok(450, models.UnitNone),
	}

	res := newTestClassifier(nil).Normalize(tokens, testContext())
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.Equal(t, models.PriceEnergy, rec.PriceType)
	assert.Equal(t, models.RecordUnitEnergy, rec.Unit)
	assert.InDelta(t, 0.1560, rec.PriceTTC, 1e-9)
	assert.Equal(t, 2, rec.Frequency)
	assert.Equal(t, 1, rec.Rank)
	assert.NoError(t, rec.Validate())

	require.Len(t, res.Dropped, 2)
	for _, d := range res.Dropped {
		assert.Equal(t, DropOutOfBand, d.Reason)
	}
}

func TestNormalize_BandFilter(t *testing.T) {
	tests := []struct {
		name     string
		token    models.RawToken
		wantType models.PriceType
		wantKept bool
	}{
		{"energy lower bound", tok(0.05, models.UnitNone), models.PriceEnergy, true},
		{"energy upper bound", tok(0.35, models.UnitNone), models.PriceEnergy, true},
		{"between bands", tok(1.5, models.UnitNone), "", false},
		{"subscription", tok(12.44, models.UnitEuroPerMon), models.PriceSubscription, true},
		{"subscription above band", tok(80.01, models.UnitEuroPerMon), "", false},
		{"cents per kWh", tok(19.56, models.UnitCentPerKWh), models.PriceEnergy, true},
		{"yearly subscription", tok(149.28, models.UnitEuroPerYear), models.PriceSubscription, true},
		{"kWh unit never a subscription", tok(12.5, models.UnitEuroPerKWh), "", false},
		{"monthly unit never energy", tok(0.2, models.UnitEuroPerMon), "", false},
	}

	c := newTestClassifier(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.Normalize([]models.RawToken{tt.token}, testContext())
			if !tt.wantKept {
				assert.True(t, res.Empty())
				require.Len(t, res.Dropped, 1)
				assert.Equal(t, DropOutOfBand, res.Dropped[0].Reason)
				return
			}
			require.Len(t, res.Records, 1)
			assert.Equal(t, tt.wantType, res.Records[0].PriceType)
			assert.NoError(t, res.Records[0].Validate())
		})
	}
}

func TestNormalize_UnitConversion(t *testing.T) {
	c := newTestClassifier(nil)

	res := c.Normalize([]models.RawToken{tok(19.56, models.UnitCentPerKWh)}, testContext())
	require.Len(t, res.Records, 1)
	assert.InDelta(t, 0.1956, res.Records[0].PriceTTC, 1e-9)

	res = c.Normalize([]models.RawToken{tok(149.28, models.UnitEuroPerYear)}, testContext())
	require.Len(t, res.Records, 1)
	assert.InDelta(t, 12.44, res.Records[0].PriceTTC, 1e-9)
}

func TestNormalize_ProviderBandOverride(t *testing.T) {
	pc := testContext()
	pc.EnergyBand = &config.BandConfig{Min: 0.05, Max: 0.5}

	res := newTestClassifier(nil).Normalize([]models.RawToken{tok(0.42, models.UnitNone)}, pc)
	require.Len(t, res.Records, 1)
	assert.Equal(t, models.PriceEnergy, res.Records[0].PriceType)
}

func TestNormalize_PowerInference(t *testing.T) {
	tokens := []models.RawToken{
		tok(25.0, models.UnitEuroPerMon),
		tok(12.0, models.UnitEuroPerMon),
		tok(18.5, models.UnitEuroPerMon),
	}
	pc := testContext()
	pc.PowerCatalog = []int{6, 9, 12}

	res := newTestClassifier(nil).Normalize(tokens, pc)
	require.Len(t, res.Records, 3)

	got := map[float64]int{}
	for _, r := range res.Records {
		require.NotNil(t, r.PowerKVA)
		got[r.PriceTTC] = *r.PowerKVA
	}
	assert.Equal(t, map[float64]int{12.0: 6, 18.5: 9, 25.0: 12}, got)
}

func TestNormalize_ExplicitPowerWins(t *testing.T) {
	tokens := []models.RawToken{
		{Value: 15.63, Raw: "15,63 €/mois", Unit: models.UnitEuroPerMon, Context: []string{"9 kVA | 15,63 €/mois"}},
		{Value: 12.44, Raw: "12,44 €/mois", Unit: models.UnitEuroPerMon, Context: []string{"3 kVA | 12,44 €/mois"}},
	}

	res := newTestClassifier(nil).Normalize(tokens, testContext())
	require.Len(t, res.Records, 2)
	got := map[float64]int{}
	for _, r := range res.Records {
		require.NotNil(t, r.PowerKVA)
		got[r.PriceTTC] = *r.PowerKVA
	}
	assert.Equal(t, map[float64]int{15.63: 9, 12.44: 3}, got)
}

func TestNormalize_SurplusPricesHaveNoTier(t *testing.T) {
	pc := testContext()
	pc.PowerCatalog = []int{6}

	res := newTestClassifier(nil).Normalize([]models.RawToken{
		tok(10, models.UnitEuroPerMon),
		tok(20, models.UnitEuroPerMon),
	}, pc)
	require.Len(t, res.Records, 2)
	for _, r := range res.Records {
		if r.PriceTTC == 10 {
			require.NotNil(t, r.PowerKVA)
			assert.Equal(t, 6, *r.PowerKVA)
		} else {
			assert.Nil(t, r.PowerKVA)
		}
	}
}

func TestNormalize_FrequencyRanking(t *testing.T) {
	tokens := []models.RawToken{
		tok(0.2516, models.UnitEuroPerKWh),
		tok(0.1999, models.UnitNone),
		tok(0.2516, models.UnitEuroPerKWh),
		tok(0.2516, models.UnitEuroPerKWh),
	}

	res := newTestClassifier(nil).Normalize(tokens, testContext())
	require.Len(t, res.Records, 2)
	assert.InDelta(t, 0.2516, res.Records[0].PriceTTC, 1e-9)
	assert.Equal(t, 1, res.Records[0].Rank)
	assert.Equal(t, 3, res.Records[0].Frequency)
	assert.Equal(t, 2, res.Records[1].Rank)
	assert.Greater(t, res.Records[0].Confidence, res.Records[1].Confidence)

	capped := newTestClassifier(func(c *config.ClassifierConfig) { c.MaxCandidatesPerSlot = 1 }).Normalize(tokens, testContext())
	require.Len(t, capped.Records, 1)
	assert.InDelta(t, 0.2516, capped.Records[0].PriceTTC, 1e-9)
	require.Len(t, capped.Dropped, 1)
	assert.Equal(t, DropSlotCap, capped.Dropped[0].Reason)
}

func TestNormalize_OffersAndOptions(t *testing.T) {
	pc := testContext()
	pc.OfferRules = config.DefaultOfferRules("Ohm Energie")

	tokens := []models.RawToken{
		{Value: 0.2276, Raw: "0,2276 €/kWh", Unit: models.UnitEuroPerKWh, Anchor: 1,
			Context: []string{"Offre Classique", "Heures Creuses 0,2276 €/kWh"}},
		{Value: 0.2516, Raw: "0,2516 €/kWh", Unit: models.UnitEuroPerKWh, Anchor: 1,
			Context: []string{"Offre Libérté", "Prix Base 0,2516 €/kWh"}},
		{Value: 0.2000, Raw: "0,2000 €/kWh", Unit: models.UnitEuroPerKWh,
			Context: []string{"Sans nom 0,2000 €/kWh"}},
	}

	res := newTestClassifier(nil).Normalize(tokens, pc)
	require.Len(t, res.Records, 3)

	assert.Equal(t, "Classique", res.Records[0].OfferCanonical)
	assert.InDelta(t, 0.9, res.Records[0].OfferConfidence, 1e-9)
	assert.Equal(t, "Heures Creuses", res.Records[0].TariffOption)

	assert.Equal(t, "Liberté", res.Records[1].OfferCanonical)
	assert.Equal(t, "Base", res.Records[1].TariffOption)

	assert.Empty(t, res.Records[2].OfferCanonical)
	assert.Zero(t, res.Records[2].OfferConfidence)
	assert.Equal(t, "grille", res.Records[2].OfferLabel)
}

func TestNormalize_OptionRanges(t *testing.T) {
	c := newTestClassifier(func(cfg *config.ClassifierConfig) { cfg.OptionRanges = config.DefaultOptionRanges() })

	res := c.Normalize([]models.RawToken{tok(0.10, models.UnitNone), tok(0.30, models.UnitNone)}, testContext())
	require.Len(t, res.Records, 2)
	assert.Equal(t, "Heures Creuses", res.Records[0].TariffOption)
	assert.Equal(t, "Soir & Week-end", res.Records[1].TariffOption)

	res = newTestClassifier(nil).Normalize([]models.RawToken{tok(0.10, models.UnitNone)}, testContext())
	require.Len(t, res.Records, 1)
	assert.Empty(t, res.Records[0].TariffOption, "ranges apply only when configured")
}

func TestNormalize_PublishedHT(t *testing.T) {
	pc := testContext()
	pc.PublishedHT = true

	res := newTestClassifier(nil).Normalize([]models.RawToken{tok(0.15, models.UnitEuroPerKWh)}, pc)
	require.Len(t, res.Records, 1)
	assert.InDelta(t, 0.15, res.Records[0].PriceHT, 1e-9)
	assert.InDelta(t, 0.189, res.Records[0].PriceTTC, 1e-9)
}

func TestNormalize_Empty(t *testing.T) {
	res := newTestClassifier(nil).Normalize(nil, testContext())
	assert.True(t, res.Empty())
	assert.Empty(t, res.Dropped)
}
