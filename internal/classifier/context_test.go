package classifier

import (
	"testing"

	"github.com/aleister1102/tariffwatch/internal/config"
	"github.com/aleister1102/tariffwatch/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestOfferLabelFromFileName(t *testing.T) {
	tests := []struct {
		location string
		provider string
		want     string
	}{
		{"https://x.fr/docs/Grille_Tarifaire_Ohm_Classique_2024.pdf", "Ohm Energie", "classique"},
		{"/data/grilles-tarifaires-fixe-eco-01-2025.pdf", "Other", "fixe eco"},
		{"https://x.fr/grille.pdf?v=2", "X", ""},
	}
	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			assert.Equal(t, tt.want, OfferLabelFromFileName(tt.location, tt.provider))
		})
	}
}

func TestNewProviderContext(t *testing.T) {
	provider := &config.ProviderConfig{Name: "Ohm Energie", PriceBasis: "ht", DefaultOffer: "Classique"}
	pdf := models.NewResourceIdentity("Ohm Energie", "https://x.fr/maxi.pdf", models.KindPDF)

	pc := NewProviderContext(provider, config.ResourceConfig{Kind: "pdf", URL: pdf.Location}, pdf)
	assert.True(t, pc.PublishedHT)
	assert.Equal(t, "Classique", pc.OfferLabel)
	assert.NotEmpty(t, pc.OfferRules, "built-in alias table")

	pc = NewProviderContext(provider, config.ResourceConfig{Kind: "pdf", URL: pdf.Location, Offer: "Fixe"}, pdf)
	assert.Equal(t, "Fixe", pc.OfferLabel)

	provider.DefaultOffer = ""
	pc = NewProviderContext(provider, config.ResourceConfig{Kind: "pdf", URL: pdf.Location}, pdf)
	assert.Equal(t, "maxi", pc.OfferLabel)
}

func TestOfferMatcher_HighestConfidenceWins(t *testing.T) {
	m := NewOfferMatcher([]config.OfferRule{
		{Pattern: `fixe`, Canonical: "Fixe", Confidence: 0.5},
		{Pattern: `prix fixe`, Canonical: "Prix Fixe", Confidence: 0.95},
		{Pattern: `([`, Canonical: "Broken", Confidence: 1},
	}, zerolog.Nop())

	got := m.Match("Offre Prix Fixe")
	assert.Equal(t, "Prix Fixe", got.Canonical)
	assert.InDelta(t, 0.95, got.Confidence, 1e-9)

	got = m.Match("Offre variable")
	assert.Empty(t, got.Canonical)
	assert.Zero(t, got.Confidence)
	assert.Equal(t, "Offre variable", got.Label)
}

func TestOfferMatcher_FindInKeepsPublishedLabel(t *testing.T) {
	m := NewOfferMatcher([]config.OfferRule{
		{Pattern: `be ohm`, Canonical: "Be Ohm", Confidence: 0.9},
		{Pattern: `liberte eco`, Canonical: "Liberté Éco", Confidence: 0.8},
	}, zerolog.Nop())

	tests := []struct {
		name      string
		lines     []string
		anchor    int
		wantLabel string
		wantFound bool
	}{
		{"case kept", []string{"Offre BE OHM", "0,2516 €/kWh"}, 1, "BE OHM", true},
		{"accents and spacing kept", []string{"Grille  Libérté   Éco 2024"}, 0, "Libérté   Éco", true},
		{"decomposed accents", []string{"Libe\u0301rte\u0301 Eco"}, 0, "Libe\u0301rte\u0301 Eco", true},
		{"no match", []string{"Prix du kWh"}, 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := m.FindIn(tt.lines, tt.anchor)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.wantLabel, got.Label)
		})
	}
}
