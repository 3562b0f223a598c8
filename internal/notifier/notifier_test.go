package notifier

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aleister1102/tariffwatch/internal/config"
	"github.com/aleister1102/tariffwatch/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ohmPage  = models.NewResourceIdentity("Ohm", "https://ohm-energie.com/tarifs", models.KindPage)
	ohmPDF   = models.NewResourceIdentity("Ohm", "https://ohm-energie.com/grille.pdf", models.KindPDF)
	mintPage = models.NewResourceIdentity("Mint", "https://mint-energie.com/offres", models.KindPage)
	mintGas  = models.NewResourceIdentity("Mint", "https://mint-energie.com/gaz", models.KindPage)
)

func sampleRecords() []models.TariffRecord {
	return []models.TariffRecord{
		{
			Provider: "Ohm", OfferLabel: "Classique", OfferCanonical: "Classique",
			PriceType: models.PriceEnergy, Unit: models.RecordUnitEnergy,
			PriceHT: 0.2013, PriceTTC: 0.2516, Confidence: 0.9, Frequency: 2, Rank: 1,
			Source: ohmPDF, ExtractedAt: time.Now(),
		},
		{
			Provider: "Ohm", OfferLabel: "Classique", OfferCanonical: "Classique",
			PriceType: models.PriceSubscription, Unit: models.RecordUnitSubscription,
			PriceHT: 10.5, PriceTTC: 12.6, PowerKVA: models.IntPtr(6), Confidence: 0.9, Frequency: 1, Rank: 1,
			Source: ohmPDF, ExtractedAt: time.Now(),
		},
	}
}

func TestSummarize(t *testing.T) {
	events := []models.ChangeEvent{{
		Identity: ohmPDF, OldHash: "aaaaaaaaaaaaaaaaaaaa", NewHash: "bbbbbbbbbbbbbbbbbbbb",
		DiffRef: "data/archive/ohm/pdf/diff.txt", DetectedAt: time.Now(),
	}}
	outcomes := []models.Outcome{
		{Identity: ohmPage, Status: models.OutcomeUnchanged},
		{Identity: ohmPDF, Status: models.OutcomeUpdated, RecordCount: 2},
		{Identity: mintPage, Status: models.OutcomeFetchFailed, Error: "all retrieval strategies failed"},
		{Identity: mintGas, Status: models.OutcomeExtractionEmpty, Error: "no token"},
	}

	payload := Summarize(events, sampleRecords(), outcomes)

	assert.True(t, payload.HasChanges)
	assert.Equal(t, SubjectChanges, payload.Subject)
	require.Len(t, payload.Providers, 2)

	mint, ohm := payload.Providers[0], payload.Providers[1]
	assert.Equal(t, "Mint", mint.Provider)
	assert.Equal(t, models.OutcomeFetchFailed, mint.Status)
	assert.Equal(t, 1, mint.Failed)
	assert.Equal(t, 1, mint.Empty)
	assert.Zero(t, mint.Records)

	assert.Equal(t, "Ohm", ohm.Provider)
	assert.Equal(t, models.OutcomeUpdated, ohm.Status)
	assert.Equal(t, 1, ohm.Changed)
	assert.Equal(t, 1, ohm.Unchanged)
	assert.Equal(t, 2, ohm.Records)

	require.Len(t, payload.Failures, 2)
	assert.Equal(t, mintGas, payload.Failures[0].Identity)
	assert.Equal(t, mintPage, payload.Failures[1].Identity)
	assert.Len(t, payload.NewRecords, 2)
	assert.Len(t, payload.Events, 1)
}

func TestSummarize_NoChange(t *testing.T) {
	outcomes := []models.Outcome{
		{Identity: ohmPage, Status: models.OutcomeUnchanged},
		{Identity: ohmPDF, Status: models.OutcomeUnchanged},
	}
	payload := Summarize(nil, nil, outcomes)

	assert.False(t, payload.HasChanges)
	assert.Equal(t, SubjectNoChange, payload.Subject)
	require.Len(t, payload.Providers, 1)
	assert.Equal(t, models.OutcomeUnchanged, payload.Providers[0].Status)
	assert.Equal(t, 2, payload.Providers[0].Unchanged)
	assert.Empty(t, payload.Failures)
}

func TestSummarize_FirstObservationCounts(t *testing.T) {
	outcomes := []models.Outcome{
		{Identity: ohmPDF, Status: models.OutcomeFirstObservation, RecordCount: 2},
	}
	payload := Summarize(nil, sampleRecords(), outcomes)

	assert.True(t, payload.HasChanges, "new records are a change even without an event")
	require.Len(t, payload.Providers, 1)
	assert.Equal(t, 1, payload.Providers[0].New)
	assert.Equal(t, models.OutcomeUpdated, payload.Providers[0].Status)
}

func TestRenderText(t *testing.T) {
	events := []models.ChangeEvent{{Identity: ohmPDF, OldHash: "0123456789abcdef", NewHash: "fedcba9876543210", DiffRef: "d.diff"}}
	outcomes := []models.Outcome{
		{Identity: ohmPDF, Status: models.OutcomeUpdated, RecordCount: 2},
		{Identity: mintPage, Status: models.OutcomeFetchFailed, Error: "timeout"},
	}
	payload := Summarize(events, sampleRecords(), outcomes)
	payload.RunID = "run-1"

	text := RenderText(payload)
	assert.Contains(t, text, "changes detected\n")
	assert.Contains(t, text, "Run: run-1")
	assert.Contains(t, text, "Ohm: updated(2)")
	assert.Contains(t, text, "Mint: fetch_failed")
	assert.Contains(t, text, "0123456789ab -> fedcba987654 (diff d.diff)")
	assert.Contains(t, text, "Ohm / Classique / energy: 0.2516 TTC €/kWh (HT 0.2013)")
	assert.Contains(t, text, "Ohm / Classique / subscription / 6 kVA: 12.60 TTC €/month (HT 10.50)")
	assert.Contains(t, text, "fetch_failed: timeout")
}

func TestNotificationHelper_Publish(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.NotificationConfig
		payload   models.NotificationPayload
		wantWrite bool
	}{
		{
			name:      "changes are always written",
			cfg:       config.NotificationConfig{},
			payload:   Summarize(nil, sampleRecords(), []models.Outcome{{Identity: ohmPDF, Status: models.OutcomeUpdated, RecordCount: 2}}),
			wantWrite: true,
		},
		{
			name:      "quiet run skipped",
			cfg:       config.NotificationConfig{},
			payload:   Summarize(nil, nil, []models.Outcome{{Identity: ohmPDF, Status: models.OutcomeUnchanged}}),
			wantWrite: false,
		},
		{
			name:      "quiet run with notify_always",
			cfg:       config.NotificationConfig{NotifyAlways: true},
			payload:   Summarize(nil, nil, []models.Outcome{{Identity: ohmPDF, Status: models.OutcomeUnchanged}}),
			wantWrite: true,
		},
		{
			name:      "failure with notify_on_failure",
			cfg:       config.NotificationConfig{NotifyOnFailure: true},
			payload:   Summarize(nil, nil, []models.Outcome{{Identity: ohmPDF, Status: models.OutcomeFetchFailed}}),
			wantWrite: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.OutputDir = t.TempDir()
			tt.cfg.SubjectPrefix = "[tariffwatch]"
			nh := NewNotificationHelper(tt.cfg, zerolog.Nop())

			payload := nh.Prepare("run-42", tt.payload)
			path, err := nh.Publish(payload)
			require.NoError(t, err)

			if !tt.wantWrite {
				assert.Empty(t, path)
				assert.NoDirExists(t, filepath.Join(tt.cfg.OutputDir, "run-42"))
				return
			}

			assert.Equal(t, filepath.Join(tt.cfg.OutputDir, "run-42", PayloadFileName), path)
			data, err := os.ReadFile(path)
			require.NoError(t, err)

			var decoded models.NotificationPayload
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, "run-42", decoded.RunID)
			assert.Contains(t, decoded.Subject, "[tariffwatch] ")
			assert.FileExists(t, filepath.Join(tt.cfg.OutputDir, "run-42", TextFileName))
		})
	}
}
