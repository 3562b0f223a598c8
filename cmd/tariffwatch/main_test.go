package main

import (
	"bytes"
	"testing"

	"github.com/aleister1102/tariffwatch/internal/models"
	"github.com/aleister1102/tariffwatch/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintSummary(t *testing.T) {
	ohm := models.NewResourceIdentity("ohm", "https://ohm.example/tarifs", models.KindPage)
	mint := models.NewResourceIdentity("mint", "https://mint.example/grille.pdf", models.KindPDF)
	result := &pipeline.RunResult{
		RunID: "run-1",
		Outcomes: []models.Outcome{
			{Identity: ohm, Status: models.OutcomeUpdated, RecordCount: 4},
			{Identity: mint, Status: models.OutcomeFetchFailed},
		},
		Records: make([]models.TariffRecord, 4),
		ProviderStatus: map[string]models.OutcomeStatus{
			"ohm":  models.OutcomeUpdated,
			"mint": models.OutcomeFetchFailed,
		},
		PayloadPath: "data/reports/run-1/notification.json",
	}

	var buf bytes.Buffer
	printSummary(&buf, result)

	assert.Equal(t, "run run-1: 2 resources, 0 changes, 4 records\n"+
		"  mint: fetch_failed\n"+
		"  ohm: updated(4)\n"+
		"notification: data/reports/run-1/notification.json\n", buf.String())
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"run", "extract", "state"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}

	run, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)
	require.NoError(t, run.ParseFlags([]string{"--providers", "ohm,mint"}))
	providers, err := run.Flags().GetStringSlice("providers")
	require.NoError(t, err)
	assert.Equal(t, []string{"ohm", "mint"}, providers)
}

func TestExtractCmd_RequiresFile(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"extract"})
	cmd.SetOut(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}
