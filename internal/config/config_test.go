package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultGlobalConfig(t *testing.T) {
	cfg := NewDefaultGlobalConfig()

	require.NotNil(t, cfg)
	assert.Equal(t, DefaultStateFile, cfg.ChangeStoreConfig.StateFile)
	assert.Equal(t, 0.05, cfg.ClassifierConfig.EnergyBand.Min)
	assert.Equal(t, 0.35, cfg.ClassifierConfig.EnergyBand.Max)
	assert.Equal(t, 5.0, cfg.ClassifierConfig.SubscriptionBand.Min)
	assert.Equal(t, 80.0, cfg.ClassifierConfig.SubscriptionBand.Max)
	assert.Equal(t, []int{3, 6, 9, 12, 15, 18, 24, 30, 36}, cfg.ClassifierConfig.PowerCatalog)
	assert.Equal(t, "fra", cfg.ExtractorConfig.OCRLanguage)
	assert.Equal(t, 4, cfg.SchedulerConfig.FetchWorkers)
	assert.Empty(t, cfg.Providers)
	assert.NoError(t, ValidateConfig(cfg))
}

func TestLoadGlobalConfig_NonExistentFile(t *testing.T) {
	cfg, err := LoadGlobalConfig("/nonexistent/config.yaml", zerolog.Nop())

	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config file does not exist")
}

func TestLoadGlobalConfig_YAMLFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	configData := `
log_config:
  log_level: debug
scheduler_config:
  fetch_workers: 2
providers:
  - name: Ohm Énergie
    price_basis: ht
    resources:
      - kind: pdf
        page_url: https://ohm-energie.com/documents
        fallback_urls:
          - https://cdn.ohm-energie.com/grille.pdf
  - name: Local
    ocr_language: eng
    offer_rules:
      - pattern: "(?i)verte"
        canonical: Offre Verte
        confidence: 0.7
    resources:
      - kind: local_file
        path: /tmp/grids
`
	require.NoError(t, os.WriteFile(configFile, []byte(configData), 0o644))

	cfg, err := LoadGlobalConfig(configFile, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogConfig.LogLevel)
	assert.Equal(t, 2, cfg.SchedulerConfig.FetchWorkers)
	assert.Equal(t, DefaultExtractWorkers, cfg.SchedulerConfig.ExtractWorkers, "unset fields keep defaults")
	require.Len(t, cfg.Providers, 2)

	ohm := cfg.Provider("Ohm Énergie")
	require.NotNil(t, ohm)
	assert.True(t, ohm.IsHT())
	assert.Equal(t, "fra", ohm.OCRLanguage)
	assert.NotEmpty(t, ohm.OfferRules, "known provider gets the built-in alias table")
	assert.Equal(t, "https://ohm-energie.com/documents", ohm.Resources[0].Location())

	local := cfg.Provider("Local")
	require.NotNil(t, local)
	assert.False(t, local.IsHT())
	assert.Equal(t, DefaultPriceBasisTTC, local.PriceBasis)
	assert.Equal(t, "eng", local.OCRLanguage)
	require.Len(t, local.OfferRules, 1)
	assert.Equal(t, "Offre Verte", local.OfferRules[0].Canonical)

	assert.Nil(t, cfg.Provider("missing"))
	assert.NoError(t, ValidateConfig(cfg))
}

func TestLoadGlobalConfig_JSONFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.json")
	configData := `{
		"fetcher_config": {"user_agent": "test-agent"},
		"providers": [{"name": "p", "resources": [{"kind": "page", "url": "https://example.com"}]}],
		"unknown_section": {"ignored": true}
	}`
	require.NoError(t, os.WriteFile(configFile, []byte(configData), 0o644))

	cfg, err := LoadGlobalConfig(configFile, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "test-agent", cfg.FetcherConfig.UserAgent)
	assert.Equal(t, DefaultAcceptLanguage, cfg.FetcherConfig.AcceptLanguage)
	require.Len(t, cfg.Providers, 1)
}

func TestLoadGlobalConfig_InvalidYAML(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(configFile, []byte("providers: [\n"), 0o644))

	cfg, err := LoadGlobalConfig(configFile, zerolog.Nop())
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestGetConfigPath_EnvVariable(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "from-env.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("{}"), 0o644))
	t.Setenv(DefaultConfigEnvVar, configFile)

	assert.Equal(t, configFile, GetConfigPath(""))
	assert.Equal(t, configFile, GetConfigPath("/does/not/exist.yaml"))
}

func validProvider() ProviderConfig {
	return ProviderConfig{
		Name:      "p",
		Resources: []ResourceConfig{{Kind: "page", URL: "https://example.com/tarifs"}},
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *GlobalConfig)
		wantErr string
	}{
		{
			name:   "valid provider",
			mutate: func(cfg *GlobalConfig) {},
		},
		{
			name:    "bad log level",
			mutate:  func(cfg *GlobalConfig) { cfg.LogConfig.LogLevel = "verbose" },
			wantErr: "loglevel",
		},
		{
			name: "unknown resource kind",
			mutate: func(cfg *GlobalConfig) {
				cfg.Providers[0].Resources[0].Kind = "ftp"
			},
			wantErr: "resourcekind",
		},
		{
			name: "unknown strategy",
			mutate: func(cfg *GlobalConfig) {
				cfg.Providers[0].Strategies = []string{"http_get", "carrier_pigeon"}
			},
			wantErr: "strategykind",
		},
		{
			name:    "bad price basis",
			mutate:  func(cfg *GlobalConfig) { cfg.Providers[0].PriceBasis = "gross" },
			wantErr: "pricebasis",
		},
		{
			name: "invalid offer rule pattern",
			mutate: func(cfg *GlobalConfig) {
				cfg.Providers[0].OfferRules = []OfferRule{{Pattern: "(", Canonical: "x", Confidence: 0.5}}
			},
			wantErr: "regexp",
		},
		{
			name:    "inverted band",
			mutate:  func(cfg *GlobalConfig) { cfg.ClassifierConfig.EnergyBand = BandConfig{Min: 0.4, Max: 0.1} },
			wantErr: "gtfield",
		},
		{
			name:    "provider without resources",
			mutate:  func(cfg *GlobalConfig) { cfg.Providers[0].Resources = nil },
			wantErr: "Resources",
		},
		{
			name:    "duplicate provider",
			mutate:  func(cfg *GlobalConfig) { cfg.Providers = append(cfg.Providers, validProvider()) },
			wantErr: "duplicate provider",
		},
		{
			name: "local file without path",
			mutate: func(cfg *GlobalConfig) {
				cfg.Providers[0].Resources[0] = ResourceConfig{Kind: "local_file", URL: "https://example.com/x.pdf"}
			},
			wantErr: "needs a path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultGlobalConfig()
			cfg.Providers = []ProviderConfig{validProvider()}
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFoldLabel(t *testing.T) {
	assert.Equal(t, "ohm energie", FoldLabel("  Ohm   Énergie "))
	assert.Equal(t, "liberte eco", FoldLabel("LIBERTÉ Éco"))
}

func TestDefaultOfferRules(t *testing.T) {
	assert.Len(t, DefaultOfferRules("Ohm Énergie"), 7)
	assert.Nil(t, DefaultOfferRules("Unknown Provider"))
}

func TestBandConfigContains(t *testing.T) {
	band := BandConfig{Min: 0.05, Max: 0.35}
	assert.True(t, band.Contains(0.05))
	assert.True(t, band.Contains(0.35))
	assert.False(t, band.Contains(0.0499))
	assert.False(t, band.Contains(0.42))
}
