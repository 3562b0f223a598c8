package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/aleister1102/tariffwatch/internal/common/errorwrapper"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// maxConfigFileSize bounds how much of a config file is read.
const maxConfigFileSize = 10 * 1024 * 1024

// GlobalConfig contains all configuration sections for the application
type GlobalConfig struct {
	LogConfig          LogConfig          `json:"log_config,omitempty" yaml:"log_config,omitempty"`
	FetcherConfig      FetcherConfig      `json:"fetcher_config,omitempty" yaml:"fetcher_config,omitempty"`
	ChangeStoreConfig  ChangeStoreConfig  `json:"change_store_config,omitempty" yaml:"change_store_config,omitempty"`
	ExtractorConfig    ExtractorConfig    `json:"extractor_config,omitempty" yaml:"extractor_config,omitempty"`
	ClassifierConfig   ClassifierConfig   `json:"classifier_config,omitempty" yaml:"classifier_config,omitempty"`
	StorageConfig      StorageConfig      `json:"storage_config,omitempty" yaml:"storage_config,omitempty"`
	SchedulerConfig    SchedulerConfig    `json:"scheduler_config,omitempty" yaml:"scheduler_config,omitempty"`
	NotificationConfig NotificationConfig `json:"notification_config,omitempty" yaml:"notification_config,omitempty"`
	Providers          []ProviderConfig   `json:"providers,omitempty" yaml:"providers,omitempty" validate:"dive"`
}

// NewDefaultGlobalConfig creates a new GlobalConfig with default values
func NewDefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		LogConfig:          NewDefaultLogConfig(),
		FetcherConfig:      NewDefaultFetcherConfig(),
		ChangeStoreConfig:  NewDefaultChangeStoreConfig(),
		ExtractorConfig:    NewDefaultExtractorConfig(),
		ClassifierConfig:   NewDefaultClassifierConfig(),
		StorageConfig:      NewDefaultStorageConfig(),
		SchedulerConfig:    NewDefaultSchedulerConfig(),
		NotificationConfig: NewDefaultNotificationConfig(),
		Providers:          []ProviderConfig{},
	}
}

// Provider returns the provider with the given name, or nil.
func (gc *GlobalConfig) Provider(name string) *ProviderConfig {
	for i := range gc.Providers {
		if gc.Providers[i].Name == name {
			return &gc.Providers[i]
		}
	}
	return nil
}

// LoadGlobalConfig loads the configuration from a file or default locations.
// It determines the config file path using GetConfigPath, supports both JSON and YAML formats.
// YAML is preferred if the file extension is .yaml or .yml.
func LoadGlobalConfig(providedPath string, logger zerolog.Logger) (*GlobalConfig, error) {
	cfg := NewDefaultGlobalConfig()

	if providedPath != "" && !fileExists(providedPath) {
		return nil, errorwrapper.NewValidationError("config_file", providedPath, "config file does not exist")
	}

	filePath := GetConfigPath(providedPath)
	if filePath == "" {
		logger.Info().Msg("No configuration file found, using defaults")
		return cfg, nil
	}

	data, err := loadConfigFileContent(filePath)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to load config file content")
	}

	if err := parseConfigContent(data, filePath, cfg); err != nil {
		return nil, errorwrapper.WrapError(err, "failed to parse config content")
	}

	cfg.applyProviderDefaults()

	logger.Info().Str("path", filePath).Int("providers", len(cfg.Providers)).Msg("Configuration loaded")
	return cfg, nil
}

// applyProviderDefaults fills per-provider fields left empty with the global
// values so that downstream components never look at two places.
func (gc *GlobalConfig) applyProviderDefaults() {
	for i := range gc.Providers {
		p := &gc.Providers[i]
		if p.PriceBasis == "" {
			p.PriceBasis = DefaultPriceBasisTTC
		}
		if p.OCRLanguage == "" {
			p.OCRLanguage = gc.ExtractorConfig.OCRLanguage
		}
		if len(p.OfferRules) == 0 {
			p.OfferRules = DefaultOfferRules(p.Name)
		}
	}
}

// loadConfigFileContent reads the config file with a size limit
func loadConfigFileContent(filePath string) ([]byte, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxConfigFileSize {
		return nil, errorwrapper.NewValidationError("config_file", filePath, "config file exceeds 10MB")
	}
	return os.ReadFile(filePath)
}

// parseConfigContent decodes YAML for .yaml/.yml files and JSON otherwise.
func parseConfigContent(data []byte, filePath string, cfg *GlobalConfig) error {
	var err error
	format := "JSON"
	switch filepath.Ext(filePath) {
	case ".yaml", ".yml":
		format = "YAML"
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return errorwrapper.NewError("failed to unmarshal %s from '%s': %w", format, filePath, err)
	}
	return nil
}
