package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aleister1102/tariffwatch/internal/classifier"
	"github.com/aleister1102/tariffwatch/internal/config"
	"github.com/aleister1102/tariffwatch/internal/models"
	"github.com/aleister1102/tariffwatch/internal/pipeline"
	"github.com/spf13/cobra"
)

func newExtractCmd(root *rootFlags) *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract tariff records from a local document",
		Long: `Extract runs extraction and classification on one local PDF, HTML or text
document and prints the records as JSON. The change store is not touched.

Examples:
  tariffwatch extract grille_tarifaire_classique.pdf --provider ohm`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, zLogger, err := loadConfig(root, "")
			if err != nil {
				return err
			}

			pc := cfg.Provider(provider)
			if pc == nil {
				if provider == "" {
					return fmt.Errorf("--provider is required")
				}
				pc = &config.ProviderConfig{Name: provider, PriceBasis: config.DefaultPriceBasisTTC, OCRLanguage: cfg.ExtractorConfig.OCRLanguage}
				zLogger.Warn().Str("provider", provider).Msg("Provider not configured, using defaults")
			}

			ext := pipeline.NewExtractor(cfg.ExtractorConfig, zLogger)
			cls := classifier.New(cfg.ClassifierConfig, zLogger)

			result, err := pipeline.ExtractDocument(cmd.Context(), ext, cls, args[0], pc)
			if err != nil && !errors.Is(err, models.ErrExtractionEmpty) && !errors.Is(err, models.ErrClassificationEmpty) {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(result); encErr != nil {
				return encErr
			}
			if err != nil {
				return &exitError{code: exitDegraded, msg: err.Error()}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "Provider the document belongs to")
	return cmd
}
