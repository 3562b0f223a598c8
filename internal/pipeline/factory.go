package pipeline

import (
	"context"

	"github.com/aleister1102/tariffwatch/internal/changestore"
	"github.com/aleister1102/tariffwatch/internal/classifier"
	"github.com/aleister1102/tariffwatch/internal/common/errorwrapper"
	"github.com/aleister1102/tariffwatch/internal/config"
	"github.com/aleister1102/tariffwatch/internal/datastore"
	"github.com/aleister1102/tariffwatch/internal/extractor"
	"github.com/aleister1102/tariffwatch/internal/fetcher"
	"github.com/aleister1102/tariffwatch/internal/httpclient"
	"github.com/aleister1102/tariffwatch/internal/models"
	"github.com/aleister1102/tariffwatch/internal/notifier"
	"github.com/aleister1102/tariffwatch/internal/rslimiter"
	"github.com/rs/zerolog"
)

// Build wires a production pipeline from cfg. The returned cleanup stops the
// browser pool and closes the record database.
func Build(cfg *config.GlobalConfig, logger zerolog.Logger) (*Pipeline, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	client, err := httpclient.NewHTTPClientBuilder(logger).
		WithConfig(httpclient.ConfigFromFetcher(cfg.FetcherConfig)).
		WithRetry(httpclient.RetryConfigFromFetcher(cfg.FetcherConfig.Retry)).
		Build()
	if err != nil {
		return nil, cleanup, errorwrapper.WrapError(err, "failed to create HTTP client")
	}

	var renderer fetcher.Renderer
	if cfg.FetcherConfig.HeadlessBrowser.Enabled {
		pool, err := fetcher.NewBrowserPool(cfg.FetcherConfig.HeadlessBrowser, cfg.FetcherConfig, logger)
		if err != nil {
			return nil, cleanup, errorwrapper.WrapError(err, "failed to create browser pool")
		}
		closers = append(closers, pool.Stop)
		renderer = pool
	}

	planner, err := fetcher.NewPlanner(cfg.FetcherConfig, client, renderer, logger)
	if err != nil {
		cleanup()
		return nil, func() {}, errorwrapper.WrapError(err, "failed to create planner")
	}

	store, err := changestore.Open(cfg.ChangeStoreConfig, logger)
	if err != nil {
		cleanup()
		return nil, func() {}, errorwrapper.WrapError(err, "failed to open change store")
	}

	var sinks []models.RecordSink
	if cfg.StorageConfig.EnableSQLite {
		db, err := datastore.NewSQLiteStore(cfg.StorageConfig.SQLitePath, logger)
		if err != nil {
			cleanup()
			return nil, func() {}, errorwrapper.WrapError(err, "failed to open record database")
		}
		closers = append(closers, func() {
			if err := db.Close(); err != nil {
				logger.Error().Err(err).Msg("Record database not closed cleanly")
			}
		})
		sinks = append(sinks, db)
	}
	if cfg.StorageConfig.EnableParquet {
		writer, err := datastore.NewParquetRecordWriter(cfg.StorageConfig, logger)
		if err != nil {
			cleanup()
			return nil, func() {}, errorwrapper.WrapError(err, "failed to create parquet writer")
		}
		sinks = append(sinks, writer)
	}

	limiterCfg := rslimiter.DefaultResourceLimiterConfig()
	if cfg.SchedulerConfig.WorkerMemoryMB > 0 {
		limiterCfg.WorkerMemoryMB = cfg.SchedulerConfig.WorkerMemoryMB
	}

	p, err := New(cfg, Deps{
		Planner:    planner,
		Fetcher:    fetcher.New(cfg.FetcherConfig, logger),
		Store:      store,
		Extractor:  NewExtractor(cfg.ExtractorConfig, logger),
		Classifier: classifier.New(cfg.ClassifierConfig, logger),
		Notifier:   notifier.NewNotificationHelper(cfg.NotificationConfig, logger),
		Limiter:    rslimiter.NewResourceLimiter(limiterCfg, logger),
		Sinks:      sinks,
	}, logger)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return p, cleanup, nil
}

// NewExtractor creates an extractor with the tesseract OCR fallback when it
// is enabled and its binaries are installed.
func NewExtractor(cfg config.ExtractorConfig, logger zerolog.Logger) *extractor.Extractor {
	var ocr extractor.OCREngine
	if cfg.EnableOCR {
		engine := extractor.NewTesseractOCR(cfg, logger)
		if err := engine.Available(); err != nil {
			logger.Warn().Err(err).Msg("OCR fallback disabled")
		} else {
			ocr = engine
		}
	}
	return extractor.New(cfg, ocr, logger)
}

// DocumentResult is the offline extraction of one document.
type DocumentResult struct {
	Identity models.ResourceIdentity   `json:"identity"`
	Report   extractor.Report          `json:"report"`
	Records  []models.TariffRecord     `json:"records"`
	Dropped  []classifier.DroppedToken `json:"dropped,omitempty"`
}

// ExtractDocument runs extraction and classification on a local document
// without touching the change store.
func ExtractDocument(ctx context.Context, ext *extractor.Extractor, cls *classifier.Classifier, path string, provider *config.ProviderConfig) (*DocumentResult, error) {
	res, err := fetcher.ReadLocalFile(path)
	if err != nil {
		return nil, err
	}
	identity := models.NewResourceIdentity(provider.Name, path, models.KindLocalFile)
	res.Identity = identity

	tokens, report, err := ext.Extract(ctx, res.Content, res.ContentKind(), extractor.Options{OCRLanguage: provider.OCRLanguage})
	if err != nil {
		return nil, err
	}
	out := &DocumentResult{Identity: identity, Report: report}
	if len(tokens) == 0 {
		return out, models.ErrExtractionEmpty
	}

	classified := cls.Normalize(tokens, classifier.NewProviderContext(provider, config.ResourceConfig{Kind: string(models.KindLocalFile), Path: path}, identity))
	out.Records = classified.Records
	out.Dropped = classified.Dropped
	if classified.Empty() {
		return out, models.ErrClassificationEmpty
	}
	return out, nil
}
