package config

const (
	// Fetcher Defaults
	DefaultUserAgent                = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	DefaultAcceptLanguage           = "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7"
	DefaultReferer                  = "https://www.google.com/"
	DefaultHTTPTimeoutSecs          = 30
	DefaultStrategyTimeoutSecs      = 60
	DefaultMaxContentSizeBytes      = 50 * 1024 * 1024
	DefaultRetryMaxRetries          = 2
	DefaultRetryBaseDelayMs         = 500
	DefaultRetryMaxDelayMs          = 10000
	DefaultHeadlessPoolSize         = 2
	DefaultHeadlessNetworkIdleMs    = 1500
	DefaultHeadlessPageLoadTimeout  = 60
	DefaultCookieAcceptTextPattern  = "(?i)(tout accepter|accepter et fermer|j'accepte|accept all)"
	DefaultDocumentLinkPattern      = `(?i)\.pdf(\?|#|$)`
	DefaultLinkDiscoveryTimeoutSecs = 45

	// Change Store Defaults
	DefaultStateFile            = "data/state.json"
	DefaultArchiveDir           = "data/archive"
	DefaultMTimeToleranceMillis = 1000

	// Extractor Defaults
	DefaultOCRLanguage     = "fra"
	DefaultOCRDPI          = 300
	DefaultContextBefore   = 2
	DefaultContextAfter    = 3
	DefaultPdftoppmBinary  = "pdftoppm"
	DefaultTesseractBinary = "tesseract"

	// Classifier Defaults
	DefaultEnergyBandMin       = 0.05
	DefaultEnergyBandMax       = 0.35
	DefaultSubscriptionBandMin = 5.0
	DefaultSubscriptionBandMax = 80.0
	DefaultVATRate             = 0.20
	DefaultEnergyLevyPerKWh    = 0.0075
	DefaultCTARate             = 0.0271
	DefaultDedupTolerance      = 0.05

	// Storage Defaults
	DefaultStorageParquetBasePath  = "data/records"
	DefaultStorageCompressionCodec = "zstd"
	DefaultStorageSQLitePath       = "data/tariffwatch.db"
	DefaultReportDir               = "data/reports"

	// Log Defaults
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
	DefaultLogFile       = ""
	DefaultMaxLogSizeMB  = 100
	DefaultMaxLogBackups = 3

	// Scheduler Defaults
	DefaultFetchWorkers   = 4
	DefaultExtractWorkers = 2
	DefaultRunTimeoutMins = 30
	DefaultWorkerMemoryMB = 256
	DefaultPriceBasisTTC  = "ttc"
	DefaultPriceBasisHT   = "ht"
	DefaultLocalFileGlob  = "*.pdf"
	DefaultConfigEnvVar   = "TARIFFWATCH_CONFIG_PATH"
)

// DefaultPowerCatalog lists contracted power tiers in kVA, ascending.
var DefaultPowerCatalog = []int{3, 6, 9, 12, 15, 18, 24, 30, 36}

// DefaultLinkExcludeKeywords filters documents that are not tariff grids.
var DefaultLinkExcludeKeywords = []string{"cgv", "condition", "mention", "cookie", "confidentialite", "retractation"}

// DefaultVolatileMarkers are substrings whose lines are dropped before hashing.
var DefaultVolatileMarkers = []string{"cookie", "tracking", "analytics", "google-analytics", "gtm", "csrf", "token", "nonce"}
