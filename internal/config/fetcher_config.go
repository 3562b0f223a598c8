package config

import "time"

// RetryConfig defines configuration for HTTP request retries
type RetryConfig struct {
	// Retries after the first attempt; network errors and RetryStatusCodes count
	MaxRetries       int   `json:"max_retries,omitempty" yaml:"max_retries,omitempty" validate:"omitempty,min=0,max=10"`
	BaseDelayMs      int   `json:"base_delay_ms,omitempty" yaml:"base_delay_ms,omitempty" validate:"omitempty,min=1"`
	MaxDelayMs       int   `json:"max_delay_ms,omitempty" yaml:"max_delay_ms,omitempty" validate:"omitempty,min=1"`
	EnableJitter     bool  `json:"enable_jitter" yaml:"enable_jitter"`
	RetryStatusCodes []int `json:"retry_status_codes,omitempty" yaml:"retry_status_codes,omitempty"`
}

// NewDefaultRetryConfig creates default retry configuration
func NewDefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:       DefaultRetryMaxRetries,
		BaseDelayMs:      DefaultRetryBaseDelayMs,
		MaxDelayMs:       DefaultRetryMaxDelayMs,
		EnableJitter:     true,
		RetryStatusCodes: []int{429, 502, 503, 504},
	}
}

// HeadlessBrowserConfig configures the rod browser pool used to render
// JavaScript-heavy provider pages.
type HeadlessBrowserConfig struct {
	Enabled             bool     `json:"enabled" yaml:"enabled"`
	ChromePath          string   `json:"chrome_path,omitempty" yaml:"chrome_path,omitempty"`
	UserDataDir         string   `json:"user_data_dir,omitempty" yaml:"user_data_dir,omitempty"`
	WindowWidth         int      `json:"window_width,omitempty" yaml:"window_width,omitempty" validate:"omitempty,min=100"`
	WindowHeight        int      `json:"window_height,omitempty" yaml:"window_height,omitempty" validate:"omitempty,min=100"`
	PageLoadTimeoutSecs int      `json:"page_load_timeout_secs,omitempty" yaml:"page_load_timeout_secs,omitempty" validate:"omitempty,min=1"`
	NetworkIdleMs       int      `json:"network_idle_ms,omitempty" yaml:"network_idle_ms,omitempty" validate:"omitempty,min=0"`
	DisableImages       bool     `json:"disable_images" yaml:"disable_images"`
	PoolSize            int      `json:"pool_size,omitempty" yaml:"pool_size,omitempty" validate:"omitempty,min=1"`
	CookieAcceptPattern string   `json:"cookie_accept_pattern,omitempty" yaml:"cookie_accept_pattern,omitempty" validate:"omitempty,regexp"`
	OverlaySelectors    []string `json:"overlay_selectors,omitempty" yaml:"overlay_selectors,omitempty"`
}

// NewDefaultHeadlessBrowserConfig creates default headless browser configuration
func NewDefaultHeadlessBrowserConfig() HeadlessBrowserConfig {
	return HeadlessBrowserConfig{
		Enabled:             true,
		WindowWidth:         1920,
		WindowHeight:        1080,
		PageLoadTimeoutSecs: DefaultHeadlessPageLoadTimeout,
		NetworkIdleMs:       DefaultHeadlessNetworkIdleMs,
		DisableImages:       true,
		PoolSize:            DefaultHeadlessPoolSize,
		CookieAcceptPattern: DefaultCookieAcceptTextPattern,
		OverlaySelectors: []string{
			"#didomi-host",
			"#onetrust-consent-sdk",
			"#axeptio_overlay",
			"#tarteaucitronRoot",
			".cookie-banner",
		},
	}
}

// FetcherConfig groups every retrieval strategy setting.
type FetcherConfig struct {
	UserAgent           string                `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	AcceptLanguage      string                `json:"accept_language,omitempty" yaml:"accept_language,omitempty"`
	Referer             string                `json:"referer,omitempty" yaml:"referer,omitempty"`
	HTTPTimeoutSecs     int                   `json:"http_timeout_secs,omitempty" yaml:"http_timeout_secs,omitempty" validate:"omitempty,min=1"`
	StrategyTimeoutSecs int                   `json:"strategy_timeout_secs,omitempty" yaml:"strategy_timeout_secs,omitempty" validate:"omitempty,min=1"`
	MaxContentSize      int                   `json:"max_content_size,omitempty" yaml:"max_content_size,omitempty" validate:"omitempty,min=1"`
	InsecureSkipVerify  bool                  `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	Proxy               string                `json:"proxy,omitempty" yaml:"proxy,omitempty" validate:"omitempty,url"`
	EnableHTTP2         bool                  `json:"enable_http2" yaml:"enable_http2"`
	Retry               RetryConfig           `json:"retry,omitempty" yaml:"retry,omitempty"`
	HeadlessBrowser     HeadlessBrowserConfig `json:"headless_browser,omitempty" yaml:"headless_browser,omitempty"`
	DocumentLinkPattern string                `json:"document_link_pattern,omitempty" yaml:"document_link_pattern,omitempty" validate:"omitempty,regexp"`
	LinkExcludeKeywords []string              `json:"link_exclude_keywords,omitempty" yaml:"link_exclude_keywords,omitempty"`
	LinkDiscoverySecs   int                   `json:"link_discovery_timeout_secs,omitempty" yaml:"link_discovery_timeout_secs,omitempty" validate:"omitempty,min=1"`
}

// NewDefaultFetcherConfig creates default fetcher configuration
func NewDefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		UserAgent:           DefaultUserAgent,
		AcceptLanguage:      DefaultAcceptLanguage,
		Referer:             DefaultReferer,
		HTTPTimeoutSecs:     DefaultHTTPTimeoutSecs,
		StrategyTimeoutSecs: DefaultStrategyTimeoutSecs,
		MaxContentSize:      DefaultMaxContentSizeBytes,
		InsecureSkipVerify:  false,
		EnableHTTP2:         true,
		Retry:               NewDefaultRetryConfig(),
		HeadlessBrowser:     NewDefaultHeadlessBrowserConfig(),
		DocumentLinkPattern: DefaultDocumentLinkPattern,
		LinkExcludeKeywords: append([]string(nil), DefaultLinkExcludeKeywords...),
		LinkDiscoverySecs:   DefaultLinkDiscoveryTimeoutSecs,
	}
}

// StrategyTimeout returns the per-attempt timeout, honouring a provider override.
func (fc FetcherConfig) StrategyTimeout(override int) time.Duration {
	if override > 0 {
		return time.Duration(override) * time.Second
	}
	if fc.StrategyTimeoutSecs > 0 {
		return time.Duration(fc.StrategyTimeoutSecs) * time.Second
	}
	return DefaultStrategyTimeoutSecs * time.Second
}
