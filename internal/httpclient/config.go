package httpclient

import (
	"time"

	"github.com/aleister1102/tariffwatch/internal/config"
)

// HTTPClientConfig holds configuration for HTTP clients
type HTTPClientConfig struct {
	Timeout               time.Duration     // Request timeout
	InsecureSkipVerify    bool              // Skip TLS verification
	FollowRedirects       bool              // Whether to follow redirects
	MaxRedirects          int               // Maximum number of redirects to follow
	Proxy                 string            // Proxy URL (HTTP/SOCKS)
	UserAgent             string            // Always sent
	CustomHeaders         map[string]string // Default headers, overridable per request
	MaxContentSize        int               // Bytes, 0 for no limit
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	MaxConnsPerHost       int
	IdleConnTimeout       time.Duration
	TLSHandshakeTimeout   time.Duration
	ExpectContinueTimeout time.Duration
	DialTimeout           time.Duration
	KeepAlive             time.Duration
	EnableHTTP2           bool
}

// DefaultHTTPClientConfig returns the default HTTP client configuration
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:               time.Duration(config.DefaultHTTPTimeoutSecs) * time.Second,
		FollowRedirects:       true,
		MaxRedirects:          10,
		UserAgent:             config.DefaultUserAgent,
		MaxContentSize:        config.DefaultMaxContentSizeBytes,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		DialTimeout:           10 * time.Second,
		KeepAlive:             30 * time.Second,
		EnableHTTP2:           true,
		CustomHeaders:         BrowserHeaders(config.DefaultAcceptLanguage, config.DefaultReferer),
	}
}

// BrowserHeaders returns the header set a desktop browser sends on a top-level navigation.
func BrowserHeaders(acceptLanguage, referer string) map[string]string {
	headers := map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,application/pdf;q=0.9,*/*;q=0.8",
		"Accept-Language":           acceptLanguage,
		"DNT":                       "1",
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "cross-site",
		"Sec-Fetch-User":            "?1",
	}
	if referer != "" {
		headers["Referer"] = referer
	}
	return headers
}

// ConfigFromFetcher maps the fetcher section of the global configuration.
func ConfigFromFetcher(fc config.FetcherConfig) HTTPClientConfig {
	cfg := DefaultHTTPClientConfig()
	if fc.HTTPTimeoutSecs > 0 {
		cfg.Timeout = time.Duration(fc.HTTPTimeoutSecs) * time.Second
	}
	if fc.UserAgent != "" {
		cfg.UserAgent = fc.UserAgent
	}
	if fc.MaxContentSize > 0 {
		cfg.MaxContentSize = fc.MaxContentSize
	}
	cfg.InsecureSkipVerify = fc.InsecureSkipVerify
	cfg.Proxy = fc.Proxy
	cfg.EnableHTTP2 = fc.EnableHTTP2
	acceptLanguage := fc.AcceptLanguage
	if acceptLanguage == "" {
		acceptLanguage = config.DefaultAcceptLanguage
	}
	cfg.CustomHeaders = BrowserHeaders(acceptLanguage, fc.Referer)
	return cfg
}

// RetryConfigFromFetcher maps the retry section of the global configuration.
func RetryConfigFromFetcher(rc config.RetryConfig) RetryHandlerConfig {
	return RetryHandlerConfig{
		MaxRetries:       rc.MaxRetries,
		BaseDelay:        time.Duration(rc.BaseDelayMs) * time.Millisecond,
		MaxDelay:         time.Duration(rc.MaxDelayMs) * time.Millisecond,
		EnableJitter:     rc.EnableJitter,
		RetryStatusCodes: rc.RetryStatusCodes,
	}
}
