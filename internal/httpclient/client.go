package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/aleister1102/tariffwatch/internal/common/errorwrapper"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
)

// maxErrorSnippet bounds how much of an error body ends up in HTTPError.
const maxErrorSnippet = 256

// HTTPClient downloads tariff pages and documents with browser-like default
// headers, a body size limit and optional retries.
type HTTPClient struct {
	client  *http.Client
	config  HTTPClientConfig
	logger  zerolog.Logger
	retrier *RetryHandler
}

// NewHTTPClient creates a new HTTP client with the given configuration using net/http
func NewHTTPClient(config HTTPClientConfig, logger zerolog.Logger) (*HTTPClient, error) {
	logger = logger.With().Str("component", "HTTPClient").Logger()

	transport := &http.Transport{
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		MaxConnsPerHost:       config.MaxConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ExpectContinueTimeout: config.ExpectContinueTimeout,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: config.InsecureSkipVerify},
	}

	if config.EnableHTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			logger.Warn().Err(err).Msg("HTTP/2 not available, using HTTP/1.1")
		}
	}

	if config.Proxy != "" {
		proxyURL, err := url.Parse(config.Proxy)
		if err != nil {
			return nil, errorwrapper.WrapError(err, "failed to parse proxy URL")
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	client := &http.Client{Transport: transport, Timeout: config.Timeout}
	switch {
	case !config.FollowRedirects:
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	case config.MaxRedirects > 0:
		client.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
			if len(via) >= config.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", config.MaxRedirects)
			}
			return nil
		}
	}

	logger.Debug().
		Dur("timeout", config.Timeout).
		Bool("http2", config.EnableHTTP2).
		Bool("proxy", config.Proxy != "").
		Msg("HTTP client created")

	return &HTTPClient{client: client, config: config, logger: logger}, nil
}

// Do sends req, retrying transient failures when a retry policy is set.
func (c *HTTPClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if c.retrier != nil {
		return c.retrier.Do(ctx, c.send, req)
	}
	return c.send(ctx, req)
}

func (c *HTTPClient) send(ctx context.Context, req *Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, req.Body)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to create HTTP request")
	}
	c.applyHeaders(httpReq, req.Headers)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, errorwrapper.NewNetworkError(req.URL, "request failed", err)
	}
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if c.config.MaxContentSize > 0 {
		body = io.LimitReader(resp.Body, int64(c.config.MaxContentSize)+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, errorwrapper.NewNetworkError(req.URL, "failed to read response body", err)
	}
	if c.config.MaxContentSize > 0 && len(data) > c.config.MaxContentSize {
		return nil, errorwrapper.NewValidationError("content_size", len(data), fmt.Sprintf("response from %s exceeds %d bytes", req.URL, c.config.MaxContentSize))
	}

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data, FinalURL: req.URL}
	if resp.Request != nil && resp.Request.URL != nil {
		out.FinalURL = resp.Request.URL.String()
	}
	return out, nil
}

// applyHeaders sets the configured defaults, then the per-request headers.
func (c *HTTPClient) applyHeaders(httpReq *http.Request, headers map[string]string) {
	for key, value := range c.config.CustomHeaders {
		httpReq.Header.Set(key, value)
	}
	if c.config.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.config.UserAgent)
	}
	for key, value := range headers {
		httpReq.Header.Set(key, value)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "*/*")
	}
}

// GetDocument downloads rawURL. A non-2xx status is an *errorwrapper.HTTPError
// and an empty body a *errorwrapper.NetworkError.
func (c *HTTPClient) GetDocument(ctx context.Context, rawURL string, headers map[string]string) (*Document, error) {
	resp, err := c.Do(ctx, &Request{URL: rawURL, Method: http.MethodGet, Headers: headers})
	if err != nil {
		c.logger.Debug().Err(err).Str("url", rawURL).Msg("Download failed")
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := resp.Body
		if len(snippet) > maxErrorSnippet {
			snippet = snippet[:maxErrorSnippet]
		}
		return nil, errorwrapper.NewHTTPErrorWithURL(resp.StatusCode, strings.TrimSpace(string(snippet)), rawURL)
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil, errorwrapper.NewNetworkError(rawURL, "empty response body", nil)
	}

	c.logger.Debug().
		Str("url", rawURL).
		Str("final_url", resp.FinalURL).
		Int("bytes", len(resp.Body)).
		Str("content_type", resp.ContentType()).
		Msg("Document downloaded")

	return &Document{Content: resp.Body, ContentType: resp.ContentType(), FinalURL: resp.FinalURL}, nil
}
