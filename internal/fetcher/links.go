package fetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/aleister1102/tariffwatch/internal/config"
	"github.com/aleister1102/tariffwatch/internal/extractor"
	"github.com/aleister1102/tariffwatch/internal/httpclient"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"
)

// LinkDiscoverer finds tariff document links on a provider page.
type LinkDiscoverer struct {
	cfg      config.FetcherConfig
	finder   *extractor.LinkFinder
	renderer Renderer
	headers  map[string]string
	logger   zerolog.Logger
}

// NewLinkDiscoverer creates a discoverer. renderer may be nil, in which case
// only the static page is inspected.
func NewLinkDiscoverer(cfg config.FetcherConfig, renderer Renderer, logger zerolog.Logger) (*LinkDiscoverer, error) {
	finder, err := extractor.NewLinkFinder(cfg.DocumentLinkPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid document link pattern: %w", err)
	}
	acceptLanguage := cfg.AcceptLanguage
	if acceptLanguage == "" {
		acceptLanguage = config.DefaultAcceptLanguage
	}
	return &LinkDiscoverer{
		cfg:      cfg,
		finder:   finder,
		renderer: renderer,
		headers:  httpclient.BrowserHeaders(acceptLanguage, cfg.Referer),
		logger:   logger.With().Str("component", "LinkDiscoverer").Logger(),
	}, nil
}

// Discover returns the candidate document links of pageURL after the global
// exclusions and the provider filter. The rendered DOM is only used when the
// static page yields no candidate.
func (ld *LinkDiscoverer) Discover(ctx context.Context, pageURL string, provider *config.ProviderConfig) ([]extractor.DocumentLink, error) {
	var include, exclude []string
	exclude = append(exclude, ld.cfg.LinkExcludeKeywords...)
	clickSelector := ""
	if provider != nil {
		include = provider.LinkFilter.Include
		exclude = append(exclude, provider.LinkFilter.Exclude...)
		clickSelector = provider.ClickSelector
	}

	body, finalURL, staticErr := ld.fetchStatic(ctx, pageURL)
	if staticErr == nil {
		links, err := ld.finder.DocumentLinks(body, finalURL)
		if err == nil {
			if candidates := extractor.FilterLinks(links, include, exclude); len(candidates) > 0 {
				return candidates, nil
			}
		}
	} else {
		ld.logger.Debug().Err(staticErr).Str("page", pageURL).Msg("Static page fetch failed")
	}

	if ld.renderer == nil {
		if staticErr != nil {
			return nil, staticErr
		}
		return nil, fmt.Errorf("no document link found on %s", pageURL)
	}

	rendered, err := ld.renderer.Render(ctx, pageURL, RenderOptions{ClickSelector: clickSelector})
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", pageURL, err)
	}
	links, err := ld.finder.DocumentLinks([]byte(rendered.HTML), rendered.FinalURL)
	if err != nil {
		return nil, err
	}
	candidates := extractor.FilterLinks(links, include, exclude)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no document link found on %s", pageURL)
	}
	return candidates, nil
}

// fetchStatic downloads pageURL with a one-shot colly collector.
func (ld *LinkDiscoverer) fetchStatic(ctx context.Context, pageURL string) ([]byte, string, error) {
	if _, err := url.ParseRequestURI(pageURL); err != nil {
		return nil, "", fmt.Errorf("invalid page URL %q: %w", pageURL, err)
	}

	timeout := time.Duration(ld.cfg.LinkDiscoverySecs) * time.Second
	if timeout <= 0 {
		timeout = config.DefaultLinkDiscoveryTimeoutSecs * time.Second
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return nil, "", ctx.Err()
	}

	userAgent := ld.cfg.UserAgent
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}

	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.IgnoreRobotsTxt(),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(timeout)
	c.WithTransport(&http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: ld.cfg.InsecureSkipVerify},
	})

	var body []byte
	var finalURL string
	var visitErr error

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		for k, v := range ld.headers {
			r.Headers.Set(k, v)
		}
	})
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		finalURL = r.Request.URL.String()
	})
	c.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, "", err
	}
	c.Wait()

	if visitErr != nil {
		return nil, "", visitErr
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if len(body) == 0 {
		return nil, "", errEmptyContent
	}
	return body, finalURL, nil
}
