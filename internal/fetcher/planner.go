package fetcher

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aleister1102/tariffwatch/internal/config"
	"github.com/aleister1102/tariffwatch/internal/httpclient"
	"github.com/aleister1102/tariffwatch/internal/models"
	"github.com/rs/zerolog"
)

// Target is one resource to check together with the configuration it came from.
type Target struct {
	Identity models.ResourceIdentity
	Provider *config.ProviderConfig
	Resource config.ResourceConfig
}

// Planner turns configured resources into targets and builds the ordered
// strategy list of each target.
type Planner struct {
	cfg      config.FetcherConfig
	client   *httpclient.HTTPClient
	renderer Renderer
	links    *LinkDiscoverer
	logger   zerolog.Logger
}

// NewPlanner creates a planner. renderer may be nil when headless rendering
// is disabled.
func NewPlanner(cfg config.FetcherConfig, client *httpclient.HTTPClient, renderer Renderer, logger zerolog.Logger) (*Planner, error) {
	links, err := NewLinkDiscoverer(cfg, renderer, logger)
	if err != nil {
		return nil, err
	}
	return &Planner{
		cfg:      cfg,
		client:   client,
		renderer: renderer,
		links:    links,
		logger:   logger.With().Str("component", "Planner").Logger(),
	}, nil
}

// Targets expands the resources of provider. Local directories become one
// target per matching file.
func (p *Planner) Targets(provider *config.ProviderConfig) ([]Target, error) {
	var targets []Target
	for _, res := range provider.Resources {
		kind := models.ResourceKind(res.Kind)
		if kind != models.KindLocalFile {
			targets = append(targets, Target{
				Identity: models.NewResourceIdentity(provider.Name, res.Location(), kind),
				Provider: provider,
				Resource: res,
			})
			continue
		}

		info, err := os.Stat(res.Path)
		if err != nil || !info.IsDir() {
			// a missing file still gets a target so that it is reported
			targets = append(targets, Target{
				Identity: models.NewResourceIdentity(provider.Name, res.Path, kind),
				Provider: provider,
				Resource: res,
			})
			continue
		}

		files, err := ScanLocalDirectory(res.Path, res.Pattern, res.NameFilter)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", res.Path, err)
		}
		for _, file := range files {
			fileRes := res
			fileRes.Path = file
			targets = append(targets, Target{
				Identity: models.NewResourceIdentity(provider.Name, file, kind),
				Provider: provider,
				Resource: fileRes,
			})
		}
	}
	return targets, nil
}

// StrategiesFor returns the strategies of target in priority order:
// page: http_get then headless_render; pdf: page_pdf_link, then static_url
// for the direct URL and each fallback; local_file: local_file. A provider
// strategy override replaces the kind order.
func (p *Planner) StrategiesFor(target Target) []Strategy {
	kinds := p.defaultKinds(target)
	if target.Provider != nil && len(target.Provider.Strategies) > 0 {
		kinds = target.Provider.Strategies
	}

	timeout := p.cfg.StrategyTimeout(0)
	if target.Provider != nil {
		timeout = p.cfg.StrategyTimeout(target.Provider.TimeoutSecs)
	}

	var strategies []Strategy
	for _, kind := range kinds {
		for _, s := range p.expand(kind, target) {
			s.Timeout = timeout
			strategies = append(strategies, s)
		}
	}
	return strategies
}

func (p *Planner) defaultKinds(target Target) []string {
	switch target.Identity.Kind {
	case models.KindPage:
		kinds := []string{config.StrategyHTTPGet}
		if p.renderer != nil {
			kinds = append(kinds, config.StrategyHeadlessRender)
		}
		return kinds
	case models.KindPDF:
		return []string{config.StrategyPagePDFLink, config.StrategyStaticURL}
	case models.KindLocalFile:
		return []string{config.StrategyLocalFile}
	default:
		return nil
	}
}

// expand builds the strategies of one kind; static_url yields one strategy
// per configured URL.
func (p *Planner) expand(kind string, target Target) []Strategy {
	res := target.Resource
	switch kind {
	case config.StrategyHTTPGet:
		u := firstNonEmpty(res.URL, res.PageURL)
		return []Strategy{{Kind: kind, Target: u, Attempt: p.withKeywords(target, p.httpGet(u, false))}}
	case config.StrategyHeadlessRender:
		if p.renderer == nil {
			return nil
		}
		u := firstNonEmpty(res.URL, res.PageURL)
		return []Strategy{{Kind: kind, Target: u, Attempt: p.withKeywords(target, p.render(u, target.Provider))}}
	case config.StrategyPagePDFLink:
		if res.PageURL == "" {
			return nil
		}
		return []Strategy{{Kind: kind, Target: res.PageURL, Attempt: p.pagePDFLink(res.PageURL, target.Provider)}}
	case config.StrategyStaticURL:
		var out []Strategy
		for _, u := range append([]string{res.URL}, res.FallbackURLs...) {
			if u == "" {
				continue
			}
			out = append(out, Strategy{Kind: kind, Target: u, Attempt: p.httpGet(u, target.Identity.Kind == models.KindPDF)})
		}
		return out
	case config.StrategyLocalFile:
		path := res.Path
		return []Strategy{{Kind: kind, Target: path, Attempt: func(ctx context.Context, _ models.ResourceIdentity) (*models.FetchResult, error) {
			if path == "" {
				return nil, errMissingTarget
			}
			return ReadLocalFile(path)
		}}}
	default:
		p.logger.Warn().Str("strategy", kind).Msg("Unknown strategy kind ignored")
		return nil
	}
}

func (p *Planner) httpGet(u string, requirePDF bool) AttemptFunc {
	return func(ctx context.Context, _ models.ResourceIdentity) (*models.FetchResult, error) {
		if u == "" {
			return nil, errMissingTarget
		}
		return p.download(ctx, u, requirePDF)
	}
}

func (p *Planner) download(ctx context.Context, u string, requirePDF bool) (*models.FetchResult, error) {
	res, err := p.client.GetDocument(ctx, u, nil)
	if err != nil {
		return nil, err
	}
	result := &models.FetchResult{
		Content:     res.Content,
		ContentType: res.ContentType,
		FinalURL:    res.FinalURL,
	}
	if requirePDF && !result.IsPDF() {
		return nil, fmt.Errorf("%s: %w", u, errNotPDF)
	}
	return result, nil
}

func (p *Planner) render(u string, provider *config.ProviderConfig) AttemptFunc {
	opts := RenderOptions{}
	if provider != nil {
		opts.ClickSelector = provider.ClickSelector
	}
	return func(ctx context.Context, _ models.ResourceIdentity) (*models.FetchResult, error) {
		if u == "" {
			return nil, errMissingTarget
		}
		page, err := p.renderer.Render(ctx, u, opts)
		if err != nil {
			return nil, err
		}
		return &models.FetchResult{
			Content:     []byte(page.HTML),
			ContentType: "text/html; charset=utf-8",
			FinalURL:    page.FinalURL,
		}, nil
	}
}

// pagePDFLink discovers document links on pageURL and downloads them in
// order until one is a PDF.
func (p *Planner) pagePDFLink(pageURL string, provider *config.ProviderConfig) AttemptFunc {
	return func(ctx context.Context, _ models.ResourceIdentity) (*models.FetchResult, error) {
		candidates, err := p.links.Discover(ctx, pageURL, provider)
		if err != nil {
			return nil, err
		}

		var errs []string
		for _, link := range candidates {
			result, err := p.download(ctx, link.URL, true)
			if err == nil {
				p.logger.Debug().Str("page", pageURL).Str("document", link.URL).Msg("Document link resolved")
				return result, nil
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			errs = append(errs, fmt.Sprintf("%s: %v", link.URL, err))
		}
		return nil, fmt.Errorf("no candidate link could be downloaded: %s", strings.Join(errs, "; "))
	}
}

// withKeywords rejects HTML content that mentions none of the provider
// content keywords.
func (p *Planner) withKeywords(target Target, attempt AttemptFunc) AttemptFunc {
	if target.Provider == nil || len(target.Provider.ContentKeywords) == 0 {
		return attempt
	}
	keywords := target.Provider.ContentKeywords
	return func(ctx context.Context, identity models.ResourceIdentity) (*models.FetchResult, error) {
		result, err := attempt(ctx, identity)
		if err != nil || result == nil || result.IsPDF() {
			return result, err
		}
		folded := config.FoldLabel(string(result.Content))
		for _, kw := range keywords {
			if kw = config.FoldLabel(kw); kw != "" && strings.Contains(folded, kw) {
				return result, nil
			}
		}
		return nil, fmt.Errorf("content mentions none of %v", keywords)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
