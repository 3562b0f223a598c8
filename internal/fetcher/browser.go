package fetcher

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/aleister1102/tariffwatch/internal/config"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

// cookieButtonSelector lists the elements inspected for a consent button.
const cookieButtonSelector = `button, a[role="button"], div[role="button"], input[type="button"], input[type="submit"]`

// RenderOptions are the per-provider render settings.
type RenderOptions struct {
	ClickSelector string
}

// RenderedPage is the DOM of a page after scripts ran.
type RenderedPage struct {
	HTML     string
	FinalURL string
}

// Renderer renders JavaScript-driven pages.
type Renderer interface {
	Render(ctx context.Context, url string, opts RenderOptions) (*RenderedPage, error)
}

// BrowserPool manages a pool of rod browser instances. Chrome is launched on
// the first render.
type BrowserPool struct {
	config      config.HeadlessBrowserConfig
	userAgent   string
	language    string
	cookieRe    *regexp.Regexp
	logger      zerolog.Logger
	browserPool chan *rod.Browser
	launcher    *launcher.Launcher
	mutex       sync.Mutex
	isRunning   bool
}

// NewBrowserPool creates a browser pool; nothing is launched yet.
func NewBrowserPool(cfg config.HeadlessBrowserConfig, fc config.FetcherConfig, logger zerolog.Logger) (*BrowserPool, error) {
	pattern := cfg.CookieAcceptPattern
	if pattern == "" {
		pattern = config.DefaultCookieAcceptTextPattern
	}
	cookieRe, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid cookie accept pattern: %w", err)
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = config.DefaultHeadlessPoolSize
	}

	return &BrowserPool{
		config:      cfg,
		userAgent:   fc.UserAgent,
		language:    fc.AcceptLanguage,
		cookieRe:    cookieRe,
		logger:      logger.With().Str("component", "BrowserPool").Logger(),
		browserPool: make(chan *rod.Browser, cfg.PoolSize),
	}, nil
}

// Start launches Chrome and connects the pool. It is safe to call repeatedly.
func (bp *BrowserPool) Start() error {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	if bp.isRunning {
		return nil
	}
	if !bp.config.Enabled {
		return fmt.Errorf("headless browser is disabled")
	}

	l := launcher.New()
	if bp.config.ChromePath != "" {
		l = l.Bin(bp.config.ChromePath)
	}
	if bp.config.UserDataDir != "" {
		l = l.UserDataDir(bp.config.UserDataDir)
	}
	l = l.
		Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-first-run").
		Set("disable-default-apps").
		Set("disable-sync")
	if bp.config.DisableImages {
		l = l.Set("blink-settings", "imagesEnabled=false")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	bp.launcher = l

	connected := 0
	for i := 0; i < bp.config.PoolSize; i++ {
		browser := rod.New().ControlURL(controlURL)
		if err := browser.Connect(); err != nil {
			bp.logger.Error().Err(err).Int("browser_index", i).Msg("Failed to connect browser")
			continue
		}
		bp.browserPool <- browser
		connected++
	}
	if connected == 0 {
		l.Cleanup()
		return fmt.Errorf("no browser instance could connect")
	}

	bp.isRunning = true
	bp.logger.Info().Int("pool_size", connected).Msg("Browser pool started")
	return nil
}

// Stop closes all browser instances and the launcher
func (bp *BrowserPool) Stop() {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	if !bp.isRunning {
		return
	}

	close(bp.browserPool)
	for browser := range bp.browserPool {
		if browser != nil {
			_ = browser.Close()
		}
	}
	if bp.launcher != nil {
		bp.launcher.Cleanup()
	}

	bp.isRunning = false
	bp.logger.Info().Msg("Browser pool stopped")
}

func (bp *BrowserPool) acquire(ctx context.Context) (*rod.Browser, error) {
	if err := bp.Start(); err != nil {
		return nil, err
	}
	select {
	case browser := <-bp.browserPool:
		return browser, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for a browser: %w", ctx.Err())
	}
}

func (bp *BrowserPool) release(browser *rod.Browser) {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	if !bp.isRunning || browser == nil {
		return
	}
	select {
	case bp.browserPool <- browser:
	default:
		_ = browser.Close()
	}
}

// Render opens url in a fresh tab, waits for the network to settle, dismisses
// the cookie banner and returns the resulting DOM.
func (bp *BrowserPool) Render(ctx context.Context, url string, opts RenderOptions) (*RenderedPage, error) {
	browser, err := bp.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer bp.release(browser)

	if bp.config.PageLoadTimeoutSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(bp.config.PageLoadTimeoutSecs)*time.Second)
		defer cancel()
	}

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  bp.config.WindowWidth,
		Height: bp.config.WindowHeight,
	}); err != nil {
		bp.logger.Warn().Err(err).Msg("Failed to set viewport")
	}
	if bp.userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      bp.userAgent,
			AcceptLanguage: bp.language,
		}); err != nil {
			bp.logger.Warn().Err(err).Msg("Failed to set user agent")
		}
	}

	idle := time.Duration(bp.config.NetworkIdleMs) * time.Millisecond
	waitIdle := page.WaitRequestIdle(idle, nil, nil, nil)

	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("page load failed for %s: %w", url, err)
	}
	waitIdle()

	bp.acceptCookies(page)
	bp.removeOverlays(page)

	if opts.ClickSelector != "" {
		if err := bp.click(page, opts.ClickSelector, idle); err != nil {
			bp.logger.Warn().Err(err).Str("selector", opts.ClickSelector).Msg("Click selector not usable")
		}
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to get HTML for %s: %w", url, err)
	}

	finalURL := url
	if info, err := page.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}
	return &RenderedPage{HTML: html, FinalURL: finalURL}, nil
}

// acceptCookies clicks the first visible consent button whose text matches
// the configured pattern.
func (bp *BrowserPool) acceptCookies(page *rod.Page) {
	elements, err := page.Elements(cookieButtonSelector)
	if err != nil {
		return
	}
	for _, el := range elements {
		text, err := el.Text()
		if err != nil || !bp.cookieRe.MatchString(text) {
			continue
		}
		if visible, err := el.Visible(); err != nil || !visible {
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			bp.logger.Debug().Err(err).Str("text", text).Msg("Cookie button click failed")
			continue
		}
		bp.logger.Debug().Str("text", text).Msg("Cookie banner accepted")
		return
	}
}

// removeOverlays deletes consent overlays that survived the click.
func (bp *BrowserPool) removeOverlays(page *rod.Page) {
	if len(bp.config.OverlaySelectors) == 0 {
		return
	}
	_, err := page.Eval(`(selectors) => {
		for (const sel of selectors) {
			document.querySelectorAll(sel).forEach((el) => el.remove());
		}
		document.body && (document.body.style.overflow = "auto");
	}`, bp.config.OverlaySelectors)
	if err != nil {
		bp.logger.Debug().Err(err).Msg("Overlay removal failed")
	}
}

func (bp *BrowserPool) click(page *rod.Page, selector string, idle time.Duration) error {
	has, el, err := page.Has(selector)
	if err != nil {
		return err
	}
	if !has {
		return fmt.Errorf("no element matches %q", selector)
	}
	waitIdle := page.WaitRequestIdle(idle, nil, nil, nil)
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}
	waitIdle()
	return nil
}
