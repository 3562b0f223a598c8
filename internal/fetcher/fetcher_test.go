package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aleister1102/tariffwatch/internal/config"
	"github.com/aleister1102/tariffwatch/internal/httpclient"
	"github.com/aleister1102/tariffwatch/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakePDF = "%PDF-1.4\nfake tariff grid\n%%EOF"

var pageID = models.NewResourceIdentity("P", "https://p.example/offres", models.KindPage)

func newTestFetcher() *Fetcher {
	cfg := config.NewDefaultFetcherConfig()
	cfg.StrategyTimeoutSecs = 5
	return New(cfg, zerolog.Nop())
}

func staticAttempt(content string) AttemptFunc {
	return func(ctx context.Context, _ models.ResourceIdentity) (*models.FetchResult, error) {
		return &models.FetchResult{Content: []byte(content)}, nil
	}
}

func failingAttempt(err error) AttemptFunc {
	return func(ctx context.Context, _ models.ResourceIdentity) (*models.FetchResult, error) {
		return nil, err
	}
}

func TestFetch_FallsBackToNextStrategy(t *testing.T) {
	strategies := []Strategy{
		{Kind: "first", Attempt: failingAttempt(errors.New("connection reset"))},
		{Kind: "second", Attempt: staticAttempt("")},
		{Kind: "third", Attempt: staticAttempt("<html>ok</html>")},
	}

	res, err := newTestFetcher().Fetch(context.Background(), pageID, strategies)
	require.NoError(t, err)
	assert.Equal(t, "third", res.Strategy)
	assert.Equal(t, pageID, res.Identity)
	assert.False(t, res.FetchedAt.IsZero())
}

func TestFetch_AllStrategiesExhausted(t *testing.T) {
	strategies := []Strategy{
		{Kind: "http_get", Target: "https://a", Attempt: failingAttempt(errors.New("status 503"))},
		{Kind: "headless_render", Target: "https://a", Attempt: failingAttempt(errors.New("navigation failed"))},
	}

	res, err := newTestFetcher().Fetch(context.Background(), pageID, strategies)
	assert.Nil(t, res)

	var fetchErr *models.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Len(t, fetchErr.Attempts, 2)
	assert.Equal(t, "http_get https://a", fetchErr.Attempts[0].Strategy)
	assert.Contains(t, err.Error(), "navigation failed")
	assert.Nil(t, fetchErr.Cause)
}

func TestFetch_NoStrategies(t *testing.T) {
	_, err := newTestFetcher().Fetch(context.Background(), pageID, nil)
	var fetchErr *models.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Len(t, fetchErr.Attempts, 1)
}

func TestFetch_AttemptTimeoutMovesOn(t *testing.T) {
	slow := func(ctx context.Context, _ models.ResourceIdentity) (*models.FetchResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	strategies := []Strategy{
		{Kind: "slow", Timeout: 20 * time.Millisecond, Attempt: slow},
		{Kind: "fast", Attempt: staticAttempt("content")},
	}

	res, err := newTestFetcher().Fetch(context.Background(), pageID, strategies)
	require.NoError(t, err)
	assert.Equal(t, "fast", res.Strategy)
}

func TestFetch_CancelledRunStopsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32

	strategies := []Strategy{
		{Kind: "cancels", Attempt: func(ctx context.Context, _ models.ResourceIdentity) (*models.FetchResult, error) {
			calls.Add(1)
			cancel()
			return nil, errors.New("interrupted")
		}},
		{Kind: "never", Attempt: func(ctx context.Context, _ models.ResourceIdentity) (*models.FetchResult, error) {
			calls.Add(1)
			return &models.FetchResult{Content: []byte("x")}, nil
		}},
	}

	_, err := newTestFetcher().Fetch(ctx, pageID, strategies)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), calls.Load())
}

func newTestPlanner(t *testing.T, renderer Renderer) *Planner {
	t.Helper()
	client, err := httpclient.NewHTTPClient(httpclient.DefaultHTTPClientConfig(), zerolog.Nop())
	require.NoError(t, err)
	cfg := config.NewDefaultFetcherConfig()
	p, err := NewPlanner(cfg, client, renderer, zerolog.Nop())
	require.NoError(t, err)
	return p
}

func TestHTTPGet_SendsBrowserHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte("<html><body>Prix 0,2516 €/kWh</body></html>"))
	}))
	defer srv.Close()

	provider := &config.ProviderConfig{Name: "P", Resources: []config.ResourceConfig{{Kind: "page", URL: srv.URL}}}
	p := newTestPlanner(t, nil)
	targets, err := p.Targets(provider)
	require.NoError(t, err)
	require.Len(t, targets, 1)

	strategies := p.StrategiesFor(targets[0])
	require.Len(t, strategies, 1, "no renderer, no headless strategy")
	assert.Equal(t, config.StrategyHTTPGet, strategies[0].Kind)

	res, err := newTestFetcher().Fetch(context.Background(), targets[0].Identity, strategies)
	require.NoError(t, err)
	assert.Contains(t, string(res.Content), "0,2516")

	assert.Equal(t, config.DefaultUserAgent, got.Get("User-Agent"))
	assert.Equal(t, config.DefaultAcceptLanguage, got.Get("Accept-Language"))
	assert.Equal(t, "1", got.Get("DNT"))
	assert.Equal(t, "1", got.Get("Upgrade-Insecure-Requests"))
	assert.Equal(t, config.DefaultReferer, got.Get("Referer"))
	assert.Contains(t, got.Get("Accept"), "text/html")
}

type fakeRenderer struct {
	html  string
	calls int
}

func (f *fakeRenderer) Render(ctx context.Context, url string, opts RenderOptions) (*RenderedPage, error) {
	f.calls++
	return &RenderedPage{HTML: f.html, FinalURL: url}, nil
}

func TestPageStrategies_RenderAfterHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	renderer := &fakeRenderer{html: "<html><body>Offre gaz 0,12 €/kWh</body></html>"}
	provider := &config.ProviderConfig{
		Name:            "P",
		ContentKeywords: []string{"GAZ"},
		Resources:       []config.ResourceConfig{{Kind: "page", URL: srv.URL}},
	}
	p := newTestPlanner(t, renderer)
	targets, err := p.Targets(provider)
	require.NoError(t, err)

	strategies := p.StrategiesFor(targets[0])
	require.Len(t, strategies, 2)
	assert.Equal(t, config.StrategyHeadlessRender, strategies[1].Kind)

	res, err := newTestFetcher().Fetch(context.Background(), targets[0].Identity, strategies)
	require.NoError(t, err)
	assert.Equal(t, config.StrategyHeadlessRender, res.Strategy)
	assert.Equal(t, 1, renderer.calls)
}

func TestContentKeywords_RejectUnrelatedPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>Électricité 0,25 €/kWh</body></html>"))
	}))
	defer srv.Close()

	provider := &config.ProviderConfig{
		Name:            "P",
		ContentKeywords: []string{"gaz", "grdf"},
		Resources:       []config.ResourceConfig{{Kind: "page", URL: srv.URL}},
	}
	p := newTestPlanner(t, nil)
	targets, err := p.Targets(provider)
	require.NoError(t, err)

	_, err = newTestFetcher().Fetch(context.Background(), targets[0].Identity, p.StrategiesFor(targets[0]))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mentions none of")
}

func TestPagePDFLink_DiscoversAndDownloads(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/offres", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>
<a href="/docs/cgv.pdf">Conditions générales</a>
<a href="/docs/missing.pdf">Grille (ancienne)</a>
<a href="/docs/grille-2024.pdf">Grille tarifaire</a>
</body></html>`))
	})
	mux.HandleFunc("/docs/grille-2024.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte(fakePDF))
	})
	mux.HandleFunc("/docs/cgv.pdf", func(w http.ResponseWriter, r *http.Request) {
		t.Error("excluded document must not be downloaded")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	provider := &config.ProviderConfig{
		Name:      "P",
		Resources: []config.ResourceConfig{{Kind: "pdf", PageURL: srv.URL + "/offres"}},
	}
	p := newTestPlanner(t, nil)
	targets, err := p.Targets(provider)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, srv.URL+"/offres", targets[0].Identity.Location)

	strategies := p.StrategiesFor(targets[0])
	require.Len(t, strategies, 1, "no direct or fallback URL configured")

	res, err := newTestFetcher().Fetch(context.Background(), targets[0].Identity, strategies)
	require.NoError(t, err)
	assert.Equal(t, config.StrategyPagePDFLink, res.Strategy)
	assert.Equal(t, fakePDF, string(res.Content))
	assert.Equal(t, srv.URL+"/docs/grille-2024.pdf", res.FinalURL)
}

func TestPDFStrategies_FallbackURLs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/offres", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>no documents here</body></html>"))
	})
	mux.HandleFunc("/direct.pdf", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>moved</html>"))
	})
	mux.HandleFunc("/fallback.pdf", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(fakePDF))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	provider := &config.ProviderConfig{
		Name: "P",
		Resources: []config.ResourceConfig{{
			Kind:         "pdf",
			PageURL:      srv.URL + "/offres",
			URL:          srv.URL + "/direct.pdf",
			FallbackURLs: []string{srv.URL + "/fallback.pdf"},
		}},
	}
	p := newTestPlanner(t, nil)
	targets, err := p.Targets(provider)
	require.NoError(t, err)

	strategies := p.StrategiesFor(targets[0])
	require.Len(t, strategies, 3)
	assert.Equal(t, []string{config.StrategyPagePDFLink, config.StrategyStaticURL, config.StrategyStaticURL},
		[]string{strategies[0].Kind, strategies[1].Kind, strategies[2].Kind})

	res, err := newTestFetcher().Fetch(context.Background(), targets[0].Identity, strategies)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/fallback.pdf", strategies[2].Target)
	assert.Equal(t, config.StrategyStaticURL, res.Strategy)
	assert.True(t, res.IsPDF())
}

func TestStrategiesFor_ProviderOverride(t *testing.T) {
	provider := &config.ProviderConfig{
		Name:        "P",
		Strategies:  []string{config.StrategyStaticURL},
		TimeoutSecs: 7,
		Resources: []config.ResourceConfig{{
			Kind: "pdf", PageURL: "https://p.example/offres", URL: "https://p.example/a.pdf",
		}},
	}
	p := newTestPlanner(t, nil)
	targets, err := p.Targets(provider)
	require.NoError(t, err)

	strategies := p.StrategiesFor(targets[0])
	require.Len(t, strategies, 1)
	assert.Equal(t, config.StrategyStaticURL, strategies[0].Kind)
	assert.Equal(t, 7*time.Second, strategies[0].Timeout)
}

func TestLocalFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"Grille_Fixe.PDF", "grille_eco.pdf", "notes.txt", "cgv.pdf"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(fakePDF+name), 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "grille_old.pdf"), []byte(fakePDF), 0o644))

	files, err := ScanLocalDirectory(dir, "", "grille")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "Grille_Fixe.PDF"),
		filepath.Join(dir, "grille_eco.pdf"),
		filepath.Join(dir, "sub", "grille_old.pdf"),
	}, files)

	provider := &config.ProviderConfig{
		Name: "Local",
		Resources: []config.ResourceConfig{
			{Kind: "local_file", Path: dir, NameFilter: "grille"},
			{Kind: "local_file", Path: filepath.Join(dir, "gone.pdf")},
		},
	}
	p := newTestPlanner(t, nil)
	targets, err := p.Targets(provider)
	require.NoError(t, err)
	require.Len(t, targets, 4)

	res, err := newTestFetcher().Fetch(context.Background(), targets[0].Identity, p.StrategiesFor(targets[0]))
	require.NoError(t, err)
	assert.Equal(t, config.StrategyLocalFile, res.Strategy)
	assert.False(t, res.ModTime.IsZero())
	assert.True(t, strings.HasSuffix(string(res.Content), "Grille_Fixe.PDF"))

	_, err = newTestFetcher().Fetch(context.Background(), targets[3].Identity, p.StrategiesFor(targets[3]))
	var fetchErr *models.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
