package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aleister1102/tariffwatch/internal/common/errorwrapper"
	"github.com/aleister1102/tariffwatch/internal/config"
	"github.com/aleister1102/tariffwatch/internal/models"
	"github.com/rs/zerolog"
)

var (
	errEmptyContent  = errors.New("empty content")
	errNoStrategies  = errors.New("no retrieval strategy configured")
	errNotPDF        = errors.New("content is not a PDF document")
	errMissingTarget = errors.New("strategy has no target")
)

// AttemptFunc performs one retrieval attempt. ctx carries the attempt timeout.
type AttemptFunc func(ctx context.Context, identity models.ResourceIdentity) (*models.FetchResult, error)

// Strategy is one way of retrieving a resource. Strategies are tried in
// order by Fetcher.Fetch.
type Strategy struct {
	Kind    string
	Target  string
	Timeout time.Duration
	Attempt AttemptFunc
}

// Name identifies the strategy in logs and attempt errors.
func (s Strategy) Name() string {
	if s.Target == "" {
		return s.Kind
	}
	return s.Kind + " " + s.Target
}

// Fetcher runs strategies until one returns non-empty content.
type Fetcher struct {
	defaultTimeout time.Duration
	logger         zerolog.Logger
}

// New creates a fetcher. Strategies without a timeout use the fetcher
// section default.
func New(cfg config.FetcherConfig, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		defaultTimeout: cfg.StrategyTimeout(0),
		logger:         logger.With().Str("component", "Fetcher").Logger(),
	}
}

// Fetch tries each strategy in order under its own timeout. An attempt error
// moves on to the next strategy; when all fail a *models.FetchError listing
// every attempt is returned. Cancellation of ctx stops the loop at once and
// is reported as the FetchError cause.
func (f *Fetcher) Fetch(ctx context.Context, identity models.ResourceIdentity, strategies []Strategy) (*models.FetchResult, error) {
	fetchErr := &models.FetchError{Identity: identity}
	if len(strategies) == 0 {
		fetchErr.Attempts = append(fetchErr.Attempts, models.StrategyAttemptError{Strategy: "none", Err: errNoStrategies})
		return nil, fetchErr
	}

	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			fetchErr.Cause = err
			return nil, fetchErr
		}

		result, err := f.attempt(ctx, identity, s)
		if err == nil {
			return result, nil
		}

		fetchErr.Attempts = append(fetchErr.Attempts, models.StrategyAttemptError{Strategy: s.Name(), Err: err})
		if ctxErr := ctx.Err(); ctxErr != nil {
			fetchErr.Cause = ctxErr
			return nil, fetchErr
		}

		f.logger.Warn().
			Err(err).
			Str("identity", identity.Key()).
			Str("strategy", s.Name()).
			Bool("blocked", errors.Is(err, errorwrapper.ErrBlocked)).
			Msg("Retrieval strategy failed, trying next")
	}

	return nil, fetchErr
}

func (f *Fetcher) attempt(ctx context.Context, identity models.ResourceIdentity, s Strategy) (*models.FetchResult, error) {
	if s.Attempt == nil {
		return nil, fmt.Errorf("strategy %s has no attempt function", s.Kind)
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = f.defaultTimeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result, err := s.Attempt(attemptCtx, identity)
	if err == nil && (result == nil || len(bytes.TrimSpace(result.Content)) == 0) {
		err = errEmptyContent
	}
	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("timed out after %s: %w", timeout, err)
		}
		return nil, err
	}

	result.Identity = identity
	result.Strategy = s.Kind
	if result.FetchedAt.IsZero() {
		result.FetchedAt = time.Now().UTC()
	}

	f.logger.Debug().
		Str("identity", identity.Key()).
		Str("strategy", s.Name()).
		Int("bytes", len(result.Content)).
		Dur("duration", time.Since(start)).
		Msg("Resource retrieved")
	return result, nil
}
