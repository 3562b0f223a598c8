package httpclient

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/aleister1102/tariffwatch/internal/common/errorwrapper"
	"github.com/rs/zerolog"
)

// RetryHandler handles HTTP request retries with exponential backoff
type RetryHandler struct {
	maxRetries       int
	baseDelay        time.Duration
	maxDelay         time.Duration
	enableJitter     bool
	retryStatusCodes map[int]bool
	logger           zerolog.Logger
}

// RetryHandlerConfig configuration for retry handler
type RetryHandlerConfig struct {
	MaxRetries       int           `json:"max_retries"`
	BaseDelay        time.Duration `json:"base_delay"`
	MaxDelay         time.Duration `json:"max_delay"`
	EnableJitter     bool          `json:"enable_jitter"`
	RetryStatusCodes []int         `json:"retry_status_codes"`
}

// NewRetryHandler creates a new retry handler
func NewRetryHandler(config RetryHandlerConfig, logger zerolog.Logger) *RetryHandler {
	statusCodeMap := make(map[int]bool, len(config.RetryStatusCodes))
	for _, code := range config.RetryStatusCodes {
		statusCodeMap[code] = true
	}

	return &RetryHandler{
		maxRetries:       config.MaxRetries,
		baseDelay:        config.BaseDelay,
		maxDelay:         config.MaxDelay,
		enableJitter:     config.EnableJitter,
		retryStatusCodes: statusCodeMap,
		logger:           logger.With().Str("component", "RetryHandler").Logger(),
	}
}

// ShouldRetry determines if a request should be retried based on status code
func (rh *RetryHandler) ShouldRetry(statusCode int, attempt int) bool {
	if attempt >= rh.maxRetries {
		return false
	}
	return rh.retryStatusCodes[statusCode]
}

// CalculateDelay calculates the delay for the next retry attempt using exponential backoff
func (rh *RetryHandler) CalculateDelay(attempt int) time.Duration {
	delay := rh.baseDelay
	if attempt > 0 {
		delay = rh.baseDelay * time.Duration(math.Pow(2, float64(attempt)))
	}

	if rh.maxDelay > 0 && delay > rh.maxDelay {
		delay = rh.maxDelay
	}

	if rh.enableJitter {
		if spread := delay.Milliseconds() / 10; spread > 0 {
			delay += time.Duration(rand.Int63n(spread)) * time.Millisecond
		}
	}

	return delay
}

// wait sleeps for the backoff delay or returns early when ctx is done
func (rh *RetryHandler) wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(rh.CalculateDelay(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// sendFunc performs a single request.
type sendFunc func(ctx context.Context, req *Request) (*Response, error)

// Do sends req until it gets a non-retryable answer or the retries are used
// up. Transport errors and the configured statuses are retried; a cancelled
// context or a rejected body is not.
func (rh *RetryHandler) Do(ctx context.Context, send sendFunc, req *Request) (*Response, error) {
	var lastResp *Response
	var lastErr error

	for attempt := 0; attempt <= rh.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := send(ctx, req)
		if err != nil {
			if ctx.Err() != nil || errorwrapper.IsValidationError(err) {
				return nil, err
			}
			lastResp, lastErr = nil, err
			if attempt == rh.maxRetries {
				break
			}
			rh.logger.Debug().Err(err).Str("url", req.URL).Int("attempt", attempt+1).Msg("Transport error, retrying")
			if waitErr := rh.wait(ctx, attempt); waitErr != nil {
				return nil, err
			}
			continue
		}

		lastResp, lastErr = resp, nil
		if !rh.ShouldRetry(resp.StatusCode, attempt) {
			break
		}
		rh.logger.Warn().
			Str("url", req.URL).
			Int("status_code", resp.StatusCode).
			Int("attempt", attempt+1).
			Int("max_retries", rh.maxRetries).
			Msg("Retryable status, backing off")
		if err := rh.wait(ctx, attempt); err != nil {
			return nil, err
		}
	}

	if lastErr != nil {
		return nil, errorwrapper.WrapError(lastErr, fmt.Sprintf("gave up after %d attempts", rh.maxRetries+1))
	}
	if lastResp != nil && rh.retryStatusCodes[lastResp.StatusCode] {
		err := errorwrapper.NewHTTPErrorWithURL(lastResp.StatusCode, "retryable status persisted", req.URL)
		return lastResp, errorwrapper.WrapError(err, fmt.Sprintf("gave up after %d attempts", rh.maxRetries+1))
	}
	return lastResp, nil
}
