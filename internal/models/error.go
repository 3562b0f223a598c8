package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExtractionEmpty means content was retrieved but no numeric token was found.
	ErrExtractionEmpty = errors.New("no exploitable data in document")
	// ErrClassificationEmpty means tokens were found but none fell into a plausible band.
	ErrClassificationEmpty = errors.New("no coherent tariff data found")
	// ErrStateCorrupt means the persisted state could not be read and was reset.
	ErrStateCorrupt = errors.New("state file corrupt")
)

// StrategyAttemptError records why one retrieval strategy failed.
type StrategyAttemptError struct {
	Strategy string
	Err      error
}

func (e StrategyAttemptError) Error() string {
	return fmt.Sprintf("%s: %v", e.Strategy, e.Err)
}

// FetchError is returned when every retrieval strategy of a resource failed.
// It is recoverable: the resource is retried on the next run.
type FetchError struct {
	Identity ResourceIdentity
	Attempts []StrategyAttemptError
	// Cause is set when the run itself was cancelled or timed out.
	Cause error
}

func (e *FetchError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Error())
	}
	msg := fmt.Sprintf("all retrieval strategies failed for %s", e.Identity)
	if len(parts) > 0 {
		msg += ": " + strings.Join(parts, "; ")
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(" (aborted: %v)", e.Cause)
	}
	return msg
}

// Unwrap exposes the cancellation cause and every attempt error so that
// errors.Is(err, context.DeadlineExceeded) works on a FetchError.
func (e *FetchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts)+1)
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// ArchiveWriteError is logged when a snapshot or diff could not be written.
// It never blocks the state update.
type ArchiveWriteError struct {
	Path string
	Err  error
}

func (e *ArchiveWriteError) Error() string {
	return fmt.Sprintf("archive write failed for %s: %v", e.Path, e.Err)
}

func (e *ArchiveWriteError) Unwrap() error {
	return e.Err
}
