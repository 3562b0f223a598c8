package models

import (
	"context"
	"time"
)

// RecordSink receives the records produced by a run. Implementations append;
// the record DedupKey is the natural key for duplicate suppression.
type RecordSink interface {
	StoreRecords(ctx context.Context, runID string, records []TariffRecord) error
}

// RunHistory is implemented by sinks that also keep a log of runs and
// per-resource outcomes.
type RunHistory interface {
	RecordRunStart(ctx context.Context, runID string, startedAt time.Time, resourceCount int) error
	RecordRunCompletion(ctx context.Context, runID string, finishedAt time.Time, outcomes []Outcome) error
}

// Validator interface for models that can validate themselves
type Validator interface {
	Validate() error
}
