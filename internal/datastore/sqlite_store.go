package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aleister1102/tariffwatch/internal/models"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Run statuses stored in the runs table.
const (
	RunStatusStarted   = "started"
	RunStatusCompleted = "completed"
	RunStatusPartial   = "completed_with_failures"
)

// SQLiteStore keeps tariff records, runs and per-resource outcomes in one
// SQLite database. Records are deduplicated on their dedup key.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// RunEntry is one row of the runs table.
type RunEntry struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    *time.Time
	ResourceCount int
	Status        string
	UpdatedCount  int
	FailedCount   int
	RecordCount   int
}

var (
	_ models.RecordSink = (*SQLiteStore)(nil)
	_ models.RunHistory = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens (creating if needed) the database at path and applies
// the schema migrations.
func NewSQLiteStore(path string, logger zerolog.Logger) (*SQLiteStore, error) {
	logger = logger.With().Str("component", "SQLiteStore").Logger()
	logger.Info().Str("db_path", path).Msg("Initializing record database connection")

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sql.Open failed for %s: %w", path, err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	version, dirty, err := RunMigrations(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info().Uint("schema_version", version).Bool("dirty", dirty).Msg("Database initialized and schema verified")

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StoreRecords inserts records, silently skipping those whose dedup key is
// already stored.
func (s *SQLiteStore) StoreRecords(ctx context.Context, runID string, records []models.TariffRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO tariff_records (
		run_id, provider, offer_label, offer_canonical, offer_confidence, price_type, unit,
		price_ht, price_ttc, power_kva, tariff_option, confidence, frequency, rank,
		source_kind, source_location, extracted_at, dedup_key
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare record insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range records {
		var power sql.NullInt64
		if r.PowerKVA != nil {
			power = sql.NullInt64{Int64: int64(*r.PowerKVA), Valid: true}
		}
		res, err := stmt.ExecContext(ctx,
			runID, r.Provider, r.OfferLabel, nullString(r.OfferCanonical), r.OfferConfidence,
			string(r.PriceType), r.Unit, r.PriceHT, r.PriceTTC, power, nullString(r.TariffOption),
			r.Confidence, r.Frequency, r.Rank, string(r.Source.Kind), r.Source.Location,
			r.ExtractedAt.UnixMilli(), r.DedupKey(),
		)
		if err != nil {
			return fmt.Errorf("insert record %s: %w", r.DedupKey(), err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit records: %w", err)
	}
	s.logger.Info().
		Str("run_id", runID).
		Int("received", len(records)).
		Int("inserted", inserted).
		Msg("Stored tariff records")
	return nil
}

// RecordRunStart inserts a run row with status started.
func (s *SQLiteStore) RecordRunStart(ctx context.Context, runID string, startedAt time.Time, resourceCount int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, resource_count, status) VALUES (?, ?, ?, ?)`,
		runID, startedAt.UnixMilli(), resourceCount, RunStatusStarted)
	if err != nil {
		return fmt.Errorf("failed to insert run start record: %w", err)
	}
	s.logger.Debug().Str("run_id", runID).Msg("Recorded run start")
	return nil
}

// RecordRunCompletion stores the outcomes of runID and closes its run row.
func (s *SQLiteStore) RecordRunCompletion(ctx context.Context, runID string, finishedAt time.Time, outcomes []models.Outcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin outcome transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var updated, failed, records int
	for _, o := range outcomes {
		switch o.Status {
		case models.OutcomeUpdated, models.OutcomeFirstObservation:
			updated++
		case models.OutcomeFetchFailed:
			failed++
		}
		records += o.RecordCount

		_, err := tx.ExecContext(ctx,
			`INSERT INTO outcomes (run_id, provider, kind, location, status, record_count, strategy, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, o.Identity.Provider, string(o.Identity.Kind), o.Identity.Location, string(o.Status),
			o.RecordCount, nullString(o.Strategy), nullString(o.Error))
		if err != nil {
			return fmt.Errorf("insert outcome for %s: %w", o.Identity.Key(), err)
		}
	}

	status := RunStatusCompleted
	if failed > 0 {
		status = RunStatusPartial
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, updated_count = ?, failed_count = ?, record_count = ? WHERE id = ?`,
		finishedAt.UnixMilli(), status, updated, failed, records, runID)
	if err != nil {
		return fmt.Errorf("failed to update run completion for %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s was never started", runID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run completion: %w", err)
	}
	s.logger.Info().
		Str("run_id", runID).
		Str("status", status).
		Int("updated", updated).
		Int("failed", failed).
		Msg("Recorded run completion")
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]RunEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, resource_count, status, updated_count, failed_count, record_count
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunEntry
	for rows.Next() {
		var e RunEntry
		var started int64
		var finished sql.NullInt64
		if err := rows.Scan(&e.ID, &started, &finished, &e.ResourceCount, &e.Status,
			&e.UpdatedCount, &e.FailedCount, &e.RecordCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		e.StartedAt = time.UnixMilli(started).UTC()
		if finished.Valid {
			t := time.UnixMilli(finished.Int64).UTC()
			e.FinishedAt = &t
		}
		runs = append(runs, e)
	}
	return runs, rows.Err()
}

// OutcomesForRun returns the stored outcomes of runID in insertion order.
func (s *SQLiteStore) OutcomesForRun(ctx context.Context, runID string) ([]models.Outcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider, kind, location, status, record_count, strategy, error
		 FROM outcomes WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []models.Outcome
	for rows.Next() {
		var o models.Outcome
		var provider, kind, location, status string
		var strategy, errText sql.NullString
		if err := rows.Scan(&provider, &kind, &location, &status, &o.RecordCount, &strategy, &errText); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Identity = models.NewResourceIdentity(provider, location, models.ResourceKind(kind))
		o.Status = models.OutcomeStatus(status)
		o.Strategy = strategy.String
		o.Error = errText.String
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// CountRecords returns the number of stored records of provider, or of every
// provider when provider is empty.
func (s *SQLiteStore) CountRecords(ctx context.Context, provider string) (int, error) {
	query := `SELECT COUNT(*) FROM tariff_records`
	var args []any
	if provider != "" {
		query += ` WHERE provider = ?`
		args = append(args, provider)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
