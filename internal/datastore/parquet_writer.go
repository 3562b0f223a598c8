package datastore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aleister1102/tariffwatch/internal/common/errorwrapper"
	"github.com/aleister1102/tariffwatch/internal/config"
	"github.com/aleister1102/tariffwatch/internal/models"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"
)

const recordsDirName = "tariff_records"

// ParquetRecordWriter appends each run's records to a new dated parquet file:
// <parquet_base_path>/tariff_records/<YYYY-MM-DD>/<run_id>.parquet.
// Existing files are never rewritten.
type ParquetRecordWriter struct {
	config      config.StorageConfig
	transformer *RecordTransformer
	logger      zerolog.Logger
	now         func() time.Time
}

// WriteResult contains the result of a write operation
type WriteResult struct {
	FilePath       string
	RecordsWritten int
	FileSize       int64
	WriteTime      time.Duration
}

// NewParquetRecordWriter creates a writer rooted at cfg.ParquetBasePath.
func NewParquetRecordWriter(cfg config.StorageConfig, logger zerolog.Logger) (*ParquetRecordWriter, error) {
	if cfg.ParquetBasePath == "" {
		return nil, errorwrapper.NewValidationError("parquet_base_path", cfg.ParquetBasePath, "ParquetBasePath is not configured")
	}
	logger = logger.With().Str("component", "ParquetRecordWriter").Logger()
	return &ParquetRecordWriter{
		config:      cfg,
		transformer: NewRecordTransformer(logger),
		logger:      logger,
		now:         time.Now,
	}, nil
}

// StoreRecords implements models.RecordSink.
func (pw *ParquetRecordWriter) StoreRecords(ctx context.Context, runID string, records []models.TariffRecord) error {
	if len(records) == 0 {
		pw.logger.Debug().Str("run_id", runID).Msg("No records to write")
		return nil
	}
	result, err := pw.Write(ctx, runID, records)
	if err != nil {
		return err
	}

	pw.logger.Info().
		Str("file_path", result.FilePath).
		Int("records_written", result.RecordsWritten).
		Int64("file_size", result.FileSize).
		Dur("write_time", result.WriteTime).
		Msg("Successfully wrote tariff records to Parquet file")
	return nil
}

// Write converts and writes records to a new file and reports what was written.
func (pw *ParquetRecordWriter) Write(ctx context.Context, runID string, records []models.TariffRecord) (*WriteResult, error) {
	startTime := time.Now()
	if runID == "" {
		return nil, errorwrapper.NewValidationError("run_id", runID, "run ID is required to name the parquet file")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := make([]models.ParquetTariffRecord, 0, len(records))
	for _, r := range records {
		rows = append(rows, pw.transformer.ToParquet(r, runID))
	}

	file, filePath, err := pw.createOutputFile(runID)
	if err != nil {
		return nil, err
	}

	written, err := pw.writeRows(file, rows)
	if err != nil {
		_ = os.Remove(filePath)
		return nil, errorwrapper.WrapError(err, "failed to write tariff records to parquet file "+filePath)
	}

	var fileSize int64
	if info, statErr := os.Stat(filePath); statErr == nil {
		fileSize = info.Size()
	}
	return &WriteResult{
		FilePath:       filePath,
		RecordsWritten: written,
		FileSize:       fileSize,
		WriteTime:      time.Since(startTime),
	}, nil
}

// createOutputFile opens a new file for runID, adding a numeric suffix when a
// file of the same run already exists.
func (pw *ParquetRecordWriter) createOutputFile(runID string) (*os.File, string, error) {
	dir := filepath.Join(pw.config.ParquetBasePath, recordsDirName, pw.now().UTC().Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", errorwrapper.WrapError(err, "failed to create Parquet directory: "+dir)
	}

	for n := 0; n < 1000; n++ {
		name := runID + ".parquet"
		if n > 0 {
			name = fmt.Sprintf("%s-%d.parquet", runID, n)
		}
		path := filepath.Join(dir, name)
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return file, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", errorwrapper.WrapError(err, "failed to create parquet file: "+path)
		}
	}
	return nil, "", errorwrapper.NewError("too many parquet files for run %s in %s", runID, dir)
}

func (pw *ParquetRecordWriter) writeRows(file *os.File, rows []models.ParquetTariffRecord) (int, error) {
	writer := parquet.NewGenericWriter[models.ParquetTariffRecord](file, pw.compressionOption())
	written, err := writer.Write(rows)
	if err != nil {
		_ = writer.Close()
		_ = file.Close()
		return 0, err
	}
	if err := writer.Close(); err != nil {
		_ = file.Close()
		return 0, err
	}
	if err := file.Close(); err != nil {
		return 0, err
	}
	return written, nil
}

// compressionOption returns the compression option based on configuration
func (pw *ParquetRecordWriter) compressionOption() parquet.WriterOption {
	switch pw.config.CompressionCodec {
	case "gzip":
		return parquet.Compression(&parquet.Gzip)
	case "snappy":
		return parquet.Compression(&parquet.Snappy)
	case "none":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Zstd)
	}
}
