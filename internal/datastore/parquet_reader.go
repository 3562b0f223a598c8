package datastore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aleister1102/tariffwatch/internal/config"
	"github.com/aleister1102/tariffwatch/internal/models"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"
)

// ParquetReader reads back the files written by ParquetRecordWriter.
type ParquetReader struct {
	basePath    string
	transformer *RecordTransformer
	logger      zerolog.Logger
}

// NewParquetReader creates a reader rooted at cfg.ParquetBasePath.
func NewParquetReader(cfg config.StorageConfig, logger zerolog.Logger) *ParquetReader {
	logger = logger.With().Str("component", "ParquetReader").Logger()
	return &ParquetReader{
		basePath:    cfg.ParquetBasePath,
		transformer: NewRecordTransformer(logger),
		logger:      logger,
	}
}

// RecordFiles lists every record file, oldest day first.
func (pr *ParquetReader) RecordFiles() ([]string, error) {
	root := filepath.Join(pr.basePath, recordsDirName)
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".parquet") {
			files = append(files, path)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list parquet files under %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// ReadFile returns the records stored in one file.
func (pr *ParquetReader) ReadFile(path string) ([]models.TariffRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file %s: %w", path, err)
	}
	defer file.Close()

	reader := parquet.NewGenericReader[models.ParquetTariffRecord](file)
	defer reader.Close()

	var records []models.TariffRecord
	rows := make([]models.ParquetTariffRecord, 128)
	for {
		n, err := reader.Read(rows)
		for _, row := range rows[:n] {
			records = append(records, pr.transformer.FromParquet(row))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read rows from %s: %w", path, err)
		}
	}

	pr.logger.Debug().Int("record_count", len(records)).Str("file", path).Msg("Read records from Parquet file")
	return records, nil
}
