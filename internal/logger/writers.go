package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// formatWriter wraps out with the record rendering of format. Colours are
// only used on the console.
func formatWriter(out io.Writer, format LogFormat, color bool) io.Writer {
	switch format {
	case FormatJSON:
		return out
	case FormatText:
		return zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    true,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i any) string {
				if i == nil {
					return "-----"
				}
				return strings.ToUpper(fmt.Sprintf("%-5s", i))
			},
		}
	default:
		return zerolog.ConsoleWriter{Out: out, NoColor: !color, TimeFormat: time.RFC3339}
	}
}

// fileWriter opens the rotated log file, under the run directory when a run
// ID is set.
func fileWriter(cfg LoggerConfig) (io.Writer, error) {
	path := runLogPath(cfg.FilePath, cfg.RunID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	rotated := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		LocalTime:  true,
	}
	return formatWriter(rotated, cfg.Format, false), nil
}

// runLogPath returns <dir>/runs/<runID>/<file>, or path itself without a run ID.
func runLogPath(path, runID string) string {
	if runID == "" {
		return path
	}
	return filepath.Join(filepath.Dir(path), "runs", runID, filepath.Base(path))
}
