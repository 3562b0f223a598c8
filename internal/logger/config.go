package logger

import (
	"strings"

	"github.com/aleister1102/tariffwatch/internal/common/errorwrapper"
	"github.com/aleister1102/tariffwatch/internal/config"
	"github.com/rs/zerolog"
)

// LogFormat selects how records are rendered.
type LogFormat int

const (
	FormatConsole LogFormat = iota
	FormatJSON
	FormatText
)

func (lf LogFormat) String() string {
	switch lf {
	case FormatJSON:
		return "json"
	case FormatText:
		return "text"
	default:
		return "console"
	}
}

// ParseFormat maps a configured format name; unknown names mean console.
func ParseFormat(s string) LogFormat {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON
	case "text":
		return FormatText
	default:
		return FormatConsole
	}
}

// LoggerConfig is the resolved logger setup.
type LoggerConfig struct {
	Level      zerolog.Level
	Format     LogFormat
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	// RunID tags every record and moves the log file to runs/<RunID>/.
	RunID string
}

// DefaultLoggerConfig logs info and above to the console only.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:      zerolog.InfoLevel,
		Format:     FormatConsole,
		MaxSizeMB:  config.DefaultMaxLogSizeMB,
		MaxBackups: config.DefaultMaxLogBackups,
	}
}

// FromLogConfig resolves the log section of the configuration. An
// unparsable level falls back to info and is reported through the error.
func FromLogConfig(cfg config.LogConfig) (LoggerConfig, error) {
	lc := DefaultLoggerConfig()
	lc.Format = ParseFormat(cfg.LogFormat)
	lc.FilePath = cfg.LogFile
	if cfg.MaxLogSizeMB > 0 {
		lc.MaxSizeMB = cfg.MaxLogSizeMB
	}
	if cfg.MaxLogBackups > 0 {
		lc.MaxBackups = cfg.MaxLogBackups
	}

	if strings.TrimSpace(cfg.LogLevel) == "" {
		return lc, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return lc, errorwrapper.NewValidationError("log_level", cfg.LogLevel, "unknown level")
	}
	lc.Level = level
	return lc, nil
}
