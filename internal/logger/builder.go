package logger

import (
	"io"
	stdlog "log"
	"os"

	"github.com/aleister1102/tariffwatch/internal/common/errorwrapper"
	"github.com/aleister1102/tariffwatch/internal/config"
	"github.com/rs/zerolog"
)

// LoggerBuilder provides fluent interface for building loggers
type LoggerBuilder struct {
	config     LoggerConfig
	configErr  error
	consoleOut io.Writer
}

// NewLoggerBuilder creates a new logger builder
func NewLoggerBuilder() *LoggerBuilder {
	return &LoggerBuilder{config: DefaultLoggerConfig(), consoleOut: os.Stderr}
}

// WithConfig applies the log section of the configuration
func (lb *LoggerBuilder) WithConfig(cfg config.LogConfig) *LoggerBuilder {
	lb.config, lb.configErr = FromLogConfig(cfg)
	return lb
}

// WithRunID tags records with the run and moves the log file under it
func (lb *LoggerBuilder) WithRunID(runID string) *LoggerBuilder {
	lb.config.RunID = runID
	return lb
}

// WithConsoleOutput redirects console output, stderr by default
func (lb *LoggerBuilder) WithConsoleOutput(out io.Writer) *LoggerBuilder {
	lb.consoleOut = out
	return lb
}

// Build creates the logger instance. An invalid level is not fatal; it is
// logged once at warn level.
func (lb *LoggerBuilder) Build() (*Logger, error) {
	if lb.config.FilePath != "" && lb.config.MaxSizeMB <= 0 {
		return nil, errorwrapper.NewValidationError("max_log_size_mb", lb.config.MaxSizeMB, "must be positive")
	}

	writers := []io.Writer{formatWriter(lb.consoleOut, lb.config.Format, true)}
	if lb.config.FilePath != "" {
		fw, err := fileWriter(lb.config)
		if err != nil {
			return nil, err
		}
		writers = append(writers, fw)
	}

	ctx := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lb.config.Level).
		With().
		Timestamp()
	if lb.config.RunID != "" {
		ctx = ctx.Str("run_id", lb.config.RunID)
	}
	zl := ctx.Logger()

	zerolog.SetGlobalLevel(lb.config.Level)
	// colly and rod report through the standard library logger
	stdlog.SetOutput(zl)
	stdlog.SetFlags(0)

	if lb.configErr != nil {
		zl.Warn().Err(lb.configErr).Msg("Log configuration partly ignored")
	}
	return &Logger{zerolog: zl, config: lb.config}, nil
}
