package rslimiter

import (
	"runtime"
	"time"

	"github.com/rs/zerolog"
)

// ResourceLimiterConfig holds configuration for the resource limiter
type ResourceLimiterConfig struct {
	MaxWorkers         int     // Upper bound for CPU-bound pools, defaults to NumCPU
	WorkerMemoryMB     int     // Memory budget of one extraction worker
	SystemMemThreshold float64 // Above this used fraction a pool is reduced to one worker
}

// DefaultResourceLimiterConfig returns default configuration
func DefaultResourceLimiterConfig() ResourceLimiterConfig {
	return ResourceLimiterConfig{
		MaxWorkers:         runtime.NumCPU(),
		WorkerMemoryMB:     256,
		SystemMemThreshold: 0.9,
	}
}

// ResourceLimiter sizes the extraction pool from host resources and logs
// resource usage around a run.
type ResourceLimiter struct {
	config ResourceLimiterConfig
	logger zerolog.Logger
	usage  func() ResourceUsage
}

// NewResourceLimiter creates a new resource limiter
func NewResourceLimiter(config ResourceLimiterConfig, logger zerolog.Logger) *ResourceLimiter {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.NumCPU()
	}
	if config.SystemMemThreshold <= 0 {
		config.SystemMemThreshold = 0.9
	}
	return &ResourceLimiter{
		config: config,
		logger: logger.With().Str("component", "ResourceLimiter").Logger(),
		usage:  func() ResourceUsage { return GetResourceUsage(0) },
	}
}

// ExtractionWorkers returns how many extraction workers to start when
// requested were configured. The result is at least one, at most MaxWorkers,
// and no more than available memory divided by the per-worker budget.
func (rl *ResourceLimiter) ExtractionWorkers(requested int) int {
	usage := rl.usage()
	workers := CapWorkers(requested, rl.config, usage)
	if workers < requested {
		rl.logger.Info().
			Int("requested", requested).
			Int("workers", workers).
			Int64("available_mb", usage.SystemMemAvailableMB).
			Float64("mem_used_percent", usage.SystemMemUsedPercent).
			Msg("Extraction pool reduced to fit host resources")
	}
	return workers
}

// CapWorkers applies the limiter rules to a usage snapshot.
func CapWorkers(requested int, config ResourceLimiterConfig, usage ResourceUsage) int {
	workers := requested
	if workers <= 0 {
		workers = config.MaxWorkers
	}
	if config.MaxWorkers > 0 && workers > config.MaxWorkers {
		workers = config.MaxWorkers
	}
	if usage.SystemMemTotalMB > 0 && usage.SystemMemUsedPercent/100 > config.SystemMemThreshold {
		return 1
	}
	if config.WorkerMemoryMB > 0 && usage.SystemMemAvailableMB > 0 {
		if byMem := int(usage.SystemMemAvailableMB / int64(config.WorkerMemoryMB)); byMem < workers {
			workers = byMem
		}
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

// LogUsage logs a usage snapshot, sampling CPU for a short moment.
func (rl *ResourceLimiter) LogUsage(stage string) ResourceUsage {
	usage := GetResourceUsage(100 * time.Millisecond)
	rl.logger.Info().Str("stage", stage).Object("usage", usage).Msg("Resource usage")
	return usage
}
