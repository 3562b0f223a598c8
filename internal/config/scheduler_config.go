package config

import "time"

// SchedulerConfig defines how a run is parallelised and bounded
type SchedulerConfig struct {
	FetchWorkers   int `json:"fetch_workers,omitempty" yaml:"fetch_workers,omitempty" validate:"omitempty,min=1,max=64"`
	ExtractWorkers int `json:"extract_workers,omitempty" yaml:"extract_workers,omitempty" validate:"omitempty,min=1,max=64"`
	RunTimeoutMins int `json:"run_timeout_mins,omitempty" yaml:"run_timeout_mins,omitempty" validate:"omitempty,min=1"`
	// Memory budget per extraction worker, used to cap ExtractWorkers on small hosts
	WorkerMemoryMB int `json:"worker_memory_mb,omitempty" yaml:"worker_memory_mb,omitempty" validate:"omitempty,min=1"`
}

// NewDefaultSchedulerConfig creates default scheduler configuration
func NewDefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		FetchWorkers:   DefaultFetchWorkers,
		ExtractWorkers: DefaultExtractWorkers,
		RunTimeoutMins: DefaultRunTimeoutMins,
		WorkerMemoryMB: DefaultWorkerMemoryMB,
	}
}

// RunTimeout returns the whole-run deadline.
func (sc SchedulerConfig) RunTimeout() time.Duration {
	if sc.RunTimeoutMins <= 0 {
		return DefaultRunTimeoutMins * time.Minute
	}
	return time.Duration(sc.RunTimeoutMins) * time.Minute
}
