package rslimiter

import (
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceUsage represents current system resource usage
type ResourceUsage struct {
	AllocMB              int64   // Currently allocated memory by application
	SysMB                int64   // System memory used by Go runtime
	Goroutines           int     // Number of goroutines
	GCCount              int64   // Number of GC cycles
	SystemMemUsedMB      int64   // System memory used (MB)
	SystemMemTotalMB     int64   // Total system memory (MB)
	SystemMemAvailableMB int64   // Memory available to new processes (MB)
	SystemMemUsedPercent float64 // System memory used percentage
	CPUUsagePercent      float64 // CPU usage percentage, zero when not sampled
	NumCPU               int
}

// GetResourceUsage returns current resource usage statistics. cpuSample is
// how long CPU usage is measured; zero skips the measurement.
func GetResourceUsage(cpuSample time.Duration) ResourceUsage {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	usage := ResourceUsage{
		AllocMB:    int64(m.Alloc / 1024 / 1024),
		SysMB:      int64(m.Sys / 1024 / 1024),
		Goroutines: runtime.NumGoroutine(),
		GCCount:    int64(m.NumGC),
		NumCPU:     runtime.NumCPU(),
	}

	if vmStat, err := mem.VirtualMemory(); err == nil {
		usage.SystemMemUsedMB = int64(vmStat.Used / 1024 / 1024)
		usage.SystemMemTotalMB = int64(vmStat.Total / 1024 / 1024)
		usage.SystemMemAvailableMB = int64(vmStat.Available / 1024 / 1024)
		usage.SystemMemUsedPercent = vmStat.UsedPercent
	}

	if cpuSample > 0 {
		if cpuPercents, err := cpu.Percent(cpuSample, false); err == nil && len(cpuPercents) > 0 {
			usage.CPUUsagePercent = cpuPercents[0]
		}
	}

	return usage
}

// MarshalZerologObject lets a usage snapshot be logged with Object().
func (u ResourceUsage) MarshalZerologObject(e *zerolog.Event) {
	e.Int64("alloc_mb", u.AllocMB).
		Int64("sys_mb", u.SysMB).
		Int("goroutines", u.Goroutines).
		Int64("gc_count", u.GCCount).
		Int64("system_mem_used_mb", u.SystemMemUsedMB).
		Int64("system_mem_total_mb", u.SystemMemTotalMB).
		Int64("system_mem_available_mb", u.SystemMemAvailableMB).
		Float64("system_mem_used_percent", u.SystemMemUsedPercent).
		Float64("cpu_usage_percent", u.CPUUsagePercent).
		Int("num_cpu", u.NumCPU)
}
