// Package metrics samples process and host figures for end-of-run summaries.
package metrics

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// Snapshot is a best-effort sample. Figures that could not be read stay zero.
type Snapshot struct {
	CollectedAt time.Time
	Goroutines  int

	ProcessRSS        uint64
	ProcessCPUPercent float64

	MemoryTotal       uint64
	MemoryUsedPercent float64

	Load1 float64

	DiskPath        string
	DiskFree        uint64
	DiskUsedPercent float64
}

// Collect gathers a snapshot. diskPath, when set, is the local folder whose
// filesystem usage is reported.
func Collect(ctx context.Context, diskPath string) Snapshot {
	snapshot := Snapshot{
		CollectedAt: time.Now().UTC(),
		Goroutines:  runtime.NumGoroutine(),
	}

	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfoWithContext(ctx); err == nil {
			snapshot.ProcessRSS = info.RSS
		}
		if percent, err := proc.CPUPercentWithContext(ctx); err == nil {
			snapshot.ProcessCPUPercent = percent
		}
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snapshot.MemoryTotal = vm.Total
		snapshot.MemoryUsedPercent = vm.UsedPercent
	}

	if avg, err := load.AvgWithContext(ctx); err == nil {
		snapshot.Load1 = avg.Load1
	}

	if diskPath != "" {
		if usage, err := disk.UsageWithContext(ctx, diskPath); err == nil {
			snapshot.DiskPath = diskPath
			snapshot.DiskFree = usage.Free
			snapshot.DiskUsedPercent = usage.UsedPercent
		}
	}

	return snapshot
}

// KeyVals flattens the snapshot for a structured log line.
func (s Snapshot) KeyVals() []any {
	keyvals := []any{
		"goroutines", s.Goroutines,
		"rss_bytes", s.ProcessRSS,
		"cpu_percent", round2(s.ProcessCPUPercent),
		"mem_used_percent", round2(s.MemoryUsedPercent),
		"load1", round2(s.Load1),
	}
	if s.DiskPath != "" {
		keyvals = append(keyvals,
			"disk_path", s.DiskPath,
			"disk_free_bytes", s.DiskFree,
			"disk_used_percent", round2(s.DiskUsedPercent),
		)
	}
	return keyvals
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
