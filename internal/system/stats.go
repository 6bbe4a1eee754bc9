package system

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/hwmonitor/bridge/internal/domain"
)

// StatsCollector samples OS-wide CPU and RAM utilization.
// CPU utilization is the delta between successive Collect calls; the
// caller's tick sets the sampling window.
type StatsCollector struct {
	cpuPercent    func(ctx context.Context, interval time.Duration, perCPU bool) ([]float64, error)
	virtualMemory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	logger        *slog.Logger
}

// NewStatsCollector creates a collector and takes the CPU baseline, so the
// first Collect already reports a delta.
func NewStatsCollector(logger *slog.Logger) *StatsCollector {
	c := &StatsCollector{
		cpuPercent:    cpu.PercentWithContext,
		virtualMemory: mem.VirtualMemoryWithContext,
		logger:        logger,
	}
	_, _ = c.cpuPercent(context.Background(), 0, false)
	return c
}

// Collect returns whole-percent CPU and RAM usage. Failed queries report 0.
func (c *StatsCollector) Collect(ctx context.Context) domain.HostUsage {
	var usage domain.HostUsage

	if pct, err := c.cpuPercent(ctx, 0, false); err != nil {
		c.logger.Debug("cpu percent unavailable", "err", err)
	} else if len(pct) > 0 {
		usage.CPUPercent = percent(pct[0])
	}

	if vm, err := c.virtualMemory(ctx); err != nil {
		c.logger.Debug("memory stats unavailable", "err", err)
	} else {
		usage.RAMPercent = percent(vm.UsedPercent)
	}

	return usage
}

// percent truncates to an integer in [0, 100].
func percent(v float64) int {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 100 {
		return 100
	}
	return int(v)
}
