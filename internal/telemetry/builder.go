// Package telemetry assembles one Frame per tick from the metric sources
// and encodes it for the wire.
package telemetry

import (
	"context"
	"time"

	"github.com/hwmonitor/bridge/internal/domain"
)

const (
	TimeLayout = "15:04"
	DateLayout = "02 Jan"
)

type FPSSource interface {
	ReadFPS() int
}

type SensorSource interface {
	ReadSensors(ctx context.Context) domain.SensorSnapshot
}

type UsageSource interface {
	Collect(ctx context.Context) domain.HostUsage
}

// Builder combines the metric sources into frames. Every source degrades to
// zeros on its own, so Build always succeeds.
type Builder struct {
	fps     FPSSource
	sensors SensorSource
	usage   UsageSource
	now     func() time.Time
}

func NewBuilder(fps FPSSource, sensors SensorSource, usage UsageSource) *Builder {
	return &Builder{fps: fps, sensors: sensors, usage: usage, now: time.Now}
}

// Build samples every source once.
func (b *Builder) Build(ctx context.Context) domain.Frame {
	snap := b.sensors.ReadSensors(ctx)
	fps := b.fps.ReadFPS()
	usage := b.usage.Collect(ctx)
	now := b.now()

	return domain.Frame{
		CPU:        nonNegative(usage.CPUPercent),
		GPU:        nonNegative(snap.GPULoad),
		RAM:        nonNegative(usage.RAMPercent),
		CPUTemp:    nonNegative(snap.CPUTemp),
		GPUTemp:    nonNegative(snap.GPUTemp),
		FPS:        nonNegative(fps),
		CPUClock:   nonNegative(snap.CPUClock),
		GPUClock:   nonNegative(snap.GPUClock),
		Time:       now.Format(TimeLayout),
		Date:       now.Format(DateLayout),
		CapturedAt: now,
	}
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
