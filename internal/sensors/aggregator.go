package sensors

import (
	"context"
	"log/slog"

	"github.com/hwmonitor/bridge/internal/domain"
)

// Aggregator reads a Provider and selects the values the display needs.
type Aggregator struct {
	provider Provider
	logger   *slog.Logger
}

func NewAggregator(provider Provider, logger *slog.Logger) *Aggregator {
	return &Aggregator{provider: provider, logger: logger}
}

// Name reports the provider backing the aggregator.
func (a *Aggregator) Name() string {
	if a.provider == nil {
		return "none"
	}
	return a.provider.Name()
}

// ReadSensors never fails. Any provider error or panic yields a zero
// snapshot; driver hiccups are routine and must not stop telemetry.
func (a *Aggregator) ReadSensors(ctx context.Context) (snap domain.SensorSnapshot) {
	if a.provider == nil {
		return domain.SensorSnapshot{}
	}

	defer func() {
		if rec := recover(); rec != nil {
			a.logger.Debug("sensor provider panicked", "provider", a.provider.Name(), "panic", rec)
			snap = domain.SensorSnapshot{}
		}
	}()

	s, err := a.collect(ctx)
	if err != nil {
		a.logger.Debug("sensor read failed", "err", err)
		return domain.SensorSnapshot{}
	}
	return s
}

func (a *Aggregator) collect(ctx context.Context) (domain.SensorSnapshot, error) {
	devices, err := a.provider.Hardware(ctx)
	if err != nil {
		return domain.SensorSnapshot{}, domain.ErrSensorProvider{Provider: a.provider.Name(), Err: err}
	}

	var b snapshotBuilder
	for _, hw := range devices {
		if err := hw.Update(ctx); err != nil {
			return domain.SensorSnapshot{}, domain.ErrSensorProvider{Provider: a.provider.Name(), Err: err}
		}
		b.apply(hw.Kind(), hw.Sensors())
	}
	return b.snap, nil
}

// Close releases the underlying provider.
func (a *Aggregator) Close() error {
	if a.provider == nil {
		return nil
	}
	return a.provider.Close()
}
