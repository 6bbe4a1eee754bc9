package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hwmonitor/bridge/internal/config"
	"github.com/hwmonitor/bridge/internal/device"
	"github.com/hwmonitor/bridge/internal/domain"
	"github.com/hwmonitor/bridge/internal/link"
	"github.com/hwmonitor/bridge/internal/rtss"
	"github.com/hwmonitor/bridge/internal/sensors"
	"github.com/hwmonitor/bridge/internal/server"
	"github.com/hwmonitor/bridge/internal/system"
	"github.com/hwmonitor/bridge/internal/telemetry"
)

// Agent is the top-level application that wires the metric sources to the
// display link.
type Agent struct {
	cfg    *config.Config
	logger *slog.Logger

	fps     *rtss.Reader
	sensors *sensors.Aggregator
	stats   *system.StatsCollector
	locator *device.Locator
	board   *link.StatusBoard
	loop    *link.Loop

	httpServer *server.Server
}

// New creates and wires all subsystems. Nothing touches hardware until Run.
func New(cfg *config.Config, logger *slog.Logger) (*Agent, error) {
	provider, err := newSensorProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("init sensors: %w", err)
	}

	fps := rtss.NewReader(cfg.SHMName, nil, logger.With("component", "rtss"))
	aggregator := sensors.NewAggregator(provider, logger.With("component", "sensors"))
	stats := system.NewStatsCollector(logger.With("component", "system"))
	builder := telemetry.NewBuilder(fps, aggregator, stats)

	locator := device.NewLocator(cfg.Port, nil, logger.With("component", "device"))
	opener := link.SerialOpener{BaudRate: cfg.BaudRate}
	board := link.NewStatusBoard()
	loop := link.NewLoop(locator, opener, builder, board, cfg.Timing(), logger.With("component", "link"))

	a := &Agent{
		cfg:     cfg,
		logger:  logger,
		fps:     fps,
		sensors: aggregator,
		stats:   stats,
		locator: locator,
		board:   board,
		loop:    loop,
	}
	if cfg.StatusAddr != "" {
		a.httpServer = server.New(cfg.StatusAddr, board, logger.With("component", "server"))
	}
	return a, nil
}

// newSensorProvider picks the sensor backend. Debug mode always uses mock
// values so the display can be exercised without real hardware.
func newSensorProvider(cfg *config.Config) (sensors.Provider, error) {
	backend := cfg.Sensors
	if cfg.Debug {
		backend = config.SensorsMock
	}
	switch backend {
	case config.SensorsLHM:
		return sensors.NewLHMProvider(cfg.LHMURL), nil
	case config.SensorsHost:
		return sensors.NewHostProvider(), nil
	case config.SensorsMock:
		return sensors.MockProvider{}, nil
	case config.SensorsNone:
		return sensors.NoopProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown sensor backend %q", backend)
	}
}

// ListPorts returns every serial device the OS currently exposes.
func (a *Agent) ListPorts() ([]domain.Device, error) {
	return a.locator.Candidates()
}

// Run connects to the display and streams telemetry until ctx is
// cancelled. A *domain.DeviceNotFoundError means no display was attached at
// startup.
func (a *Agent) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var serverErr chan error
	if a.httpServer != nil {
		serverErr = make(chan error, 1)
		go func() {
			serverErr <- a.httpServer.Start()
		}()
	}

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- a.loop.Run(ctx)
	}()

	a.logger.Info("agent ready",
		"version", config.Version,
		"sensors", a.sensors.Name(),
		"port", a.cfg.Port,
		"status_addr", a.cfg.StatusAddr,
	)

	var runErr error
	select {
	case runErr = <-loopErr:
		if runErr == nil {
			a.logger.Info("shutting down agent")
		}
	case err := <-serverErr:
		cancel()
		<-loopErr
		if err != nil {
			runErr = fmt.Errorf("status server: %w", err)
		}
	}

	if err := a.shutdown(); err != nil {
		a.logger.Error("shutdown error", "err", err)
	}
	return runErr
}

// shutdown releases the overlay mapping, then the sensor backend, then the
// serial port, and finally stops the status server.
func (a *Agent) shutdown() error {
	var errs []error

	if err := a.fps.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close rtss: %w", err))
	}
	if err := a.sensors.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sensors: %w", err))
	}
	if err := a.loop.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close link: %w", err))
	}

	if a.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("status server shutdown: %w", err))
		}
	}

	a.logger.Info("agent stopped")
	return errors.Join(errs...)
}
