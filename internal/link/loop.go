// Package link owns the serial connection to the display and drives the
// sample-and-send cycle, reconnecting whenever a write fails.
package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hwmonitor/bridge/internal/domain"
	"github.com/hwmonitor/bridge/internal/telemetry"
)

// Timing holds every delay the loop uses.
type Timing struct {
	// Interval is the pause between ticks.
	Interval time.Duration
	// BootSettle is the wait after the first open while the display boots.
	BootSettle time.Duration
	// Cooldown is the wait between closing a failed port and rediscovery.
	Cooldown time.Duration
	// ReconnectSettle is the wait after a successful reopen.
	ReconnectSettle time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		Interval:        time.Second,
		BootSettle:      2 * time.Second,
		Cooldown:        2 * time.Second,
		ReconnectSettle: time.Second,
	}
}

type Locator interface {
	Find() (domain.Device, bool)
	Candidates() ([]domain.Device, error)
}

type FrameBuilder interface {
	Build(ctx context.Context) domain.Frame
}

// Loop is the transmission state machine. It is driven by Run from a
// single goroutine.
type Loop struct {
	locator Locator
	opener  Opener
	builder FrameBuilder
	board   *StatusBoard
	timing  Timing
	logger  *slog.Logger

	port    Port
	device  domain.Device
	session string
}

func NewLoop(locator Locator, opener Opener, builder FrameBuilder, board *StatusBoard, timing Timing, logger *slog.Logger) *Loop {
	if board == nil {
		board = NewStatusBoard()
	}
	return &Loop{
		locator: locator,
		opener:  opener,
		builder: builder,
		board:   board,
		timing:  timing,
		logger:  logger,
	}
}

// Run connects to the display and sends a frame every Interval until ctx is
// cancelled. It returns a *domain.DeviceNotFoundError, or the open error,
// when the display cannot be reached at startup; after that it only returns
// nil on cancellation. The port stays open until Close.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("looking for display")
	dev, ok := l.locator.Find()
	if !ok {
		candidates, err := l.locator.Candidates()
		if err != nil {
			l.logger.Warn("serial port enumeration failed", "err", err)
		}
		return &domain.DeviceNotFoundError{Candidates: candidates}
	}

	if err := l.connect(dev, false); err != nil {
		return fmt.Errorf("connect to display: %w", err)
	}
	if !sleep(ctx, l.timing.BootSettle) {
		return nil
	}

	l.logger.Info("sending telemetry", "interval", l.timing.Interval.String())
	for {
		if ctx.Err() != nil {
			return nil
		}
		l.tick(ctx)
		if !sleep(ctx, l.timing.Interval) {
			return nil
		}
	}
}

// State reports the link state as the loop last recorded it.
func (l *Loop) State() domain.LinkState {
	return l.board.Snapshot().State
}

// Close releases the port and marks the link shut down.
func (l *Loop) Close() error {
	wasOpen := l.port != nil
	err := l.closePort()
	l.board.disconnected(domain.LinkShutdown)
	if wasOpen && err == nil {
		l.logger.Info("serial port closed", "port", l.device.Port)
	}
	return err
}

func (l *Loop) tick(ctx context.Context) {
	frame := l.builder.Build(ctx)
	l.board.frameBuilt(frame)

	if l.port == nil && !l.reconnect(ctx) {
		return
	}

	rec, err := telemetry.Encode(frame)
	if err != nil {
		l.logger.Error("encode frame", "err", err)
		return
	}

	if err := l.write(rec); err != nil {
		l.board.failed(err, true)
		l.logger.Warn("link lost, reconnecting", "port", l.device.Port, "session", l.session, "err", err)
		if cerr := l.closePort(); cerr != nil {
			l.logger.Debug("close after write failure", "err", cerr)
		}
		l.board.disconnected(domain.LinkDisconnected)
		if !sleep(ctx, l.timing.Cooldown) {
			return
		}
		l.reconnect(ctx)
		return
	}

	l.board.frameSent()
	l.logger.Debug("frame sent",
		"cpu", frame.CPU, "gpu", frame.GPU, "ram", frame.RAM,
		"cpu_temp", frame.CPUTemp, "gpu_temp", frame.GPUTemp, "fps", frame.FPS,
		"cpu_clk", frame.CPUClock, "gpu_clk", frame.GPUClock,
	)
}

// reconnect runs discovery and reopens the port. On failure the loop stays
// disconnected and the next tick tries again.
func (l *Loop) reconnect(ctx context.Context) bool {
	dev, ok := l.locator.Find()
	if !ok {
		l.board.failed(errors.New("display not found"), false)
		l.logger.Error("display not found for reconnect")
		return false
	}
	if err := l.connect(dev, true); err != nil {
		l.board.failed(err, false)
		l.logger.Error("reconnect failed", "port", dev.Port, "err", err)
		return false
	}
	return sleep(ctx, l.timing.ReconnectSettle)
}

func (l *Loop) connect(dev domain.Device, reconnect bool) error {
	p, err := l.opener.Open(dev.Port)
	if err != nil {
		return err
	}
	l.port = p
	l.device = dev
	l.session = l.board.connected(dev.Port, reconnect)

	if reconnect {
		l.logger.Info("reconnected", "port", dev.Port, "session", l.session)
	} else {
		l.logger.Info("connected", "port", dev.Port, "description", dev.Description, "session", l.session)
	}
	return nil
}

func (l *Loop) write(rec []byte) error {
	n, err := l.port.Write(rec)
	if err != nil {
		return domain.ErrSerial{Op: "write", Port: l.device.Port, Err: err}
	}
	if n < len(rec) {
		return domain.ErrSerial{Op: "write", Port: l.device.Port, Err: io.ErrShortWrite}
	}
	return nil
}

func (l *Loop) closePort() error {
	if l.port == nil {
		return nil
	}
	err := l.port.Close()
	l.port = nil
	l.session = ""
	if err != nil {
		return domain.ErrSerial{Op: "close", Port: l.device.Port, Err: err}
	}
	return nil
}

// sleep waits for d and reports whether ctx is still live.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
