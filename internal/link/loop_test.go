package link

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hwmonitor/bridge/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastTiming() Timing {
	return Timing{Interval: time.Millisecond}
}

var display = domain.Device{Port: "COM7", VID: 0x303A, PID: 0x1001, HasUSBID: true, Description: "USB JTAG/serial debug unit"}

// fakeLocator answers Find from a script; the last answer repeats.
type fakeLocator struct {
	mu      sync.Mutex
	answers []bool
	calls   int
	devices []domain.Device
}

func (f *fakeLocator) Find() (domain.Device, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.answers) {
		i = len(f.answers) - 1
	}
	f.calls++
	if f.answers[i] {
		return display, true
	}
	return domain.Device{}, false
}

func (f *fakeLocator) Candidates() ([]domain.Device, error) { return f.devices, nil }

func (f *fakeLocator) findCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePort struct {
	mu      sync.Mutex
	records [][]byte
	failAt  int // 1-based write number that fails, 0 = never
	writes  int
	closed  bool
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes++
	if p.closed {
		return 0, errors.New("port closed")
	}
	if p.failAt != 0 && p.writes >= p.failAt {
		return 0, errors.New("device disconnected")
	}
	p.records = append(p.records, append([]byte(nil), b...))
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) sent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}

// fakeOpener hands out ports in order; openErr fails every open.
type fakeOpener struct {
	mu      sync.Mutex
	ports   []*fakePort
	opened  []*fakePort
	openErr error
	limit   int // opens beyond limit fail, 0 = unlimited
}

func (o *fakeOpener) Open(name string) (Port, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.openErr != nil {
		return nil, o.openErr
	}
	if o.limit > 0 && len(o.opened) >= o.limit {
		return nil, errors.New("port busy")
	}
	p := &fakePort{}
	if len(o.ports) > 0 {
		p, o.ports = o.ports[0], o.ports[1:]
	}
	o.opened = append(o.opened, p)
	return p, nil
}

func (o *fakeOpener) port(i int) *fakePort {
	o.mu.Lock()
	defer o.mu.Unlock()
	if i >= len(o.opened) {
		return nil
	}
	return o.opened[i]
}

func (o *fakeOpener) opens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.opened)
}

type fixedBuilder struct{}

func (fixedBuilder) Build(context.Context) domain.Frame {
	return domain.Frame{CPU: 10, GPU: 20, RAM: 30, FPS: 60, Time: "12:00", Date: "01 Jan"}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func runLoop(t *testing.T, l *Loop) (cancel func(), done <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan error, 1)
	go func() { ch <- l.Run(ctx) }()
	return cancel, ch
}

func stop(t *testing.T, cancel func(), done <-chan error) {
	t.Helper()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v after cancel, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunDeviceNotFoundAtStartup(t *testing.T) {
	candidates := []domain.Device{{Port: "COM1", Description: "Communications Port"}}
	loc := &fakeLocator{answers: []bool{false}, devices: candidates}
	op := &fakeOpener{}
	l := NewLoop(loc, op, fixedBuilder{}, nil, fastTiming(), discardLogger())

	err := l.Run(context.Background())

	var nf *domain.DeviceNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want DeviceNotFoundError", err)
	}
	if len(nf.Candidates) != 1 || nf.Candidates[0].Port != "COM1" {
		t.Errorf("candidates = %+v", nf.Candidates)
	}
	if op.opens() != 0 {
		t.Error("opened a port without a device")
	}
}

func TestRunOpenFailureAtStartup(t *testing.T) {
	loc := &fakeLocator{answers: []bool{true}}
	op := &fakeOpener{openErr: domain.ErrSerial{Op: "open", Port: "COM7", Err: errors.New("access denied")}}
	l := NewLoop(loc, op, fixedBuilder{}, nil, fastTiming(), discardLogger())

	err := l.Run(context.Background())
	var serr domain.ErrSerial
	if !errors.As(err, &serr) || serr.Op != "open" {
		t.Fatalf("err = %v, want open ErrSerial", err)
	}
}

func TestRunSendsFrames(t *testing.T) {
	loc := &fakeLocator{answers: []bool{true}}
	op := &fakeOpener{}
	board := NewStatusBoard()
	l := NewLoop(loc, op, fixedBuilder{}, board, fastTiming(), discardLogger())

	cancel, done := runLoop(t, l)
	waitFor(t, "three frames", func() bool { p := op.port(0); return p != nil && p.sent() >= 3 })
	stop(t, cancel, done)

	if l.State() != domain.LinkConnected {
		t.Errorf("state = %s, want connected", l.State())
	}

	p := op.port(0)
	for _, rec := range p.records {
		if rec[len(rec)-1] != '\n' {
			t.Fatalf("record %q not newline terminated", rec)
		}
		var obj map[string]any
		if err := json.Unmarshal(rec, &obj); err != nil {
			t.Fatalf("record %q: %v", rec, err)
		}
		if len(obj) != 10 {
			t.Fatalf("record has %d keys, want 10", len(obj))
		}
	}

	st := board.Snapshot()
	if st.Session == "" || st.Port != "COM7" || st.Connects != 1 || st.FramesSent < 3 {
		t.Errorf("status = %+v", st)
	}
	if f, ok := board.LastFrame(); !ok || f.FPS != 60 {
		t.Errorf("last frame = %+v, %v", f, ok)
	}

	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if !p.closed {
		t.Error("port not closed")
	}
	if l.State() != domain.LinkShutdown {
		t.Errorf("state after Close = %s, want shutdown", l.State())
	}
}

func TestRunReconnectsAfterWriteFailure(t *testing.T) {
	loc := &fakeLocator{answers: []bool{true}}
	op := &fakeOpener{ports: []*fakePort{{failAt: 3}, {}}}
	board := NewStatusBoard()
	l := NewLoop(loc, op, fixedBuilder{}, board, fastTiming(), discardLogger())

	cancel, done := runLoop(t, l)
	waitFor(t, "frames on the new port", func() bool { p := op.port(1); return p != nil && p.sent() >= 2 })
	stop(t, cancel, done)

	first := op.port(0)
	if !first.closed {
		t.Error("failed port was not closed")
	}
	if first.sent() != 2 {
		t.Errorf("first port carried %d frames, want 2", first.sent())
	}

	st := board.Snapshot()
	if st.State != domain.LinkConnected {
		t.Errorf("state = %s, want connected", st.State)
	}
	if st.Reconnects != 1 || st.WriteErrors != 1 {
		t.Errorf("reconnects = %d, write errors = %d; want 1, 1", st.Reconnects, st.WriteErrors)
	}
	if loc.findCalls() != 2 {
		t.Errorf("Find called %d times, want 2", loc.findCalls())
	}
}

func TestRunKeepsRetryingWhenDeviceGone(t *testing.T) {
	loc := &fakeLocator{answers: []bool{true, false}}
	op := &fakeOpener{ports: []*fakePort{{failAt: 2}}}
	board := NewStatusBoard()
	l := NewLoop(loc, op, fixedBuilder{}, board, fastTiming(), discardLogger())

	cancel, done := runLoop(t, l)
	waitFor(t, "repeated discovery", func() bool { return loc.findCalls() >= 10 })

	select {
	case err := <-done:
		t.Fatalf("Run exited while retrying: %v", err)
	default:
	}

	if got := board.Snapshot().State; got != domain.LinkDisconnected {
		t.Errorf("state = %s, want disconnected", got)
	}
	if op.opens() != 1 {
		t.Errorf("opens = %d, want 1", op.opens())
	}
	if _, ok := board.LastFrame(); !ok {
		t.Error("frames should still be built while disconnected")
	}

	stop(t, cancel, done)
}

func TestRunRecoversAfterSeveralMisses(t *testing.T) {
	loc := &fakeLocator{answers: []bool{true, false, false, false, true}}
	op := &fakeOpener{ports: []*fakePort{{failAt: 1}, {}}}
	board := NewStatusBoard()
	l := NewLoop(loc, op, fixedBuilder{}, board, fastTiming(), discardLogger())

	cancel, done := runLoop(t, l)
	waitFor(t, "frames after recovery", func() bool { p := op.port(1); return p != nil && p.sent() >= 1 })
	stop(t, cancel, done)

	if got := board.Snapshot().State; got != domain.LinkConnected {
		t.Errorf("state = %s, want connected", got)
	}
	if loc.findCalls() < 5 {
		t.Errorf("Find called %d times, want at least 5", loc.findCalls())
	}
}

func TestRunReopenFailureStaysDisconnected(t *testing.T) {
	loc := &fakeLocator{answers: []bool{true}}
	op := &fakeOpener{ports: []*fakePort{{failAt: 1}}, limit: 1}
	board := NewStatusBoard()
	l := NewLoop(loc, op, fixedBuilder{}, board, fastTiming(), discardLogger())

	cancel, done := runLoop(t, l)
	waitFor(t, "reopen attempts", func() bool { return loc.findCalls() >= 5 })
	stop(t, cancel, done)

	st := board.Snapshot()
	if st.State != domain.LinkDisconnected {
		t.Errorf("state = %s, want disconnected", st.State)
	}
	if st.LastError == "" {
		t.Error("last error not recorded")
	}
	if st.WriteErrors != 1 || st.Connects != 1 {
		t.Errorf("write errors = %d, connects = %d; want 1, 1", st.WriteErrors, st.Connects)
	}
}

func TestRunCancelledDuringBootSettle(t *testing.T) {
	loc := &fakeLocator{answers: []bool{true}}
	op := &fakeOpener{}
	timing := Timing{Interval: time.Millisecond, BootSettle: time.Hour}
	l := NewLoop(loc, op, fixedBuilder{}, nil, timing, discardLogger())

	cancel, done := runLoop(t, l)
	waitFor(t, "open", func() bool { return op.opens() == 1 })
	stop(t, cancel, done)

	if op.port(0).sent() != 0 {
		t.Error("frames sent before the display finished booting")
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if !op.port(0).closed {
		t.Error("port not closed on shutdown")
	}
}

func TestSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	if !sleep(ctx, 0) {
		t.Error("zero sleep on live context should report true")
	}
	cancel()
	if sleep(ctx, time.Hour) {
		t.Error("sleep on cancelled context should report false")
	}
	if sleep(ctx, 0) {
		t.Error("zero sleep on cancelled context should report false")
	}
}
