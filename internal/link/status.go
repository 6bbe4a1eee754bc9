package link

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hwmonitor/bridge/internal/domain"
)

// Status is a point-in-time view of the link for diagnostics.
type Status struct {
	State       domain.LinkState `json:"state"`
	Port        string           `json:"port,omitempty"`
	Session     string           `json:"session,omitempty"`
	Connects    int              `json:"connects"`
	Reconnects  int              `json:"reconnects"`
	FramesSent  uint64           `json:"frames_sent"`
	WriteErrors uint64           `json:"write_errors"`
	LastError   string           `json:"last_error,omitempty"`
	Since       time.Time        `json:"since"`
}

// StatusBoard is written by the loop and read by the status server.
type StatusBoard struct {
	mu        sync.RWMutex
	status    Status
	lastFrame *domain.Frame
}

func NewStatusBoard() *StatusBoard {
	return &StatusBoard{status: Status{State: domain.LinkDisconnected, Since: time.Now()}}
}

func (b *StatusBoard) Snapshot() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// LastFrame returns the most recently built frame, sent or not.
func (b *StatusBoard) LastFrame() (domain.Frame, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.lastFrame == nil {
		return domain.Frame{}, false
	}
	return *b.lastFrame, true
}

// connected starts a new session and returns its ID.
func (b *StatusBoard) connected(port string, reconnect bool) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status.State = domain.LinkConnected
	b.status.Port = port
	b.status.Session = uuid.NewString()
	b.status.Connects++
	if reconnect {
		b.status.Reconnects++
	}
	b.status.Since = time.Now()
	return b.status.Session
}

func (b *StatusBoard) disconnected(state domain.LinkState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status.State == state {
		return
	}
	b.status.State = state
	b.status.Session = ""
	b.status.Since = time.Now()
}

func (b *StatusBoard) frameBuilt(f domain.Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastFrame = &f
}

func (b *StatusBoard) frameSent() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status.FramesSent++
}

func (b *StatusBoard) failed(err error, write bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status.LastError = err.Error()
	if write {
		b.status.WriteErrors++
	}
}
