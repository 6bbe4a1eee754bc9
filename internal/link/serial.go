package link

import (
	"time"

	"go.bug.st/serial"

	"github.com/hwmonitor/bridge/internal/domain"
)

const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = time.Second
)

// Port is the part of a serial port the loop uses.
type Port interface {
	Write(p []byte) (int, error)
	Close() error
}

// Opener opens a port by name.
type Opener interface {
	Open(name string) (Port, error)
}

// SerialOpener opens real serial ports with DTR and RTS deasserted, so the
// ESP32 auto-reset circuit does not reboot the display on every open.
type SerialOpener struct {
	BaudRate    int
	ReadTimeout time.Duration
}

func (o SerialOpener) Open(name string) (Port, error) {
	baud := o.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	timeout := o.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}

	mode := &serial.Mode{
		BaudRate:          baud,
		DataBits:          8,
		Parity:            serial.NoParity,
		StopBits:          serial.OneStopBit,
		InitialStatusBits: &serial.ModemOutputBits{DTR: false, RTS: false},
	}

	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, domain.ErrSerial{Op: "open", Port: name, Err: err}
	}

	if err := p.SetReadTimeout(timeout); err != nil {
		_ = p.Close()
		return nil, domain.ErrSerial{Op: "set read timeout", Port: name, Err: err}
	}
	// Some CDC drivers reject modem control; the initial bits already
	// asked for both lines low.
	_ = p.SetDTR(false)
	_ = p.SetRTS(false)

	return p, nil
}
