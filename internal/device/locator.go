// Package device finds the display among the serial ports the OS exposes.
package device

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.bug.st/serial/enumerator"

	"github.com/hwmonitor/bridge/internal/domain"
)

// USBID is a USB vendor/product pair.
type USBID struct {
	VID uint16
	PID uint16
}

// KnownIDs are the identities the ESP32-S3 display enumerates as: native
// USB CDC/JTAG and the usual USB-serial bridge chips.
var KnownIDs = []USBID{
	{VID: 0x303A, PID: 0x1001},
	{VID: 0x303A, PID: 0x80FF},
	{VID: 0x1A86, PID: 0x55D4},
	{VID: 0x10C4, PID: 0xEA60},
}

// KnownDescriptions are matched case-insensitively against the port
// description when no identity matches.
var KnownDescriptions = []string{"esp32", "cp210", "ch910"}

// EnumerateFunc lists serial ports. enumerator.GetDetailedPortsList in production.
type EnumerateFunc func() ([]*enumerator.PortDetails, error)

// Locator picks the display port.
type Locator struct {
	preferred string
	enumerate EnumerateFunc
	sysfsRoot string
	logger    *slog.Logger
}

// NewLocator creates a Locator. preferred, if set, wins over every
// heuristic whenever that port is present. A nil enumerate uses the OS.
func NewLocator(preferred string, enumerate EnumerateFunc, logger *slog.Logger) *Locator {
	if enumerate == nil {
		enumerate = enumerator.GetDetailedPortsList
	}
	return &Locator{preferred: preferred, enumerate: enumerate, sysfsRoot: "/sys", logger: logger}
}

// Candidates returns every serial device currently visible.
func (l *Locator) Candidates() ([]domain.Device, error) {
	ports, err := l.enumerate()
	if err != nil {
		return nil, err
	}
	devices := make([]domain.Device, 0, len(ports))
	for _, p := range ports {
		if p == nil {
			continue
		}
		d := toDevice(p)
		if d.Description == "" {
			d.Description = sysfsProduct(l.sysfsRoot, d.Port)
		}
		if d.Description == "" {
			d.Description = "n/a"
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// Find returns the first device that looks like the display. Enumeration
// failures are logged and reported as not found.
func (l *Locator) Find() (domain.Device, bool) {
	devices, err := l.Candidates()
	if err != nil {
		l.logger.Warn("serial port enumeration failed", "err", err)
		return domain.Device{}, false
	}

	if d, ok := Match(devices, l.preferred); ok {
		l.logger.Info("display found", "port", d.Port, "description", d.Description)
		return d, true
	}
	return domain.Device{}, false
}

// Match applies the selection policy: preferred port name, then known USB
// identity, then description keyword.
func Match(devices []domain.Device, preferred string) (domain.Device, bool) {
	if preferred != "" {
		for _, d := range devices {
			if strings.EqualFold(d.Port, preferred) {
				return d, true
			}
		}
	}

	for _, d := range devices {
		if !d.HasUSBID {
			continue
		}
		for _, id := range KnownIDs {
			if d.VID == id.VID && d.PID == id.PID {
				return d, true
			}
		}
	}

	for _, d := range devices {
		desc := strings.ToLower(d.Description)
		for _, token := range KnownDescriptions {
			if strings.Contains(desc, token) {
				return d, true
			}
		}
	}

	return domain.Device{}, false
}

func toDevice(p *enumerator.PortDetails) domain.Device {
	d := domain.Device{
		Port:         p.Name,
		SerialNumber: p.SerialNumber,
		Description:  p.Product,
	}
	if p.IsUSB {
		vid, errV := strconv.ParseUint(p.VID, 16, 16)
		pid, errP := strconv.ParseUint(p.PID, 16, 16)
		if errV == nil && errP == nil {
			d.VID, d.PID, d.HasUSBID = uint16(vid), uint16(pid), true
		}
	}
	return d
}

// sysfsProduct returns the USB product string behind a Linux tty node, or
// "" when there is none. The enumerator only fills Product on Windows and
// macOS, so without this the description keywords never match on Linux.
func sysfsProduct(root, port string) string {
	if !strings.HasPrefix(port, "/dev/") {
		return ""
	}
	dev, err := filepath.EvalSymlinks(filepath.Join(root, "class", "tty", filepath.Base(port), "device"))
	if err != nil {
		return ""
	}
	// ttyACM links to the USB interface, ttyUSB to a child of it; the
	// product file lives on the USB device above both.
	for i := 0; i < 3; i++ {
		if data, err := os.ReadFile(filepath.Join(dev, "product")); err == nil {
			return strings.TrimSpace(string(data))
		}
		dev = filepath.Dir(dev)
	}
	return ""
}
