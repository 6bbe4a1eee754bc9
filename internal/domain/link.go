package domain

import "fmt"

// Device is a serial-capable device visible to the OS.
type Device struct {
	Port         string `json:"port"`
	VID          uint16 `json:"vid"`
	PID          uint16 `json:"pid"`
	HasUSBID     bool   `json:"has_usb_id"`
	SerialNumber string `json:"serial_number,omitempty"`
	Description  string `json:"description"`
}

func (d Device) String() string {
	if !d.HasUSBID {
		return fmt.Sprintf("%s: %s", d.Port, d.Description)
	}
	return fmt.Sprintf("%s: %s (VID=%04X PID=%04X)", d.Port, d.Description, d.VID, d.PID)
}

// LinkState is the state of the serial link to the display.
type LinkState string

const (
	LinkDisconnected LinkState = "disconnected"
	LinkConnected    LinkState = "connected"
	LinkShutdown     LinkState = "shutdown"
)
