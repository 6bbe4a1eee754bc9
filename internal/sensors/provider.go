// Package sensors turns hardware sensor readings from an external provider
// into the fixed SensorSnapshot the display shows.
package sensors

import "context"

// HardwareKind classifies a hardware device the provider reports.
type HardwareKind int

const (
	HardwareOther HardwareKind = iota
	HardwareCPU
	HardwareGPUNvidia
	HardwareGPUAmd
	HardwareGPUIntel
)

// IsGPU reports whether k is any discrete or integrated GPU.
func (k HardwareKind) IsGPU() bool {
	return k == HardwareGPUNvidia || k == HardwareGPUAmd || k == HardwareGPUIntel
}

func (k HardwareKind) String() string {
	switch k {
	case HardwareCPU:
		return "cpu"
	case HardwareGPUNvidia:
		return "gpu-nvidia"
	case HardwareGPUAmd:
		return "gpu-amd"
	case HardwareGPUIntel:
		return "gpu-intel"
	default:
		return "other"
	}
}

// SensorKind classifies what a sensor measures.
type SensorKind int

const (
	SensorOther SensorKind = iota
	SensorTemperature
	SensorLoad
	SensorClock
)

func (k SensorKind) String() string {
	switch k {
	case SensorTemperature:
		return "temperature"
	case SensorLoad:
		return "load"
	case SensorClock:
		return "clock"
	default:
		return "other"
	}
}

// Reading is one named sensor value. Value is nil when the sensor exists
// but currently has no reading.
type Reading struct {
	Kind  SensorKind
	Name  string
	Value *float64
}

// Hardware is one device with its sensors. Update refreshes the values
// returned by Sensors.
type Hardware interface {
	Kind() HardwareKind
	Name() string
	Update(ctx context.Context) error
	Sensors() []Reading
}

// Provider enumerates hardware devices in a stable order.
type Provider interface {
	Name() string
	Hardware(ctx context.Context) ([]Hardware, error)
	Close() error
}

func value(v float64) *float64 { return &v }
