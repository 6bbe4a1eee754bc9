package sensors

import "context"

// staticHardware is a device whose readings were captured when the provider
// enumerated it. Providers that fetch everything in one request use it, so
// Update has nothing left to refresh.
type staticHardware struct {
	kind     HardwareKind
	name     string
	readings []Reading
}

func (h *staticHardware) Kind() HardwareKind             { return h.kind }
func (h *staticHardware) Name() string                   { return h.name }
func (h *staticHardware) Update(_ context.Context) error { return nil }
func (h *staticHardware) Sensors() []Reading             { return h.readings }

// MockProvider returns fixed plausible values. Used in debug mode and on
// machines without any sensor source so the display has something to show.
type MockProvider struct{}

func (MockProvider) Name() string { return "mock" }

func (MockProvider) Hardware(_ context.Context) ([]Hardware, error) {
	return []Hardware{
		&staticHardware{kind: HardwareCPU, name: "Debug CPU", readings: []Reading{
			{Kind: SensorTemperature, Name: "CPU Package", Value: value(52)},
			{Kind: SensorClock, Name: "Core #1", Value: value(4200)},
			{Kind: SensorClock, Name: "Core #2", Value: value(4650)},
		}},
		&staticHardware{kind: HardwareGPUNvidia, name: "Debug GPU", readings: []Reading{
			{Kind: SensorTemperature, Name: "GPU Core", Value: value(45)},
			{Kind: SensorLoad, Name: "GPU Core", Value: value(37)},
			{Kind: SensorClock, Name: "GPU Core", Value: value(1830)},
		}},
	}, nil
}

func (MockProvider) Close() error { return nil }

// NoopProvider reports no hardware; every sensor field stays 0.
type NoopProvider struct{}

func (NoopProvider) Name() string                                   { return "none" }
func (NoopProvider) Hardware(_ context.Context) ([]Hardware, error) { return nil, nil }
func (NoopProvider) Close() error                                   { return nil }
