package domain

import "time"

// SensorSnapshot holds the hardware sensor values selected for the display.
// Zero means the value was not available.
type SensorSnapshot struct {
	GPULoad  int
	GPUTemp  int
	CPUTemp  int
	CPUClock int
	GPUClock int
}

// HostUsage is the OS-level CPU and RAM utilization in whole percent.
type HostUsage struct {
	CPUPercent int
	RAMPercent int
}

// Frame is one telemetry sample as it goes over the wire.
// Field order matches the record layout the display firmware expects.
type Frame struct {
	CPU      int    `json:"cpu"`
	GPU      int    `json:"gpu"`
	RAM      int    `json:"ram"`
	CPUTemp  int    `json:"cpu_temp"`
	GPUTemp  int    `json:"gpu_temp"`
	FPS      int    `json:"fps"`
	CPUClock int    `json:"cpu_clk"`
	GPUClock int    `json:"gpu_clk"`
	Time     string `json:"time"`
	Date     string `json:"date"`

	// CapturedAt is when the frame was sampled. Not sent to the device.
	CapturedAt time.Time `json:"-"`
}
