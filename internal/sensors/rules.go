package sensors

import (
	"strings"

	"github.com/hwmonitor/bridge/internal/domain"
)

type field int

const (
	fieldGPULoad field = iota
	fieldGPUTemp
	fieldCPUTemp
	fieldCPUClock
	fieldGPUClock
)

type combine int

const (
	// keepLast overwrites on every match.
	keepLast combine = iota
	// keepMax keeps the largest value seen.
	keepMax
	// fallbackFirst applies after a device's sensors were scanned, only if
	// the field is still unset, and takes the first match.
	fallbackFirst
)

type nameMatch struct {
	exact    string
	contains string
}

func (m nameMatch) matches(name string) bool {
	if m.exact != "" {
		return name == m.exact
	}
	return strings.Contains(name, m.contains)
}

type rule struct {
	gpu     bool
	sensor  SensorKind
	name    nameMatch
	field   field
	combine combine
}

func (r rule) appliesTo(hw HardwareKind) bool {
	if r.gpu {
		return hw.IsGPU()
	}
	return hw == HardwareCPU
}

// selectionRules maps provider sensors onto snapshot fields. At most one GPU
// is expected, so for GPU values the last device wins.
var selectionRules = []rule{
	{gpu: true, sensor: SensorTemperature, name: nameMatch{exact: "GPU Core"}, field: fieldGPUTemp, combine: keepLast},
	{gpu: true, sensor: SensorLoad, name: nameMatch{exact: "GPU Core"}, field: fieldGPULoad, combine: keepLast},
	{gpu: true, sensor: SensorClock, name: nameMatch{exact: "GPU Core"}, field: fieldGPUClock, combine: keepLast},

	{sensor: SensorTemperature, name: nameMatch{exact: "CPU Package"}, field: fieldCPUTemp, combine: keepLast},
	{sensor: SensorClock, name: nameMatch{contains: "Core"}, field: fieldCPUClock, combine: keepMax},
	{sensor: SensorTemperature, name: nameMatch{contains: "Core"}, field: fieldCPUTemp, combine: fallbackFirst},
}

func (s *snapshotBuilder) ptr(f field) *int {
	switch f {
	case fieldGPULoad:
		return &s.snap.GPULoad
	case fieldGPUTemp:
		return &s.snap.GPUTemp
	case fieldCPUTemp:
		return &s.snap.CPUTemp
	case fieldCPUClock:
		return &s.snap.CPUClock
	default:
		return &s.snap.GPUClock
	}
}

type snapshotBuilder struct {
	snap domain.SensorSnapshot
}

// apply runs every rule against one device's sensors.
func (s *snapshotBuilder) apply(hw HardwareKind, readings []Reading) {
	for _, r := range selectionRules {
		if !r.appliesTo(hw) || r.combine == fallbackFirst {
			continue
		}
		for _, rd := range readings {
			if rd.Kind != r.sensor || rd.Value == nil || !r.name.matches(rd.Name) {
				continue
			}
			v := int(*rd.Value)
			dst := s.ptr(r.field)
			switch r.combine {
			case keepMax:
				if v > *dst {
					*dst = v
				}
			default:
				*dst = v
			}
		}
	}

	for _, r := range selectionRules {
		if !r.appliesTo(hw) || r.combine != fallbackFirst {
			continue
		}
		dst := s.ptr(r.field)
		if *dst != 0 {
			continue
		}
		for _, rd := range readings {
			if rd.Kind == r.sensor && rd.Value != nil && r.name.matches(rd.Name) {
				*dst = int(*rd.Value)
				break
			}
		}
	}
}
