package sensors

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
)

// HostProvider builds devices from the OS sensor interfaces gopsutil
// exposes (hwmon on Linux, WMI thermal zones on Windows). It is the
// fallback when LibreHardwareMonitor is not running.
type HostProvider struct {
	temperatures func(ctx context.Context) ([]host.TemperatureStat, error)
	cpuInfo      func(ctx context.Context) ([]cpu.InfoStat, error)
	// liveClocks returns the current per-core frequency in MHz. cpu.Info
	// only reports the rated maximum where cpufreq is present.
	liveClocks func() ([]float64, error)
}

func NewHostProvider() *HostProvider {
	return &HostProvider{
		temperatures: host.SensorsTemperaturesWithContext,
		cpuInfo:      cpu.InfoWithContext,
		liveClocks:   func() ([]float64, error) { return scalingCurFreq(sysfsCPURoot) },
	}
}

func (p *HostProvider) Name() string { return "host" }

// chipKinds maps hwmon driver names to the device they report on.
var chipKinds = map[string]HardwareKind{
	"coretemp":    HardwareCPU,
	"k10temp":     HardwareCPU,
	"zenpower":    HardwareCPU,
	"cpu_thermal": HardwareCPU,
	"amdgpu":      HardwareGPUAmd,
	"radeon":      HardwareGPUAmd,
	"nouveau":     HardwareGPUNvidia,
	"i915":        HardwareGPUIntel,
}

func (p *HostProvider) Hardware(ctx context.Context) ([]Hardware, error) {
	temps, tempErr := p.temperatures(ctx)

	cpuDev := &staticHardware{kind: HardwareCPU, name: "cpu"}
	gpus := map[string]*staticHardware{}

	for _, t := range temps {
		chip, label := splitSensorKey(t.SensorKey)
		kind, ok := chipKinds[chip]
		if !ok {
			continue
		}
		if kind == HardwareCPU {
			cpuDev.readings = append(cpuDev.readings, Reading{
				Kind:  SensorTemperature,
				Name:  cpuSensorName(label),
				Value: value(t.Temperature),
			})
			continue
		}

		gpu, ok := gpus[chip]
		if !ok {
			gpu = &staticHardware{kind: kind, name: chip}
			gpus[chip] = gpu
		}
		name := label
		if len(gpu.readings) == 0 || strings.Contains(label, "edge") {
			name = "GPU Core"
		}
		gpu.readings = append(gpu.readings, Reading{Kind: SensorTemperature, Name: name, Value: value(t.Temperature)})
	}

	for i, mhz := range p.coreClocks(ctx) {
		if mhz <= 0 {
			continue
		}
		cpuDev.readings = append(cpuDev.readings, Reading{
			Kind:  SensorClock,
			Name:  fmt.Sprintf("Core #%d", i+1),
			Value: value(mhz),
		})
	}

	if len(cpuDev.readings) == 0 && len(gpus) == 0 && tempErr != nil {
		return nil, fmt.Errorf("read temperatures: %w", tempErr)
	}

	out := []Hardware{cpuDev}
	chips := make([]string, 0, len(gpus))
	for chip := range gpus {
		chips = append(chips, chip)
	}
	sort.Strings(chips)
	for _, chip := range chips {
		out = append(out, gpus[chip])
	}
	return out, nil
}

func (p *HostProvider) Close() error { return nil }

// coreClocks prefers the live cpufreq reading and falls back to cpu.Info,
// which is live only on hosts without cpufreq (/proc/cpuinfo "cpu MHz").
func (p *HostProvider) coreClocks(ctx context.Context) []float64 {
	if p.liveClocks != nil {
		if mhz, err := p.liveClocks(); err == nil && len(mhz) > 0 {
			return mhz
		}
	}
	infos, err := p.cpuInfo(ctx)
	if err != nil {
		return nil
	}
	mhz := make([]float64, len(infos))
	for i, info := range infos {
		mhz[i] = info.Mhz
	}
	return mhz
}

const sysfsCPURoot = "/sys/devices/system/cpu"

// scalingCurFreq reads cpu<N>/cpufreq/scaling_cur_freq (kHz) under root,
// ordered by CPU number.
func scalingCurFreq(root string) ([]float64, error) {
	paths, err := filepath.Glob(filepath.Join(root, "cpu[0-9]*", "cpufreq", "scaling_cur_freq"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.New("cpufreq not available")
	}

	type core struct {
		n   int
		mhz float64
	}
	cores := make([]core, 0, len(paths))
	for _, path := range paths {
		dir := filepath.Base(filepath.Dir(filepath.Dir(path)))
		n, err := strconv.Atoi(strings.TrimPrefix(dir, "cpu"))
		if err != nil {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		khz, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
		if err != nil {
			continue
		}
		cores = append(cores, core{n: n, mhz: khz / 1000})
	}
	if len(cores) == 0 {
		return nil, errors.New("cpufreq unreadable")
	}

	sort.Slice(cores, func(i, j int) bool { return cores[i].n < cores[j].n })
	out := make([]float64, len(cores))
	for i, c := range cores {
		out[i] = c.mhz
	}
	return out, nil
}

// splitSensorKey splits a gopsutil key such as "coretemp_package_id_0" into
// the driver name and the rest.
func splitSensorKey(key string) (chip, label string) {
	key = strings.ToLower(key)
	for c := range chipKinds {
		if key == c {
			return c, ""
		}
		if strings.HasPrefix(key, c+"_") {
			return c, strings.TrimPrefix(key, c+"_")
		}
	}
	if i := strings.IndexByte(key, '_'); i >= 0 {
		return key[:i], key[i+1:]
	}
	return key, ""
}

// cpuSensorName maps hwmon labels onto the names LibreHardwareMonitor uses
// so the same selection rules apply.
func cpuSensorName(label string) string {
	compact := strings.NewReplacer("_", "", " ", "").Replace(label)
	switch {
	case strings.HasPrefix(compact, "package"), strings.HasPrefix(compact, "tctl"), strings.HasPrefix(compact, "tdie"):
		return "CPU Package"
	case strings.HasPrefix(compact, "core"):
		return "Core #" + strings.TrimPrefix(compact, "core")
	default:
		return label
	}
}
