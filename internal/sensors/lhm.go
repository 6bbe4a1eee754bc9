package sensors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// DefaultLHMURL is where LibreHardwareMonitor's remote web server listens
// when enabled with its default port.
const DefaultLHMURL = "http://localhost:8085/data.json"

// LHMProvider reads LibreHardwareMonitor's sensor tree from its built-in
// web server. One request refreshes every device.
type LHMProvider struct {
	url  string
	http *http.Client
}

// NewLHMProvider creates a provider for the data.json endpoint at url.
// Retries are kept short so a missing server never stalls a sampling tick.
func NewLHMProvider(url string) *LHMProvider {
	if url == "" {
		url = DefaultLHMURL
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 1
	retryClient.RetryWaitMin = 50 * time.Millisecond
	retryClient.RetryWaitMax = 200 * time.Millisecond
	retryClient.HTTPClient.Timeout = 400 * time.Millisecond
	retryClient.Logger = nil

	return &LHMProvider{
		url:  url,
		http: retryClient.StandardClient(),
	}
}

func (p *LHMProvider) Name() string { return "lhm" }

// lhmNode is one node of the data.json tree. Hardware nodes carry a
// HardwareId, sensor nodes a SensorId and Type; older releases only set
// ImageURL, so kinds fall back to icons and group labels.
type lhmNode struct {
	Text       string    `json:"Text"`
	Value      string    `json:"Value"`
	ImageURL   string    `json:"ImageURL"`
	HardwareID string    `json:"HardwareId"`
	SensorID   string    `json:"SensorId"`
	Type       string    `json:"Type"`
	Children   []lhmNode `json:"Children"`
}

func (p *LHMProvider) Hardware(ctx context.Context) ([]Hardware, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET %s: %w", p.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("GET %s returned %d", p.url, resp.StatusCode)
	}

	var root lhmNode
	if err := json.NewDecoder(resp.Body).Decode(&root); err != nil {
		return nil, fmt.Errorf("decode sensor tree: %w", err)
	}

	var devices []*staticHardware
	walkLHM(root, nil, SensorOther, &devices)

	out := make([]Hardware, 0, len(devices))
	for _, d := range devices {
		out = append(out, d)
	}
	return out, nil
}

func (p *LHMProvider) Close() error {
	p.http.CloseIdleConnections()
	return nil
}

func walkLHM(n lhmNode, current *staticHardware, group SensorKind, out *[]*staticHardware) {
	switch {
	case isLHMHardware(n):
		hw := &staticHardware{kind: lhmHardwareKind(n), name: n.Text}
		*out = append(*out, hw)
		current = hw
	case isLHMSensor(n) && current != nil:
		kind := lhmSensorKind(n.Type)
		if kind == SensorOther {
			kind = group
		}
		current.readings = append(current.readings, Reading{
			Kind:  kind,
			Name:  n.Text,
			Value: parseLHMValue(n.Value),
		})
		return
	case current != nil:
		group = lhmGroupKind(n.Text)
	}

	for _, c := range n.Children {
		walkLHM(c, current, group, out)
	}
}

var lhmHardwareIcons = map[string]HardwareKind{
	"cpu.png":    HardwareCPU,
	"nvidia.png": HardwareGPUNvidia,
	"ati.png":    HardwareGPUAmd,
	"amd.png":    HardwareGPUAmd,
	"intel.png":  HardwareGPUIntel,
}

func isLHMHardware(n lhmNode) bool {
	if n.HardwareID != "" {
		return true
	}
	if n.SensorID != "" {
		return false
	}
	icon := n.ImageURL[strings.LastIndex(n.ImageURL, "/")+1:]
	_, ok := lhmHardwareIcons[icon]
	return ok
}

func isLHMSensor(n lhmNode) bool {
	return n.SensorID != "" || (len(n.Children) == 0 && n.Value != "")
}

func lhmHardwareKind(n lhmNode) HardwareKind {
	id := strings.ToLower(n.HardwareID)
	switch {
	case strings.HasPrefix(id, "/intelcpu"), strings.HasPrefix(id, "/amdcpu"), strings.HasPrefix(id, "/cpu"):
		return HardwareCPU
	case strings.HasPrefix(id, "/gpu-nvidia"), strings.HasPrefix(id, "/nvidiagpu"):
		return HardwareGPUNvidia
	case strings.HasPrefix(id, "/gpu-amd"), strings.HasPrefix(id, "/atigpu"), strings.HasPrefix(id, "/amdgpu"):
		return HardwareGPUAmd
	case strings.HasPrefix(id, "/gpu-intel"), strings.HasPrefix(id, "/intelgpu"):
		return HardwareGPUIntel
	case id != "":
		return HardwareOther
	}
	icon := n.ImageURL[strings.LastIndex(n.ImageURL, "/")+1:]
	return lhmHardwareIcons[icon]
}

func lhmSensorKind(t string) SensorKind {
	switch t {
	case "Temperature":
		return SensorTemperature
	case "Load":
		return SensorLoad
	case "Clock":
		return SensorClock
	default:
		return SensorOther
	}
}

func lhmGroupKind(text string) SensorKind {
	switch text {
	case "Temperatures":
		return SensorTemperature
	case "Load":
		return SensorLoad
	case "Clocks":
		return SensorClock
	default:
		return SensorOther
	}
}

// parseLHMValue reads the number out of a formatted value such as
// "45.0 °C" or "4450,2 MHz". "-" and anything unparsable mean no reading.
func parseLHMValue(s string) *float64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	num := fields[0]
	if !strings.Contains(num, ".") {
		num = strings.Replace(num, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return nil
	}
	return &v
}
