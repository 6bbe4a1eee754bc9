package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/hwmonitor/bridge/internal/domain"
)

type staticFPS int

func (s staticFPS) ReadFPS() int { return int(s) }

type staticSensors domain.SensorSnapshot

func (s staticSensors) ReadSensors(context.Context) domain.SensorSnapshot {
	return domain.SensorSnapshot(s)
}

type staticUsage domain.HostUsage

func (s staticUsage) Collect(context.Context) domain.HostUsage { return domain.HostUsage(s) }

func TestBuild(t *testing.T) {
	b := NewBuilder(
		staticFPS(144),
		staticSensors{GPULoad: 97, GPUTemp: 64, CPUTemp: 71, CPUClock: 4725, GPUClock: 1905},
		staticUsage{CPUPercent: 38, RAMPercent: 57},
	)
	at := time.Date(2026, time.March, 7, 21, 5, 30, 0, time.Local)
	b.now = func() time.Time { return at }

	got := b.Build(context.Background())
	want := domain.Frame{
		CPU: 38, GPU: 97, RAM: 57, CPUTemp: 71, GPUTemp: 64, FPS: 144,
		CPUClock: 4725, GPUClock: 1905, Time: "21:05", Date: "07 Mar", CapturedAt: at,
	}
	if got != want {
		t.Errorf("Build = %+v, want %+v", got, want)
	}
}

func TestBuildClampsNegative(t *testing.T) {
	b := NewBuilder(staticFPS(-1), staticSensors{CPUTemp: -5}, staticUsage{})
	got := b.Build(context.Background())
	if got.FPS != 0 || got.CPUTemp != 0 {
		t.Errorf("negative values leaked: %+v", got)
	}
}

func TestEncode(t *testing.T) {
	frame := domain.Frame{
		CPU: 12, GPU: 0, RAM: 48, CPUTemp: 55, GPUTemp: 0, FPS: 60,
		CPUClock: 4200, GPUClock: 0, Time: "09:41", Date: "19 Oct",
		CapturedAt: time.Now(),
	}
	rec, err := Encode(frame)
	if err != nil {
		t.Fatal(err)
	}

	if !utf8.Valid(rec) {
		t.Fatal("record is not valid UTF-8")
	}
	if rec[len(rec)-1] != RecordDelimiter {
		t.Fatalf("record does not end with delimiter: %q", rec)
	}
	if bytes.Count(rec, []byte{RecordDelimiter}) != 1 {
		t.Fatalf("record contains embedded delimiters: %q", rec)
	}

	var obj map[string]any
	if err := json.Unmarshal(rec, &obj); err != nil {
		t.Fatalf("record does not parse: %v", err)
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	wantKeys := []string{"cpu", "cpu_clk", "cpu_temp", "date", "fps", "gpu", "gpu_clk", "gpu_temp", "ram", "time"}
	if len(keys) != len(wantKeys) {
		t.Fatalf("keys = %v, want %v", keys, wantKeys)
	}
	for i := range keys {
		if keys[i] != wantKeys[i] {
			t.Fatalf("keys = %v, want %v", keys, wantKeys)
		}
	}

	if obj["fps"] != float64(60) || obj["time"] != "09:41" || obj["date"] != "19 Oct" {
		t.Errorf("unexpected values: %v", obj)
	}

	wantPrefix := `{"cpu":12,"gpu":0,"ram":48,"cpu_temp":55,"gpu_temp":0,"fps":60,`
	if !bytes.HasPrefix(rec, []byte(wantPrefix)) {
		t.Errorf("record = %s, want field order starting %s", rec, wantPrefix)
	}
}
