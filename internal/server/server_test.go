package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/hwmonitor/bridge/internal/domain"
	"github.com/hwmonitor/bridge/internal/link"
)

type stubSource struct {
	status link.Status
	frame  *domain.Frame
}

func (s stubSource) Snapshot() link.Status { return s.status }

func (s stubSource) LastFrame() (domain.Frame, bool) {
	if s.frame == nil {
		return domain.Frame{}, false
	}
	return *s.frame, true
}

func newTestServer(src StatusSource) *Server {
	return New("127.0.0.1:0", src, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type envelope struct {
	Ok    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func get(t *testing.T, h http.Handler, path string) (int, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("GET %s: decode %q: %v", path, rec.Body.String(), err)
	}
	return rec.Code, env
}

func TestPing(t *testing.T) {
	s := newTestServer(stubSource{})
	code, env := get(t, s.Handler(), "/ping")
	if code != http.StatusOK || !env.Ok {
		t.Fatalf("code = %d, env = %+v", code, env)
	}
}

func TestStatus(t *testing.T) {
	src := stubSource{status: link.Status{
		State:      domain.LinkConnected,
		Port:       "COM7",
		Session:    "abc",
		Connects:   2,
		Reconnects: 1,
		FramesSent: 40,
	}}
	s := newTestServer(src)

	code, env := get(t, s.Handler(), "/status")
	if code != http.StatusOK || !env.Ok {
		t.Fatalf("code = %d, env = %+v", code, env)
	}
	var st link.Status
	if err := json.Unmarshal(env.Data, &st); err != nil {
		t.Fatal(err)
	}
	if st.State != domain.LinkConnected || st.Port != "COM7" || st.Reconnects != 1 || st.FramesSent != 40 {
		t.Errorf("status = %+v", st)
	}
}

func TestFrameBeforeFirstSample(t *testing.T) {
	s := newTestServer(stubSource{})
	code, env := get(t, s.Handler(), "/frame")
	if code != http.StatusNotFound || env.Ok || env.Error == "" {
		t.Fatalf("code = %d, env = %+v", code, env)
	}
}

func TestFrameUsesWireKeys(t *testing.T) {
	f := domain.Frame{CPU: 12, GPU: 34, RAM: 56, CPUTemp: 60, GPUTemp: 70, FPS: 144, CPUClock: 4200, GPUClock: 1800, Time: "21:05", Date: "03 Mar"}
	s := newTestServer(stubSource{frame: &f})

	code, env := get(t, s.Handler(), "/frame")
	if code != http.StatusOK || !env.Ok {
		t.Fatalf("code = %d, env = %+v", code, env)
	}
	var obj map[string]any
	if err := json.Unmarshal(env.Data, &obj); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"cpu", "gpu", "ram", "cpu_temp", "gpu_temp", "fps", "cpu_clk", "gpu_clk", "time", "date"} {
		if _, ok := obj[key]; !ok {
			t.Errorf("frame missing key %q", key)
		}
	}
	if obj["fps"] != float64(144) || obj["date"] != "03 Mar" {
		t.Errorf("frame = %v", obj)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RecoveryMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil))))
	router.GET("/boom", func(*gin.Context) { panic("boom") })

	code, env := get(t, router, "/boom")
	if code != http.StatusInternalServerError || env.Ok || env.Error != "internal server error" {
		t.Fatalf("code = %d, env = %+v", code, env)
	}
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(stubSource{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/instances", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("code = %d, want 404", rec.Code)
	}
}

func TestLoggingMiddlewareTagsLinkAndSkipsPing(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	src := stubSource{status: link.Status{State: domain.LinkConnected, Session: "6f1c2a"}}
	s := New("127.0.0.1:0", src, logger)

	get(t, s.Handler(), "/ping")
	if buf.Len() != 0 {
		t.Fatalf("ping was logged: %s", buf.String())
	}

	get(t, s.Handler(), "/status")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %s", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["path"] != "/status" || rec["link"] != "connected" || rec["session"] != "6f1c2a" || rec["status"] != float64(200) {
		t.Errorf("log record = %v", rec)
	}
}
