package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cpu-loadgen/internal/events"
	"cpu-loadgen/internal/loader"
	"cpu-loadgen/internal/metrics"
)

func newTestServer(t *testing.T, threads int) (*Server, *loader.Pool) {
	t.Helper()

	pool := loader.New()
	collector := metrics.New()
	bus := events.NewBus()
	pool.SetCollector(collector)
	pool.SetEventBus(bus)

	if threads > 0 {
		if err := pool.Initialize(threads); err != nil {
			t.Fatalf("failed to initialize pool: %v", err)
		}
		t.Cleanup(pool.Shutdown)
	}
	t.Cleanup(bus.Close)

	return NewServer(":0", pool, collector, bus), pool
}

func TestHandleStatus(t *testing.T) {
	srv, _ := newTestServer(t, 2)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ThreadCount != 2 {
		t.Errorf("expected 2 threads, got %d", resp.ThreadCount)
	}
	if resp.ScenarioRunning {
		t.Error("expected no scenario running")
	}
}

func TestHandleStatusMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestHandleLoadsRoundTrip(t *testing.T) {
	srv, pool := newTestServer(t, 3)

	body := strings.NewReader(`{"worker": 1, "percent": 42}`)
	req := httptest.NewRequest(http.MethodPut, "/api/loads", body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	got, err := pool.GetThreadLoad(1)
	if err != nil {
		t.Fatalf("failed to read load: %v", err)
	}
	if got != 42 {
		t.Errorf("expected load 42, got %f", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/loads", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var loads map[int]float64
	if err := json.Unmarshal(rec.Body.Bytes(), &loads); err != nil {
		t.Fatalf("failed to decode loads: %v", err)
	}
	if loads[1] != 42 {
		t.Errorf("expected load 42 for worker 1, got %f", loads[1])
	}
}

func TestHandleLoadsAllWorkers(t *testing.T) {
	srv, pool := newTestServer(t, 2)

	body := strings.NewReader(`{"percent": 15}`)
	req := httptest.NewRequest(http.MethodPut, "/api/loads", body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	for id, pct := range pool.GetAllLoads() {
		if pct != 15 {
			t.Errorf("worker %d: expected 15, got %f", id, pct)
		}
	}
}

func TestHandleLoadsInvalidArgument(t *testing.T) {
	srv, _ := newTestServer(t, 2)

	tests := []struct {
		name string
		body string
	}{
		{"percent too high", `{"percent": 150}`},
		{"negative percent", `{"percent": -1}`},
		{"unknown worker", `{"worker": 99, "percent": 50}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/loads", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestHandleCompute(t *testing.T) {
	srv, pool := newTestServer(t, 2)

	body := strings.NewReader(`{"type": "primes"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/compute", body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if pool.ComputationType().String() != "primes" {
		t.Errorf("expected compute type primes, got %s", pool.ComputationType())
	}
}

func TestHandleWorkersReportsPerWorkerCompute(t *testing.T) {
	srv, _ := newTestServer(t, 3)

	body := strings.NewReader(`{"worker": 1, "type": "primes"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/compute", body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/workers", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var workers []WorkerInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &workers); err != nil {
		t.Fatalf("failed to decode workers: %v", err)
	}
	if len(workers) != 3 {
		t.Fatalf("expected 3 workers, got %d", len(workers))
	}

	for _, w := range workers {
		want := "busy-wait"
		if w.ID == 1 {
			want = "primes"
		}
		if w.Compute != want {
			t.Errorf("worker %d: expected compute %q, got %q", w.ID, want, w.Compute)
		}
	}
}

func TestHandleComputeUnknownType(t *testing.T) {
	srv, _ := newTestServer(t, 2)

	body := strings.NewReader(`{"type": "quantum"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/compute", body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandlePresets(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/presets", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var presets []PresetInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &presets); err != nil {
		t.Fatalf("failed to decode presets: %v", err)
	}
	if len(presets) == 0 {
		t.Error("expected at least one preset")
	}
	for _, p := range presets {
		if p.Name == "" {
			t.Error("expected preset name to be set")
		}
	}
}

func TestHandleScenarioStopWithoutScenario(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/scenario/stop", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, 2)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "cpu_loadgen") {
		t.Error("expected cpu_loadgen metrics in output")
	}
}
