package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCollectorReset(t *testing.T) {
	c := New()

	c.Reset(4)
	if c.WorkerCount() != 4 {
		t.Errorf("expected 4 workers, got %d", c.WorkerCount())
	}

	c.Reset(2)
	if c.WorkerCount() != 2 {
		t.Errorf("expected 2 workers after reset, got %d", c.WorkerCount())
	}
	if c.TotalCycles() != 0 {
		t.Errorf("expected 0 cycles after reset, got %d", c.TotalCycles())
	}
}

func TestRecordCycle(t *testing.T) {
	c := New()
	c.Reset(2)

	c.RecordCycle(0, 5*time.Millisecond)
	c.RecordCycle(0, 5*time.Millisecond)
	c.RecordCycle(1, time.Millisecond)

	if got := c.TotalCycles(); got != 3 {
		t.Errorf("expected 3 cycles, got %d", got)
	}
}

func TestRecordCycleOutOfRange(t *testing.T) {
	c := New()
	c.Reset(1)

	// Out-of-range ids must be ignored, not panic
	c.RecordCycle(-1, time.Millisecond)
	c.RecordCycle(5, time.Millisecond)

	if got := c.TotalCycles(); got != 0 {
		t.Errorf("expected 0 cycles, got %d", got)
	}
}

func TestAchievedWindow(t *testing.T) {
	c := New()
	c.Reset(2)

	start := time.Now()
	time.Sleep(20 * time.Millisecond)

	// Worker 0 was busy for roughly half the window; worker 1 idle
	elapsed := time.Since(start)
	c.RecordCycle(0, elapsed/2)

	achieved := c.Achieved()

	if len(achieved) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(achieved))
	}
	if achieved[0] < 25 || achieved[0] > 75 {
		t.Errorf("worker 0: expected roughly 50%%, got %.1f%%", achieved[0])
	}
	if achieved[1] != 0 {
		t.Errorf("worker 1: expected 0%%, got %.1f%%", achieved[1])
	}

	// The window advanced: with no new busy time the next reading is ~0
	time.Sleep(10 * time.Millisecond)
	achieved = c.Achieved()
	if achieved[0] > 5 {
		t.Errorf("worker 0: expected ~0%% in new window, got %.1f%%", achieved[0])
	}
}

func TestAchievedClamped(t *testing.T) {
	c := New()
	c.Reset(1)

	// Report more busy time than wall time; the result must clamp to 100
	c.RecordCycle(0, time.Hour)
	achieved := c.Achieved()

	if achieved[0] > 100 {
		t.Errorf("expected achieved <= 100, got %.1f", achieved[0])
	}
}

func TestTakeSnapshot(t *testing.T) {
	c := New()
	c.Reset(3)
	c.RecordCycle(0, time.Millisecond)

	snap := c.TakeSnapshot()

	if snap.ThreadCount != 3 {
		t.Errorf("expected thread count 3, got %d", snap.ThreadCount)
	}
	if snap.TotalCycles != 1 {
		t.Errorf("expected 1 cycle, got %d", snap.TotalCycles)
	}
	if len(snap.Achieved) != 3 {
		t.Errorf("expected 3 achieved entries, got %d", len(snap.Achieved))
	}
	if snap.Uptime <= 0 {
		t.Error("expected positive uptime")
	}
}

func TestPrometheusHandler(t *testing.T) {
	c := New()
	c.Reset(2)
	c.SetTarget(0, 75.0)
	c.RecordCycle(0, time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "cpu_loadgen_target_load_percent") {
		t.Error("expected target load gauge in metrics output")
	}
	if !strings.Contains(body, "cpu_loadgen_cycles_total") {
		t.Error("expected cycle counter in metrics output")
	}
}

func TestDefaultThreadCount(t *testing.T) {
	if n := DefaultThreadCount(); n < 1 {
		t.Errorf("expected at least 1 CPU, got %d", n)
	}
}
