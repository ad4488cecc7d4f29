package main

import (
	"testing"

	"cpu-loadgen/internal/publisher"
)

func TestParseThreadLoads(t *testing.T) {
	loads, err := parseThreadLoads("0=80, 1=20,3=100")
	if err != nil {
		t.Fatalf("parseThreadLoads failed: %v", err)
	}

	expected := map[int]float64{0: 80, 1: 20, 3: 100}
	if len(loads) != len(expected) {
		t.Fatalf("expected %d entries, got %d", len(expected), len(loads))
	}
	for id, pct := range expected {
		if loads[id] != pct {
			t.Errorf("worker %d: expected %f, got %f", id, pct, loads[id])
		}
	}
}

func TestParseThreadLoadsInvalid(t *testing.T) {
	tests := []string{
		"0",
		"a=50",
		"0=high",
		"0:50",
	}

	for _, input := range tests {
		if _, err := parseThreadLoads(input); err == nil {
			t.Errorf("expected error for input %q", input)
		}
	}
}

func TestAwaitPublisherLateStart(t *testing.T) {
	pubCh := make(chan *publisher.Publisher, 1)
	done := make(chan struct{})

	pub := publisher.New(nil, nil, publisher.DefaultConfig())

	// 起動側がシナリオ終了後に完了するケース
	go func() {
		pubCh <- pub
		close(done)
	}()

	got := awaitPublisher(done, pubCh)
	if got != pub {
		t.Error("expected the late-started publisher to be returned")
	}
}

func TestAwaitPublisherNotStarted(t *testing.T) {
	done := make(chan struct{})
	close(done)

	if got := awaitPublisher(done, make(chan *publisher.Publisher, 1)); got != nil {
		t.Errorf("expected nil when no publisher was started, got %v", got)
	}
}
