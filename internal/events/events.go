// Package events provides an event system for load generator notifications.
package events

import "time"

// EventType represents the type of event
type EventType string

const (
	// EventPoolInit is emitted when a worker pool generation starts
	EventPoolInit EventType = "pool_init"
	// EventPoolShutdown is emitted when the worker pool is torn down
	EventPoolShutdown EventType = "pool_shutdown"
	// EventLoadChange is emitted when a worker's target load changes
	EventLoadChange EventType = "load_change"
	// EventComputeChange is emitted when the computation type changes
	EventComputeChange EventType = "compute_change"
	// EventScenarioStart is emitted when a scenario begins
	EventScenarioStart EventType = "scenario_start"
	// EventScenarioComplete is emitted when a scenario finishes
	EventScenarioComplete EventType = "scenario_complete"
)

// Event represents a load generator notification
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data,omitempty"`
}

// EventData contains event-specific data
type EventData struct {
	WorkerID    int     `json:"worker_id,omitempty"`
	ThreadCount int     `json:"thread_count,omitempty"`
	LoadPercent float64 `json:"load_percent,omitempty"`
	ComputeType string  `json:"compute_type,omitempty"`
	Scenario    string  `json:"scenario,omitempty"`
	AllWorkers  bool    `json:"all_workers,omitempty"`
}

// NewPoolInitEvent creates a pool initialization event
func NewPoolInitEvent(threadCount int, computeType string) Event {
	return Event{
		Type:      EventPoolInit,
		Timestamp: time.Now(),
		Data: EventData{
			ThreadCount: threadCount,
			ComputeType: computeType,
		},
	}
}

// NewPoolShutdownEvent creates a pool shutdown event
func NewPoolShutdownEvent(threadCount int) Event {
	return Event{
		Type:      EventPoolShutdown,
		Timestamp: time.Now(),
		Data: EventData{
			ThreadCount: threadCount,
		},
	}
}

// NewLoadChangeEvent creates a load change event for a single worker
func NewLoadChangeEvent(workerID int, loadPercent float64) Event {
	return Event{
		Type:      EventLoadChange,
		Timestamp: time.Now(),
		Data: EventData{
			WorkerID:    workerID,
			LoadPercent: loadPercent,
		},
	}
}

// NewAllLoadsChangeEvent creates a load change event covering every worker
func NewAllLoadsChangeEvent(loadPercent float64) Event {
	return Event{
		Type:      EventLoadChange,
		Timestamp: time.Now(),
		Data: EventData{
			LoadPercent: loadPercent,
			AllWorkers:  true,
		},
	}
}

// NewComputeChangeEvent creates a computation type change event covering
// every worker
func NewComputeChangeEvent(computeType string) Event {
	return Event{
		Type:      EventComputeChange,
		Timestamp: time.Now(),
		Data: EventData{
			ComputeType: computeType,
			AllWorkers:  true,
		},
	}
}

// NewWorkerComputeChangeEvent creates a computation type change event for a
// single worker
func NewWorkerComputeChangeEvent(workerID int, computeType string) Event {
	return Event{
		Type:      EventComputeChange,
		Timestamp: time.Now(),
		Data: EventData{
			WorkerID:    workerID,
			ComputeType: computeType,
		},
	}
}

// NewScenarioStartEvent creates a scenario start event
func NewScenarioStartEvent(name string) Event {
	return Event{
		Type:      EventScenarioStart,
		Timestamp: time.Now(),
		Data: EventData{
			Scenario: name,
		},
	}
}

// NewScenarioCompleteEvent creates a scenario completion event
func NewScenarioCompleteEvent(name string) Event {
	return Event{
		Type:      EventScenarioComplete,
		Timestamp: time.Now(),
		Data: EventData{
			Scenario: name,
		},
	}
}
