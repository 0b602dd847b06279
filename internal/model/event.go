package model

import "time"

// EventType identifies a progress event published during a pipeline run.
type EventType string

const (
	EventTaskStarted   EventType = "task_started"
	EventTaskCompleted EventType = "task_completed"
	EventTaskFailed    EventType = "task_failed"
	EventPhaseAdvanced EventType = "phase_advanced"
	EventRunCompleted  EventType = "run_completed"
	EventRunFailed     EventType = "run_failed"
)

// ProgressEvent is pushed to the progress emitter as the pipeline moves.
type ProgressEvent struct {
	Type      EventType      `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewProgressEvent stamps an event with the current UTC time.
func NewProgressEvent(t EventType, data map[string]any) ProgressEvent {
	return ProgressEvent{Type: t, Data: data, Timestamp: time.Now().UTC()}
}
