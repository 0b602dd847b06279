package resilience

import (
	"sync"
	"time"
)

// FailedTask records an analysis task that failed during an extraction run.
// Failures never abort a run, so the pipeline parks them here for the run
// summary and for manual re-runs.
type FailedTask struct {
	RunID     string    `json:"run_id"`
	TaskName  string    `json:"task_name"`
	Phase     string    `json:"phase"`
	Error     string    `json:"error"`
	ErrorType string    `json:"error_type"` // "transient", "permanent", or "timeout"
	TimedOut  bool      `json:"timed_out"`
	FailedAt  time.Time `json:"failed_at"`
}

// DeadLetterQueue collects failed tasks across a run. Safe for concurrent use.
type DeadLetterQueue struct {
	mu      sync.Mutex
	entries []FailedTask
}

// NewDeadLetterQueue creates an empty queue.
func NewDeadLetterQueue() *DeadLetterQueue {
	return &DeadLetterQueue{}
}

// Add records a failure.
func (q *DeadLetterQueue) Add(entry FailedTask) {
	if entry.FailedAt.IsZero() {
		entry.FailedAt = time.Now().UTC()
	}
	if entry.ErrorType == "" {
		entry.ErrorType = "permanent"
	}
	q.mu.Lock()
	q.entries = append(q.entries, entry)
	q.mu.Unlock()
}

// Entries returns a copy of all recorded failures in arrival order.
func (q *DeadLetterQueue) Entries() []FailedTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]FailedTask, len(q.entries))
	copy(out, q.entries)
	return out
}

// Len returns the number of recorded failures.
func (q *DeadLetterQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// ClassifyError buckets an error for the run summary.
func ClassifyError(err error, timedOut bool) string {
	switch {
	case timedOut:
		return "timeout"
	case IsTransient(err):
		return "transient"
	default:
		return "permanent"
	}
}
