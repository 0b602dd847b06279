package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tacit-cli/internal/model"
	"github.com/sells-group/tacit-cli/internal/task"
)

// stubTask is a deterministic task for pool tests.
type stubTask struct {
	name       string
	delay      time.Duration
	candidates []model.Candidate
	err        error
	ignoreCtx  bool
}

func (s stubTask) Name() string { return s.name }

func (s stubTask) Invoke(ctx context.Context, tools task.ToolAccess) ([]model.Candidate, error) {
	if s.delay > 0 {
		if s.ignoreCtx {
			time.Sleep(s.delay)
		} else {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return s.candidates, s.err
}

func TestPoolRunsAllTasks(t *testing.T) {
	tasks := []task.AnalysisTask{
		stubTask{name: "a", candidates: []model.Candidate{{Text: "rule a"}}},
		stubTask{name: "b", candidates: []model.Candidate{{Text: "rule b1"}, {Text: "rule b2"}}},
	}
	p := New(2, time.Second, task.ToolAccess{}, nil)

	outcomes := p.Run(context.Background(), tasks)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "a", outcomes[0].TaskName)
	assert.Len(t, outcomes[1].Candidates, 2)
	assert.False(t, outcomes[0].Failed())
}

func TestPoolBoundedConcurrency(t *testing.T) {
	var inFlight, maxInFlight atomic.Int64
	var tasks []task.AnalysisTask
	for i := 0; i < 10; i++ {
		tasks = append(tasks, task.Func{
			TaskName: fmt.Sprintf("task_%d", i),
			Fn: func(ctx context.Context, tools task.ToolAccess) ([]model.Candidate, error) {
				cur := inFlight.Add(1)
				for {
					prev := maxInFlight.Load()
					if cur <= prev || maxInFlight.CompareAndSwap(prev, cur) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				inFlight.Add(-1)
				return nil, nil
			},
		})
	}

	p := New(3, time.Second, task.ToolAccess{}, nil)
	outcomes := p.Run(context.Background(), tasks)

	require.Len(t, outcomes, 10)
	assert.LessOrEqual(t, maxInFlight.Load(), int64(3))
	assert.Positive(t, maxInFlight.Load())
}

func TestPoolAbsorbsFailures(t *testing.T) {
	tasks := []task.AnalysisTask{
		stubTask{name: "ok", candidates: []model.Candidate{{Text: "good"}}},
		stubTask{name: "bad", err: eris.New("model refused")},
	}
	p := New(2, time.Second, task.ToolAccess{}, nil)

	outcomes := p.Run(context.Background(), tasks)
	assert.False(t, outcomes[0].Failed())
	assert.True(t, outcomes[1].Failed())
	assert.False(t, outcomes[1].TimedOut)
}

func TestPoolTimeoutIsDistinguished(t *testing.T) {
	tasks := []task.AnalysisTask{
		stubTask{name: "slow", delay: 200 * time.Millisecond},
	}
	p := New(1, 20*time.Millisecond, task.ToolAccess{}, nil)

	outcomes := p.Run(context.Background(), tasks)
	require.True(t, outcomes[0].Failed())
	assert.True(t, outcomes[0].TimedOut)
}

func TestPoolTimeoutNonCooperativeTask(t *testing.T) {
	tasks := []task.AnalysisTask{
		stubTask{name: "stuck", delay: 300 * time.Millisecond, ignoreCtx: true},
	}
	p := New(1, 20*time.Millisecond, task.ToolAccess{}, nil)

	start := time.Now()
	outcomes := p.Run(context.Background(), tasks)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.True(t, outcomes[0].TimedOut)
}

func TestPoolEmitsProgressEvents(t *testing.T) {
	var mu sync.Mutex
	var events []model.ProgressEvent
	emit := func(e model.ProgressEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}

	tasks := []task.AnalysisTask{
		stubTask{name: "ok", candidates: []model.Candidate{{Text: "one"}, {Text: "two"}}},
		stubTask{name: "bad", err: eris.New("boom")},
	}
	p := New(1, time.Second, task.ToolAccess{}, emit)
	p.Run(context.Background(), tasks)

	var started, completed, failed int
	for _, e := range events {
		switch e.Type {
		case model.EventTaskStarted:
			started++
		case model.EventTaskCompleted:
			completed++
			assert.Equal(t, 2, e.Data["candidate_count"])
		case model.EventTaskFailed:
			failed++
		}
	}
	assert.Equal(t, 2, started)
	assert.Equal(t, 1, completed)
	assert.Equal(t, 1, failed)
}

func TestPoolOnSettleEager(t *testing.T) {
	var settled []string
	p := New(1, time.Second, task.ToolAccess{}, nil)
	p.OnSettle(func(o Outcome) {
		settled = append(settled, o.TaskName)
	})

	p.Run(context.Background(), []task.AnalysisTask{
		stubTask{name: "first"},
		stubTask{name: "second"},
	})
	assert.Equal(t, []string{"first", "second"}, settled)
}

func TestPoolCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var tasks []task.AnalysisTask
	for i := 0; i < 5; i++ {
		tasks = append(tasks, stubTask{name: fmt.Sprintf("slow_%d", i), delay: time.Second})
	}

	p := New(1, 10*time.Second, task.ToolAccess{}, nil)
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	outcomes := p.Run(ctx, tasks)
	assert.Less(t, time.Since(start), 2*time.Second)

	var failed int
	for _, o := range outcomes {
		if o.Failed() {
			failed++
		}
	}
	assert.Equal(t, 5, failed)
}
