// Package pool runs analysis tasks under a concurrency ceiling with
// per-task timeouts. Task failures are absorbed into outcomes, never
// propagated as pool errors.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/tacit-cli/internal/model"
	"github.com/sells-group/tacit-cli/internal/task"
)

// Outcome is the settled result of one task invocation.
type Outcome struct {
	TaskName   string
	Candidates []model.Candidate
	Err        error
	TimedOut   bool
	Duration   time.Duration
}

// Failed reports whether the task errored or timed out.
func (o Outcome) Failed() bool { return o.Err != nil }

// EmitFunc receives progress events as tasks settle.
type EmitFunc func(model.ProgressEvent)

// Pool admits tasks in submission order up to a fixed ceiling.
type Pool struct {
	ceiling int64
	timeout time.Duration
	tools   task.ToolAccess
	emit    EmitFunc

	// onSettle, when set, receives each outcome as soon as it settles,
	// before Run returns. The synthesis reconciler hooks in here so rule
	// writes land eagerly rather than at phase end.
	onSettle func(Outcome)
}

// New creates a pool. A nil emit is replaced with a no-op.
func New(ceiling int, timeout time.Duration, tools task.ToolAccess, emit EmitFunc) *Pool {
	if ceiling <= 0 {
		ceiling = 1
	}
	if emit == nil {
		emit = func(model.ProgressEvent) {}
	}
	return &Pool{
		ceiling: int64(ceiling),
		timeout: timeout,
		tools:   tools,
		emit:    emit,
	}
}

// OnSettle registers a callback invoked serially for each settled outcome.
func (p *Pool) OnSettle(fn func(Outcome)) {
	p.onSettle = fn
}

// Run executes all tasks and blocks until every one has settled or the
// context is cancelled. Outcomes are returned in submission order;
// tasks never admitted carry the context error.
func (p *Pool) Run(ctx context.Context, tasks []task.AnalysisTask) []Outcome {
	outcomes := make([]Outcome, len(tasks))
	sem := semaphore.NewWeighted(p.ceiling)

	var wg sync.WaitGroup
	var settleMu sync.Mutex

	for i, t := range tasks {
		// FIFO admission: acquire in submission order before spawning.
		if err := sem.Acquire(ctx, 1); err != nil {
			outcomes[i] = Outcome{TaskName: t.Name(), Err: eris.Wrap(err, "pool: admission")}
			continue
		}

		wg.Add(1)
		go func(idx int, t task.AnalysisTask) {
			defer wg.Done()
			defer sem.Release(1)

			outcome := p.runOne(ctx, t)
			outcomes[idx] = outcome

			settleMu.Lock()
			p.emitSettled(outcome)
			if p.onSettle != nil {
				p.onSettle(outcome)
			}
			settleMu.Unlock()
		}(i, t)
	}

	wg.Wait()
	return outcomes
}

// runOne invokes a task with the pool's timeout. The invocation runs in its
// own goroutine so a task that ignores its context still settles on time.
func (p *Pool) runOne(ctx context.Context, t task.AnalysisTask) Outcome {
	name := t.Name()
	p.emit(model.NewProgressEvent(model.EventTaskStarted, map[string]any{
		"task_id": name,
	}))

	taskCtx := ctx
	var cancel context.CancelFunc
	if p.timeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	type result struct {
		candidates []model.Candidate
		err        error
	}
	done := make(chan result, 1)
	go func() {
		candidates, err := t.Invoke(taskCtx, p.tools)
		done <- result{candidates, err}
	}()

	select {
	case res := <-done:
		outcome := Outcome{
			TaskName:   name,
			Candidates: res.candidates,
			Err:        res.err,
			Duration:   time.Since(start),
		}
		if res.err != nil && taskCtx.Err() == context.DeadlineExceeded {
			outcome.TimedOut = true
		}
		return outcome
	case <-taskCtx.Done():
		return Outcome{
			TaskName: name,
			Err:      eris.Wrapf(taskCtx.Err(), "pool: task %s", name),
			TimedOut: taskCtx.Err() == context.DeadlineExceeded,
			Duration: time.Since(start),
		}
	}
}

func (p *Pool) emitSettled(o Outcome) {
	if o.Failed() {
		p.emit(model.NewProgressEvent(model.EventTaskFailed, map[string]any{
			"task_id":   o.TaskName,
			"error":     o.Err.Error(),
			"timed_out": o.TimedOut,
		}))
		zap.L().Warn("task failed",
			zap.String("task", o.TaskName),
			zap.Bool("timed_out", o.TimedOut),
			zap.Duration("duration", o.Duration),
			zap.Error(o.Err),
		)
		return
	}
	p.emit(model.NewProgressEvent(model.EventTaskCompleted, map[string]any{
		"task_id":         o.TaskName,
		"outcome":         "success",
		"candidate_count": len(o.Candidates),
	}))
}
