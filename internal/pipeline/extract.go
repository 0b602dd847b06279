// Package pipeline sequences the batch extraction: ordered phases, a
// bounded task pool inside each phase, and eager reconciliation of
// settled task output into the knowledge base.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tacit-cli/internal/model"
	"github.com/sells-group/tacit-cli/internal/pool"
	"github.com/sells-group/tacit-cli/internal/resilience"
	"github.com/sells-group/tacit-cli/internal/store"
	"github.com/sells-group/tacit-cli/internal/synthesis"
	"github.com/sells-group/tacit-cli/internal/task"
	"github.com/sells-group/tacit-cli/pkg/github"
)

// Phase is one stage of the extraction sequence. Tasks holds the static
// task set; dependent phases leave it nil and provide Build, which
// receives the settled outcomes of the previous phase.
type Phase struct {
	Name    string
	Ceiling int
	Tasks   []task.AnalysisTask
	Build   func(ctx context.Context, prior []pool.Outcome) ([]task.AnalysisTask, error)
}

// Options tunes the extractor. Zero values fall back to defaults.
type Options struct {
	SourceConcurrency int
	PRConcurrency     int
	TaskTimeout       time.Duration
	MaxPRs            int
}

func (o Options) withDefaults() Options {
	if o.SourceConcurrency <= 0 {
		o.SourceConcurrency = 3
	}
	if o.PRConcurrency <= 0 {
		o.PRConcurrency = 3
	}
	if o.TaskTimeout <= 0 {
		o.TaskTimeout = 120 * time.Second
	}
	if o.MaxPRs <= 0 {
		o.MaxPRs = 20
	}
	return o
}

// Extractor runs the batch pipeline: phases in strict order, bounded
// parallelism inside each phase, and reconciliation as each task settles.
// Task failures are absorbed into the dead-letter queue; only store
// failures fail the run.
type Extractor struct {
	store   store.Store
	engine  *synthesis.Engine
	tools   task.ToolAccess
	emitter Emitter
	opts    Options
	dlq     *resilience.DeadLetterQueue
}

// NewExtractor wires the batch pipeline together.
func NewExtractor(st store.Store, engine *synthesis.Engine, tools task.ToolAccess, emitter Emitter, opts Options) *Extractor {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &Extractor{
		store:   st,
		engine:  engine,
		tools:   tools,
		emitter: emitter,
		opts:    opts.withDefaults(),
		dlq:     &resilience.DeadLetterQueue{},
	}
}

// FailedTasks returns the failures absorbed during the last Run.
func (e *Extractor) FailedTasks() []resilience.FailedTask {
	return e.dlq.Entries()
}

// Run executes a full extraction for one repository and returns the final
// run record. Rules written by phases that settled before an error remain
// durable.
func (e *Extractor) Run(ctx context.Context, repo string) (*model.ExtractionRun, error) {
	log := zap.L().With(zap.String("repo", repo))

	run, err := e.store.CreateRun(ctx, repo)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log.Info("pipeline: extraction started", zap.String("run_id", run.ID))

	if err := e.runPhases(ctx, run.ID, repo); err != nil {
		// The failure write must land even when the run's own context
		// was canceled.
		detached := context.WithoutCancel(ctx)
		if statusErr := e.store.UpdateRunStatus(detached, run.ID, model.RunFailed, ""); statusErr != nil {
			log.Warn("pipeline: failed to mark run failed", zap.Error(statusErr))
		}
		e.emitter.Emit(model.NewProgressEvent(model.EventRunFailed, map[string]any{
			"run_id": run.ID,
			"error":  err.Error(),
		}))
		return e.reload(detached, run.ID), err
	}

	if err := e.store.UpdateRunStatus(ctx, run.ID, model.RunCompleted, ""); err != nil {
		return e.reload(ctx, run.ID), eris.Wrap(err, "pipeline: complete run")
	}

	final := e.reload(ctx, run.ID)
	e.emitter.Emit(model.NewProgressEvent(model.EventRunCompleted, map[string]any{
		"run_id":       run.ID,
		"tasks_total":  final.TasksTotal,
		"tasks_failed": final.TasksFailed,
		"rules_found":  final.RulesFound,
		"prs_analyzed": final.PRsAnalyzed,
	}))
	log.Info("pipeline: extraction completed",
		zap.String("run_id", run.ID),
		zap.Int("tasks_total", final.TasksTotal),
		zap.Int("tasks_failed", final.TasksFailed),
		zap.Int("rules_found", final.RulesFound),
	)
	return final, nil
}

func (e *Extractor) runPhases(ctx context.Context, runID, repo string) error {
	var prior []pool.Outcome

	for _, phase := range e.phases(repo) {
		if err := e.store.UpdateRunStatus(ctx, runID, model.RunRunning, phase.Name); err != nil {
			return eris.Wrapf(err, "pipeline: enter phase %s", phase.Name)
		}

		tasks := phase.Tasks
		if phase.Build != nil {
			var err error
			tasks, err = phase.Build(ctx, prior)
			if err != nil {
				return eris.Wrapf(err, "pipeline: build phase %s", phase.Name)
			}
		}
		if len(tasks) == 0 {
			prior = nil
			continue
		}

		progress := model.RunProgress{Stage: phase.Name, TasksTotal: len(tasks)}
		if phase.Name == phasePRDiscussions {
			progress.PRsAnalyzed = len(tasks)
		}
		if err := e.store.UpdateRunProgress(ctx, runID, progress); err != nil {
			return eris.Wrapf(err, "pipeline: record phase %s", phase.Name)
		}

		outcomes, err := e.runPhase(ctx, runID, phase, tasks)
		if err != nil {
			return err
		}

		failed := 0
		for _, o := range outcomes {
			if o.Failed() {
				failed++
			}
		}
		e.emitter.Emit(model.NewProgressEvent(model.EventPhaseAdvanced, map[string]any{
			"run_id": runID,
			"phase":  phase.Name,
			"tasks":  len(outcomes),
			"failed": failed,
		}))

		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "pipeline: canceled")
		}
		prior = outcomes
	}
	return nil
}

// runPhase runs one phase to settlement. Each settled task is reconciled
// immediately; the pool serializes OnSettle so the counters and the first
// store error need no extra locking.
func (e *Extractor) runPhase(ctx context.Context, runID string, phase Phase, tasks []task.AnalysisTask) ([]pool.Outcome, error) {
	var storeErr error

	p := pool.New(phase.Ceiling, e.opts.TaskTimeout, e.tools, e.emitter.Emit)
	p.OnSettle(func(o pool.Outcome) {
		if storeErr != nil {
			return
		}
		if o.Failed() {
			e.dlq.Add(resilience.FailedTask{
				RunID:     runID,
				TaskName:  o.TaskName,
				Phase:     phase.Name,
				Error:     o.Err.Error(),
				ErrorType: resilience.ClassifyError(o.Err, o.TimedOut),
				TimedOut:  o.TimedOut,
			})
			storeErr = e.store.UpdateRunProgress(ctx, runID, model.RunProgress{
				Stage:       phase.Name,
				TasksFailed: 1,
			})
			return
		}
		if len(o.Candidates) == 0 {
			return
		}

		result, err := e.engine.Reconcile(ctx, o.Candidates)
		if err != nil {
			storeErr = eris.Wrapf(err, "pipeline: reconcile %s", o.TaskName)
			return
		}
		found := len(result.NewRules) + len(result.MergedRules)
		if found > 0 {
			storeErr = e.store.UpdateRunProgress(ctx, runID, model.RunProgress{
				Stage:      phase.Name,
				RulesFound: found,
			})
		}
	})

	outcomes := p.Run(ctx, tasks)
	if storeErr != nil {
		return nil, storeErr
	}
	return outcomes, nil
}

const (
	phaseRepoAnalysis  = "repo_analysis"
	phaseCIHistory     = "ci_history"
	phasePRDiscussions = "pr_discussions"
)

// scanPoolMultiple is how many times MaxPRs the scanner gets to choose
// from before the budget applies.
const scanPoolMultiple = 3

func (e *Extractor) phases(repo string) []Phase {
	return []Phase{
		{
			Name:    phaseRepoAnalysis,
			Ceiling: e.opts.SourceConcurrency,
			Tasks: []task.AnalysisTask{
				task.StructureTask{Repo: repo, Phase: phaseRepoAnalysis},
				task.DocsTask{Repo: repo, Phase: phaseRepoAnalysis},
				task.ConfigTask{Repo: repo, Phase: phaseRepoAnalysis},
				task.CodeSampleTask{Repo: repo, Phase: phaseRepoAnalysis},
			},
		},
		{
			Name:    phaseCIHistory,
			Ceiling: e.opts.SourceConcurrency,
			Tasks: []task.AnalysisTask{
				task.CIFixTask{Repo: repo, MaxCommits: e.opts.MaxPRs * 2, Phase: phaseCIHistory},
			},
		},
		{
			Name:    phasePRDiscussions,
			Ceiling: e.opts.PRConcurrency,
			Build: func(ctx context.Context, prior []pool.Outcome) ([]task.AnalysisTask, error) {
				prs, err := e.selectPRs(ctx, repo, prior)
				if err != nil {
					return nil, err
				}
				tasks := make([]task.AnalysisTask, 0, len(prs))
				for _, pr := range prs {
					tasks = append(tasks, task.PRThreadTask{
						Repo:   repo,
						Number: pr.Number,
						Phase:  phasePRDiscussions,
					})
				}
				return tasks, nil
			},
		},
	}
}

// selectPRs lists a wider pool of merged PRs and has the scanner pick the
// knowledge-rich ones, steered by what the prior phase already found. A
// scanner failure falls back to the most recent PRs rather than failing
// the run.
func (e *Extractor) selectPRs(ctx context.Context, repo string, prior []pool.Outcome) ([]github.PullRequest, error) {
	prs, err := e.tools.Evidence.ListMergedPRs(ctx, repo, e.opts.MaxPRs*scanPoolMultiple)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list merged PRs")
	}
	if len(prs) <= e.opts.MaxPRs {
		return prs, nil
	}

	selected, err := task.SelectKnowledgeRichPRs(ctx, e.tools, repo, prs, priorFindings(prior), e.opts.MaxPRs)
	if err != nil {
		zap.L().Warn("pipeline: PR scan failed, falling back to most recent",
			zap.String("repo", repo), zap.Error(err))
		return prs[:e.opts.MaxPRs], nil
	}
	return selected, nil
}

// priorFindings flattens the previous phase's candidate texts so the
// scanner can steer toward PRs likely to add something new.
func priorFindings(prior []pool.Outcome) []string {
	var out []string
	for _, o := range prior {
		for _, c := range o.Candidates {
			out = append(out, c.Text)
		}
	}
	return out
}

func (e *Extractor) reload(ctx context.Context, runID string) *model.ExtractionRun {
	run, err := e.store.GetRun(ctx, runID)
	if err != nil {
		zap.L().Warn("pipeline: reload run", zap.String("run_id", runID), zap.Error(err))
		return &model.ExtractionRun{ID: runID}
	}
	return run
}
