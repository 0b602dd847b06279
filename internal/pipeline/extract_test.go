package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tacit-cli/internal/model"
	"github.com/sells-group/tacit-cli/internal/store"
	"github.com/sells-group/tacit-cli/internal/synthesis"
	"github.com/sells-group/tacit-cli/internal/task"
	"github.com/sells-group/tacit-cli/pkg/claude"
	"github.com/sells-group/tacit-cli/pkg/github"
)

// fakeClaude answers each prompt kind with a canned candidate list.
type fakeClaude struct {
	mu      sync.Mutex
	calls   []string
	prompts map[string]string // prompt marker -> last full prompt
	fail    map[string]error  // prompt marker -> error
	replies map[string]string // prompt marker -> reply override
}

func (f *fakeClaude) CreateMessage(_ context.Context, req claude.MessageRequest) (*claude.MessageResponse, error) {
	prompt := req.Messages[0].Content
	marker, reply := classifyPrompt(prompt)

	f.mu.Lock()
	f.calls = append(f.calls, marker)
	if f.prompts == nil {
		f.prompts = map[string]string{}
	}
	f.prompts[marker] = prompt
	f.mu.Unlock()

	if err, ok := f.fail[marker]; ok && err != nil {
		return nil, err
	}
	if override, ok := f.replies[marker]; ok {
		reply = override
	}
	return &claude.MessageResponse{
		Content: []claude.ContentBlock{{Type: "text", Text: reply}},
	}, nil
}

func (f *fakeClaude) promptFor(marker string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts[marker]
}

func classifyPrompt(prompt string) (string, string) {
	switch {
	case strings.Contains(prompt, "file layout"):
		return "structure", `[{"text": "keep store backends behind the ` + "`internal/store`" + ` interface",
			"category": "architecture", "confidence": 0.75, "source_kind": "structure", "source_ref": "tree"}]`
	case strings.Contains(prompt, "project documentation"):
		return "docs", `[{"text": "run ` + "`make lint`" + ` before every push",
			"category": "workflow", "confidence": 0.70, "source_kind": "docs", "source_ref": "file:README.md"}]`
	case strings.Contains(prompt, "tooling configuration"):
		return "config", `[]`
	case strings.Contains(prompt, "representative source files"):
		return "code", `[]`
	case strings.Contains(prompt, "triaging merged pull requests"):
		return "scan", `[]`
	case strings.Contains(prompt, "broken CI pipeline"):
		return "ci_fix", `[{"text": "pin ` + "`golangci-lint`" + ` in CI to the Makefile version",
			"category": "workflow", "confidence": 0.80, "source_kind": "ci_fix", "source_ref": "commit:abc123"}]`
	default:
		return "pr_thread", `[{"text": "gate merges on the ` + "`integration`" + ` CI job",
			"category": "workflow", "confidence": 0.72, "source_kind": "pr", "source_ref": "pr:1"}]`
	}
}

type fakeFetcher struct{}

func (fakeFetcher) ListMergedPRs(context.Context, string, int) ([]github.PullRequest, error) {
	return []github.PullRequest{
		{Number: 1, Title: "Add store migrations"},
		{Number: 2, Title: "Fix flaky integration test"},
	}, nil
}

func (fakeFetcher) GetPRThread(_ context.Context, _ string, number int) (*github.PRThread, error) {
	return &github.PRThread{
		PR:       github.PullRequest{Number: number, Title: "PR", Author: "dev"},
		Comments: []github.ReviewComment{{Author: "reviewer", Body: "looks good"}},
	}, nil
}

func (fakeFetcher) ListCIFixCommits(context.Context, string, int) ([]github.Commit, error) {
	return []github.Commit{{SHA: "abc123", Message: "fix ci: pin lint version"}}, nil
}

func (fakeFetcher) GetFileContent(_ context.Context, _, path string) (string, error) {
	return "# " + path, nil
}

func (fakeFetcher) ListTree(context.Context, string) ([]string, error) {
	return []string{"cmd/main.go", "internal/store/store.go", "Makefile"}, nil
}

// recordingEmitter captures events in arrival order.
type recordingEmitter struct {
	mu     sync.Mutex
	events []model.ProgressEvent
}

func (r *recordingEmitter) Emit(e model.ProgressEvent) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingEmitter) ofType(t model.EventType) []model.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ProgressEvent
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newTestExtractor(t *testing.T, cc claude.Client) (*Extractor, store.Store, *recordingEmitter) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "pipeline_test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	emitter := &recordingEmitter{}
	tools := task.ToolAccess{
		Claude:    cc,
		Evidence:  fakeFetcher{},
		Rules:     st,
		Model:     "claude-haiku-4-5",
		MaxTokens: 2048,
	}
	engine := synthesis.NewEngine(st, 0.80, 0.60)
	ex := NewExtractor(st, engine, tools, emitter, Options{
		TaskTimeout: 5 * time.Second,
		MaxPRs:      5,
	})
	return ex, st, emitter
}

func TestRunCompletesAllPhasesInOrder(t *testing.T) {
	ex, st, emitter := newTestExtractor(t, &fakeClaude{})

	run, err := ex.Run(context.Background(), "sells-group/tacit-cli")
	require.NoError(t, err)
	assert.Equal(t, model.RunCompleted, run.Status)
	assert.Equal(t, 7, run.TasksTotal) // 4 repo + 1 ci + 2 pr threads
	assert.Equal(t, 0, run.TasksFailed)
	assert.Equal(t, 2, run.PRsAnalyzed)
	assert.NotNil(t, run.CompletedAt)

	phases := emitter.ofType(model.EventPhaseAdvanced)
	require.Len(t, phases, 3)
	assert.Equal(t, "repo_analysis", phases[0].Data["phase"])
	assert.Equal(t, "ci_history", phases[1].Data["phase"])
	assert.Equal(t, "pr_discussions", phases[2].Data["phase"])

	completed := emitter.ofType(model.EventRunCompleted)
	require.Len(t, completed, 1)

	rules, err := st.ListRules(context.Background(), store.RuleFilter{})
	require.NoError(t, err)
	assert.NotEmpty(t, rules)
}

func TestPartialFailureStillAdvancesPhases(t *testing.T) {
	cc := &fakeClaude{fail: map[string]error{"docs": eris.New("model overloaded")}}
	ex, _, emitter := newTestExtractor(t, cc)

	run, err := ex.Run(context.Background(), "sells-group/tacit-cli")
	require.NoError(t, err)
	assert.Equal(t, model.RunCompleted, run.Status)
	assert.Equal(t, 1, run.TasksFailed)

	phases := emitter.ofType(model.EventPhaseAdvanced)
	require.Len(t, phases, 3)
	assert.Equal(t, 1, phases[0].Data["failed"])
	assert.Equal(t, 0, phases[1].Data["failed"])

	failed := ex.FailedTasks()
	require.Len(t, failed, 1)
	assert.Equal(t, "docs_analysis", failed[0].TaskName)
	assert.Equal(t, "repo_analysis", failed[0].Phase)
	assert.False(t, failed[0].TimedOut)
}

// failingRuleStore makes reconciliation writes fail while the run records
// themselves keep working.
type failingRuleStore struct {
	store.Store
}

func (f *failingRuleStore) CreateRule(context.Context, *model.Rule) (*model.Rule, error) {
	return nil, eris.New("disk full")
}

func TestStoreFailureFailsRun(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "pipeline_test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	wrapped := &failingRuleStore{Store: st}
	emitter := &recordingEmitter{}
	tools := task.ToolAccess{
		Claude:    &fakeClaude{},
		Evidence:  fakeFetcher{},
		Rules:     st,
		Model:     "claude-haiku-4-5",
		MaxTokens: 2048,
	}
	ex := NewExtractor(wrapped, synthesis.NewEngine(wrapped, 0.80, 0.60), tools, emitter, Options{})

	run, runErr := ex.Run(context.Background(), "sells-group/tacit-cli")
	require.Error(t, runErr)
	assert.Equal(t, model.RunFailed, run.Status)
	require.Len(t, emitter.ofType(model.EventRunFailed), 1)
}

func TestCancellationKeepsSettledPhases(t *testing.T) {
	ex, st, emitter := newTestExtractor(t, &fakeClaude{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	inner := ex.emitter
	ex.emitter = EmitterFunc(func(e model.ProgressEvent) {
		inner.Emit(e)
		if e.Type == model.EventPhaseAdvanced {
			cancel()
		}
	})

	run, err := ex.Run(ctx, "sells-group/tacit-cli")
	require.Error(t, err)
	assert.Equal(t, model.RunFailed, run.Status)

	// Phase one settled before the cancel, so its rules survive.
	rules, listErr := st.ListRules(context.Background(), store.RuleFilter{})
	require.NoError(t, listErr)
	assert.NotEmpty(t, rules)
	assert.NotEmpty(t, emitter.ofType(model.EventPhaseAdvanced))
}

// manyPRFetcher returns more merged PRs than the budget so the scanner
// has something to triage.
type manyPRFetcher struct {
	fakeFetcher
}

func (manyPRFetcher) ListMergedPRs(_ context.Context, _ string, max int) ([]github.PullRequest, error) {
	prs := make([]github.PullRequest, 0, max)
	for n := 10; n < 10+max; n++ {
		prs = append(prs, github.PullRequest{Number: n, Title: "change"})
	}
	return prs, nil
}

func newScanExtractor(t *testing.T, cc *fakeClaude) (*Extractor, *recordingEmitter) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "pipeline_scan_test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	emitter := &recordingEmitter{}
	tools := task.ToolAccess{
		Claude:    cc,
		Evidence:  manyPRFetcher{},
		Rules:     st,
		Model:     "claude-haiku-4-5",
		MaxTokens: 2048,
	}
	ex := NewExtractor(st, synthesis.NewEngine(st, 0.80, 0.60), tools, emitter, Options{
		TaskTimeout: 5 * time.Second,
		MaxPRs:      2,
	})
	return ex, emitter
}

func analyzedThreads(emitter *recordingEmitter) map[string]bool {
	out := map[string]bool{}
	for _, e := range emitter.ofType(model.EventTaskCompleted) {
		name, _ := e.Data["task_id"].(string)
		if strings.HasPrefix(name, "pr_thread_") {
			out[name] = true
		}
	}
	return out
}

func TestScannerPicksPRsForDiscussionPhase(t *testing.T) {
	cc := &fakeClaude{replies: map[string]string{"scan": `[14, 11]`}}
	ex, emitter := newScanExtractor(t, cc)

	run, err := ex.Run(context.Background(), "sells-group/tacit-cli")
	require.NoError(t, err)
	assert.Equal(t, 2, run.PRsAnalyzed)

	threads := analyzedThreads(emitter)
	assert.True(t, threads["pr_thread_14"])
	assert.True(t, threads["pr_thread_11"])
	assert.Len(t, threads, 2)

	// The scanner sees what earlier phases already extracted.
	assert.Contains(t, cc.promptFor("scan"), "pin `golangci-lint` in CI to the Makefile version")
}

func TestScannerFailureFallsBackToRecentPRs(t *testing.T) {
	cc := &fakeClaude{fail: map[string]error{"scan": eris.New("model overloaded")}}
	ex, emitter := newScanExtractor(t, cc)

	run, err := ex.Run(context.Background(), "sells-group/tacit-cli")
	require.NoError(t, err)
	assert.Equal(t, model.RunCompleted, run.Status)
	assert.Equal(t, 2, run.PRsAnalyzed)

	threads := analyzedThreads(emitter)
	assert.True(t, threads["pr_thread_10"])
	assert.True(t, threads["pr_thread_11"])
}
