// Package task defines the analysis-task contract and the Claude-backed
// tasks that mine a repository for candidate rules.
package task

import (
	"context"

	"github.com/sells-group/tacit-cli/internal/model"
	"github.com/sells-group/tacit-cli/internal/store"
	"github.com/sells-group/tacit-cli/pkg/claude"
	"github.com/sells-group/tacit-cli/pkg/github"
)

// RuleSearcher is the read-only view of the knowledge store granted to
// analysis tasks. Tasks search existing rules for context; they never
// write them.
type RuleSearcher interface {
	ListRules(ctx context.Context, filter store.RuleFilter) ([]model.Rule, error)
}

// ToolAccess is the capability set handed to each task invocation.
// It deliberately excludes any store write handle: only the synthesis
// engine turns candidates into rules.
type ToolAccess struct {
	Claude   claude.Client
	Evidence github.Fetcher
	Rules    RuleSearcher

	Model     string
	MaxTokens int64
}

// AnalysisTask produces candidate rules from one scoped piece of evidence.
// Implementations may fail or time out; the pool absorbs both.
type AnalysisTask interface {
	Name() string
	Invoke(ctx context.Context, tools ToolAccess) ([]model.Candidate, error)
}

// Func adapts a function to AnalysisTask.
type Func struct {
	TaskName string
	Fn       func(ctx context.Context, tools ToolAccess) ([]model.Candidate, error)
}

func (f Func) Name() string { return f.TaskName }

func (f Func) Invoke(ctx context.Context, tools ToolAccess) ([]model.Candidate, error) {
	return f.Fn(ctx, tools)
}
