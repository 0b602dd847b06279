package task

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tacit-cli/internal/model"
	"github.com/sells-group/tacit-cli/pkg/claude"
	"github.com/sells-group/tacit-cli/pkg/github"
)

func newTestTools(claude *mockClaudeClient, fetcher *mockFetcher, rules *mockRuleSearcher) ToolAccess {
	tools := ToolAccess{
		Claude:    claude,
		Evidence:  fetcher,
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 4096,
	}
	if rules != nil {
		tools.Rules = rules
	}
	return tools
}

func TestStructureTask(t *testing.T) {
	claude := new(mockClaudeClient)
	fetcher := new(mockFetcher)

	fetcher.On("ListTree", mock.Anything, "acme/widgets").
		Return([]string{"cmd/widgets/main.go", "internal/store/store.go"}, nil)
	claude.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`[{"text": "Put business logic under internal/, entry points under cmd/",
			"category": "architecture", "confidence": 0.8, "source_kind": "structure",
			"source_ref": "tree:acme/widgets"}]`), nil)

	candidates, err := StructureTask{Repo: "acme/widgets", Phase: "repository_analysis"}.
		Invoke(context.Background(), newTestTools(claude, fetcher, nil))
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, model.SourceStructure, candidates[0].SourceKind)
	assert.Equal(t, "structure_analysis", candidates[0].TaskName)
	fetcher.AssertExpectations(t)
}

func TestDocsTaskSkipsMissingFiles(t *testing.T) {
	claude := new(mockClaudeClient)
	fetcher := new(mockFetcher)

	fetcher.On("GetFileContent", mock.Anything, "acme/widgets", "README.md").
		Return("Run make lint before pushing.", nil)
	fetcher.On("GetFileContent", mock.Anything, "acme/widgets", mock.Anything).
		Return("", eris.New("404"))
	claude.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`[{"text": "Run make lint before pushing",
			"category": "workflow", "confidence": 0.85, "source_kind": "docs"}]`), nil)

	candidates, err := DocsTask{Repo: "acme/widgets", Phase: "repository_analysis"}.
		Invoke(context.Background(), newTestTools(claude, fetcher, nil))
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}

func TestDocsTaskNoEvidenceSkipsModel(t *testing.T) {
	claude := new(mockClaudeClient)
	fetcher := new(mockFetcher)

	fetcher.On("GetFileContent", mock.Anything, "acme/widgets", mock.Anything).
		Return("", eris.New("404"))

	candidates, err := DocsTask{Repo: "acme/widgets", Phase: "repository_analysis"}.
		Invoke(context.Background(), newTestTools(claude, fetcher, nil))
	require.NoError(t, err)
	assert.Empty(t, candidates)
	claude.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestCIFixTaskAllowsBothKinds(t *testing.T) {
	claude := new(mockClaudeClient)
	fetcher := new(mockFetcher)

	fetcher.On("ListCIFixCommits", mock.Anything, "acme/widgets", 5).
		Return([]github.Commit{{SHA: "abc123", Message: "fix ci: pin golangci-lint"}}, nil)
	claude.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`[
			{"text": "Pin golangci-lint in CI", "category": "workflow", "confidence": 0.9, "source_kind": "ci_fix", "source_ref": "commit:abc123"},
			{"text": "Never use a floating lint version in workflows", "category": "workflow", "confidence": 0.85, "source_kind": "anti_pattern", "source_ref": "commit:abc123"}
		]`), nil)

	candidates, err := CIFixTask{Repo: "acme/widgets", Phase: "repository_analysis", MaxCommits: 5}.
		Invoke(context.Background(), newTestTools(claude, fetcher, nil))
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, model.SourceCIFix, candidates[0].SourceKind)
	assert.Equal(t, model.SourceAntiPattern, candidates[1].SourceKind)
}

func TestCIFixTaskNoCommits(t *testing.T) {
	claude := new(mockClaudeClient)
	fetcher := new(mockFetcher)

	fetcher.On("ListCIFixCommits", mock.Anything, "acme/widgets", 0).
		Return([]github.Commit{}, nil)

	candidates, err := CIFixTask{Repo: "acme/widgets", Phase: "repository_analysis"}.
		Invoke(context.Background(), newTestTools(claude, fetcher, nil))
	require.NoError(t, err)
	assert.Empty(t, candidates)
	claude.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestPRThreadTaskIncludesKnownRules(t *testing.T) {
	claudeMock := new(mockClaudeClient)
	fetcher := new(mockFetcher)
	rules := new(mockRuleSearcher)

	fetcher.On("GetPRThread", mock.Anything, "acme/widgets", 42).
		Return(&github.PRThread{
			PR: github.PullRequest{Number: 42, Title: "Add retry to fetcher"},
			Reviews: []github.ReviewComment{
				{Author: "lead", State: "CHANGES_REQUESTED", Body: "do not call the API without the breaker"},
			},
		}, nil)
	rules.On("ListRules", mock.Anything, mock.Anything).
		Return([]model.Rule{{Text: "Wrap API errors with eris"}}, nil)
	claudeMock.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req claude.MessageRequest) bool {
		// The prompt lists rules already in the store.
		return strings.Contains(req.Messages[0].Content, "Wrap API errors with eris")
	})).Return(textResponse(`[{"text": "Route all outbound API calls through the circuit breaker",
		"category": "architecture", "confidence": 0.8, "source_kind": "anti_pattern",
		"source_ref": "pr:42"}]`), nil)

	candidates, err := PRThreadTask{Repo: "acme/widgets", Number: 42, Phase: "pr_mining"}.
		Invoke(context.Background(), newTestTools(claudeMock, fetcher, rules))
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "pr_thread_42", candidates[0].TaskName)
	rules.AssertExpectations(t)
}

func TestTaskPropagatesFetchError(t *testing.T) {
	claude := new(mockClaudeClient)
	fetcher := new(mockFetcher)

	fetcher.On("ListTree", mock.Anything, "acme/widgets").
		Return(nil, eris.New("github: rate limited"))

	_, err := StructureTask{Repo: "acme/widgets", Phase: "repository_analysis"}.
		Invoke(context.Background(), newTestTools(claude, fetcher, nil))
	assert.Error(t, err)
}
