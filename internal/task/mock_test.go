package task

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/tacit-cli/internal/model"
	"github.com/sells-group/tacit-cli/internal/store"
	"github.com/sells-group/tacit-cli/pkg/claude"
	"github.com/sells-group/tacit-cli/pkg/github"
)

// --- Claude mock ---

type mockClaudeClient struct {
	mock.Mock
}

func (m *mockClaudeClient) CreateMessage(ctx context.Context, req claude.MessageRequest) (*claude.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*claude.MessageResponse), args.Error(1)
}

// textResponse wraps text as a model reply.
func textResponse(text string) *claude.MessageResponse {
	return &claude.MessageResponse{
		Content: []claude.ContentBlock{{Type: "text", Text: text}},
	}
}

// --- GitHub fetcher mock ---

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) ListMergedPRs(ctx context.Context, repo string, max int) ([]github.PullRequest, error) {
	args := m.Called(ctx, repo, max)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]github.PullRequest), args.Error(1)
}

func (m *mockFetcher) GetPRThread(ctx context.Context, repo string, number int) (*github.PRThread, error) {
	args := m.Called(ctx, repo, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*github.PRThread), args.Error(1)
}

func (m *mockFetcher) ListCIFixCommits(ctx context.Context, repo string, max int) ([]github.Commit, error) {
	args := m.Called(ctx, repo, max)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]github.Commit), args.Error(1)
}

func (m *mockFetcher) GetFileContent(ctx context.Context, repo, path string) (string, error) {
	args := m.Called(ctx, repo, path)
	return args.String(0), args.Error(1)
}

func (m *mockFetcher) ListTree(ctx context.Context, repo string) ([]string, error) {
	args := m.Called(ctx, repo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// --- Rule searcher mock ---

type mockRuleSearcher struct {
	mock.Mock
}

func (m *mockRuleSearcher) ListRules(ctx context.Context, filter store.RuleFilter) ([]model.Rule, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Rule), args.Error(1)
}
