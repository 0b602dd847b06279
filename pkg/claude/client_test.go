package claude

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tacit-cli/internal/resilience"
)

type stubClient struct {
	calls int
	errs  []error
	resp  *MessageResponse
}

func (s *stubClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return s.resp, nil
}

func TestResponseText(t *testing.T) {
	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "text", Text: "first "},
		{Type: "tool_use", Text: "ignored"},
		{Type: "text", Text: "second"},
	}}
	assert.Equal(t, "first second", resp.Text())
}

func TestEstimateCost(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000, OutputTokens: 500_000}
	cost := usage.EstimateCost("claude-sonnet-4-5-20250929")
	assert.InDelta(t, 3.00+7.50, cost, 1e-9)

	assert.Zero(t, TokenUsage{InputTokens: 100}.EstimateCost("unknown-model"))
}

func TestEstimateCostWithCache(t *testing.T) {
	usage := TokenUsage{
		CacheCreationInputTokens: 1_000_000,
		CacheReadInputTokens:     1_000_000,
	}
	cost := usage.EstimateCost("claude-haiku-4-5-20251001")
	assert.InDelta(t, 0.80*1.25+0.80*0.1, cost, 1e-9)
}

func TestBuildCachedSystemBlocks(t *testing.T) {
	blocks := BuildCachedSystemBlocks("system prompt")
	require.Len(t, blocks, 1)
	assert.Equal(t, "system prompt", blocks[0].Text)
	require.NotNil(t, blocks[0].CacheControl)
	assert.Equal(t, "1h", blocks[0].CacheControl.TTL)
}

func TestResilientClientRetriesTransient(t *testing.T) {
	stub := &stubClient{
		errs: []error{
			resilience.NewTransientError(eris.New("overloaded"), 529),
			nil,
		},
		resp: &MessageResponse{ID: "msg-1"},
	}
	client := NewResilientClient(stub, ResilientConfig{
		Retry: resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: 1, MaxBackoff: 1},
	})

	resp, err := client.CreateMessage(context.Background(), MessageRequest{})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", resp.ID)
	assert.Equal(t, 2, stub.calls)
}

func TestResilientClientDoesNotRetryPermanent(t *testing.T) {
	stub := &stubClient{errs: []error{eris.New("invalid api key"), nil}}
	client := NewResilientClient(stub, ResilientConfig{
		Retry: resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: 1, MaxBackoff: 1},
	})

	_, err := client.CreateMessage(context.Background(), MessageRequest{})
	require.Error(t, err)
	assert.Equal(t, 1, stub.calls)
}

func TestResilientClientCircuitOpens(t *testing.T) {
	stub := &stubClient{errs: []error{
		eris.New("down"), eris.New("down"), eris.New("down"), eris.New("down"),
	}}
	client := NewResilientClient(stub, ResilientConfig{
		Retry:   resilience.RetryConfig{MaxAttempts: 1},
		Circuit: resilience.CircuitBreakerConfig{FailureThreshold: 2},
	})
	ctx := context.Background()

	_, _ = client.CreateMessage(ctx, MessageRequest{})
	_, _ = client.CreateMessage(ctx, MessageRequest{})

	_, err := client.CreateMessage(ctx, MessageRequest{})
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 2, stub.calls)
}
