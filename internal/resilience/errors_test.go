package resilience

import (
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit transient", NewTransientError(eris.New("429"), 429), true},
		{"wrapped transient", eris.Wrap(NewTransientError(eris.New("503"), 503), "claude: call"), true},
		{"connection reset", syscall.ECONNRESET, true},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"message heuristic", eris.New("read tcp: connection reset by peer"), true},
		{"dns failure", eris.New("dial tcp: no such host"), true},
		{"permanent", eris.New("invalid api key"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 201, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, "timeout", ClassifyError(eris.New("deadline"), true))
	assert.Equal(t, "transient", ClassifyError(NewTransientError(eris.New("503"), 503), false))
	assert.Equal(t, "permanent", ClassifyError(eris.New("bad request"), false))
}

func TestDeadLetterQueue(t *testing.T) {
	q := NewDeadLetterQueue()
	q.Add(FailedTask{RunID: "run-1", TaskName: "docs_analysis", Phase: "repository_analysis", Error: "boom"})
	q.Add(FailedTask{RunID: "run-1", TaskName: "pr_scan", Phase: "pr_mining", Error: "deadline", TimedOut: true, ErrorType: "timeout"})

	assert.Equal(t, 2, q.Len())
	entries := q.Entries()
	assert.Equal(t, "docs_analysis", entries[0].TaskName)
	assert.Equal(t, "permanent", entries[0].ErrorType)
	assert.False(t, entries[0].FailedAt.IsZero())
	assert.Equal(t, "timeout", entries[1].ErrorType)
}
