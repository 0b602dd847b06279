package claude

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/tacit-cli/internal/resilience"
)

// ResilientConfig tunes the protective wrapper around a Client.
type ResilientConfig struct {
	// RequestsPerSecond throttles outbound calls. Zero disables throttling.
	RequestsPerSecond float64

	// Burst is the limiter burst size. Defaults to 1 when throttled.
	Burst int

	Retry   resilience.RetryConfig
	Circuit resilience.CircuitBreakerConfig
}

// resilientClient layers a rate limiter, retries, and a circuit breaker
// over an inner Client.
type resilientClient struct {
	inner   Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewResilientClient wraps inner with throttling, retry, and circuit breaking.
func NewResilientClient(inner Client, cfg ResilientConfig) Client {
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	retryCfg := cfg.Retry
	if retryCfg.OnRetry == nil {
		retryCfg.OnRetry = resilience.RetryLogger("anthropic", "create_message")
	}

	return &resilientClient{
		inner:   inner,
		limiter: limiter,
		retry:   retryCfg,
		breaker: resilience.NewCircuitBreaker(cfg.Circuit),
	}
}

func (c *resilientClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "claude: rate limit wait")
		}
	}
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*MessageResponse, error) {
		return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (*MessageResponse, error) {
			return c.inner.CreateMessage(ctx, req)
		})
	})
}
