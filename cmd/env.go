package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tacit-cli/internal/federation"
	"github.com/sells-group/tacit-cli/internal/incremental"
	"github.com/sells-group/tacit-cli/internal/pipeline"
	"github.com/sells-group/tacit-cli/internal/store"
	"github.com/sells-group/tacit-cli/internal/synthesis"
	"github.com/sells-group/tacit-cli/internal/task"
	"github.com/sells-group/tacit-cli/pkg/claude"
	"github.com/sells-group/tacit-cli/pkg/github"
)

// appEnv holds the initialized store, clients, and engines shared by the
// extract/serve/contribute commands.
type appEnv struct {
	Store       store.Store
	Engine      *synthesis.Engine
	Matcher     *federation.Matcher
	Tools       task.ToolAccess
	Incremental *incremental.Controller
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured backend. Review-only commands can call
// this directly without the API clients.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.Pool.MaxConns,
			MinConns: cfg.Store.Pool.MinConns,
		})
	default:
		st, err = store.NewSQLite(cfg.Store.Path)
	}
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	zap.L().Debug("store ready", zap.String("driver", cfg.Store.Driver))
	return st, nil
}

// initEnv sets up the store, the GitHub and Anthropic clients, and the
// engines. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	claudeClient := claude.NewResilientClient(
		claude.NewClient(cfg.Anthropic.Key),
		claude.ResilientConfig{
			RequestsPerSecond: float64(cfg.Anthropic.RequestsPerMinute) / 60.0,
		},
	)
	ghClient := github.NewClient(cfg.GitHub.Token)

	// Batch extraction fans out many tasks, so it runs on the scanner
	// model; the event-driven path analyzes one PR at a time and can
	// afford the analyzer model.
	modelName := cfg.Anthropic.AnalyzerModel
	if mode == "extract" {
		modelName = cfg.Anthropic.ScannerModel
	}

	tools := task.ToolAccess{
		Claude:    claudeClient,
		Evidence:  ghClient,
		Rules:     st,
		Model:     modelName,
		MaxTokens: cfg.Anthropic.MaxTokens,
	}

	engine := synthesis.NewEngine(st, cfg.Pipeline.ClusterThreshold, cfg.Pipeline.ConfidenceFloor)
	matcher := federation.NewMatcher(st, cfg.Pipeline.MatchThreshold)

	return &appEnv{
		Store:       st,
		Engine:      engine,
		Matcher:     matcher,
		Tools:       tools,
		Incremental: incremental.NewController(st, engine, matcher, tools),
	}, nil
}

// extractorOptions maps pipeline config onto extractor options.
func extractorOptions() pipeline.Options {
	return pipeline.Options{
		SourceConcurrency: cfg.Pipeline.SourceConcurrency,
		PRConcurrency:     cfg.Pipeline.PRConcurrency,
		TaskTimeout:       time.Duration(cfg.Pipeline.TaskTimeoutSecs) * time.Second,
		MaxPRs:            cfg.Pipeline.MaxPRs,
	}
}
