package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	GitHub    GitHubConfig    `yaml:"github" mapstructure:"github"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string     `yaml:"driver" mapstructure:"driver"`
	Path        string     `yaml:"path" mapstructure:"path"`
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig holds optional Postgres connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// GitHubConfig holds GitHub API and webhook settings.
type GitHubConfig struct {
	Token         string `yaml:"token" mapstructure:"token"`
	WebhookSecret string `yaml:"webhook_secret" mapstructure:"webhook_secret"`
}

// AnthropicConfig holds Anthropic API settings. Scanner-grade tasks use
// the cheaper model; deep analysis uses the stronger one.
type AnthropicConfig struct {
	Key               string `yaml:"key" mapstructure:"key"`
	ScannerModel      string `yaml:"scanner_model" mapstructure:"scanner_model"`
	AnalyzerModel     string `yaml:"analyzer_model" mapstructure:"analyzer_model"`
	MaxTokens         int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerMinute int    `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// PipelineConfig configures extraction behavior.
type PipelineConfig struct {
	// SourceConcurrency caps parallel analysis tasks in the source
	// analysis phase. Each task is an expensive external reasoning call.
	SourceConcurrency int `yaml:"source_concurrency" mapstructure:"source_concurrency"`
	// PRConcurrency caps parallel deep PR-thread analyses.
	PRConcurrency int `yaml:"pr_concurrency" mapstructure:"pr_concurrency"`
	// TaskTimeoutSecs is the enforced maximum duration of one analysis
	// task. Exceeding it settles the task as a timeout failure.
	TaskTimeoutSecs int `yaml:"task_timeout_secs" mapstructure:"task_timeout_secs"`
	// MaxPRs bounds how many scanner-selected PRs get deep analysis.
	MaxPRs int `yaml:"max_prs" mapstructure:"max_prs"`
	// ClusterThreshold is the similarity acceptance threshold for the
	// dedup clustering step.
	ClusterThreshold float64 `yaml:"cluster_threshold" mapstructure:"cluster_threshold"`
	// MatchThreshold is the similarity threshold for attaching a
	// federated contribution to an existing proposal.
	MatchThreshold float64 `yaml:"match_threshold" mapstructure:"match_threshold"`
	// ConfidenceFloor is the minimum confidence for a rule to be
	// published into guidance documents.
	ConfidenceFloor float64 `yaml:"confidence_floor" mapstructure:"confidence_floor"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TACIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "tacit.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.scanner_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.analyzer_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.requests_per_minute", 60)
	v.SetDefault("pipeline.source_concurrency", 4)
	v.SetDefault("pipeline.pr_concurrency", 3)
	v.SetDefault("pipeline.task_timeout_secs", 300)
	v.SetDefault("pipeline.max_prs", 10)
	v.SetDefault("pipeline.cluster_threshold", 0.80)
	v.SetDefault("pipeline.match_threshold", 0.65)
	v.SetDefault("pipeline.confidence_floor", 0.60)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration required for the given mode is
// present. Mode "extract" covers the batch pipeline; "serve" also needs
// the reasoning service; "review" only touches the store.
func (c *Config) Validate(mode string) error {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return eris.New("config: store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required for the postgres driver")
		}
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}

	switch mode {
	case "extract", "serve":
		if c.GitHub.Token == "" {
			return eris.New("config: github.token is required (set TACIT_GITHUB_TOKEN)")
		}
		if c.Anthropic.Key == "" {
			return eris.New("config: anthropic.key is required (set TACIT_ANTHROPIC_KEY)")
		}
	case "review":
		// Store-only commands.
	}

	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
