// Package config loads application configuration from an optional
// config.yaml and PROMPTGO_* environment variables, and initializes
// the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/cost"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/notify"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/resilience"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig               `yaml:"store" mapstructure:"store"`
	Server  ServerConfig              `yaml:"server" mapstructure:"server"`
	Policy  PolicyConfig              `yaml:"policy" mapstructure:"policy"`
	Routing RoutingConfig             `yaml:"routing" mapstructure:"routing"`
	Weights WeightsConfig             `yaml:"weights" mapstructure:"weights"`
	Pricing map[string]cost.ModelRate `yaml:"pricing" mapstructure:"pricing"`
	Notify  NotifyConfig              `yaml:"notify" mapstructure:"notify"`
	Log     LogConfig                 `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	Path        string           `yaml:"path" mapstructure:"path"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// PolicyConfig configures where org budget policies are loaded from.
type PolicyConfig struct {
	Dir   string `yaml:"dir" mapstructure:"dir"`
	Watch bool   `yaml:"watch" mapstructure:"watch"`
}

// RoutingConfig configures the decision path.
type RoutingConfig struct {
	DefaultModel string `yaml:"default_model" mapstructure:"default_model"`
}

// WeightsConfig configures the feedback learner.
type WeightsConfig struct {
	LearningRate float64 `yaml:"learning_rate" mapstructure:"learning_rate"`
}

// NotifyConfig configures budget webhook delivery. An empty webhook URL
// disables notifications.
type NotifyConfig struct {
	WebhookURL       string `yaml:"webhook_url" mapstructure:"webhook_url"`
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MinIntervalSecs  int    `yaml:"min_interval_secs" mapstructure:"min_interval_secs"`
	Burst            int    `yaml:"burst" mapstructure:"burst"`
	RetryMaxAttempts int    `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryBackoffMs   int    `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	BreakerFailures  int    `yaml:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerResetSecs int    `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
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
	v.SetEnvPrefix("PROMPTGO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "promptgo.db")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("policy.dir", "./policies")
	v.SetDefault("policy.watch", true)
	v.SetDefault("routing.default_model", "openai/gpt-4o-mini")
	v.SetDefault("weights.learning_rate", 0.2)
	v.SetDefault("notify.timeout_secs", 10)
	v.SetDefault("notify.min_interval_secs", 300)
	v.SetDefault("notify.burst", 1)
	v.SetDefault("notify.retry_max_attempts", 3)
	v.SetDefault("notify.retry_backoff_ms", 200)
	v.SetDefault("notify.breaker_failures", 5)
	v.SetDefault("notify.breaker_reset_secs", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the configuration for the given run mode ("serve",
// "mcp", or "cli") and reports every problem at once.
func (c *Config) Validate(mode string) error {
	switch mode {
	case "serve", "mcp", "cli":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	var problems []string

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			problems = append(problems, "store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}

	if c.Weights.LearningRate <= 0 || c.Weights.LearningRate > 1 {
		problems = append(problems, "weights.learning_rate must be in (0, 1]")
	}
	if c.Routing.DefaultModel == "" {
		problems = append(problems, "routing.default_model is required")
	}
	for m, rate := range c.Pricing {
		if rate.In < 0 || rate.Out < 0 {
			problems = append(problems, "pricing."+m+" rates must be >= 0")
		}
	}
	if c.Notify.WebhookURL != "" && c.Notify.MinIntervalSecs < 0 {
		problems = append(problems, "notify.min_interval_secs must be >= 0")
	}

	if mode == "serve" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid for %s mode: %s", mode, strings.Join(problems, "; "))
	}
	return nil
}

// Rates returns the configured pricing table, falling back to the stock
// rates when the file overrides nothing.
func (c *Config) Rates() cost.Rates {
	if len(c.Pricing) == 0 {
		return cost.DefaultRates()
	}
	return cost.Rates(c.Pricing)
}

// Notifier converts the notify section into the notifier's config.
func (c *Config) Notifier() notify.Config {
	return notify.Config{
		WebhookURL:  c.Notify.WebhookURL,
		Timeout:     time.Duration(c.Notify.TimeoutSecs) * time.Second,
		MinInterval: time.Duration(c.Notify.MinIntervalSecs) * time.Second,
		Burst:       c.Notify.Burst,
		Retry:       resilience.FromRetryConfig(c.Notify.RetryMaxAttempts, c.Notify.RetryBackoffMs),
		Breaker:     resilience.FromCircuitConfig(c.Notify.BreakerFailures, c.Notify.BreakerResetSecs),
	}
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
