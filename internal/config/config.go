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
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini    GeminiConfig    `yaml:"gemini" mapstructure:"gemini"`
	Executor  ExecutorConfig  `yaml:"executor" mapstructure:"executor"`
	Catalog   CatalogConfig   `yaml:"catalog" mapstructure:"catalog"`
	Pricing   PricingConfig   `yaml:"pricing" mapstructure:"pricing"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// GeminiConfig holds Google Gemini API settings.
type GeminiConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// ExecutorConfig tunes the fan-out executor and dispatcher.
type ExecutorConfig struct {
	// MaxTokensCeiling is the process-wide clamp applied to every job's
	// MaxTokens before dispatch.
	MaxTokensCeiling int `yaml:"max_tokens_ceiling" mapstructure:"max_tokens_ceiling"`
	// CallTimeoutSecs bounds each provider call's wall clock. A timeout fails
	// that model only, never the whole batch.
	CallTimeoutSecs int `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	// ProviderRPS and ProviderBurst configure the per-provider rate limiter.
	ProviderRPS   float64 `yaml:"provider_rps" mapstructure:"provider_rps"`
	ProviderBurst int     `yaml:"provider_burst" mapstructure:"provider_burst"`
	// DefaultMaxTokens is used when the caller does not specify a budget.
	DefaultMaxTokens int `yaml:"default_max_tokens" mapstructure:"default_max_tokens"`
}

// CatalogConfig configures the entity catalog source.
type CatalogConfig struct {
	// Entities seeds the known-entity list from config; merged with rows
	// from the store's entities table at load time.
	Entities []string `yaml:"entities" mapstructure:"entities"`
}

// PricingConfig holds per-model-alias token pricing (USD per million tokens).
type PricingConfig struct {
	Models map[string]ModelRate `yaml:"models" mapstructure:"models"`
}

// ModelRate holds token pricing for one model alias.
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// ServerConfig holds webhook server settings.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // "json" or "console"
}

// Load reads configuration from config.yaml and VISIBILITY_* environment
// variables.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VISIBILITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets default to empty so AutomaticEnv can see their keys.
	v.SetDefault("openai.key", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("gemini.key", "")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "visibility.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("executor.max_tokens_ceiling", 20000)
	v.SetDefault("executor.call_timeout_secs", 90)
	v.SetDefault("executor.provider_rps", 2.0)
	v.SetDefault("executor.provider_burst", 5)
	v.SetDefault("executor.default_max_tokens", 1024)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("pricing.models.gpt-4o-mini.input", 0.15)
	v.SetDefault("pricing.models.gpt-4o-mini.output", 0.60)
	v.SetDefault("pricing.models.claude-sonnet-4-5-20250929.input", 3.00)
	v.SetDefault("pricing.models.claude-sonnet-4-5-20250929.output", 15.00)
	v.SetDefault("pricing.models.gemini-2.0-flash.input", 0.10)
	v.SetDefault("pricing.models.gemini-2.0-flash.output", 0.40)

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional; env vars may carry everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints that viper cannot express.
func (c *Config) Validate() error {
	if c.Executor.MaxTokensCeiling <= 0 {
		return eris.New("config: executor.max_tokens_ceiling must be positive")
	}
	if c.Executor.CallTimeoutSecs <= 0 {
		return eris.New("config: executor.call_timeout_secs must be positive")
	}
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
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
