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
	Embed     EmbedConfig     `yaml:"embed" mapstructure:"embed"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// OpenAIConfig holds OpenAI API settings for embeddings and web search.
type OpenAIConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	EmbeddingModel string `yaml:"embedding_model" mapstructure:"embedding_model"`
	SearchModel    string `yaml:"search_model" mapstructure:"search_model"`
}

// AnthropicConfig holds Anthropic API settings for narrative generation.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// EmbedConfig selects the embedding provider.
type EmbedConfig struct {
	// Provider is "openai" or "local". The local provider is a
	// deterministic hash-seeded vector, useful without API quota.
	Provider string `yaml:"provider" mapstructure:"provider"`
}

// DiscoveryConfig configures the live source discovery pipeline.
type DiscoveryConfig struct {
	Enabled            bool `yaml:"enabled" mapstructure:"enabled"`
	TimeBudgetSecs     int  `yaml:"time_budget_secs" mapstructure:"time_budget_secs"`
	SourceTimeoutSecs  int  `yaml:"source_timeout_secs" mapstructure:"source_timeout_secs"`
	SearchTimeoutSecs  int  `yaml:"search_timeout_secs" mapstructure:"search_timeout_secs"`
	SearchMaxAttempts  int  `yaml:"search_max_attempts" mapstructure:"search_max_attempts"`
	MaxResults         int  `yaml:"max_results" mapstructure:"max_results"`
	FetchRatePerSecond int  `yaml:"fetch_rate_per_second" mapstructure:"fetch_rate_per_second"`
}

// BatchConfig configures concurrent discovery over a company list.
type BatchConfig struct {
	MaxConcurrentCompanies int `yaml:"max_concurrent_companies" mapstructure:"max_concurrent_companies"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port     int  `yaml:"port" mapstructure:"port"`
	DemoMode bool `yaml:"demo_mode" mapstructure:"demo_mode"`
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
	v.SetEnvPrefix("GREENWASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "greenwash.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.demo_mode", false)
	v.SetDefault("openai.base_url", "https://api.openai.com")
	v.SetDefault("openai.embedding_model", "text-embedding-3-large")
	v.SetDefault("openai.search_model", "gpt-4o-mini")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("embed.provider", "openai")
	v.SetDefault("discovery.enabled", true)
	v.SetDefault("discovery.time_budget_secs", 35)
	v.SetDefault("discovery.source_timeout_secs", 8)
	v.SetDefault("discovery.search_timeout_secs", 12)
	v.SetDefault("discovery.search_max_attempts", 2)
	v.SetDefault("discovery.max_results", 8)
	v.SetDefault("discovery.fetch_rate_per_second", 4)
	v.SetDefault("batch.max_concurrent_companies", 5)

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
