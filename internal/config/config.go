// Package config loads application configuration from config.yaml and
// BEACON_-prefixed environment variables, and initializes the global
// logger.
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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Geocode    GeocodeConfig    `yaml:"geocode" mapstructure:"geocode"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Crawl      CrawlConfig      `yaml:"crawl" mapstructure:"crawl"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Sources    SourcesConfig    `yaml:"sources" mapstructure:"sources"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FirecrawlConfig holds Firecrawl API settings.
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings for the fallback
// extractor.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// GeocodeConfig configures coordinate enrichment.
type GeocodeConfig struct {
	GoogleAPIKey string `yaml:"google_api_key" mapstructure:"google_api_key"`
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	BatchSize    int    `yaml:"batch_size" mapstructure:"batch_size"`
	Concurrency  int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// MonitoringConfig configures anomaly alerting.
type MonitoringConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// CrawlConfig bounds the content-fetch service.
type CrawlConfig struct {
	MaxPages         int `yaml:"max_pages" mapstructure:"max_pages"`
	TimeoutSecs      int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	PollSecs         int `yaml:"poll_secs" mapstructure:"poll_secs"`
	SourcePauseSecs  int `yaml:"source_pause_secs" mapstructure:"source_pause_secs"`
	BreakerThreshold int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// SourcesConfig locates the source registry file.
type SourcesConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// Load reads config.yaml (optional) and the environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BEACON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("geocode.user_agent", "booth-beacon-crawler/1.0")
	v.SetDefault("geocode.batch_size", 100)
	v.SetDefault("geocode.concurrency", 4)
	v.SetDefault("crawl.max_pages", 50)
	v.SetDefault("crawl.timeout_secs", 600)
	v.SetDefault("crawl.poll_secs", 5)
	v.SetDefault("crawl.source_pause_secs", 2)
	v.SetDefault("crawl.breaker_threshold", 5)
	v.SetDefault("sources.file", "sources.yaml")

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
