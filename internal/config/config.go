// Package config loads application configuration from file and environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root application configuration. It is constructed once at
// startup and passed explicitly into constructors.
type Config struct {
	Env         string          `mapstructure:"env"`
	LogLevel    string          `mapstructure:"log_level"`
	LogEncoding string          `mapstructure:"log_encoding"`
	Port        string          `mapstructure:"port"`
	Providers   ProvidersConfig `mapstructure:"providers"`
	Crawler     CrawlerConfig   `mapstructure:"crawler"`
	Database    DatabaseConfig  `mapstructure:"database"`
}

// ProvidersConfig holds per-provider credentials and tuning.
type ProvidersConfig struct {
	Serper    SerperConfig    `mapstructure:"serper"`
	Brave     BraveConfig     `mapstructure:"brave"`
	GoogleCSE GoogleCSEConfig `mapstructure:"google_cse"`
}

// SerperConfig configures the serper.dev client.
type SerperConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// BraveConfig configures the Brave Search API client.
type BraveConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// GoogleCSEConfig configures the Google Custom Search client.
type GoogleCSEConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	EngineID          string        `mapstructure:"engine_id"`
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	MaxRetries        int           `mapstructure:"max_retries"`
}

// CrawlerConfig holds crawler-wide defaults applied to new jobs.
type CrawlerConfig struct {
	UserAgent       string  `mapstructure:"user_agent"`
	DelayMinSeconds float64 `mapstructure:"delay_min_seconds"`
	DelayMaxSeconds float64 `mapstructure:"delay_max_seconds"`
	MaxRetries      int     `mapstructure:"max_retries"`
	TimeoutSeconds  int     `mapstructure:"timeout_seconds"`
	RespectRobots   bool    `mapstructure:"respect_robots"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// Load reads configuration from the given file (optional) and the environment.
// Environment variables use the OBSERVATORY_ prefix with underscores, e.g.
// OBSERVATORY_PROVIDERS_SERPER_API_KEY.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("OBSERVATORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env and defaults still apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_encoding", "console")
	v.SetDefault("port", "8060")

	v.SetDefault("providers.serper.base_url", "https://google.serper.dev/search")
	v.SetDefault("providers.serper.timeout", 15*time.Second)
	v.SetDefault("providers.brave.base_url", "https://api.search.brave.com/res/v1/web/search")
	v.SetDefault("providers.brave.timeout", 15*time.Second)
	v.SetDefault("providers.google_cse.base_url", "https://www.googleapis.com/customsearch/v1")
	v.SetDefault("providers.google_cse.timeout", 20*time.Second)
	v.SetDefault("providers.google_cse.requests_per_minute", 100)
	v.SetDefault("providers.google_cse.max_retries", 2)

	v.SetDefault("crawler.user_agent", "IssueObservatoryBot/1.0")
	v.SetDefault("crawler.delay_min_seconds", 1.0)
	v.SetDefault("crawler.delay_max_seconds", 3.0)
	v.SetDefault("crawler.max_retries", 2)
	v.SetDefault("crawler.timeout_seconds", 30)
	v.SetDefault("crawler.respect_robots", true)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "observatory")
	v.SetDefault("database.ssl_mode", "disable")
}
