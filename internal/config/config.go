// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs for the scraper, extractor, and API.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	DB        DBConfig        `mapstructure:"db"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DBConfig locates the SQLite database file.
type DBConfig struct {
	Path string `mapstructure:"path"`
}

// ScraperConfig governs the page fetch loop.
type ScraperConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	LoginPageURL   string `mapstructure:"login_page_url"`
	LoginURL       string `mapstructure:"login_url"`
	UserAgent      string `mapstructure:"user_agent"`
	RecordsPerPage int    `mapstructure:"records_per_page"`
	DelaySeconds   int    `mapstructure:"delay_seconds"`
	MaxPages       int    `mapstructure:"max_pages"`
	Email          string `mapstructure:"email"`
	Password       string `mapstructure:"password"`
}

// ExtractorConfig controls the extraction-service client and batch pipeline.
type ExtractorConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	BatchSize      int    `mapstructure:"batch_size"`
	Workers        int    `mapstructure:"workers"`
	MaxAttempts    int    `mapstructure:"max_attempts"`
	BackoffBaseMs  int    `mapstructure:"backoff_base_ms"`
	BackoffMaxMs   int    `mapstructure:"backoff_max_ms"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk and environment. An empty path skips the
// config file and relies on defaults plus environment variables.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FISHING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Credentials keep the env names the deployment already uses.
	bindCredentialEnv(v)
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func bindCredentialEnv(v *viper.Viper) {
	_ = v.BindEnv("extractor.api_key", "OPENAI_API_KEY", "FISHING_EXTRACTOR_API_KEY")
	_ = v.BindEnv("scraper.email", "LAKELINK_EMAIL", "FISHING_SCRAPER_EMAIL")
	_ = v.BindEnv("scraper.password", "LAKELINK_PASSWORD", "FISHING_SCRAPER_PASSWORD")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost:5173",
		"http://localhost:3000",
		"http://127.0.0.1:5173",
	})
	v.SetDefault("db.path", "fishing_reports.db")
	v.SetDefault("scraper.base_url",
		"https://www.lake-link.com/wisconsin-fishing-reports/delavan-lake-walworth-county/4470/")
	v.SetDefault("scraper.login_page_url", "https://www.lake-link.com/login/")
	v.SetDefault("scraper.login_url",
		"https://www.lake-link.com/assets/cfcs/authenticate.cfc?method=authenticateUser")
	v.SetDefault("scraper.user_agent",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("scraper.records_per_page", 50)
	v.SetDefault("scraper.delay_seconds", 1)
	v.SetDefault("scraper.max_pages", 0)
	v.SetDefault("extractor.base_url", "https://api.openai.com/v1")
	v.SetDefault("extractor.model", "gpt-4o-mini")
	v.SetDefault("extractor.timeout_seconds", 60)
	v.SetDefault("extractor.batch_size", 100)
	v.SetDefault("extractor.workers", 10)
	v.SetDefault("extractor.max_attempts", 3)
	v.SetDefault("extractor.backoff_base_ms", 2000)
	v.SetDefault("extractor.backoff_max_ms", 10000)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.DB.Path == "" {
		return fmt.Errorf("db.path must be set")
	}
	if c.Scraper.BaseURL == "" {
		return fmt.Errorf("scraper.base_url must be set")
	}
	if c.Scraper.RecordsPerPage <= 0 {
		return fmt.Errorf("scraper.records_per_page must be > 0")
	}
	if c.Extractor.Workers <= 0 {
		return fmt.Errorf("extractor.workers must be > 0")
	}
	if c.Extractor.BatchSize <= 0 {
		return fmt.Errorf("extractor.batch_size must be > 0")
	}
	if c.Extractor.MaxAttempts <= 0 {
		return fmt.Errorf("extractor.max_attempts must be > 0")
	}
	return nil
}

// ScrapeDelay returns the pause between listing-page requests.
func (c Config) ScrapeDelay() time.Duration {
	return time.Duration(c.Scraper.DelaySeconds) * time.Second
}

// ExtractionTimeout bounds a single extraction-service call.
func (c Config) ExtractionTimeout() time.Duration {
	return time.Duration(c.Extractor.TimeoutSeconds) * time.Second
}
