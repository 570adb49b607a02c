// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	DB        DBConfig        `mapstructure:"db"`
	Scrape    ScrapeConfig    `mapstructure:"scrape"`
	Retention RetentionConfig `mapstructure:"retention"`
	Export    ExportConfig    `mapstructure:"export"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// DBConfig controls access to the Postgres database.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// ScrapeConfig governs the headless scraping pipeline.
type ScrapeConfig struct {
	// Categories maps a category identifier to its best-seller page URL.
	Categories map[string]string `mapstructure:"categories"`

	UserAgent      string `mapstructure:"user_agent"`
	MaxItems       int    `mapstructure:"max_items"`
	SettleDelaySec int    `mapstructure:"settle_delay_seconds"`
	NavTimeoutSec  int    `mapstructure:"nav_timeout_seconds"`
	RunTimeoutSec  int    `mapstructure:"run_timeout_seconds"`
}

// RetentionConfig sets the pruning horizon for old snapshots.
type RetentionConfig struct {
	Days int `mapstructure:"days"`
}

// ExportConfig configures spreadsheet export behavior.
type ExportConfig struct {
	ThumbnailTimeoutSec int `mapstructure:"thumbnail_timeout_seconds"`
}

// ScheduleConfig enables the cron-driven scrape of all categories.
type ScheduleConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Spec    string `mapstructure:"spec"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RANKING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("scrape.categories", defaultCategories())
	v.SetDefault("scrape.user_agent", "ranking-crawler/0.1")
	v.SetDefault("scrape.max_items", 100)
	v.SetDefault("scrape.settle_delay_seconds", 3)
	v.SetDefault("scrape.nav_timeout_seconds", 45)
	v.SetDefault("scrape.run_timeout_seconds", 120)
	v.SetDefault("retention.days", 7)
	v.SetDefault("export.thumbnail_timeout_seconds", 5)
	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.spec", "0 6 * * *")
	v.SetDefault("logging.development", true)
}

// defaultCategories is the marketplace's best-seller category map.
func defaultCategories() map[string]string {
	return map[string]string{
		"total":       "https://www.qoo10.jp/gmkt.inc/BestSellers/",
		"fashion":     "https://www.qoo10.jp/gmkt.inc/Bestsellers/?g=1",
		"beauty":      "https://www.qoo10.jp/gmkt.inc/Bestsellers/?g=2",
		"men_sports":  "https://www.qoo10.jp/gmkt.inc/Bestsellers/?g=3",
		"appliance":   "https://www.qoo10.jp/gmkt.inc/Bestsellers/?g=4",
		"smart_phone": "https://www.qoo10.jp/gmkt.inc/Bestsellers/?g=5",
		"food":        "https://www.qoo10.jp/gmkt.inc/Bestsellers/?g=6",
		"pet":         "https://www.qoo10.jp/gmkt.inc/Bestsellers/?g=15",
		"kids":        "https://www.qoo10.jp/gmkt.inc/Bestsellers/?g=13",
		"k-pop":       "https://www.qoo10.jp/gmkt.inc/Bestsellers/?g=10",
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if len(c.Scrape.Categories) == 0 {
		return fmt.Errorf("scrape.categories must not be empty")
	}
	for name, url := range c.Scrape.Categories {
		if url == "" {
			return fmt.Errorf("scrape.categories[%s] must not be empty", name)
		}
	}
	if c.Scrape.MaxItems <= 0 {
		return fmt.Errorf("scrape.max_items must be > 0")
	}
	if c.Scrape.NavTimeoutSec <= 0 {
		return fmt.Errorf("scrape.nav_timeout_seconds must be > 0")
	}
	if c.Retention.Days <= 0 {
		return fmt.Errorf("retention.days must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Schedule.Enabled && c.Schedule.Spec == "" {
		return fmt.Errorf("schedule.spec must be set when schedule is enabled")
	}
	return nil
}

// SettleDelay returns the client-side render settle delay as a duration.
func (c ScrapeConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelaySec) * time.Second
}

// NavTimeout returns the per-navigation timeout as a duration.
func (c ScrapeConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSec) * time.Second
}

// RunTimeout bounds a whole scrape invocation.
func (c ScrapeConfig) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutSec) * time.Second
}

// Horizon returns the retention window as a duration.
func (c RetentionConfig) Horizon() time.Duration {
	return time.Duration(c.Days) * 24 * time.Hour
}

// ThumbnailTimeout bounds a single thumbnail fetch during export.
func (c ExportConfig) ThumbnailTimeout() time.Duration {
	return time.Duration(c.ThumbnailTimeoutSec) * time.Second
}
