package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 100, cfg.Scrape.MaxItems)
	require.Equal(t, 7, cfg.Retention.Days)
	require.False(t, cfg.Schedule.Enabled)
	require.Equal(t, "0 6 * * *", cfg.Schedule.Spec)

	require.Len(t, cfg.Scrape.Categories, 10)
	require.Contains(t, cfg.Scrape.Categories, "total")
	require.Contains(t, cfg.Scrape.Categories, "beauty")

	require.Equal(t, 3*time.Second, cfg.Scrape.SettleDelay())
	require.Equal(t, 45*time.Second, cfg.Scrape.NavTimeout())
	require.Equal(t, 120*time.Second, cfg.Scrape.RunTimeout())
	require.Equal(t, 7*24*time.Hour, cfg.Retention.Horizon())
	require.Equal(t, 5*time.Second, cfg.Export.ThumbnailTimeout())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  port: 9090
scrape:
  max_items: 50
  categories:
    beauty: "https://www.qoo10.jp/gmkt.inc/Bestsellers/?g=2"
retention:
  days: 14
schedule:
  enabled: true
  spec: "30 5 * * *"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 50, cfg.Scrape.MaxItems)
	require.Equal(t, 14, cfg.Retention.Days)
	require.True(t, cfg.Schedule.Enabled)
	require.Equal(t, "30 5 * * *", cfg.Schedule.Spec)
	require.Equal(t,
		"https://www.qoo10.jp/gmkt.inc/Bestsellers/?g=2",
		cfg.Scrape.Categories["beauty"])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:    ServerConfig{Port: 8080},
			Scrape:    ScrapeConfig{Categories: map[string]string{"beauty": "https://x"}, MaxItems: 100, NavTimeoutSec: 45},
			Retention: RetentionConfig{Days: 7},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero port", mutate: func(c *Config) { c.Server.Port = 0 }},
		{name: "no categories", mutate: func(c *Config) { c.Scrape.Categories = nil }},
		{name: "empty category url", mutate: func(c *Config) { c.Scrape.Categories["beauty"] = "" }},
		{name: "zero max items", mutate: func(c *Config) { c.Scrape.MaxItems = 0 }},
		{name: "zero nav timeout", mutate: func(c *Config) { c.Scrape.NavTimeoutSec = 0 }},
		{name: "zero retention", mutate: func(c *Config) { c.Retention.Days = 0 }},
		{name: "auth without key", mutate: func(c *Config) { c.Auth.Enabled = true }},
		{name: "schedule without spec", mutate: func(c *Config) { c.Schedule.Enabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
