package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Agent    AgentConfig    `toml:"agent"`
	Staging  StagingConfig  `toml:"staging"`
	Database DatabaseConfig `toml:"database"`
	Runner   RunnerConfig   `toml:"runner"`
	Sync     SyncConfig     `toml:"sync"`
	Server   ServerConfig   `toml:"server"`
	Plugins  PluginsConfig  `toml:"plugins"`
	Observer ObserverConfig `toml:"observer"`
}

type AgentConfig struct {
	APIKey  string `toml:"api_key"`
	AgentID string `toml:"agent_id"`
	BaseURL string `toml:"base_url"`
}

type StagingConfig struct {
	Dir string `toml:"dir"`
}

type DatabaseConfig struct {
	Driver      string `toml:"driver"` // "sqlite" or "postgres"
	Path        string `toml:"path"`
	PostgresURL string `toml:"postgres_url"`
}

type RunnerConfig struct {
	MaxParallel          int `toml:"max_parallel"`
	PluginTimeoutSeconds int `toml:"plugin_timeout_seconds"`
}

type SyncConfig struct {
	MaxAttempts      int `toml:"max_attempts"`
	BaseDelaySeconds int `toml:"base_delay_seconds"`
	MaxParallel      int `toml:"max_parallel"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type PluginsConfig struct {
	Weather WeatherConfig `toml:"weather"`
	News    NewsConfig    `toml:"news"`
	Notes   NotesConfig   `toml:"notes"`
	Clock   ClockConfig   `toml:"clock"`
	Facts   FactsConfig   `toml:"facts"`
}

type WeatherConfig struct {
	Enabled bool   `toml:"enabled"`
	APIKey  string `toml:"api_key"`
	City    string `toml:"city"`
}

type NewsConfig struct {
	Enabled    bool   `toml:"enabled"`
	APIKey     string `toml:"api_key"`
	Country    string `toml:"country"`
	Category   string `toml:"category"`
	ExpandLead bool   `toml:"expand_lead"`
}

type NotesConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type ClockConfig struct {
	Enabled bool `toml:"enabled"`
}

type FactsConfig struct {
	Enabled bool `toml:"enabled"`
	Limit   int  `toml:"limit"` // most recent n facts in the digest; 0 = all
}

type ObserverConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Staging:  StagingConfig{Dir: "staging"},
		Database: DatabaseConfig{Driver: "sqlite", Path: "almanac.db"},
		Runner:   RunnerConfig{MaxParallel: 4, PluginTimeoutSeconds: 30},
		Sync:     SyncConfig{MaxAttempts: 3, BaseDelaySeconds: 1, MaxParallel: 4},
		Server:   ServerConfig{Addr: ":3000"},
		Plugins: PluginsConfig{
			Weather: WeatherConfig{City: "Unionville"},
			News:    NewsConfig{Country: "us"},
			Clock:   ClockConfig{Enabled: true},
			// Facts need no credentials; the store always exists, so the
			// webhook-saved facts reach the knowledge base out of the box.
			Facts: FactsConfig{Enabled: true},
		},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "almanac.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("ELEVENLABS_API_KEY"); v != "" {
		cfg.Agent.APIKey = v
	}
	if v := os.Getenv("ELEVENLABS_AGENT_ID"); v != "" {
		cfg.Agent.AgentID = v
	}
	if v := os.Getenv("OPENWEATHER_API_KEY"); v != "" {
		cfg.Plugins.Weather.APIKey = v
		cfg.Plugins.Weather.Enabled = true
	}
	if v := os.Getenv("NEWS_API_KEY"); v != "" {
		cfg.Plugins.News.APIKey = v
		cfg.Plugins.News.Enabled = true
	}
	if v := os.Getenv("ALMANAC_NOTES_DIR"); v != "" {
		cfg.Plugins.Notes.Dir = v
		cfg.Plugins.Notes.Enabled = true
	}
	if v := os.Getenv("ALMANAC_STAGING_DIR"); v != "" {
		cfg.Staging.Dir = v
	}
	if v := os.Getenv("ALMANAC_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("ALMANAC_POSTGRES_URL"); v != "" {
		cfg.Database.Driver = "postgres"
		cfg.Database.PostgresURL = v
	}
	if v := os.Getenv("ALMANAC_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	return cfg
}
