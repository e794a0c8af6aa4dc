package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variable names used to override secrets that must never be
// committed to config.yaml.
const (
	EnvVaultKey    = "YOURMOMENT_VAULT_KEY"
	EnvDatabaseURL = "YOURMOMENT_DATABASE_URL"
)

// Config holds the top-level application configuration.
type Config struct {
	Server     ServerConfig              `yaml:"server"`
	Database   DatabaseConfig            `yaml:"database"`
	Providers  map[string]ProviderConfig `yaml:"providers"`
	Scraper    ScraperConfig             `yaml:"scraper"`
	Scheduler  SchedulerConfig           `yaml:"scheduler"`
	Monitoring MonitoringConfig          `yaml:"monitoring"`

	// VaultKey is the 32-byte AES-256 key used by internal/crypto, read
	// from YOURMOMENT_VAULT_KEY rather than from YAML.
	VaultKey string `yaml:"-"`
}

// ServerConfig holds control-API HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds database connection settings. URL is normally
// supplied via YOURMOMENT_DATABASE_URL rather than committed to YAML.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// ProviderConfig routes a provider tag ("openai", "mistral", "anthropic")
// to the API base URL and model family used for it. Per-user accounts
// (API keys, chosen model, temperature) live in the LLMProviderConfig
// database entity, not here.
type ProviderConfig struct {
	Type string `yaml:"type"` // e.g. "openai"
	URL  string `yaml:"url"`  // base URL
}

// ScraperConfig holds settings for the upstream session registry, the
// rate limiter and the HTTP client used against the myMoment platform.
type ScraperConfig struct {
	BaseURL               string  `yaml:"base_url"`
	RequestsPerSecond     float64 `yaml:"requests_per_second"`
	RequestTimeoutSeconds int     `yaml:"request_timeout_seconds"`
	MaxConcurrentSessions int     `yaml:"max_concurrent_sessions"`
	DiscoveryLimit        int     `yaml:"discovery_limit"`
}

// SchedulerConfig holds settings for the pipeline scheduler.
type SchedulerConfig struct {
	TickPeriodSeconds        int `yaml:"tick_period_seconds"`
	MaxConcurrentGenerations int `yaml:"max_concurrent_generations"`
	MaxProcessDurationCap    int `yaml:"max_process_duration_cap_minutes"`
}

// MonitoringConfig holds settings for generated-comment disclosure.
type MonitoringConfig struct {
	AICommentPrefix string `yaml:"ai_comment_prefix"`
}

// defaults returns a Config populated with sensible default values, taken
// from the upstream platform's documented defaults.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database:  DatabaseConfig{},
		Providers: map[string]ProviderConfig{},
		Scraper: ScraperConfig{
			BaseURL:               "https://new.mymoment.ch",
			RequestsPerSecond:     2.0,
			RequestTimeoutSeconds: 30,
			MaxConcurrentSessions: 5,
			DiscoveryLimit:        20,
		},
		Scheduler: SchedulerConfig{
			TickPeriodSeconds:        60,
			MaxConcurrentGenerations: 5,
			MaxProcessDurationCap:    1440,
		},
		Monitoring: MonitoringConfig{
			AICommentPrefix: "[Dieser Kommentar stammt von einem KI-ChatBot.]",
		},
	}
}

// applyEnv overrides secret-bearing fields from the environment. It never
// clears a field that YAML already populated unless the env var is set.
// A .env file in the working directory is loaded first, if present, so
// local development doesn't require exporting these into the shell.
func applyEnv(cfg *Config) {
	godotenv.Load()

	if v := os.Getenv(EnvVaultKey); v != "" {
		cfg.VaultKey = v
	}
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		cfg.Database.URL = v
	}
}

// Load reads a YAML configuration file at path and returns a Config, with
// secrets overridden from the environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderConfig{}
	}

	applyEnv(cfg)
	return cfg, nil
}

// LoadDefault tries to load "config.yaml" from the current directory.
// If the file does not exist, it returns sensible defaults (with env
// overrides still applied). Any other error (e.g. permission denied,
// malformed YAML) is returned.
func LoadDefault() (*Config, error) {
	cfg, err := Load("config.yaml")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg = defaults()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}
