// Package config loads application configuration from a YAML file with
// environment variable overrides for credentials and paths.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration. Credentials are read-only
// from the core's perspective; they are resolved once at startup.
type Config struct {
	// API holds backend credentials and model selection.
	API APIConfig `yaml:"api"`

	// DataDir is the root for persisted session logs and records.
	DataDir string `yaml:"data_dir"`

	// PromptPath is the instruction prompt file applied on a session's
	// first turn.
	PromptPath string `yaml:"prompt_path"`

	// Redis, when configured, persists session history in Redis instead
	// of local files.
	Redis RedisConfig `yaml:"redis"`

	// MetricsAddr, when non-empty, serves Prometheus metrics.
	MetricsAddr string `yaml:"metrics_addr"`

	// Verbose enables debug logging.
	Verbose bool `yaml:"verbose"`
}

// APIConfig selects the backend endpoints and models.
type APIConfig struct {
	Key                string `yaml:"key"`
	BaseURL            string `yaml:"base_url"`
	RealtimeURL        string `yaml:"realtime_url"`
	AnalysisModel      string `yaml:"analysis_model"`
	TranscriptionModel string `yaml:"transcription_model"`
}

// RedisConfig configures optional Redis-backed session persistence.
type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
}

// Duration accepts Go duration strings ("1h30m") in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Enabled reports whether Redis persistence is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// ErrMissingAPIKey is returned by Validate when no API key is resolved.
var ErrMissingAPIKey = errors.New("config: API key is not set")

// Load reads configuration from path, then applies environment
// overrides. A missing file is not an error; the configuration then
// comes entirely from the environment and defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// Fall through to environment and defaults.
		default:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func defaults() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		DataDir: filepath.Join(home, ".specter", "sessions"),
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.API.Key = v
	}
	if v := os.Getenv("SPECTER_API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("SPECTER_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("SPECTER_PROMPT_PATH"); v != "" {
		cfg.PromptPath = v
	}
	if v := os.Getenv("SPECTER_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SPECTER_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	if c.API.Key == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// LoadPrompt reads the instruction prompt file.
func (c *Config) LoadPrompt() (string, error) {
	if c.PromptPath == "" {
		return "", errors.New("config: prompt path is not set")
	}
	data, err := os.ReadFile(c.PromptPath)
	if err != nil {
		return "", fmt.Errorf("reading prompt file: %w", err)
	}
	return string(data), nil
}
