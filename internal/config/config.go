// Package config loads server configuration from an optional YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Port   int    `yaml:"port"`
	DBPath string `yaml:"db_path"`

	LLM        LLMConfig        `yaml:"llm"`
	Simulation SimulationConfig `yaml:"simulation"`
	Flusher    FlusherConfig    `yaml:"flusher"`
}

// LLMConfig selects the decision-service provider and models.
type LLMConfig struct {
	Provider string `yaml:"provider"` // claude, openai, gemini, local
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`

	CentralModel string `yaml:"central_model"`
	CitizenModel string `yaml:"citizen_model"`
}

// SimulationConfig tunes the simulation loop.
type SimulationConfig struct {
	MaxConcurrency     int           `yaml:"max_concurrency"`
	MapReduceThreshold int           `yaml:"map_reduce_threshold"`
	MaxClusterSize     int           `yaml:"max_cluster_size"`
	PauseCheckInterval time.Duration `yaml:"pause_check_interval"`
	RetryBaseDelay     time.Duration `yaml:"retry_base_delay"`
}

// FlusherConfig tunes the deferred write buffer.
type FlusherConfig struct {
	Interval      time.Duration `yaml:"interval"`
	BulkThreshold int           `yaml:"bulk_threshold"`
}

func defaults() Config {
	return Config{
		Port:   8080,
		DBPath: "data/idealworld.db",
		LLM: LLMConfig{
			Provider:     "claude",
			CentralModel: "claude-sonnet-4-20250514",
			CitizenModel: "claude-3-5-haiku-20241022",
		},
		Simulation: SimulationConfig{
			MaxConcurrency:     10,
			MapReduceThreshold: 30,
			MaxClusterSize:     10,
			PauseCheckInterval: 500 * time.Millisecond,
			RetryBaseDelay:     time.Second,
		},
		Flusher: FlusherConfig{
			Interval:      500 * time.Millisecond,
			BulkThreshold: 200,
		},
	}
}

// Load reads the YAML file at path (skipped when empty) and applies
// IDEALWORLD_* environment overrides on top.
func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("config file: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = envIntOrDefault("IDEALWORLD_PORT", c.Port)
	c.DBPath = envOrDefault("IDEALWORLD_DB_PATH", c.DBPath)

	c.LLM.Provider = envOrDefault("IDEALWORLD_LLM_PROVIDER", c.LLM.Provider)
	c.LLM.APIKey = envOrDefault("IDEALWORLD_LLM_API_KEY", c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	c.LLM.BaseURL = envOrDefault("IDEALWORLD_LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.CentralModel = envOrDefault("IDEALWORLD_CENTRAL_MODEL", c.LLM.CentralModel)
	c.LLM.CitizenModel = envOrDefault("IDEALWORLD_CITIZEN_MODEL", c.LLM.CitizenModel)

	c.Simulation.MaxConcurrency = envIntOrDefault("IDEALWORLD_MAX_CONCURRENCY", c.Simulation.MaxConcurrency)
	c.Simulation.MapReduceThreshold = envIntOrDefault("IDEALWORLD_MAPREDUCE_THRESHOLD", c.Simulation.MapReduceThreshold)
	c.Simulation.MaxClusterSize = envIntOrDefault("IDEALWORLD_MAX_CLUSTER_SIZE", c.Simulation.MaxClusterSize)
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	switch c.LLM.Provider {
	case "claude", "openai", "gemini", "local":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.Simulation.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be at least 1, got %d", c.Simulation.MaxConcurrency)
	}
	if c.Simulation.MaxClusterSize < 1 {
		return fmt.Errorf("max_cluster_size must be at least 1, got %d", c.Simulation.MaxClusterSize)
	}
	if c.Flusher.BulkThreshold < 1 {
		return fmt.Errorf("bulk_threshold must be at least 1, got %d", c.Flusher.BulkThreshold)
	}
	return nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
