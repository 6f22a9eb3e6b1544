// Package config loads deepscout configuration from a YAML file with
// environment variable overrides. The config lives in the state directory
// (default ~/.deepscout) alongside the session database and logs.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all deepscout configuration.
type Config struct {
	// LLM configuration for the embedded research engine.
	LLM LLMConfig `yaml:"llm"`

	// Search configuration for web research.
	Search SearchConfig `yaml:"search"`

	// Logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// StateDir is where the session database and logs live.
	// Defaults to ~/.deepscout.
	StateDir string `yaml:"state_dir"`
}

// LLMConfig configures the Gemini models used by the research pipeline.
type LLMConfig struct {
	APIKey string `yaml:"api_key"`

	// QueryModel generates and summarizes; ReasoningModel handles
	// reflection and the quality pipeline; AnswerModel writes the final
	// report.
	QueryModel     string `yaml:"query_model"`
	ReasoningModel string `yaml:"reasoning_model"`
	AnswerModel    string `yaml:"answer_model"`
}

// SearchConfig configures the web search backend.
type SearchConfig struct {
	TavilyAPIKey string `yaml:"tavily_api_key"`
	MaxResults   int    `yaml:"max_results"`
}

// LoggingConfig configures debug logging.
type LoggingConfig struct {
	Debug bool   `yaml:"debug"`
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the built-in configuration.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		LLM: LLMConfig{
			QueryModel:     "gemini-2.5-flash",
			ReasoningModel: "gemini-2.5-pro",
			AnswerModel:    "gemini-2.5-pro",
		},
		Search: SearchConfig{
			MaxResults: 5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		StateDir: filepath.Join(home, ".deepscout"),
	}
}

// Load reads config.yaml from the default state directory, falling back
// to defaults when the file is absent. Environment variables override
// file values.
func Load() (Config, error) {
	cfg := Default()
	return loadFrom(filepath.Join(cfg.StateDir, "config.yaml"))
}

// LoadFrom reads configuration from an explicit path.
func LoadFrom(path string) (Config, error) {
	return loadFrom(path)
}

func loadFrom(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyDefaults fills zero-valued fields so a sparse config file still
// yields a usable configuration.
func (c *Config) applyDefaults() {
	def := Default()
	if c.LLM.QueryModel == "" {
		c.LLM.QueryModel = def.LLM.QueryModel
	}
	if c.LLM.ReasoningModel == "" {
		c.LLM.ReasoningModel = def.LLM.ReasoningModel
	}
	if c.LLM.AnswerModel == "" {
		c.LLM.AnswerModel = def.LLM.AnswerModel
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = def.Search.MaxResults
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.StateDir == "" {
		c.StateDir = def.StateDir
	}
}

// applyEnvOverrides applies environment variables on top of file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("TAVILY_API_KEY"); v != "" {
		c.Search.TavilyAPIKey = v
	}
	if v := os.Getenv("DEEPSCOUT_STATE_DIR"); v != "" {
		c.StateDir = v
	}
	if v := os.Getenv("DEEPSCOUT_DEBUG"); v == "1" || v == "true" {
		c.Logging.Debug = true
		c.Logging.Level = "debug"
	}
}

// EnsureStateDir creates the state directory if needed and returns it.
func (c *Config) EnsureStateDir() (string, error) {
	if err := os.MkdirAll(c.StateDir, 0755); err != nil {
		return "", fmt.Errorf("create state dir: %w", err)
	}
	return c.StateDir, nil
}
