// Package config loads the voxline server configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// Defaults applied by Load.
const (
	DefaultListen         = "127.0.0.1:8080"
	DefaultDataDir        = "data"
	DefaultLanguage       = "el"
	DefaultCaptureTimeout = 10 * time.Second
)

// Config is the top-level server configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// DataDir holds the ledger database, credential store, and local
	// audio artifacts.
	DataDir string `yaml:"data_dir"`

	// Language is the transcription hint and synthesis language.
	// Locale-style values ("el-GR") are accepted.
	Language string `yaml:"language"`

	// Greeting overrides the fixed opening utterance. Optional.
	Greeting string `yaml:"greeting"`

	// CaptureTimeoutSeconds bounds one capture wait. Zero means 10s.
	CaptureTimeoutSeconds int `yaml:"capture_timeout_seconds"`

	STT       Adapter   `yaml:"stt"`
	TTS       Adapter   `yaml:"tts"`
	LLM       Adapter   `yaml:"llm"`
	Artifacts Artifacts `yaml:"artifacts"`
}

// Adapter selects and tunes one backend adapter.
type Adapter struct {
	// Provider names the backend: "openai" for stt/tts;
	// "openai" or "gemini" for llm.
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Voice    string `yaml:"voice"`  // tts only
	System   string `yaml:"system"` // llm only
}

// Artifacts selects the audio artifact backend.
type Artifacts struct {
	// Backend is "local" (default) or "s3".
	Backend string `yaml:"backend"`
	Bucket  string `yaml:"bucket"`
	Prefix  string `yaml:"prefix"`
}

// CaptureTimeout returns the configured capture timeout.
func (c *Config) CaptureTimeout() time.Duration {
	if c.CaptureTimeoutSeconds <= 0 {
		return DefaultCaptureTimeout
	}
	return time.Duration(c.CaptureTimeoutSeconds) * time.Second
}

// Load reads and validates a configuration file. An empty path yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.STT.Provider == "" {
		c.STT.Provider = "openai"
	}
	if c.TTS.Provider == "" {
		c.TTS.Provider = "openai"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.Artifacts.Backend == "" {
		c.Artifacts.Backend = "local"
	}
}

func (c *Config) validate() error {
	switch c.Artifacts.Backend {
	case "local":
	case "s3":
		if c.Artifacts.Bucket == "" {
			return fmt.Errorf("config: artifacts.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("config: unknown artifacts backend %q", c.Artifacts.Backend)
	}

	if c.STT.Provider != "openai" {
		return fmt.Errorf("config: unknown stt provider %q", c.STT.Provider)
	}
	if c.TTS.Provider != "openai" {
		return fmt.Errorf("config: unknown tts provider %q", c.TTS.Provider)
	}
	switch c.LLM.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("config: unknown llm provider %q", c.LLM.Provider)
	}
	return nil
}
