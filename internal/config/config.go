// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config is the full runtime configuration. Flags override these values at
// the CLI layer; the environment is the base.
type Config struct {
	// LogSource is the docker container (or compose service) holding the
	// engine logs.
	LogSource string `env:"RCA_LOG_SOURCE" envDefault:"ai_engine"`

	// LogSince bounds single-call analysis retrieval.
	LogSince string `env:"RCA_LOG_SINCE" envDefault:"72h"`

	// ListWindow bounds call discovery, which scans far more lines.
	ListWindow string `env:"RCA_LIST_WINDOW" envDefault:"24h"`

	RetrieveTimeout time.Duration `env:"RCA_RETRIEVE_TIMEOUT" envDefault:"30s"`

	// BaselineFile optionally merges operator profiles over the built-ins.
	BaselineFile string `env:"RCA_BASELINE_FILE"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	LLM LLMConfig
}

// LLMConfig configures the optional diagnosis augmenter. All fields empty
// means augmentation is unavailable, which is a supported mode.
type LLMConfig struct {
	Provider        string        `env:"RCA_LLM_PROVIDER"`
	OpenAIAPIKey    string        `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string        `env:"ANTHROPIC_API_KEY"`
	Model           string        `env:"RCA_LLM_MODEL"`
	Timeout         time.Duration `env:"RCA_LLM_TIMEOUT" envDefault:"15s"`
}

// Load reads .env if present, then parses the environment. A missing .env is
// not an error; a malformed environment value is.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Configured reports whether any provider credential is present.
func (l LLMConfig) Configured() bool {
	return l.OpenAIAPIKey != "" || l.AnthropicAPIKey != ""
}
