package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"RCA_LOG_SOURCE", "RCA_LOG_SINCE", "RCA_LIST_WINDOW",
		"RCA_RETRIEVE_TIMEOUT", "RCA_BASELINE_FILE", "LOG_LEVEL",
		"RCA_LLM_PROVIDER", "OPENAI_API_KEY", "ANTHROPIC_API_KEY",
		"RCA_LLM_MODEL", "RCA_LLM_TIMEOUT",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogSource != "ai_engine" {
		t.Fatalf("LogSource=%q", cfg.LogSource)
	}
	if cfg.LogSince != "72h" || cfg.ListWindow != "24h" {
		t.Fatalf("windows=%q/%q", cfg.LogSince, cfg.ListWindow)
	}
	if cfg.RetrieveTimeout != 30*time.Second {
		t.Fatalf("RetrieveTimeout=%v", cfg.RetrieveTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel=%q", cfg.LogLevel)
	}
	if cfg.LLM.Timeout != 15*time.Second {
		t.Fatalf("LLM.Timeout=%v", cfg.LLM.Timeout)
	}
	if cfg.LLM.Configured() {
		t.Fatalf("LLM should not be configured by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RCA_LOG_SOURCE", "voice-agent")
	t.Setenv("RCA_LOG_SINCE", "12h")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("RCA_LLM_TIMEOUT", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogSource != "voice-agent" || cfg.LogSince != "12h" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.LLM.Timeout != 5*time.Second {
		t.Fatalf("LLM.Timeout=%v", cfg.LLM.Timeout)
	}
	if !cfg.LLM.Configured() {
		t.Fatalf("LLM should be configured")
	}
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	t.Setenv("RCA_RETRIEVE_TIMEOUT", "soon")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for malformed duration")
	}
}
