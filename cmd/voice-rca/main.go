// voice-rca is the post-call root-cause-analysis CLI for the voice agent
// platform. It reads engine container logs, isolates one call, extracts
// audio-quality metrics, and prints a diagnosis report.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quikefix/voice-rca/internal/baseline"
	"github.com/quikefix/voice-rca/internal/config"
	"github.com/quikefix/voice-rca/internal/diagnose"
	"github.com/quikefix/voice-rca/internal/engine"
	"github.com/quikefix/voice-rca/internal/retrieve"
)

const version = "1.0.0"

// Exit codes. Benign covers outcomes where the pipeline worked but produced
// no report: no recent calls, or collect-only mode.
const (
	exitOK      = 0
	exitFailure = 1
	exitBenign  = 2
)

// errCollectOnly marks the intentional early stop of --collect-only runs.
var errCollectOnly = errors.New("collect-only mode does not produce a report")

var (
	verbose bool

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:     "voice-rca",
	Short:   "Post-call root cause analysis for voice agent calls",
	Version: version,
	Long: `Analyze voice agent calls from engine container logs.

Retrieves logs, correlates one call's lines (including helper channels),
extracts audio-quality metrics, compares them to golden baselines, and prints
a scored report. Optionally augments the report with an LLM diagnosis.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		logger = newLogger(cfg.LogLevel, verbose)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errCollectOnly) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps pipeline outcomes to process exit codes. No calls in the
// window and no lines for a requested call are expected operator outcomes,
// not failures; collect-only stops early by design.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errCollectOnly),
		errors.Is(err, engine.ErrNoCallsFound),
		errors.Is(err, engine.ErrNoLogsForCall):
		return exitBenign
	default:
		return exitFailure
	}
}

// newLogger builds the text handler on stderr so stdout stays clean for
// report output.
func newLogger(level string, verbose bool) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// newEngine wires the production pipeline from the loaded config.
func newEngine() (*engine.Engine, error) {
	reg := baseline.NewRegistry()
	if cfg.BaselineFile != "" {
		if err := reg.LoadFile(cfg.BaselineFile); err != nil {
			return nil, err
		}
	}

	var aug engine.Augmenter
	if cfg.LLM.Configured() {
		analyzer, err := diagnose.NewAnalyzer(diagnose.Options{
			Provider:        cfg.LLM.Provider,
			OpenAIAPIKey:    cfg.LLM.OpenAIAPIKey,
			AnthropicAPIKey: cfg.LLM.AnthropicAPIKey,
			Model:           cfg.LLM.Model,
			Timeout:         cfg.LLM.Timeout,
			Logger:          logger,
		})
		if err != nil {
			logger.Warn("llm augmentation disabled", "error", err)
		} else {
			aug = analyzer
		}
	}

	retriever := retrieve.NewDockerRetriever(cfg.LogSource, cfg.RetrieveTimeout)
	return engine.New(logger, cfg, retriever, reg, aug), nil
}
