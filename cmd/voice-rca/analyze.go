package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/quikefix/voice-rca/internal/engine"
	"github.com/quikefix/voice-rca/internal/report"
)

var (
	analyzeCallID      string
	analyzeLast        bool
	analyzeSymptom     string
	analyzeCollectOnly bool
	analyzeNoLLM       bool
	analyzeForceLLM    bool
	analyzeJSON        bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [call_id]",
	Short: "Analyze one call and print the RCA report",
	Long: `Analyze a specific call (or the most recent one) and print an RCA report.

Without a call id, recent calls are listed for interactive selection; with
--last or --json, the most recent call is analyzed directly.

Symptoms focus the analysis: no-audio, garbled, echo, interruption, one-way.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeCallID, "call", "", "analyze specific call ID")
	analyzeCmd.Flags().BoolVar(&analyzeLast, "last", false, "analyze the most recent call")
	analyzeCmd.Flags().StringVar(&analyzeSymptom, "symptom", "", "reported symptom (no-audio, garbled, echo, interruption, one-way)")
	analyzeCmd.Flags().BoolVar(&analyzeCollectOnly, "collect-only", false, "collect call logs without analyzing")
	analyzeCmd.Flags().BoolVar(&analyzeNoLLM, "no-llm", false, "disable LLM diagnosis")
	analyzeCmd.Flags().BoolVar(&analyzeForceLLM, "llm", false, "force LLM diagnosis (even for healthy calls)")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	callID := analyzeCallID
	if callID == "" && len(args) == 1 {
		callID = args[0]
	}

	if callID == "" || callID == "last" {
		calls, err := eng.ListCalls(ctx, 10)
		if err != nil {
			return fmt.Errorf("discover recent calls: %w", err)
		}
		if len(calls) == 0 {
			if analyzeJSON {
				_ = report.Failed("", "no recent calls found (make a test call and re-run)").WriteJSON(os.Stdout)
			}
			return engine.ErrNoCallsFound
		}

		if analyzeLast || callID == "last" || analyzeJSON {
			callID = calls[0].ID
			if !analyzeJSON {
				color.New(color.FgBlue).Printf("Analyzing most recent call: %s\n\n", callID)
			}
		} else {
			callID, err = selectCall(calls)
			if err != nil {
				return err
			}
			color.New(color.FgBlue).Printf("Analyzing call: %s\n\n", callID)
		}
	}

	if analyzeCollectOnly {
		scoped, err := eng.Collect(ctx, callID)
		if err != nil {
			return collectFailure(callID, err)
		}
		if analyzeJSON {
			_ = report.Failed(callID, errCollectOnly.Error()).WriteJSON(os.Stdout)
		} else {
			fmt.Printf("Data collection complete: %d lines for call %s", len(scoped.Lines), callID)
			if len(scoped.Related) > 0 {
				fmt.Printf(" (related channels: %v)", scoped.Related)
			}
			fmt.Println()
		}
		return errCollectOnly
	}

	rep, err := eng.Analyze(ctx, engine.Request{
		CallID:   callID,
		Symptom:  analyzeSymptom,
		SkipLLM:  analyzeNoLLM,
		ForceLLM: analyzeForceLLM,
	})
	if err != nil {
		return collectFailure(callID, err)
	}

	if analyzeJSON {
		return rep.WriteJSON(os.Stdout)
	}
	report.NewRenderer(os.Stdout).Render(rep)
	return nil
}

// collectFailure keeps JSON consumers supplied with an artifact even when
// retrieval or scoping fails.
func collectFailure(callID string, err error) error {
	if analyzeJSON {
		msg := err.Error()
		if errors.Is(err, engine.ErrNoLogsForCall) {
			msg = "no engine logs found for this call_id (enable info/debug logging, make a test call, and re-run)"
		}
		_ = report.Failed(callID, msg).WriteJSON(os.Stdout)
	}
	return err
}
