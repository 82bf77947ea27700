package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/quikefix/voice-rca/internal/engine"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent calls found in engine logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}

		calls, err := eng.ListCalls(cmd.Context(), 20)
		if err != nil {
			return err
		}

		if listJSON {
			type callJSON struct {
				ID   string    `json:"id"`
				Seen time.Time `json:"seen,omitempty"`
			}
			out := make([]callJSON, 0, len(calls))
			for _, c := range calls {
				out = append(out, callJSON{ID: c.ID, Seen: c.Seen})
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}
			if len(calls) == 0 {
				return engine.ErrNoCallsFound
			}
			return nil
		}

		if len(calls) == 0 {
			color.New(color.FgYellow).Println("No recent calls found")
			return engine.ErrNoCallsFound
		}

		fmt.Printf("Recent calls (%d):\n\n", len(calls))
		for i, c := range calls {
			fmt.Printf("%2d. %s", i+1, c.ID)
			if !c.Seen.IsZero() {
				fmt.Printf(" - %s ago", formatAge(time.Since(c.Seen)))
			}
			fmt.Println()
		}
		fmt.Println()
		fmt.Println("Usage: voice-rca analyze --call <id>")
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(listCmd)
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
}
