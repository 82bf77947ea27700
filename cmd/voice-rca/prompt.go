package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/quikefix/voice-rca/internal/correlate"
)

// selectCall shows a numbered call list on stdout and reads a choice from
// stdin. Empty input picks the most recent call.
func selectCall(calls []correlate.Call) (string, error) {
	fmt.Println()
	color.New(color.FgBlue).Printf("  Recent calls (%d):\n", len(calls))
	for i, c := range calls {
		fmt.Printf("  %d) %s", i+1, c.ID)
		if !c.Seen.IsZero() {
			fmt.Printf(" - %s ago", formatAge(time.Since(c.Seen)))
		}
		fmt.Println()
	}
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	color.New(color.FgCyan, color.Bold).Print("  Choice [1]: ")

	input, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read selection: %w", err)
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return calls[0].ID, nil
	}

	choice, err := strconv.Atoi(input)
	if err != nil || choice < 1 || choice > len(calls) {
		return "", fmt.Errorf("invalid selection %q (expected 1-%d)", input, len(calls))
	}
	return calls[choice-1].ID, nil
}
