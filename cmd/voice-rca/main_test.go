package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/quikefix/voice-rca/internal/engine"
)

func TestExitCodeMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, exitOK},
		{"collect only", errCollectOnly, exitBenign},
		{"no recent calls", engine.ErrNoCallsFound, exitBenign},
		{"no logs for call", engine.ErrNoLogsForCall, exitBenign},
		{"wrapped no logs for call", fmt.Errorf("analyze 1.2: %w", engine.ErrNoLogsForCall), exitBenign},
		{"source failure", errors.New("docker not found"), exitFailure},
	}
	for _, tc := range cases {
		if got := exitCode(tc.err); got != tc.want {
			t.Fatalf("%s: exitCode(%v)=%d want %d", tc.name, tc.err, got, tc.want)
		}
	}
}
