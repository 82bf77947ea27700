package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/quikefix/voice-rca/internal/diagnose"
	"github.com/quikefix/voice-rca/internal/metrics"
	"github.com/quikefix/voice-rca/internal/score"
)

func manyLines(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s %d", prefix, i)
	}
	return out
}

func TestBuildAppliesCaps(t *testing.T) {
	t.Parallel()

	rep := Build(Input{
		CallID:      "1769800000.100",
		Errors:      manyLines("error", 25),
		Warnings:    manyLines("warning", 30),
		AudioIssues: manyLines("issue", 60),
		Diagnosis:   diagnose.Unavailable("not configured"),
	})

	if len(rep.Errors) != MaxErrors || rep.ErrorTotal != 25 {
		t.Fatalf("errors=%d total=%d", len(rep.Errors), rep.ErrorTotal)
	}
	if len(rep.Warnings) != MaxWarnings || rep.WarningTotal != 30 {
		t.Fatalf("warnings=%d total=%d", len(rep.Warnings), rep.WarningTotal)
	}
	if len(rep.AudioIssues) != MaxAudioIssues || rep.AudioIssueTot != 60 {
		t.Fatalf("audio issues=%d total=%d", len(rep.AudioIssues), rep.AudioIssueTot)
	}
	if rep.RunID == "" {
		t.Fatalf("missing run id")
	}
	if rep.GeneratedAt.IsZero() {
		t.Fatalf("missing timestamp")
	}
}

func TestBuildShortListsUncapped(t *testing.T) {
	t.Parallel()

	rep := Build(Input{
		CallID:    "1.2",
		Errors:    manyLines("error", 3),
		Diagnosis: diagnose.Unavailable("x"),
	})
	if len(rep.Errors) != 3 || rep.ErrorTotal != 3 {
		t.Fatalf("errors=%d total=%d", len(rep.Errors), rep.ErrorTotal)
	}
}

func TestWriteJSONRoundTrips(t *testing.T) {
	t.Parallel()

	rep := Build(Input{
		CallID:    "1769800000.100",
		Quality:   &score.Result{Score: 100, Verdict: score.VerdictExcellent},
		Diagnosis: diagnose.Unavailable("disabled by --no-llm"),
	})

	var buf bytes.Buffer
	if err := rep.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["call_id"] != "1769800000.100" {
		t.Fatalf("call_id=%v", decoded["call_id"])
	}
	if decoded["run_id"] == "" {
		t.Fatalf("run_id missing")
	}
}

func TestRenderShowsMoreCount(t *testing.T) {
	t.Parallel()

	rep := Build(Input{
		CallID:    "1.2",
		Errors:    manyLines("boom", 25),
		Diagnosis: diagnose.Unavailable("not configured"),
	})

	var buf bytes.Buffer
	NewRenderer(&buf).Render(rep)
	out := buf.String()

	if !strings.Contains(out, "Errors (25):") {
		t.Fatalf("missing error total:\n%s", out)
	}
	if !strings.Contains(out, "+5 more") {
		t.Fatalf("missing overflow marker:\n%s", out)
	}
}

func TestRenderFailureReport(t *testing.T) {
	t.Parallel()

	rep := Failed("1.2", "no recent calls found")

	var buf bytes.Buffer
	NewRenderer(&buf).Render(rep)
	if !strings.Contains(buf.String(), "no recent calls found") {
		t.Fatalf("missing failure message:\n%s", buf.String())
	}
}

func TestRenderQualityClampsDisplayOnly(t *testing.T) {
	t.Parallel()

	rep := Build(Input{
		CallID:    "1.2",
		Quality:   &score.Result{Score: -40, Verdict: score.VerdictCritical, Issues: []string{"everything"}},
		Diagnosis: diagnose.Unavailable("x"),
	})

	var buf bytes.Buffer
	NewRenderer(&buf).Render(rep)
	out := buf.String()

	if !strings.Contains(out, "Quality Score: 0/100") {
		t.Fatalf("expected clamped display score:\n%s", out)
	}
	if !strings.Contains(out, "CRITICAL") {
		t.Fatalf("expected critical verdict:\n%s", out)
	}
}

func TestRenderInsufficientData(t *testing.T) {
	t.Parallel()

	rep := Build(Input{CallID: "1.2", Diagnosis: diagnose.Unavailable("x")})

	var buf bytes.Buffer
	NewRenderer(&buf).Render(rep)
	if !strings.Contains(buf.String(), "INSUFFICIENT DATA") {
		t.Fatalf("expected insufficient-data verdict:\n%s", buf.String())
	}
}

func TestRenderMetricsSections(t *testing.T) {
	t.Parallel()

	m := &metrics.CallMetrics{
		ProviderSegments:   []metrics.ProviderSegment{{ProviderBytes: 320000, EnqueuedBytes: 320000}},
		ProviderBytesTotal: 320000,
		EnqueuedBytesTotal: 320000,
		StreamingSummaries: []metrics.StreamingSummary{{StreamID: "resp-1", BytesSent: 320000, DriftPct: 3.0}},
		WorstDriftPct:      3.0,
	}
	rep := Build(Input{
		CallID:    "1.2",
		Metrics:   m,
		Quality:   &score.Result{Score: 100, Verdict: score.VerdictExcellent},
		Diagnosis: diagnose.Unavailable("skipped"),
	})

	var buf bytes.Buffer
	NewRenderer(&buf).Render(rep)
	out := buf.String()

	if !strings.Contains(out, "Ratio: 1.000 ✅ PERFECT") {
		t.Fatalf("missing ratio line:\n%s", out)
	}
	if !strings.Contains(out, "Underflows: 0 ✅ NONE") {
		t.Fatalf("missing underflow line:\n%s", out)
	}
	if !strings.Contains(out, "EXCELLENT") {
		t.Fatalf("missing verdict:\n%s", out)
	}
}
