package score

import (
	"testing"

	"github.com/quikefix/voice-rca/internal/metrics"
)

func TestEvaluateCleanCall(t *testing.T) {
	t.Parallel()

	m := &metrics.CallMetrics{
		ProviderSegments:   []metrics.ProviderSegment{{ProviderBytes: 320000, EnqueuedBytes: 320000}},
		ProviderBytesTotal: 320000,
		EnqueuedBytesTotal: 320000,
		WorstDriftPct:      3.0,
	}

	r := Evaluate(m)
	if r.Score != 100.0 {
		t.Fatalf("score=%v", r.Score)
	}
	if r.Verdict != VerdictExcellent {
		t.Fatalf("verdict=%q", r.Verdict)
	}
	if len(r.Issues) != 0 {
		t.Fatalf("issues=%v", r.Issues)
	}
}

func TestEvaluateRatioBoundary(t *testing.T) {
	t.Parallel()

	// 0.95 exactly is acceptable.
	ok := &metrics.CallMetrics{
		ProviderSegments:   []metrics.ProviderSegment{{}},
		ProviderBytesTotal: 10000,
		EnqueuedBytesTotal: 9500,
	}
	if r := Evaluate(ok); r.Score != 100.0 {
		t.Fatalf("ratio 0.95 should not deduct, score=%v", r.Score)
	}

	// 0.70 deducts 30.
	bad := &metrics.CallMetrics{
		ProviderSegments:   []metrics.ProviderSegment{{}},
		ProviderBytesTotal: 1000000,
		EnqueuedBytesTotal: 700000,
	}
	if r := Evaluate(bad); r.Score != 70.0 {
		t.Fatalf("score=%v", r.Score)
	}
}

func TestEvaluateRatioSkippedWithoutSegments(t *testing.T) {
	t.Parallel()

	// Totals without segments must not trigger the ratio check.
	m := &metrics.CallMetrics{ProviderBytesTotal: 1000, EnqueuedBytesTotal: 100}
	if r := Evaluate(m); r.Score != 100.0 {
		t.Fatalf("score=%v", r.Score)
	}
}

func TestEvaluateDriftDeduction(t *testing.T) {
	t.Parallel()

	m := &metrics.CallMetrics{WorstDriftPct: -12.0}
	r := Evaluate(m)
	if r.Score != 75.0 {
		t.Fatalf("score=%v", r.Score)
	}

	// Exactly 10% does not deduct.
	edge := &metrics.CallMetrics{WorstDriftPct: 10.0}
	if r := Evaluate(edge); r.Score != 100.0 {
		t.Fatalf("score=%v", r.Score)
	}
}

func TestEvaluateUnderflowTiers(t *testing.T) {
	t.Parallel()

	// 1000 frames total.
	base := metrics.StreamingSummary{BytesSent: 320000}

	cases := []struct {
		underflows int
		want       float64
	}{
		{9, 100.0},  // 0.9% -> below minor threshold
		{10, 95.0},  // 1.0% -> minor
		{49, 95.0},  // 4.9% -> minor
		{50, 80.0},  // 5.0% -> major
		{200, 80.0}, // 20% -> still the single major deduction
	}
	for _, tc := range cases {
		m := &metrics.CallMetrics{
			StreamingSummaries: []metrics.StreamingSummary{base},
			UnderflowCount:     tc.underflows,
		}
		if r := Evaluate(m); r.Score != tc.want {
			t.Fatalf("underflows=%d score=%v want %v", tc.underflows, r.Score, tc.want)
		}
	}
}

func TestEvaluateUnderflowSkippedWithoutSummaries(t *testing.T) {
	t.Parallel()

	m := &metrics.CallMetrics{UnderflowCount: 500}
	if r := Evaluate(m); r.Score != 100.0 {
		t.Fatalf("score=%v", r.Score)
	}
}

func TestEvaluateGateFlutterAndVAD(t *testing.T) {
	t.Parallel()

	m := &metrics.CallMetrics{
		GateFlutterDetected: true,
		VAD:                 &metrics.VADSettings{Aggressiveness: 0},
	}
	r := Evaluate(m)
	if r.Score != 65.0 {
		t.Fatalf("score=%v", r.Score)
	}
	if r.Verdict != VerdictPoor {
		t.Fatalf("verdict=%q", r.Verdict)
	}
}

func TestEvaluateAlignmentDeductionsStack(t *testing.T) {
	t.Parallel()

	m := &metrics.CallMetrics{
		Alignment: &metrics.FormatAlignment{
			ChannelMismatch:        true,
			ProviderFormatMismatch: true,
			FrameSizeMismatch:      true,
		},
	}
	r := Evaluate(m)
	if r.Score != 25.0 {
		t.Fatalf("score=%v", r.Score)
	}
	if r.Verdict != VerdictCritical {
		t.Fatalf("verdict=%q", r.Verdict)
	}
}

func TestEvaluateScoreNotClamped(t *testing.T) {
	t.Parallel()

	// Stack enough deductions to go negative; the raw score is preserved.
	m := &metrics.CallMetrics{
		ProviderSegments:   []metrics.ProviderSegment{{}},
		ProviderBytesTotal: 1000000,
		EnqueuedBytesTotal: 100000,
		WorstDriftPct:      50.0,
		StreamingSummaries: []metrics.StreamingSummary{{BytesSent: 320000}},
		UnderflowCount:     100,
		GateFlutterDetected: true,
		VAD:                 &metrics.VADSettings{Aggressiveness: 0},
		Alignment: &metrics.FormatAlignment{
			ChannelMismatch:        true,
			ProviderFormatMismatch: true,
			FrameSizeMismatch:      true,
		},
	}
	r := Evaluate(m)
	if r.Score != -85.0 {
		t.Fatalf("score=%v", r.Score)
	}
	if r.Verdict != VerdictCritical {
		t.Fatalf("verdict=%q", r.Verdict)
	}
}

func TestVerdictBoundaries(t *testing.T) {
	t.Parallel()

	cases := []struct {
		score float64
		want  Verdict
	}{
		{100, VerdictExcellent},
		{90, VerdictExcellent},
		{89.9, VerdictFair},
		{70, VerdictFair},
		{69.9, VerdictPoor},
		{50, VerdictPoor},
		{49.9, VerdictCritical},
		{0, VerdictCritical},
		{-40, VerdictCritical},
	}
	for _, tc := range cases {
		if got := VerdictFor(tc.score); got != tc.want {
			t.Fatalf("VerdictFor(%v)=%q want %q", tc.score, got, tc.want)
		}
	}
}
