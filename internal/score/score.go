// Package score reduces extracted call signals into a single quality score
// and a discrete verdict via weighted deductions.
package score

import (
	"fmt"

	"github.com/quikefix/voice-rca/internal/metrics"
)

// Verdict is the discrete quality bucket.
type Verdict string

const (
	VerdictExcellent Verdict = "excellent"
	VerdictFair      Verdict = "fair"
	VerdictPoor      Verdict = "poor"
	VerdictCritical  Verdict = "critical"
)

// Deduction weights. Format mismatches are independent and additive.
const (
	deductPacingRatio     = 30.0
	deductHighDrift       = 25.0
	deductUnderflowMajor  = 20.0
	deductUnderflowMinor  = 5.0
	deductGateFlutter     = 20.0
	deductVADTooSensitive = 15.0
	deductChannelFormat   = 30.0
	deductProviderFormat  = 25.0
	deductFrameSize       = 20.0
)

// Result is the scorer's output. Score is the raw deduction total from 100.0
// and is deliberately not floor-clamped: buckets compare against the
// unclamped value, so extreme deduction totals still map to critical.
// Renderers may clamp for display only.
type Result struct {
	Score   float64  `json:"score"`
	Verdict Verdict  `json:"verdict"`
	Issues  []string `json:"issues,omitempty"`
}

// Evaluate is a deterministic pure function of the metrics.
func Evaluate(m *metrics.CallMetrics) Result {
	issues := []string{}
	total := 100.0

	if len(m.ProviderSegments) > 0 && m.ProviderBytesTotal > 0 {
		ratio := m.EnqueuedRatio()
		if ratio < 0.95 || ratio > 1.05 {
			issues = append(issues, fmt.Sprintf("Provider bytes pacing issue (ratio %.2f)", ratio))
			total -= deductPacingRatio
		}
	}

	if absFloat(m.WorstDriftPct) > 10.0 {
		issues = append(issues, fmt.Sprintf("High drift (%.1f%%)", m.WorstDriftPct))
		total -= deductHighDrift
	}

	if m.UnderflowCount > 0 && len(m.StreamingSummaries) > 0 {
		rate := m.UnderflowRatePct()
		if rate >= 5.0 {
			issues = append(issues, fmt.Sprintf("%d underflows (%.1f%% rate - significant)", m.UnderflowCount, rate))
			total -= deductUnderflowMajor
		} else if rate >= 1.0 {
			issues = append(issues, fmt.Sprintf("%d underflows (%.1f%% rate - minor)", m.UnderflowCount, rate))
			total -= deductUnderflowMinor
		}
	}

	if m.GateFlutterDetected {
		issues = append(issues, "Gate flutter detected")
		total -= deductGateFlutter
	}

	if m.VAD != nil && m.VAD.Aggressiveness == 0 {
		issues = append(issues, "VAD too sensitive")
		total -= deductVADTooSensitive
	}

	if m.Alignment != nil {
		if m.Alignment.ChannelMismatch {
			issues = append(issues, "AudioSocket format mismatch")
			total -= deductChannelFormat
		}
		if m.Alignment.ProviderFormatMismatch {
			issues = append(issues, "Provider format mismatch")
			total -= deductProviderFormat
		}
		if m.Alignment.FrameSizeMismatch {
			issues = append(issues, "Frame size mismatch")
			total -= deductFrameSize
		}
	}

	return Result{Score: total, Verdict: VerdictFor(total), Issues: issues}
}

// VerdictFor buckets a score. Lower bounds are inclusive.
func VerdictFor(score float64) Verdict {
	switch {
	case score >= 90:
		return VerdictExcellent
	case score >= 70:
		return VerdictFair
	case score >= 50:
		return VerdictPoor
	default:
		return VerdictCritical
	}
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
