// Package metrics parses call-scoped log lines into structured audio-quality
// signals and cross-validates configured vs observed formats.
package metrics

import (
	"fmt"
	"strings"

	"github.com/quikefix/voice-rca/internal/logparse"
)

// FrameBytes is the wire frame size for slin@8kHz: PCM16, 20ms frames.
const FrameBytes = 320

// GateFlutterThreshold is the closure count above which the capture gate is
// considered fluttering (echo leakage). Conservative fixed threshold; tunable
// via baseline profiles rather than a clustering model.
const GateFlutterThreshold = 50

// ProviderSegment is one outbound audio segment: bytes the provider reported
// versus bytes the engine enqueued for playback.
type ProviderSegment struct {
	ProviderBytes int     `json:"provider_bytes"`
	EnqueuedBytes int     `json:"enqueued_bytes"`
	Ratio         float64 `json:"ratio,omitempty"`
}

// StreamingSummary is one playback segment's timing outcome. Greeting
// segments legitimately include think-time pauses, so they are excluded from
// drift and underflow aggregation.
type StreamingSummary struct {
	StreamID         string  `json:"stream_id,omitempty"`
	BytesSent        int     `json:"bytes_sent"`
	EffectiveSeconds float64 `json:"effective_seconds,omitempty"`
	WallSeconds      float64 `json:"wall_seconds,omitempty"`
	DriftPct         float64 `json:"drift_pct"`
	Underflows       int     `json:"underflows,omitempty"`
	LowWatermark     int     `json:"low_watermark,omitempty"`
	MinStart         int     `json:"min_start,omitempty"`
	IsGreeting       bool    `json:"is_greeting,omitempty"`
}

// VADSettings is the voice-activity-detection configuration observed in logs.
// Aggressiveness 0 is the known-bad value: it detects echo as speech.
type VADSettings struct {
	Aggressiveness      int     `json:"aggressiveness"`
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty"`
	EnergyThreshold     int     `json:"energy_threshold,omitempty"`
	EnhancedEnabled     bool    `json:"enhanced_enabled,omitempty"`
}

// CallMetrics is the aggregate of all signals extracted for one call. Owned
// by a single analysis run; never shared.
type CallMetrics struct {
	ProviderSegments   []ProviderSegment `json:"provider_segments,omitempty"`
	ProviderBytesTotal int               `json:"provider_bytes_total,omitempty"`
	EnqueuedBytesTotal int               `json:"enqueued_bytes_total,omitempty"`
	WorstEnqueuedRatio float64           `json:"worst_enqueued_ratio,omitempty"`

	StreamingSummaries []StreamingSummary `json:"streaming_summaries,omitempty"`
	WorstDriftPct      float64            `json:"worst_drift_pct"`
	UnderflowCount     int                `json:"underflow_count"`

	VAD                 *VADSettings `json:"vad,omitempty"`
	GateClosures        int          `json:"gate_closures,omitempty"`
	GateFlutterDetected bool         `json:"gate_flutter_detected,omitempty"`

	AudioSocketFormat    string `json:"audiosocket_format,omitempty"`
	ProviderInputFormat  string `json:"provider_input_format,omitempty"`
	ProviderOutputFormat string `json:"provider_output_format,omitempty"`
	SampleRate           int    `json:"sample_rate,omitempty"`

	Alignment *FormatAlignment `json:"format_alignment,omitempty"`

	ConfigErrors []string `json:"config_errors,omitempty"`
}

// EnqueuedRatio is total enqueued bytes over total provider bytes, the primary
// pacing signal. Returns 0 when no provider bytes were observed.
func (m *CallMetrics) EnqueuedRatio() float64 {
	if m.ProviderBytesTotal <= 0 {
		return 0
	}
	return float64(m.EnqueuedBytesTotal) / float64(m.ProviderBytesTotal)
}

// TotalFramesSent sums bytes_sent over every playback segment in wire frames.
func (m *CallMetrics) TotalFramesSent() int {
	frames := 0
	for _, s := range m.StreamingSummaries {
		frames += s.BytesSent / FrameBytes
	}
	return frames
}

// UnderflowRatePct is underflow events per frame sent, as a percentage.
func (m *CallMetrics) UnderflowRatePct() float64 {
	frames := m.TotalFramesSent()
	if frames <= 0 {
		return 0
	}
	return float64(m.UnderflowCount) / float64(frames) * 100
}

// HasEvidence reports whether any RCA signal was extracted at all. A call
// without evidence gets an "insufficient data" verdict, not a score.
func (m *CallMetrics) HasEvidence() bool {
	if m == nil {
		return false
	}
	if len(m.ProviderSegments) > 0 || len(m.StreamingSummaries) > 0 {
		return true
	}
	if m.UnderflowCount > 0 || m.GateClosures > 0 || m.GateFlutterDetected {
		return true
	}
	if m.VAD != nil {
		return true
	}
	if m.AudioSocketFormat != "" || m.ProviderInputFormat != "" || m.ProviderOutputFormat != "" || m.SampleRate > 0 {
		return true
	}
	if m.Alignment != nil {
		if m.Alignment.RuntimeAudioSocketFormat != "" || m.Alignment.RuntimeProviderInputFormat != "" || m.Alignment.RuntimeSampleRate > 0 {
			return true
		}
		if len(m.Alignment.Issues) > 0 {
			return true
		}
	}
	return false
}

// Extractor recognizes one marker event and folds its fields into the
// metrics. Extractors run in order; the first match consumes the line.
type Extractor struct {
	Name  string
	Match func(ln logparse.Line, raw string) bool
	Apply func(ln logparse.Line, raw string, m *CallMetrics)
}

// Extractors returns the ordered extractor list. Each entry is independently
// testable; the order encodes marker precedence for ambiguous lines.
func Extractors() []Extractor {
	return []Extractor{
		{
			Name:  "provider_segment_bytes",
			Match: eventContains("PROVIDER SEGMENT BYTES"),
			Apply: applyProviderSegment,
		},
		{
			Name:  "streaming_tuning_summary",
			Match: eventContains("STREAMING TUNING SUMMARY"),
			Apply: applyStreamingSummary,
		},
		{
			Name:  "segment_bytes_summary",
			Match: eventContains("Streaming segment bytes summary"),
			Apply: applySegmentUnderflows,
		},
		{
			Name:  "transport_alignment",
			Match: eventContains("Transport alignment summary"),
			Apply: applyTransportAlignment,
		},
		{
			Name:  "vad_settings",
			Match: eventContains("WebRTC VAD settings"),
			Apply: applyVADSettings,
		},
		{
			Name:  "gate_closure",
			Match: eventContains("gate_closure"),
			Apply: func(_ logparse.Line, _ string, m *CallMetrics) { m.GateClosures++ },
		},
		{
			Name:  "config_error",
			Match: isConfigError,
			Apply: applyConfigError,
		},
	}
}

// Extract walks the scoped lines once and populates CallMetrics. Lines that
// fail parsing or match no extractor are skipped silently; extraction over
// identical input is deterministic and idempotent.
func Extract(text string) *CallMetrics {
	m := &CallMetrics{
		ProviderSegments:   []ProviderSegment{},
		StreamingSummaries: []StreamingSummary{},
		ConfigErrors:       []string{},
		WorstEnqueuedRatio: 1.0,
	}

	extractors := Extractors()
	for _, raw := range strings.Split(text, "\n") {
		ln, ok := logparse.Parse(raw)
		if !ok {
			continue
		}
		for _, ex := range extractors {
			if ex.Match(ln, raw) {
				ex.Apply(ln, raw, m)
				break
			}
		}
	}

	if m.GateClosures > GateFlutterThreshold {
		m.GateFlutterDetected = true
	}

	return m
}

func eventContains(marker string) func(logparse.Line, string) bool {
	return func(ln logparse.Line, _ string) bool {
		return strings.Contains(ln.Event, marker)
	}
}

func applyProviderSegment(ln logparse.Line, _ string, m *CallMetrics) {
	seg := ProviderSegment{
		ProviderBytes: logparse.Int(ln.Fields["provider_bytes"]),
		EnqueuedBytes: logparse.Int(ln.Fields["enqueued_bytes"]),
	}
	if seg.ProviderBytes > 0 {
		m.ProviderBytesTotal += seg.ProviderBytes
	}
	if seg.EnqueuedBytes > 0 {
		m.EnqueuedBytesTotal += seg.EnqueuedBytes
	}
	if v := ln.Fields["enqueued_ratio"]; v != "" {
		seg.Ratio = logparse.Float(v)
		if absFloat(1.0-seg.Ratio) > absFloat(1.0-m.WorstEnqueuedRatio) {
			m.WorstEnqueuedRatio = seg.Ratio
		}
	}
	m.ProviderSegments = append(m.ProviderSegments, seg)
}

func applyStreamingSummary(ln logparse.Line, _ string, m *CallMetrics) {
	sum := StreamingSummary{
		StreamID:         ln.Fields["stream_id"],
		BytesSent:        logparse.Int(ln.Fields["bytes_sent"]),
		EffectiveSeconds: logparse.Float(ln.Fields["effective_seconds"]),
		WallSeconds:      logparse.Float(ln.Fields["wall_seconds"]),
		DriftPct:         logparse.Float(ln.Fields["drift_pct"]),
		Underflows:       logparse.Int(ln.Fields["underflow_events"]),
		LowWatermark:     logparse.Int(ln.Fields["low_watermark"]),
		MinStart:         logparse.Int(ln.Fields["min_start"]),
	}
	sum.IsGreeting = strings.Contains(sum.StreamID, "greeting")

	// Greeting segments pause for caller think-time; their drift is expected
	// and excluded from the aggregate.
	if !sum.IsGreeting && sum.DriftPct != 0 && absFloat(sum.DriftPct) > absFloat(m.WorstDriftPct) {
		m.WorstDriftPct = sum.DriftPct
	}

	m.StreamingSummaries = append(m.StreamingSummaries, sum)
}

// applySegmentUnderflows is the only accumulator for UnderflowCount. The
// tuning summary repeats underflow_events per stream; counting both events
// would double every underflow.
func applySegmentUnderflows(ln logparse.Line, _ string, m *CallMetrics) {
	if strings.Contains(ln.Fields["stream_id"], "greeting") {
		return
	}
	m.UnderflowCount += logparse.Int(ln.Fields["underflow_events"])
}

func applyTransportAlignment(ln logparse.Line, _ string, m *CallMetrics) {
	if v := ln.Fields["audiosocket_format"]; v != "" {
		m.AudioSocketFormat = v
	}
	if v := ln.Fields["provider_input_format"]; v != "" {
		m.ProviderInputFormat = v
	}
	if v := ln.Fields["provider_output_format"]; v != "" {
		m.ProviderOutputFormat = v
	}
	if v := ln.Fields["sample_rate"]; v != "" {
		m.SampleRate = logparse.Int(v)
	}
}

func applyVADSettings(ln logparse.Line, _ string, m *CallMetrics) {
	if m.VAD == nil {
		m.VAD = &VADSettings{}
	}
	// Some sources log "aggressiveness", some "webrtc_aggressiveness".
	if v := ln.Fields["aggressiveness"]; v != "" {
		m.VAD.Aggressiveness = logparse.Int(v)
	} else if v := ln.Fields["webrtc_aggressiveness"]; v != "" {
		m.VAD.Aggressiveness = logparse.Int(v)
	}
	if v := ln.Fields["confidence_threshold"]; v != "" {
		m.VAD.ConfidenceThreshold = logparse.Float(v)
	}
	if v := ln.Fields["energy_threshold"]; v != "" {
		m.VAD.EnergyThreshold = logparse.Int(v)
	}
	if v := ln.Fields["enhanced_enabled"]; v != "" {
		m.VAD.EnhancedEnabled = logparse.Bool(v)
	}
}

func isConfigError(_ logparse.Line, raw string) bool {
	return strings.Contains(raw, "target_encoding") && strings.Contains(raw, "error")
}

func applyConfigError(_ logparse.Line, raw string, m *CallMetrics) {
	// Deepgram's target_encoding validation warning is a benign upstream
	// artifact; the provider does not use that field.
	if strings.Contains(raw, "DeepgramProviderConfig") {
		return
	}
	m.ConfigErrors = append(m.ConfigErrors, "Configuration error related to target_encoding")
}

// PromptSummary renders the metrics as plain text for the diagnosis prompt.
func (m *CallMetrics) PromptSummary() string {
	var out strings.Builder

	out.WriteString("=== CALL METRICS ===\n\n")

	if len(m.ProviderSegments) > 0 {
		out.WriteString("Provider Bytes Tracking:\n")
		fmt.Fprintf(&out, "  Total segments: %d\n", len(m.ProviderSegments))
		fmt.Fprintf(&out, "  Total provider bytes: %d\n", m.ProviderBytesTotal)
		fmt.Fprintf(&out, "  Total enqueued bytes: %d\n", m.EnqueuedBytesTotal)
		if ratio := m.EnqueuedRatio(); ratio > 0 {
			fmt.Fprintf(&out, "  Overall ratio: %.3f\n", ratio)
			if ratio < 0.95 || ratio > 1.05 {
				fmt.Fprintf(&out, "  ISSUE: ratio should be ~1.0, got %.3f\n", ratio)
			}
		}
		out.WriteString("\n")
	}

	if len(m.StreamingSummaries) > 0 {
		out.WriteString("Streaming Performance:\n")
		fmt.Fprintf(&out, "  Streaming segments: %d\n", len(m.StreamingSummaries))
		if absFloat(m.WorstDriftPct) > 10.0 {
			fmt.Fprintf(&out, "  ISSUE: worst drift %.1f%% (should be <10%%)\n", m.WorstDriftPct)
		} else {
			fmt.Fprintf(&out, "  Drift: %.1f%%\n", m.WorstDriftPct)
		}
		if m.UnderflowCount > 0 {
			fmt.Fprintf(&out, "  ISSUE: %d underflow events (%.1f%% of frames)\n", m.UnderflowCount, m.UnderflowRatePct())
		}
		out.WriteString("\n")
	}

	if m.VAD != nil {
		out.WriteString("VAD Configuration:\n")
		fmt.Fprintf(&out, "  Aggressiveness: %d\n", m.VAD.Aggressiveness)
		if m.VAD.Aggressiveness == 0 {
			out.WriteString("  ISSUE: level 0 is too sensitive, detects echo as speech\n")
		}
		out.WriteString("\n")
	}

	if m.GateClosures > 0 {
		fmt.Fprintf(&out, "Audio Gate Closures: %d\n", m.GateClosures)
		if m.GateFlutterDetected {
			fmt.Fprintf(&out, "  CRITICAL: gate flutter detected (>%d closures), echo leakage likely\n", GateFlutterThreshold)
		}
		out.WriteString("\n")
	}

	if m.AudioSocketFormat != "" || m.ProviderInputFormat != "" {
		out.WriteString("Transport Configuration:\n")
		if m.AudioSocketFormat != "" {
			fmt.Fprintf(&out, "  AudioSocket format: %s\n", m.AudioSocketFormat)
		}
		if m.ProviderInputFormat != "" {
			fmt.Fprintf(&out, "  Provider input format: %s\n", m.ProviderInputFormat)
		}
		if m.ProviderOutputFormat != "" {
			fmt.Fprintf(&out, "  Provider output format: %s\n", m.ProviderOutputFormat)
		}
		if m.SampleRate > 0 {
			fmt.Fprintf(&out, "  Sample rate: %d Hz\n", m.SampleRate)
		}
		out.WriteString("\n")
	}

	if len(m.ConfigErrors) > 0 {
		out.WriteString("Configuration Errors:\n")
		for _, e := range m.ConfigErrors {
			fmt.Fprintf(&out, "  - %s\n", e)
		}
		out.WriteString("\n")
	}

	return out.String()
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
