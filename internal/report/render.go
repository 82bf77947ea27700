package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/quikefix/voice-rca/internal/metrics"
	"github.com/quikefix/voice-rca/internal/score"
)

const divider = "═══════════════════════════════════════════"

// Renderer writes the human-readable report. Colors degrade to plain text on
// non-TTY writers via fatih/color's own detection.
type Renderer struct {
	out io.Writer

	success *color.Color
	failure *color.Color
	warning *color.Color
	info    *color.Color
}

func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{
		out:     out,
		success: color.New(color.FgGreen),
		failure: color.New(color.FgRed),
		warning: color.New(color.FgYellow),
		info:    color.New(color.FgBlue),
	}
}

// Render writes the full report in section order.
func (r *Renderer) Render(rep *Report) {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "🔍 Call Troubleshooting & RCA")
	fmt.Fprintln(r.out, divider)
	fmt.Fprintln(r.out)

	if rep.Error != "" {
		r.failure.Fprintf(r.out, "❌ %s\n", rep.Error)
		fmt.Fprintln(r.out)
		return
	}

	r.renderHeader(rep)
	r.renderPipeline(rep)
	r.renderIssues(rep)
	r.renderToolCalls(rep)
	r.renderSymptom(rep)
	if rep.Metrics != nil {
		r.renderMetrics(rep.Metrics)
	}
	r.renderBaseline(rep)
	r.renderQuality(rep)
	r.renderDiagnosis(rep)
	r.renderRecommendations(rep)
}

func (r *Renderer) renderRecommendations(rep *Report) {
	if len(rep.Recommendations) == 0 {
		return
	}
	fmt.Fprintln(r.out, "Recommendations:")
	for _, rec := range rep.Recommendations {
		fmt.Fprintf(r.out, "  • %s\n", rec)
	}
	fmt.Fprintln(r.out)
}

func (r *Renderer) renderHeader(rep *Report) {
	fmt.Fprintln(r.out, "Call Header:")
	h := rep.Header
	if h == nil {
		fmt.Fprintf(r.out, "  Call ID: %s\n", rep.CallID)
		fmt.Fprintln(r.out, "  Note: call-start header not found in logs for this call.")
		fmt.Fprintln(r.out, "        Enable info/debug logging and re-run a call for richer context.")
		fmt.Fprintln(r.out)
		return
	}

	id := h.CallID
	if id == "" {
		id = rep.CallID
	}
	fmt.Fprintf(r.out, "  Call ID: %s\n", id)
	if h.CallerNumber != "" {
		fmt.Fprintf(r.out, "  Caller: %s\n", h.CallerNumber)
	}
	if h.CalledNumber != "" {
		fmt.Fprintf(r.out, "  Called: %s\n", h.CalledNumber)
	}
	if h.ContextName != "" {
		fmt.Fprintf(r.out, "  Context: %s\n", h.ContextName)
	}
	if h.ProviderName != "" {
		fmt.Fprintf(r.out, "  Provider: %s\n", h.ProviderName)
	}
	if h.PipelineName != "" {
		fmt.Fprintf(r.out, "  Pipeline: %s\n", h.PipelineName)
	}
	if h.AudioTransport != "" {
		fmt.Fprintf(r.out, "  Transport: %s\n", h.AudioTransport)
	}
	if h.TransportProfileEncoding != "" || h.TransportProfileSampleRate > 0 {
		fmt.Fprintf(r.out, "  Transport Profile: %s@%d (%s)\n",
			emptyTo(h.TransportProfileEncoding, "?"), h.TransportProfileSampleRate, emptyTo(h.TransportProfileSource, "unknown"))
	}

	switch strings.ToLower(strings.TrimSpace(h.AudioTransport)) {
	case "audiosocket":
		if h.AudioSocketFormat != "" || h.AudioSocketHost != "" || h.AudioSocketPort > 0 {
			addr := ""
			if h.AudioSocketHost != "" || h.AudioSocketPort > 0 {
				addr = fmt.Sprintf(" addr=%s:%d", emptyTo(h.AudioSocketHost, "?"), h.AudioSocketPort)
			}
			fmt.Fprintf(r.out, "  AudioSocket: format=%s%s\n", emptyTo(h.AudioSocketFormat, "?"), addr)
		}
	case "externalmedia":
		if h.ExternalMediaCodec != "" || h.ExternalMediaRTPHost != "" || h.ExternalMediaRTPPort > 0 {
			rtp := fmt.Sprintf("%s:%d", emptyTo(h.ExternalMediaRTPHost, "?"), h.ExternalMediaRTPPort)
			if h.ExternalMediaAdvertiseHost != "" {
				fmt.Fprintf(r.out, "  ExternalMedia: codec=%s rtp=%s advertise_host=%s\n",
					emptyTo(h.ExternalMediaCodec, "?"), rtp, h.ExternalMediaAdvertiseHost)
			} else {
				fmt.Fprintf(r.out, "  ExternalMedia: codec=%s rtp=%s\n", emptyTo(h.ExternalMediaCodec, "?"), rtp)
			}
		}
	}

	if h.ProviderInputEncoding != "" || h.ProviderOutputEncoding != "" || h.ProviderTargetEncoding != "" {
		fmt.Fprintf(r.out, "  Provider Audio: in=%s@%d out=%s@%d target=%s@%d\n",
			emptyTo(h.ProviderInputEncoding, "?"), h.ProviderInputSampleRateHz,
			emptyTo(h.ProviderOutputEncoding, "?"), h.ProviderOutputSampleRateHz,
			emptyTo(h.ProviderTargetEncoding, "?"), h.ProviderTargetSampleRateHz)
	}
	if pr := rep.ProviderRuntime; pr != nil &&
		(pr.ConfiguredOutputSampleRateHz > 0 || pr.ReportedOutputSampleRateHz > 0 || pr.UsedOutputSampleRateHz > 0) {
		fmt.Fprintf(r.out, "  Provider Runtime: configured_out=%d reported_out=%d used_out=%d\n",
			pr.ConfiguredOutputSampleRateHz, pr.ReportedOutputSampleRateHz, pr.UsedOutputSampleRateHz)
	}
	if h.StreamingSampleRate > 0 || h.StreamingJitterBufferMs > 0 {
		fmt.Fprintf(r.out, "  Streaming: sample_rate=%d jitter_buffer_ms=%d min_start_ms=%d low_watermark_ms=%d\n",
			h.StreamingSampleRate, h.StreamingJitterBufferMs, h.StreamingMinStartMs, h.StreamingLowWatermarkMs)
	}
	if h.VADAggressiveness > 0 || h.VADConfidenceThreshold > 0 || h.VADEnergyThreshold > 0 || h.VADEnhancedEnabled {
		fmt.Fprintf(r.out, "  VAD: webrtc_aggressiveness=%d confidence_threshold=%.2f energy_threshold=%d enhanced=%t\n",
			h.VADAggressiveness, h.VADConfidenceThreshold, h.VADEnergyThreshold, h.VADEnhancedEnabled)
	}
	if h.BargeInProtectionMs > 0 {
		fmt.Fprintf(r.out, "  Barge-in: post_tts_end_protection_ms=%d\n", h.BargeInProtectionMs)
	}
	fmt.Fprintln(r.out)
}

func (r *Renderer) renderPipeline(rep *Report) {
	fmt.Fprintln(r.out, divider)
	fmt.Fprintln(r.out, "📊 ANALYSIS RESULTS")
	fmt.Fprintln(r.out, divider)
	fmt.Fprintln(r.out)

	fmt.Fprintln(r.out, "Pipeline Status:")
	transport := strings.ToLower(strings.TrimSpace(rep.AudioTransport))
	switch transport {
	case "audiosocket":
		r.success.Fprintln(r.out, "  ✅ Transport: AudioSocket")
	case "externalmedia":
		r.success.Fprintln(r.out, "  ✅ Transport: ExternalMedia RTP")
	default:
		r.warning.Fprintln(r.out, "  ⚠️  Transport: Unknown")
	}

	p := rep.Pipeline
	if p.HasAudioSocket {
		r.success.Fprintln(r.out, "  ✅ AudioSocket: Detected")
	} else if transport == "audiosocket" {
		r.failure.Fprintln(r.out, "  ❌ AudioSocket: Not detected")
	} else {
		r.info.Fprintln(r.out, "  ℹ️  AudioSocket: Not used")
	}

	if p.HasExternalMedia {
		r.success.Fprintln(r.out, "  ✅ ExternalMedia: Detected")
	} else if transport == "externalmedia" {
		r.failure.Fprintln(r.out, "  ❌ ExternalMedia: Not detected")
	} else {
		r.info.Fprintln(r.out, "  ℹ️  ExternalMedia: Not used")
	}

	if p.HasTranscription {
		r.success.Fprintln(r.out, "  ✅ Transcription: Active")
	} else {
		r.warning.Fprintln(r.out, "  ⚠️  Transcription: Not detected")
	}
	if p.HasPlayback {
		r.success.Fprintln(r.out, "  ✅ Playback: Active")
	} else {
		r.warning.Fprintln(r.out, "  ⚠️  Playback: Not detected")
	}
	fmt.Fprintln(r.out)
}

func (r *Renderer) renderIssues(rep *Report) {
	if rep.AudioIssueTot > 0 {
		r.failure.Fprintf(r.out, "Audio Issues Found (%d):\n", rep.AudioIssueTot)
		for _, issue := range rep.AudioIssues {
			fmt.Fprintf(r.out, "  • %s\n", issue)
		}
		if more := rep.AudioIssueTot - len(rep.AudioIssues); more > 0 {
			fmt.Fprintf(r.out, "  +%d more\n", more)
		}
		fmt.Fprintln(r.out)
	}

	if rep.ErrorTotal > 0 {
		r.failure.Fprintf(r.out, "Errors (%d):\n", rep.ErrorTotal)
		for i, line := range rep.Errors {
			fmt.Fprintf(r.out, "  %d. %s\n", i+1, truncate(line, 100))
		}
		if more := rep.ErrorTotal - len(rep.Errors); more > 0 {
			fmt.Fprintf(r.out, "  +%d more\n", more)
		}
		fmt.Fprintln(r.out)
	}

	if rep.WarningTotal > 0 {
		r.warning.Fprintf(r.out, "Warnings (%d):\n", rep.WarningTotal)
		for i, line := range rep.Warnings {
			fmt.Fprintf(r.out, "  %d. %s\n", i+1, truncate(line, 100))
		}
		if more := rep.WarningTotal - len(rep.Warnings); more > 0 {
			fmt.Fprintf(r.out, "  +%d more\n", more)
		}
		fmt.Fprintln(r.out)
	}
}

func (r *Renderer) renderToolCalls(rep *Report) {
	if len(rep.ToolCalls) == 0 {
		return
	}
	r.info.Fprintf(r.out, "Tool Calls (%d):\n", len(rep.ToolCalls))
	for i, tc := range rep.ToolCalls {
		line := fmt.Sprintf("  %d. %s", i+1, tc.Name)
		if tc.Status != "" {
			line += fmt.Sprintf(" → %s", tc.Status)
		}
		if tc.Message != "" {
			line += fmt.Sprintf(" (%s)", truncate(tc.Message, 80))
		} else if tc.Arguments != "" {
			line += fmt.Sprintf(" args=%s", truncate(tc.Arguments, 80))
		}
		fmt.Fprintln(r.out, line)
	}
	fmt.Fprintln(r.out)
}

func (r *Renderer) renderSymptom(rep *Report) {
	sa := rep.SymptomAnalysis
	if sa == nil {
		return
	}
	fmt.Fprintln(r.out, divider)
	r.warning.Fprintf(r.out, "SYMPTOM ANALYSIS: %s\n", sa.Symptom)
	fmt.Fprintln(r.out, divider)
	fmt.Fprintf(r.out, "%s\n\n", sa.Description)

	if len(sa.Findings) > 0 {
		fmt.Fprintln(r.out, "Findings:")
		for _, f := range sa.Findings {
			fmt.Fprintf(r.out, "  %s\n", f)
		}
		fmt.Fprintln(r.out)
	}
	if len(sa.RootCauses) > 0 {
		r.failure.Fprintln(r.out, "Likely Root Causes:")
		for _, c := range sa.RootCauses {
			fmt.Fprintf(r.out, "  • %s\n", c)
		}
		fmt.Fprintln(r.out)
	}
	if len(sa.Actions) > 0 {
		r.success.Fprintln(r.out, "Recommended Actions:")
		for i, a := range sa.Actions {
			fmt.Fprintf(r.out, "  %d. %s\n", i+1, a)
		}
		fmt.Fprintln(r.out)
	}
}

func (r *Renderer) renderMetrics(m *metrics.CallMetrics) {
	fmt.Fprintln(r.out, divider)
	fmt.Fprintln(r.out, "📈 DETAILED METRICS")
	fmt.Fprintln(r.out, divider)
	fmt.Fprintln(r.out)

	if len(m.ProviderSegments) > 0 {
		r.success.Fprintln(r.out, "Provider Bytes Tracking:")
		fmt.Fprintf(r.out, "  Segments: %d\n", len(m.ProviderSegments))
		fmt.Fprintf(r.out, "  Total provider bytes: %s\n", formatBytes(m.ProviderBytesTotal))
		fmt.Fprintf(r.out, "  Total enqueued bytes: %s\n", formatBytes(m.EnqueuedBytesTotal))

		if ratio := m.EnqueuedRatio(); ratio > 0 {
			switch {
			case ratio >= 0.99 && ratio <= 1.01:
				r.success.Fprintf(r.out, "  Ratio: %.3f ✅ PERFECT\n", ratio)
			case ratio >= 0.95 && ratio <= 1.05:
				r.warning.Fprintf(r.out, "  Ratio: %.3f ⚠️  ACCEPTABLE\n", ratio)
			default:
				r.failure.Fprintf(r.out, "  Ratio: %.3f ❌ CRITICAL (should be 1.0)\n", ratio)
				fmt.Fprintln(r.out, "  Impact: Pacing bug - causes garbled/fast/slow audio")
			}
		}
		fmt.Fprintln(r.out)
	}

	if len(m.StreamingSummaries) > 0 {
		r.success.Fprintln(r.out, "Streaming Performance:")

		var greeting *metrics.StreamingSummary
		conversation := 0
		for i := range m.StreamingSummaries {
			if m.StreamingSummaries[i].IsGreeting {
				greeting = &m.StreamingSummaries[i]
			} else {
				conversation++
			}
		}

		fmt.Fprintf(r.out, "  Segments: %d", len(m.StreamingSummaries))
		if greeting != nil {
			fmt.Fprintf(r.out, " (1 greeting, %d conversation)", conversation)
		}
		fmt.Fprintln(r.out)

		if m.WorstDriftPct == 0.0 && greeting != nil {
			r.warning.Fprintf(r.out, "  Greeting drift: %.1f%% (expected - includes conversation pauses)\n", greeting.DriftPct)
			r.success.Fprintln(r.out, "  Conversation drift: N/A (no separate segments)")
		} else if absFloat(m.WorstDriftPct) <= 5.0 {
			r.success.Fprintf(r.out, "  Drift: %.1f%% ✅ EXCELLENT\n", m.WorstDriftPct)
		} else if absFloat(m.WorstDriftPct) <= 10.0 {
			r.warning.Fprintf(r.out, "  Drift: %.1f%% ⚠️  ACCEPTABLE\n", m.WorstDriftPct)
		} else {
			r.failure.Fprintf(r.out, "  Drift: %.1f%% ❌ CRITICAL (should be <10%%)\n", m.WorstDriftPct)
			fmt.Fprintln(r.out, "  Impact: Timing mismatch - audio too fast/slow")
		}

		if m.UnderflowCount > 0 {
			rate := m.UnderflowRatePct()
			switch {
			case rate < 1.0:
				r.warning.Fprintf(r.out, "  Underflows: %d (%.1f%% of frames - acceptable)\n", m.UnderflowCount, rate)
			case rate < 5.0:
				r.warning.Fprintf(r.out, "  Underflows: %d (%.1f%% of frames - minor impact)\n", m.UnderflowCount, rate)
			default:
				r.failure.Fprintf(r.out, "  Underflows: %d (%.1f%% of frames - significant) ❌\n", m.UnderflowCount, rate)
				fmt.Fprintln(r.out, "  Impact: Jitter buffer starvation - choppy audio")
			}
		} else {
			r.success.Fprintln(r.out, "  Underflows: 0 ✅ NONE")
		}
		fmt.Fprintln(r.out)
	}

	if m.VAD != nil {
		r.success.Fprintln(r.out, "VAD Configuration:")
		switch m.VAD.Aggressiveness {
		case 1:
			r.success.Fprintf(r.out, "  WebRTC Aggressiveness: %d ✅ OPTIMAL\n", m.VAD.Aggressiveness)
		case 0:
			r.failure.Fprintf(r.out, "  WebRTC Aggressiveness: %d ❌ TOO SENSITIVE\n", m.VAD.Aggressiveness)
			fmt.Fprintln(r.out, "  Impact: Detects echo as speech - causes self-interruption")
		default:
			r.warning.Fprintf(r.out, "  WebRTC Aggressiveness: %d\n", m.VAD.Aggressiveness)
		}
		fmt.Fprintln(r.out)
	}

	if m.GateClosures > 0 {
		r.success.Fprintln(r.out, "Audio Gating:")
		if m.GateFlutterDetected {
			r.failure.Fprintf(r.out, "  Gate closures: %d ❌ FLUTTER DETECTED\n", m.GateClosures)
			fmt.Fprintln(r.out, "  Impact: Echo leakage causing self-interruption")
		} else if m.GateClosures <= 5 {
			r.success.Fprintf(r.out, "  Gate closures: %d ✅ NORMAL\n", m.GateClosures)
		} else {
			r.warning.Fprintf(r.out, "  Gate closures: %d ⚠️  ELEVATED\n", m.GateClosures)
		}
		fmt.Fprintln(r.out)
	}

	if m.AudioSocketFormat != "" || m.ProviderInputFormat != "" {
		transport := ""
		if m.Alignment != nil {
			transport = strings.ToLower(strings.TrimSpace(m.Alignment.ConfigAudioTransport))
		}
		r.success.Fprintln(r.out, "Transport Configuration:")
		if transport != "" {
			fmt.Fprintf(r.out, "  Transport: %s\n", transport)
		}
		if transport == "audiosocket" && m.AudioSocketFormat != "" {
			if m.AudioSocketFormat == "slin" {
				r.success.Fprintf(r.out, "  AudioSocket format: %s ✅ CORRECT\n", m.AudioSocketFormat)
			} else {
				r.failure.Fprintf(r.out, "  AudioSocket format: %s ❌ WRONG (should be slin)\n", m.AudioSocketFormat)
			}
		}
		if m.ProviderInputFormat != "" {
			fmt.Fprintf(r.out, "  Provider input: %s\n", m.ProviderInputFormat)
		}
		if m.ProviderOutputFormat != "" {
			fmt.Fprintf(r.out, "  Provider output: %s\n", m.ProviderOutputFormat)
		}
		if m.SampleRate > 0 {
			fmt.Fprintf(r.out, "  Sample rate: %d Hz\n", m.SampleRate)
		}
		fmt.Fprintln(r.out)
	}

	if m.Alignment != nil && len(m.Alignment.Issues) > 0 {
		r.failure.Fprintln(r.out, "⚠️  FORMAT/SAMPLING ALIGNMENT ISSUES:")
		for i, issue := range m.Alignment.Issues {
			fmt.Fprintf(r.out, "  %d. %s\n", i+1, issue)
		}
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, "Impact: Format mismatches cause garbled audio, distortion, or no audio")
		fmt.Fprintln(r.out)
	}
}

func (r *Renderer) renderBaseline(rep *Report) {
	c := rep.Baseline
	if c == nil {
		return
	}
	fmt.Fprintln(r.out, divider)
	fmt.Fprintf(r.out, "📐 GOLDEN BASELINE: %s\n", c.BaselineName)
	fmt.Fprintln(r.out, divider)
	fmt.Fprintln(r.out)
	if c.InRange() {
		r.success.Fprintln(r.out, "✅ All tracked fields within the golden baseline")
	} else {
		for _, d := range c.Deviations {
			if d.Severity == "critical" {
				r.failure.Fprintf(r.out, "  ❌ %s: current=%s expected=%s\n", d.Field, d.Observed, d.Expected)
			} else {
				r.warning.Fprintf(r.out, "  ⚠️  %s: current=%s expected=%s\n", d.Field, d.Observed, d.Expected)
			}
		}
	}
	fmt.Fprintln(r.out)
}

func (r *Renderer) renderQuality(rep *Report) {
	fmt.Fprintln(r.out, divider)
	fmt.Fprintln(r.out, "🎯 OVERALL CALL QUALITY")
	fmt.Fprintln(r.out, divider)
	fmt.Fprintln(r.out)

	if rep.Quality == nil {
		r.warning.Fprintln(r.out, "Verdict: ⚠️  INSUFFICIENT DATA - No RCA metrics extracted from logs")
		fmt.Fprintln(r.out, "Quality Score: N/A")
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, "Notes:")
		fmt.Fprintln(r.out, "  • The collected logs do not include streaming/provider RCA markers for this call.")
		fmt.Fprintln(r.out, "  • Enable debug logs for richer RCA, then re-run a test call.")
		fmt.Fprintln(r.out)
		return
	}

	q := rep.Quality
	switch q.Verdict {
	case score.VerdictExcellent:
		r.success.Fprintln(r.out, "Verdict: ✅ EXCELLENT - No significant issues detected")
	case score.VerdictFair:
		r.warning.Fprintln(r.out, "Verdict: ⚠️  FAIR - Minor issues detected")
	case score.VerdictPoor:
		r.warning.Fprintln(r.out, "Verdict: ⚠️  POOR - Multiple issues affecting quality")
	default:
		r.failure.Fprintln(r.out, "Verdict: ❌ CRITICAL - Severe issues detected")
	}

	// Display clamp only; the verdict above is computed on the raw score.
	display := q.Score
	if display < 0 {
		display = 0
	}
	fmt.Fprintf(r.out, "Quality Score: %.0f/100\n", display)

	if len(q.Issues) > 0 {
		fmt.Fprintln(r.out, "\nIssues Detected:")
		for _, issue := range q.Issues {
			fmt.Fprintf(r.out, "  • %s\n", issue)
		}
	} else {
		fmt.Fprintln(r.out, "\n✅ All metrics within acceptable thresholds")
	}
	fmt.Fprintln(r.out)
}

func (r *Renderer) renderDiagnosis(rep *Report) {
	d := rep.Diagnosis
	if d.Unavailable {
		if d.Reason != "" {
			r.info.Fprintf(r.out, "AI diagnosis: %s\n\n", d.Reason)
		}
		return
	}
	if d.Diagnosis == nil {
		return
	}
	fmt.Fprintln(r.out, divider)
	r.info.Fprintf(r.out, "🤖 AI DIAGNOSIS (%s - %s)\n", d.Diagnosis.Provider, d.Diagnosis.Model)
	fmt.Fprintln(r.out, divider)
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, d.Diagnosis.Analysis)
	fmt.Fprintln(r.out)
}

func emptyTo(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

func formatBytes(n int) string {
	switch {
	case n < 1000:
		return fmt.Sprintf("%d bytes", n)
	case n < 1000000:
		return fmt.Sprintf("%.1f KB", float64(n)/1000)
	default:
		return fmt.Sprintf("%.2f MB", float64(n)/1000000)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
