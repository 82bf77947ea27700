// Package symptom applies targeted rule sets for operator-reported problem
// categories against the call-scoped logs and extracted metrics.
package symptom

import (
	"fmt"
	"strings"

	"github.com/quikefix/voice-rca/internal/metrics"
)

// Analysis is the ordered output of one checker invocation.
type Analysis struct {
	Symptom     string   `json:"symptom"`
	Description string   `json:"description"`
	Findings    []string `json:"findings,omitempty"`
	RootCauses  []string `json:"root_causes,omitempty"`
	Actions     []string `json:"actions,omitempty"`
}

// Input is everything a rule set may inspect.
type Input struct {
	Metrics   *metrics.CallMetrics
	Transport string // "audiosocket", "externalmedia", or ""
	Errors    []string
	Warnings  []string
	LogText   string
}

// Checker applies exactly one rule set per run.
type Checker struct {
	label string
}

// NewChecker accepts any free-text label; unknown labels degrade to a
// generic analysis at Analyze time rather than failing the run.
func NewChecker(label string) *Checker {
	return &Checker{label: strings.ToLower(strings.TrimSpace(label))}
}

// Analyze runs the matching rule set. Never returns nil and never errors: a
// malformed symptom label is a low-severity input problem.
func (c *Checker) Analyze(in Input) *Analysis {
	switch c.label {
	case "no-audio":
		return analyzeNoAudio(in)
	case "garbled":
		return analyzeGarbled(in)
	case "echo":
		return analyzeEcho(in)
	case "interruption":
		return analyzeInterruption(in)
	case "one-way":
		return analyzeOneWay(in)
	default:
		return analyzeGeneric(c.label, in)
	}
}

func newAnalysis(symptom, description string) *Analysis {
	return &Analysis{
		Symptom:     symptom,
		Description: description,
		Findings:    []string{},
		RootCauses:  []string{},
		Actions:     []string{},
	}
}

func analyzeNoAudio(in Input) *Analysis {
	a := newAnalysis("no-audio", "Complete silence - no audio in either direction")
	lower := strings.ToLower(in.LogText)

	if in.Transport == "audiosocket" || in.Transport == "" {
		if !strings.Contains(lower, `"audiosocket_channel_id"`) && !strings.Contains(lower, "audiosocket channel") {
			a.Findings = append(a.Findings, "AudioSocket not detected in logs")
			a.RootCauses = append(a.RootCauses, "AudioSocket server not running or not configured")
			a.Actions = append(a.Actions,
				"Check audio_transport: audiosocket and the audiosocket section of the engine config",
				"Verify the AudioSocket port is listening on the Asterisk side")
		}
	}

	if in.Transport == "externalmedia" || in.Transport == "" {
		if !strings.Contains(lower, "external media") && !strings.Contains(lower, `"external_media_id"`) {
			a.Findings = append(a.Findings, "ExternalMedia RTP not detected in logs")
			a.RootCauses = append(a.RootCauses, "ExternalMedia channel not created/attached or RTP not reaching the engine")
			a.Actions = append(a.Actions,
				"Check audio_transport: externalmedia and the external_media section of the engine config",
				"Verify RTP UDP port reachability (firewall/NAT) between Asterisk and the engine",
				"If behind NAT/VPN: set external_media.advertise_host to a reachable IP")
		}
	}

	if strings.Contains(lower, "connection refused") || strings.Contains(lower, "connection failed") {
		a.Findings = append(a.Findings, "Connection errors detected")
		a.RootCauses = append(a.RootCauses, "Network connectivity issue")
		a.Actions = append(a.Actions, "Check network configuration", "Verify Asterisk and the engine can communicate")
	}

	if strings.Contains(lower, "media") && strings.Contains(lower, "not found") {
		a.Findings = append(a.Findings, "Media file issues detected")
		a.RootCauses = append(a.RootCauses, "Missing or inaccessible media files")
		a.Actions = append(a.Actions, "Check the shared media directory mount")
	}

	return a
}

func analyzeGarbled(in Input) *Analysis {
	a := newAnalysis("garbled", "Distorted, fast, slow, or choppy audio")
	lower := strings.ToLower(in.LogText)

	if in.Metrics != nil && in.Metrics.UnderflowCount > 0 {
		a.Findings = append(a.Findings,
			fmt.Sprintf("Jitter buffer underflows detected (%d events)", in.Metrics.UnderflowCount))
		a.RootCauses = append(a.RootCauses, "Audio pacing mismatch - playback too fast for buffer")
		a.Actions = append(a.Actions,
			"Increase jitter_buffer_ms in streaming config (try 100ms)",
			"Check provider_bytes calculation accuracy")
	}

	if in.Metrics != nil && in.Metrics.Alignment != nil && len(in.Metrics.Alignment.Issues) > 0 {
		a.Findings = append(a.Findings, "Audio format alignment issues detected")
		a.RootCauses = append(a.RootCauses, "Audio codec mismatch between components")
		if in.Transport == "externalmedia" {
			a.Actions = append(a.Actions,
				"Verify external_media.codec matches the RTP wire codec (typically ulaw@8k for telephony)",
				"Verify external_media sample-rate alignment with provider expectations")
		} else {
			a.Actions = append(a.Actions,
				"Verify audiosocket.format matches the Asterisk dialplan (slin recommended)")
		}
	}

	if in.Metrics != nil && absFloat(in.Metrics.WorstDriftPct) > 10.0 && in.Metrics.UnderflowCount == 0 {
		a.Findings = append(a.Findings,
			fmt.Sprintf("High drift (%.1f%%) with zero underflows", in.Metrics.WorstDriftPct))
		a.RootCauses = append(a.RootCauses, "Sample-rate mismatch or resampling bug, not jitter")
		a.Actions = append(a.Actions,
			"Verify the provider's actual output sample rate matches the configured one")
	}

	if strings.Contains(lower, "sample rate") || strings.Contains(lower, "sample_rate") {
		a.Actions = append(a.Actions, "Verify sample rate consistency across transport and provider")
	}

	return a
}

// echoEvidencePhrases are phrases that indicate an actual echo problem.
// Bare "echo" appears in benign logs (e.g. "echo prevention") and is not
// counted.
var echoEvidencePhrases = []string{
	"echo detected",
	"acoustic echo",
	"echo leakage",
	"hearing itself",
	"hears itself",
	"self echo",
	"self-echo",
	"echo cancellation failed",
}

func echoEvidenceCount(lower string) int {
	count := 0
	for _, p := range echoEvidencePhrases {
		count += strings.Count(lower, p)
	}
	return count
}

func analyzeEcho(in Input) *Analysis {
	a := newAnalysis("echo", "Agent hears its own output, causing confusion")
	lower := strings.ToLower(in.LogText)

	if in.Metrics != nil && in.Metrics.VAD != nil && in.Metrics.VAD.Aggressiveness == 0 {
		a.Findings = append(a.Findings, "VAD aggressiveness 0 (most sensitive)")
		a.RootCauses = append(a.RootCauses, "VAD too sensitive, detecting echo as speech")
		a.Actions = append(a.Actions,
			"Set vad.webrtc_aggressiveness: 1",
			"Check confidence_threshold (try 0.6 or higher)")
	}

	if in.Metrics != nil && in.Metrics.GateFlutterDetected {
		a.Findings = append(a.Findings,
			fmt.Sprintf("Audio gate flutter (%d closures)", in.Metrics.GateClosures))
		a.RootCauses = append(a.RootCauses, "Capture gate opening/closing rapidly - echo leaking past it")
		a.Actions = append(a.Actions, "Check post_tts_end_protection_ms setting")
	}

	if n := echoEvidenceCount(lower); n > 0 {
		a.Findings = append(a.Findings, fmt.Sprintf("Echo evidence in logs (%d matches)", n))
		a.Actions = append(a.Actions,
			"Let the provider handle echo cancellation where built in",
			"Reduce local VAD sensitivity")
	}

	return a
}

func analyzeInterruption(in Input) *Analysis {
	a := newAnalysis("interruption", "Agent interrupts itself mid-sentence")
	lower := strings.ToLower(in.LogText)

	if strings.Contains(lower, "interrupt") {
		a.Findings = append(a.Findings,
			fmt.Sprintf("Interruptions detected (%d occurrences)", strings.Count(lower, "interrupt")))
		a.RootCauses = append(a.RootCauses, "Agent hearing its own audio output")
	}

	a.Actions = append(a.Actions,
		"This is typically an echo/VAD issue",
		"See the 'echo' symptom analysis for details",
		"Adjust VAD aggressiveness and post-TTS protection")

	return a
}

func analyzeOneWay(in Input) *Analysis {
	a := newAnalysis("one-way", "Audio works in only one direction")
	lower := strings.ToLower(in.LogText)

	hasTranscription := strings.Contains(lower, "transcription") || strings.Contains(lower, "transcript")
	hasPlayback := strings.Contains(lower, "playback") || strings.Contains(lower, "playing")

	if !hasTranscription {
		a.Findings = append(a.Findings, "No transcription detected (caller to agent broken)")
		a.RootCauses = append(a.RootCauses, "STT provider not receiving audio or not working")
		a.Actions = append(a.Actions, "Check the STT provider API key and connectivity")
	}
	if !hasPlayback {
		a.Findings = append(a.Findings, "No playback detected (agent to caller broken)")
		a.RootCauses = append(a.RootCauses, "TTS provider or playback system not working")
		a.Actions = append(a.Actions, "Check the TTS provider API key and connectivity")
	}

	if hasTranscription && !hasPlayback {
		a.Findings = append(a.Findings, "Caller can be heard but agent cannot be heard")
	} else if !hasTranscription && hasPlayback {
		a.Findings = append(a.Findings, "Agent can be heard but caller cannot be heard")
	}

	return a
}

// analyzeGeneric is the fallback for unrecognized labels: a broad evidence
// summary instead of a targeted rule set.
func analyzeGeneric(label string, in Input) *Analysis {
	desc := "General call analysis"
	if label != "" {
		desc = fmt.Sprintf("Unrecognized symptom %q; running general analysis instead", label)
	}
	a := newAnalysis(label, desc)

	if len(in.Errors) > 0 {
		a.Findings = append(a.Findings, fmt.Sprintf("%d error lines in call logs", len(in.Errors)))
		a.Actions = append(a.Actions, "Review the errors section of this report")
	}
	if len(in.Warnings) > 0 {
		a.Findings = append(a.Findings, fmt.Sprintf("%d warning lines in call logs", len(in.Warnings)))
	}
	if in.Metrics != nil {
		if in.Metrics.UnderflowCount > 0 {
			a.Findings = append(a.Findings,
				fmt.Sprintf("%d jitter buffer underflows", in.Metrics.UnderflowCount))
		}
		if absFloat(in.Metrics.WorstDriftPct) > 10.0 {
			a.Findings = append(a.Findings,
				fmt.Sprintf("High playback drift (%.1f%%)", in.Metrics.WorstDriftPct))
		}
	}
	if in.Transport == "" {
		a.Findings = append(a.Findings, "Audio transport could not be determined from logs")
		a.Actions = append(a.Actions, "Confirm the configured audio_transport value")
	}
	if len(a.Findings) == 0 {
		a.Findings = append(a.Findings, "No notable anomalies in the scoped logs")
	}

	return a
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
