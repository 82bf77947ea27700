package metrics

import (
	"fmt"
	"strings"
)

// FormatAlignment cross-validates configured vs observed transport encoding,
// sample rate, and frame size. Derived only; never constructed directly.
type FormatAlignment struct {
	ConfigAudioTransport       string `json:"config_audio_transport,omitempty"`
	ConfigAudioSocketFormat    string `json:"config_audiosocket_format,omitempty"`
	ConfigProviderInputFormat  string `json:"config_provider_input_format,omitempty"`
	ConfigProviderOutputFormat string `json:"config_provider_output_format,omitempty"`
	ConfigSampleRate           int    `json:"config_sample_rate,omitempty"`

	RuntimeAudioSocketFormat   string `json:"runtime_audiosocket_format,omitempty"`
	RuntimeProviderInputFormat string `json:"runtime_provider_input_format,omitempty"`
	RuntimeSampleRate          int    `json:"runtime_sample_rate,omitempty"`

	ObservedFrameSize int `json:"observed_frame_size,omitempty"`
	ExpectedFrameSize int `json:"expected_frame_size,omitempty"`

	ChannelMismatch        bool `json:"channel_mismatch,omitempty"`
	ProviderFormatMismatch bool `json:"provider_format_mismatch,omitempty"`
	SampleRateMismatch     bool `json:"sample_rate_mismatch,omitempty"`
	FrameSizeMismatch      bool `json:"frame_size_mismatch,omitempty"`

	Issues []string `json:"issues,omitempty"`
}

// AnalyzeAlignment is a pure function of already-extracted fields. The
// analysis is log-driven: config-side values come from the call header, not
// from reading config files.
func AnalyzeAlignment(m *CallMetrics, h *CallHeader) *FormatAlignment {
	a := &FormatAlignment{Issues: []string{}}

	if h != nil {
		a.ConfigAudioTransport = strings.ToLower(strings.TrimSpace(h.AudioTransport))
		a.ConfigAudioSocketFormat = strings.TrimSpace(h.AudioSocketFormat)
		a.ConfigSampleRate = h.StreamingSampleRate
		if h.ProviderInputEncoding != "" {
			a.ConfigProviderInputFormat = h.ProviderInputEncoding
		}
		if h.ProviderOutputEncoding != "" {
			a.ConfigProviderOutputFormat = h.ProviderOutputEncoding
		}
	}

	a.RuntimeAudioSocketFormat = m.AudioSocketFormat
	a.RuntimeProviderInputFormat = m.ProviderInputFormat
	a.RuntimeSampleRate = m.SampleRate

	analyzeFrameSizes(a, m)
	detectMisalignments(a)

	return a
}

func analyzeFrameSizes(a *FormatAlignment, m *CallMetrics) {
	switch a.RuntimeAudioSocketFormat {
	case "slin", "slin16":
		// PCM16 @ 8kHz, 20ms frame
		a.ExpectedFrameSize = 320
	case "ulaw", "mulaw":
		// mu-law @ 8kHz, 20ms frame
		a.ExpectedFrameSize = 160
	}

	if len(m.ProviderSegments) > 0 {
		// Rough per-frame estimate from the first segment.
		a.ObservedFrameSize = m.ProviderSegments[0].ProviderBytes / 10
	}
}

func detectMisalignments(a *FormatAlignment) {
	transport := a.ConfigAudioTransport

	if transport == "audiosocket" && a.ConfigAudioSocketFormat != "" && a.RuntimeAudioSocketFormat != "" {
		if a.ConfigAudioSocketFormat != a.RuntimeAudioSocketFormat {
			a.ChannelMismatch = true
			a.Issues = append(a.Issues, fmt.Sprintf(
				"AudioSocket format mismatch: config=%s, runtime=%s",
				a.ConfigAudioSocketFormat, a.RuntimeAudioSocketFormat))
		}
	}

	if a.ConfigProviderInputFormat != "" && a.RuntimeProviderInputFormat != "" {
		if NormalizeEncoding(a.ConfigProviderInputFormat) != NormalizeEncoding(a.RuntimeProviderInputFormat) {
			a.ProviderFormatMismatch = true
			a.Issues = append(a.Issues, fmt.Sprintf(
				"Provider input format mismatch: config=%s, runtime=%s",
				a.ConfigProviderInputFormat, a.RuntimeProviderInputFormat))
		}
	}

	// AudioSocket transport carries slin on the wire; anything else garbles.
	if transport == "audiosocket" && a.RuntimeAudioSocketFormat != "" && a.RuntimeAudioSocketFormat != "slin" {
		a.ChannelMismatch = true
		a.Issues = append(a.Issues, fmt.Sprintf(
			"AudioSocket format should be 'slin' (golden baseline), got '%s'",
			a.RuntimeAudioSocketFormat))
	}

	if a.ExpectedFrameSize > 0 && a.ObservedFrameSize > 0 {
		diff := a.ExpectedFrameSize - a.ObservedFrameSize
		if diff < 0 {
			diff = -diff
		}
		if diff > a.ExpectedFrameSize/10 {
			a.FrameSizeMismatch = true
			a.Issues = append(a.Issues, fmt.Sprintf(
				"Frame size mismatch: expected ~%d bytes, observed ~%d bytes",
				a.ExpectedFrameSize, a.ObservedFrameSize))
		}
	}
}

// NormalizeEncoding maps encoding aliases onto canonical names so config and
// runtime spellings compare equal.
func NormalizeEncoding(format string) string {
	switch strings.ToLower(format) {
	case "mulaw", "ulaw", "pcmu":
		return "mulaw"
	case "alaw", "pcma":
		return "alaw"
	case "linear16", "pcm16", "slin", "slin16":
		return "pcm16"
	case "linear24", "pcm24":
		return "pcm24"
	default:
		return strings.ToLower(format)
	}
}

// PromptSummary renders alignment issues for the diagnosis prompt. Empty when
// nothing is misaligned.
func (a *FormatAlignment) PromptSummary() string {
	if a == nil || len(a.Issues) == 0 {
		return ""
	}

	var out strings.Builder
	out.WriteString("\n=== FORMAT/SAMPLING ALIGNMENT ===\n\n")
	if a.ConfigAudioTransport != "" {
		fmt.Fprintf(&out, "Transport: %s\n", a.ConfigAudioTransport)
	}
	if a.ConfigAudioSocketFormat != "" {
		fmt.Fprintf(&out, "AudioSocket: config=%s runtime=%s\n", a.ConfigAudioSocketFormat, a.RuntimeAudioSocketFormat)
	}
	if a.ConfigProviderInputFormat != "" {
		fmt.Fprintf(&out, "Provider input: config=%s runtime=%s\n", a.ConfigProviderInputFormat, a.RuntimeProviderInputFormat)
	}
	out.WriteString("ALIGNMENT ISSUES:\n")
	for i, issue := range a.Issues {
		fmt.Fprintf(&out, "%d. %s\n", i+1, issue)
	}
	return out.String()
}
