package metrics

import (
	"strings"

	"github.com/quikefix/voice-rca/internal/logparse"
)

// ProviderRuntimeAudio captures provider-reported and actually-used output
// sample rates discovered at runtime. Complements CallHeader, which only
// reflects configuration.
type ProviderRuntimeAudio struct {
	ProviderName string `json:"provider_name,omitempty"`

	ConfiguredOutputSampleRateHz int `json:"configured_output_sample_rate_hz,omitempty"`
	ReportedOutputSampleRateHz   int `json:"provider_reported_output_sample_rate_hz,omitempty"`
	UsedOutputSampleRateHz       int `json:"used_output_sample_rate_hz,omitempty"`
}

// Mismatch reports whether the provider's reported output rate disagrees
// with what was configured. This shows up as slowed or sped-up audio.
func (p *ProviderRuntimeAudio) Mismatch() bool {
	return p != nil && p.ReportedOutputSampleRateHz > 0 &&
		p.ConfiguredOutputSampleRateHz > 0 &&
		p.ReportedOutputSampleRateHz != p.ConfiguredOutputSampleRateHz
}

// ExtractProviderRuntime returns the first runtime audio-rate record found,
// or nil when the provider never reported one.
func ExtractProviderRuntime(text string) *ProviderRuntimeAudio {
	for _, raw := range strings.Split(text, "\n") {
		ln, ok := logparse.Parse(raw)
		if !ok || len(ln.Fields) == 0 {
			continue
		}
		used := logparse.Int(ln.Fields["used_output_sample_rate_hz"])
		if used <= 0 {
			continue
		}
		return &ProviderRuntimeAudio{
			ProviderName:                 strings.TrimSpace(ln.Fields["provider"]),
			ConfiguredOutputSampleRateHz: logparse.Int(ln.Fields["configured_output_sample_rate_hz"]),
			ReportedOutputSampleRateHz:   logparse.Int(ln.Fields["provider_reported_output_sample_rate_hz"]),
			UsedOutputSampleRateHz:       used,
		}
	}
	return nil
}
