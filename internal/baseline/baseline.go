// Package baseline holds golden-baseline profiles: named, provider-specific
// expected ranges representing known-good call behavior.
//
// Profiles live in an injected read-only Registry rather than process-wide
// globals so tests and operators can substitute their own tables.
package baseline

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quikefix/voice-rca/internal/metrics"
)

// Severity ranks a deviation for reporting and prompt emphasis.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Range is an inclusive accepted interval.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Contains reports whether v falls inside the range, bounds inclusive.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Profile is one named set of expected metric ranges.
type Profile struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	EnqueuedRatio       Range   `yaml:"enqueued_ratio" json:"enqueued_ratio"`
	MaxAbsDriftPct      float64 `yaml:"max_abs_drift_pct" json:"max_abs_drift_pct"`
	MaxUnderflowRatePct float64 `yaml:"max_underflow_rate_pct" json:"max_underflow_rate_pct"`
	MaxGateClosures     int     `yaml:"max_gate_closures" json:"max_gate_closures"`

	// VADAggressiveness below zero means "no expectation".
	VADAggressiveness int    `yaml:"vad_aggressiveness" json:"vad_aggressiveness"`
	AudioSocketFormat string `yaml:"audiosocket_format,omitempty" json:"audiosocket_format,omitempty"`
}

// Deviation is one out-of-range field with the validated expected value.
type Deviation struct {
	Field    string   `json:"field"`
	Observed string   `json:"observed"`
	Expected string   `json:"expected"`
	Severity Severity `json:"severity"`
}

// Comparison is the result of checking CallMetrics against one profile. It
// carries no verdict; scoring is the quality scorer's job.
type Comparison struct {
	BaselineName string      `json:"baseline_name"`
	Description  string      `json:"description,omitempty"`
	Deviations   []Deviation `json:"deviations,omitempty"`
}

// InRange reports whether every tracked field fell inside the profile.
func (c *Comparison) InRange() bool {
	return len(c.Deviations) == 0
}

// Registry is a read-only profile table, built once and injected.
type Registry struct {
	profiles map[string]Profile
}

// Built-in profile names, in detection precedence order.
const (
	ProfileOpenAIRealtime   = "openai_realtime"
	ProfileDeepgramStandard = "deepgram_standard"
	ProfileStreamingDefault = "streaming_performance"
)

// NewRegistry returns the built-in golden baselines. Values are validated
// production settings for each provider family.
func NewRegistry() *Registry {
	r := &Registry{profiles: make(map[string]Profile, 4)}
	for _, p := range []Profile{
		{
			Name:                ProfileOpenAIRealtime,
			Description:         "OpenAI Realtime voice calls (server-side VAD, slin transport)",
			EnqueuedRatio:       Range{Min: 0.95, Max: 1.05},
			MaxAbsDriftPct:      10.0,
			MaxUnderflowRatePct: 1.0,
			MaxGateClosures:     metrics.GateFlutterThreshold,
			VADAggressiveness:   1,
			AudioSocketFormat:   "slin",
		},
		{
			Name:                ProfileDeepgramStandard,
			Description:         "Deepgram STT/TTS pipeline calls",
			EnqueuedRatio:       Range{Min: 0.95, Max: 1.05},
			MaxAbsDriftPct:      10.0,
			MaxUnderflowRatePct: 1.0,
			MaxGateClosures:     metrics.GateFlutterThreshold,
			VADAggressiveness:   -1,
			AudioSocketFormat:   "slin",
		},
		{
			Name:                ProfileStreamingDefault,
			Description:         "Generic streaming performance expectations",
			EnqueuedRatio:       Range{Min: 0.95, Max: 1.05},
			MaxAbsDriftPct:      10.0,
			MaxUnderflowRatePct: 1.0,
			MaxGateClosures:     metrics.GateFlutterThreshold,
			VADAggressiveness:   -1,
		},
	} {
		r.profiles[p.Name] = p
	}
	return r
}

// LoadFile merges profiles from a YAML override file into the registry.
// Overrides replace built-ins of the same name; new names are added.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read baseline file: %w", err)
	}
	var doc struct {
		Profiles []Profile `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse baseline file %s: %w", path, err)
	}
	for _, p := range doc.Profiles {
		if p.Name == "" {
			return fmt.Errorf("baseline file %s: profile without a name", path)
		}
		r.profiles[p.Name] = p
	}
	return nil
}

// Names returns the registered profile names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for n := range r.profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Detect picks a profile name from content signatures in the call-scoped
// text, in precedence order. Always resolves; the streaming default is the
// fallback.
func (r *Registry) Detect(text string) string {
	lower := strings.ToLower(text)

	if strings.Contains(lower, "openai") && strings.Contains(lower, "realtime") {
		if _, ok := r.profiles[ProfileOpenAIRealtime]; ok {
			return ProfileOpenAIRealtime
		}
	}
	if strings.Contains(lower, "deepgram") {
		if _, ok := r.profiles[ProfileDeepgramStandard]; ok {
			return ProfileDeepgramStandard
		}
	}
	return ProfileStreamingDefault
}

// Compare checks extracted metrics against the named profile, reporting
// per-field deviations. Unknown names fall back to the streaming default.
func (r *Registry) Compare(m *metrics.CallMetrics, name string) *Comparison {
	p, ok := r.profiles[name]
	if !ok {
		p = r.profiles[ProfileStreamingDefault]
	}
	c := &Comparison{BaselineName: p.Name, Description: p.Description}

	if len(m.ProviderSegments) > 0 && m.ProviderBytesTotal > 0 {
		ratio := m.EnqueuedRatio()
		if !p.EnqueuedRatio.Contains(ratio) {
			c.Deviations = append(c.Deviations, Deviation{
				Field:    "enqueued_ratio",
				Observed: fmt.Sprintf("%.3f", ratio),
				Expected: fmt.Sprintf("%.2f-%.2f", p.EnqueuedRatio.Min, p.EnqueuedRatio.Max),
				Severity: SeverityCritical,
			})
		}
	}

	if p.MaxAbsDriftPct > 0 && absFloat(m.WorstDriftPct) > p.MaxAbsDriftPct {
		c.Deviations = append(c.Deviations, Deviation{
			Field:    "worst_drift_pct",
			Observed: fmt.Sprintf("%.1f%%", m.WorstDriftPct),
			Expected: fmt.Sprintf("<=%.1f%% absolute", p.MaxAbsDriftPct),
			Severity: SeverityCritical,
		})
	}

	if p.MaxUnderflowRatePct > 0 && m.UnderflowCount > 0 {
		rate := m.UnderflowRatePct()
		if rate > p.MaxUnderflowRatePct {
			c.Deviations = append(c.Deviations, Deviation{
				Field:    "underflow_rate_pct",
				Observed: fmt.Sprintf("%.1f%%", rate),
				Expected: fmt.Sprintf("<=%.1f%%", p.MaxUnderflowRatePct),
				Severity: SeverityWarning,
			})
		}
	}

	if p.MaxGateClosures > 0 && m.GateClosures > p.MaxGateClosures {
		c.Deviations = append(c.Deviations, Deviation{
			Field:    "gate_closures",
			Observed: fmt.Sprintf("%d", m.GateClosures),
			Expected: fmt.Sprintf("<=%d", p.MaxGateClosures),
			Severity: SeverityCritical,
		})
	}

	if p.VADAggressiveness >= 0 && m.VAD != nil && m.VAD.Aggressiveness != p.VADAggressiveness {
		c.Deviations = append(c.Deviations, Deviation{
			Field:    "vad_aggressiveness",
			Observed: fmt.Sprintf("%d", m.VAD.Aggressiveness),
			Expected: fmt.Sprintf("%d", p.VADAggressiveness),
			Severity: SeverityWarning,
		})
	}

	if p.AudioSocketFormat != "" && m.AudioSocketFormat != "" && m.AudioSocketFormat != p.AudioSocketFormat {
		c.Deviations = append(c.Deviations, Deviation{
			Field:    "audiosocket_format",
			Observed: m.AudioSocketFormat,
			Expected: p.AudioSocketFormat,
			Severity: SeverityCritical,
		})
	}

	return c
}

// PromptSummary renders the comparison for the diagnosis prompt.
func (c *Comparison) PromptSummary() string {
	if c == nil {
		return ""
	}
	var out strings.Builder
	fmt.Fprintf(&out, "\n=== GOLDEN BASELINE: %s ===\n\n", c.BaselineName)
	if c.InRange() {
		out.WriteString("All tracked fields within the golden baseline.\n")
		return out.String()
	}
	out.WriteString("Deviations (current vs validated expected values):\n")
	for _, d := range c.Deviations {
		fmt.Fprintf(&out, "  [%s] %s: current=%s expected=%s\n", strings.ToUpper(string(d.Severity)), d.Field, d.Observed, d.Expected)
	}
	return out.String()
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
