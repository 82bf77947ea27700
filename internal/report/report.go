// Package report assembles the final RCA artifact and renders it as JSON or
// colorized terminal text.
package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/quikefix/voice-rca/internal/baseline"
	"github.com/quikefix/voice-rca/internal/diagnose"
	"github.com/quikefix/voice-rca/internal/metrics"
	"github.com/quikefix/voice-rca/internal/score"
	"github.com/quikefix/voice-rca/internal/symptom"
)

// List caps keep reports bounded on pathological calls. JSON truncates
// silently but carries the totals; the text renderer prints "+N more".
const (
	MaxErrors      = 20
	MaxWarnings    = 20
	MaxAudioIssues = 50
)

// Pipeline is the presence matrix for the call's media path.
type Pipeline struct {
	HasAudioSocket   bool `json:"has_audiosocket"`
	HasExternalMedia bool `json:"has_externalmedia"`
	HasTranscription bool `json:"has_transcription"`
	HasPlayback      bool `json:"has_playback"`
}

// Report is the complete analysis artifact for one call.
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	CallID      string    `json:"call_id"`

	// Error is set instead of the analysis body when the run failed in a way
	// that still warrants a JSON artifact (no calls found, no logs).
	Error string `json:"error,omitempty"`

	Header          *metrics.CallHeader           `json:"header,omitempty"`
	ProviderRuntime *metrics.ProviderRuntimeAudio `json:"provider_runtime,omitempty"`

	AudioTransport string   `json:"audio_transport,omitempty"`
	Pipeline       Pipeline `json:"pipeline"`

	Errors        []string `json:"errors,omitempty"`
	ErrorTotal    int      `json:"error_total,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
	WarningTotal  int      `json:"warning_total,omitempty"`
	AudioIssues   []string `json:"audio_issues,omitempty"`
	AudioIssueTot int      `json:"audio_issue_total,omitempty"`

	ToolCalls []metrics.ToolCallRecord `json:"tool_calls,omitempty"`

	Symptom         string            `json:"symptom,omitempty"`
	SymptomAnalysis *symptom.Analysis `json:"symptom_analysis,omitempty"`

	Metrics  *metrics.CallMetrics `json:"metrics,omitempty"`
	Baseline *baseline.Comparison `json:"baseline_comparison,omitempty"`

	Quality   *score.Result   `json:"quality,omitempty"`
	Diagnosis diagnose.Result `json:"llm_diagnosis"`

	Recommendations []string `json:"recommendations,omitempty"`
}

// Input is the uncapped analysis state handed over by the engine.
type Input struct {
	CallID string

	Header          *metrics.CallHeader
	ProviderRuntime *metrics.ProviderRuntimeAudio

	AudioTransport string
	Pipeline       Pipeline

	Errors      []string
	Warnings    []string
	AudioIssues []string

	ToolCalls []metrics.ToolCallRecord

	Symptom         string
	SymptomAnalysis *symptom.Analysis

	Metrics  *metrics.CallMetrics
	Baseline *baseline.Comparison

	Quality   *score.Result
	Diagnosis diagnose.Result

	Recommendations []string
}

// Build stamps identity fields and applies the list caps.
func Build(in Input) *Report {
	r := &Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		CallID:      in.CallID,

		Header:          in.Header,
		ProviderRuntime: in.ProviderRuntime,

		AudioTransport: in.AudioTransport,
		Pipeline:       in.Pipeline,

		Errors:        capSlice(in.Errors, MaxErrors),
		ErrorTotal:    len(in.Errors),
		Warnings:      capSlice(in.Warnings, MaxWarnings),
		WarningTotal:  len(in.Warnings),
		AudioIssues:   capSlice(in.AudioIssues, MaxAudioIssues),
		AudioIssueTot: len(in.AudioIssues),

		ToolCalls: in.ToolCalls,

		Symptom:         in.Symptom,
		SymptomAnalysis: in.SymptomAnalysis,

		Metrics:  in.Metrics,
		Baseline: in.Baseline,

		Quality:   in.Quality,
		Diagnosis: in.Diagnosis,

		Recommendations: in.Recommendations,
	}
	return r
}

// Failed builds a minimal report carrying only the failure message, so JSON
// consumers always receive a well-formed artifact.
func Failed(callID, message string) *Report {
	return &Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		CallID:      callID,
		Error:       message,
		Diagnosis:   diagnose.Unavailable("analysis did not run"),
	}
}

// WriteJSON emits the indented JSON artifact.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func capSlice(in []string, n int) []string {
	if len(in) <= n {
		return in
	}
	return in[:n]
}
