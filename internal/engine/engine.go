// Package engine orchestrates one root-cause-analysis run: retrieve logs,
// correlate the call's lines, extract metrics, compare to baselines, score,
// and optionally augment with an LLM diagnosis.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quikefix/voice-rca/internal/baseline"
	"github.com/quikefix/voice-rca/internal/config"
	"github.com/quikefix/voice-rca/internal/correlate"
	"github.com/quikefix/voice-rca/internal/diagnose"
	"github.com/quikefix/voice-rca/internal/metrics"
	"github.com/quikefix/voice-rca/internal/report"
	"github.com/quikefix/voice-rca/internal/retrieve"
	"github.com/quikefix/voice-rca/internal/score"
	"github.com/quikefix/voice-rca/internal/symptom"
)

// Benign outcomes: the pipeline worked but there was nothing to analyze.
var (
	ErrNoCallsFound  = errors.New("no recent calls found")
	ErrNoLogsForCall = errors.New("no logs found for call")
)

// Augmenter is the optional LLM diagnosis hook. A nil Augmenter means
// augmentation is not configured.
type Augmenter interface {
	Analyze(ctx context.Context, sum *diagnose.Summary) diagnose.Result
}

// Request selects what one Analyze run does.
type Request struct {
	CallID  string
	Symptom string

	SkipLLM  bool
	ForceLLM bool
}

// Engine wires the analysis pipeline. All collaborators are injected; tests
// substitute fakes for the retriever and augmenter.
type Engine struct {
	logger    *slog.Logger
	cfg       *config.Config
	retriever retrieve.Retriever
	baselines *baseline.Registry
	augmenter Augmenter
}

func New(logger *slog.Logger, cfg *config.Config, r retrieve.Retriever, reg *baseline.Registry, aug Augmenter) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger:    logger,
		cfg:       cfg,
		retriever: r,
		baselines: reg,
		augmenter: aug,
	}
}

// ListCalls discovers recent caller-facing calls, newest first.
func (e *Engine) ListCalls(ctx context.Context, limit int) ([]correlate.Call, error) {
	raw, err := e.retriever.Fetch(ctx, e.cfg.ListWindow)
	if err != nil {
		return nil, err
	}
	calls := correlate.ListCalls(raw, limit)
	e.logger.Debug("call discovery complete", "window", e.cfg.ListWindow, "calls", len(calls))
	return calls, nil
}

// Collect retrieves and scopes the logs for one call without analyzing them.
func (e *Engine) Collect(ctx context.Context, callID string) (correlate.ScopedLog, error) {
	raw, err := e.retriever.Fetch(ctx, e.cfg.LogSince)
	if err != nil {
		return correlate.ScopedLog{}, err
	}
	scoped := correlate.ScopeCall(raw, callID)
	if scoped.Empty() {
		return scoped, fmt.Errorf("%w: %s", ErrNoLogsForCall, callID)
	}
	return scoped, nil
}

// Analyze runs the full pipeline for one call and returns the report. The
// report is deterministic apart from the optional LLM section.
func (e *Engine) Analyze(ctx context.Context, req Request) (*report.Report, error) {
	scoped, err := e.Collect(ctx, req.CallID)
	if err != nil {
		return nil, err
	}
	logText := scoped.Text()
	e.logger.Debug("call scoped", "call_id", req.CallID, "lines", len(scoped.Lines), "related", scoped.Related)

	insp := inspectLines(scoped.Lines)

	header := metrics.ExtractHeader(logText)
	providerRuntime := metrics.ExtractProviderRuntime(logText)

	transport := insp.transport
	if transport == "" && header != nil {
		transport = strings.ToLower(strings.TrimSpace(header.AudioTransport))
	}

	m := metrics.Extract(logText)
	m.Alignment = metrics.AnalyzeAlignment(m, header)

	baselineName := e.baselines.Detect(logText)
	comparison := e.baselines.Compare(m, baselineName)

	var symptomAnalysis *symptom.Analysis
	if req.Symptom != "" {
		symptomAnalysis = symptom.NewChecker(req.Symptom).Analyze(symptom.Input{
			Metrics:   m,
			Transport: transport,
			Errors:    insp.errors,
			Warnings:  insp.warnings,
			LogText:   logText,
		})
	}

	var quality *score.Result
	if m.HasEvidence() {
		q := score.Evaluate(m)
		quality = &q
	}

	diagnosis := e.runAugmenter(ctx, req, insp, transport, header, m, comparison, quality, logText)

	return report.Build(report.Input{
		CallID: req.CallID,

		Header:          header,
		ProviderRuntime: providerRuntime,

		AudioTransport: transport,
		Pipeline: report.Pipeline{
			HasAudioSocket:   insp.hasAudioSocket,
			HasExternalMedia: insp.hasExternalMedia,
			HasTranscription: insp.hasTranscription,
			HasPlayback:      insp.hasPlayback,
		},

		Errors:      insp.errors,
		Warnings:    insp.warnings,
		AudioIssues: insp.audioIssues,

		ToolCalls: metrics.ExtractToolCalls(logText),

		Symptom:         req.Symptom,
		SymptomAnalysis: symptomAnalysis,

		Metrics:  m,
		Baseline: comparison,

		Quality:   quality,
		Diagnosis: diagnosis,

		Recommendations: buildRecommendations(insp, transport, m, providerRuntime),
	}), nil
}

func (e *Engine) runAugmenter(
	ctx context.Context,
	req Request,
	insp *inspection,
	transport string,
	header *metrics.CallHeader,
	m *metrics.CallMetrics,
	comparison *baseline.Comparison,
	quality *score.Result,
	logText string,
) diagnose.Result {
	if req.SkipLLM {
		return diagnose.Unavailable("disabled by --no-llm")
	}
	if e.augmenter == nil {
		return diagnose.Unavailable("LLM analysis not configured")
	}
	if !req.ForceLLM && !shouldAugment(insp, m, quality, logText) {
		return diagnose.Unavailable("skipped: call looks healthy (use --llm to force)")
	}

	e.logger.Debug("requesting llm diagnosis", "call_id", req.CallID)
	return e.augmenter.Analyze(ctx, &diagnose.Summary{
		CallID:    req.CallID,
		Symptom:   req.Symptom,
		Transport: transport,

		HasAudioSocket:   insp.hasAudioSocket,
		HasExternalMedia: insp.hasExternalMedia,
		HasTranscription: insp.hasTranscription,
		HasPlayback:      insp.hasPlayback,

		Errors:      insp.errors,
		Warnings:    insp.warnings,
		AudioIssues: insp.audioIssues,

		Header:   header,
		Metrics:  m,
		Baseline: comparison,

		LogText: logText,
	})
}

// shouldAugment gates the LLM call to keep noise and cost down: skip tiny
// healthy logs, always run on errors, otherwise only when metrics evidence
// indicates non-excellent quality.
func shouldAugment(insp *inspection, m *metrics.CallMetrics, quality *score.Result, logText string) bool {
	lines := 0
	for _, l := range strings.Split(logText, "\n") {
		if strings.TrimSpace(l) != "" {
			lines++
		}
	}
	if lines < 50 && len(insp.errors) == 0 && len(insp.warnings) == 0 {
		return false
	}

	if len(insp.errors) > 0 {
		return true
	}

	if quality == nil || !m.HasEvidence() {
		return false
	}
	return quality.Score < 90 || len(quality.Issues) > 0
}

// inspection is the line-sweep output: issue lists and pipeline presence.
type inspection struct {
	errors      []string
	warnings    []string
	audioIssues []string

	hasAudioSocket   bool
	hasExternalMedia bool
	hasTranscription bool
	hasPlayback      bool

	transport string
}

// inspectLines sweeps the scoped lines once. Transport detection is strict:
// config lines mention both transports, so only channel-lifecycle evidence
// counts, and ambiguity resolves to "" (the header decides).
func inspectLines(lines []string) *inspection {
	insp := &inspection{}

	for _, line := range lines {
		lower := strings.ToLower(line)

		if isErrorLine(lower) && !isBenignARIError(lower) {
			insp.errors = append(insp.errors, line)
		}
		if isWarningLine(lower) {
			insp.warnings = append(insp.warnings, line)
		}

		if strings.Contains(lower, `"audiosocket_channel_id"`) ||
			strings.Contains(lower, "audiosocket channel entered stasis") ||
			(strings.Contains(lower, "audiosocket") && strings.Contains(lower, "channel") && strings.Contains(lower, "stasis")) {
			insp.hasAudioSocket = true
		}
		if strings.Contains(lower, "externalmedia channel") ||
			strings.Contains(lower, `"external_media_id"`) ||
			strings.Contains(lower, "external_media_id=") ||
			strings.Contains(lower, `"pending_external_media_id"`) ||
			strings.Contains(lower, "pending_external_media_id=") ||
			strings.Contains(lower, "create_external_media_channel") {
			insp.hasExternalMedia = true
		}

		if strings.Contains(lower, "transcription") || strings.Contains(lower, "transcript") {
			insp.hasTranscription = true
		}
		if strings.Contains(lower, "playback") || strings.Contains(lower, "playing") {
			insp.hasPlayback = true
		}

		if strings.Contains(lower, "underflow") {
			insp.audioIssues = append(insp.audioIssues, "Jitter buffer underflow detected")
		}
		if strings.Contains(lower, "garbled") || strings.Contains(lower, "distorted") {
			insp.audioIssues = append(insp.audioIssues, "Audio quality issue detected")
		}
	}

	switch {
	case insp.hasExternalMedia && !insp.hasAudioSocket:
		insp.transport = "externalmedia"
	case insp.hasAudioSocket && !insp.hasExternalMedia:
		insp.transport = "audiosocket"
	}

	return insp
}

func isErrorLine(lower string) bool {
	return strings.Contains(lower, "[error") ||
		strings.Contains(lower, `"level":"error"`) ||
		strings.Contains(lower, " level=error")
}

func isWarningLine(lower string) bool {
	return strings.Contains(lower, "[warning") ||
		strings.Contains(lower, "[warn") ||
		strings.Contains(lower, `"level":"warning"`) ||
		strings.Contains(lower, " level=warning")
}

// isBenignARIError matches ARI 404s on channel-variable reads: missing
// variables are routine and not a call defect.
func isBenignARIError(lower string) bool {
	return strings.Contains(lower, "ari command failed") &&
		strings.Contains(lower, "status=404") &&
		strings.Contains(lower, "provided variable was not found") &&
		strings.Contains(lower, "/variable")
}

func buildRecommendations(insp *inspection, transport string, m *metrics.CallMetrics, pr *metrics.ProviderRuntimeAudio) []string {
	recs := []string{}

	switch transport {
	case "audiosocket":
		if !insp.hasAudioSocket {
			recs = append(recs,
				"Check if AudioSocket is configured correctly",
				"Verify AudioSocket port is reachable from Asterisk")
		}
	case "externalmedia":
		if !insp.hasExternalMedia {
			recs = append(recs,
				"Check if ExternalMedia RTP is configured correctly",
				"Verify RTP UDP port reachability (firewall/NAT)")
		}
	default:
		if !insp.hasAudioSocket && !insp.hasExternalMedia {
			recs = append(recs,
				"Check which transport is in use (audiosocket vs externalmedia)",
				"Confirm the engine config has a valid audio_transport value")
		}
	}

	if len(insp.audioIssues) > 0 {
		recs = append(recs,
			"Check jitter_buffer_ms settings",
			"Verify network stability")
	}

	if m != nil && m.HasEvidence() && absFloat(m.WorstDriftPct) > 10.0 && m.UnderflowCount == 0 {
		recs = append(recs,
			"High drift with zero underflows usually indicates a sample-rate mismatch or resampling issue",
			"Verify the provider's actual output sample rate matches the configured one")
	}

	if pr != nil && pr.Mismatch() {
		name := strings.TrimSpace(pr.ProviderName)
		if name == "" {
			name = "provider"
		}
		recs = append(recs, fmt.Sprintf(
			"Provider-reported output rate (%d Hz) differs from configured (%d Hz); set %s output_sample_rate_hz to %d",
			pr.ReportedOutputSampleRateHz, pr.ConfiguredOutputSampleRateHz, name, pr.ReportedOutputSampleRateHz))
	}

	if len(insp.errors) > 10 {
		recs = append(recs, "High error count - inspect the container logs directly")
	}

	return recs
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
