// Package diagnose is the best-effort LLM augmentation layer. It turns the
// deterministic analysis into a compact prompt and asks a configured chat
// provider for a root-cause narrative. Every failure path degrades to an
// Unavailable result; the deterministic report never depends on this package
// succeeding.
package diagnose

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/quikefix/voice-rca/internal/baseline"
	"github.com/quikefix/voice-rca/internal/metrics"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	defaultOpenAIModel    = "gpt-4o-mini"
	defaultAnthropicModel = "claude-3-haiku-20240307"

	openAIURL    = "https://api.openai.com/v1/chat/completions"
	anthropicURL = "https://api.anthropic.com/v1/messages"

	maxPromptLogLines = 10
	maxIssueLines     = 5
	lineTruncateAt    = 200
)

// Diagnosis is a successful augmentation.
type Diagnosis struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Analysis string `json:"analysis"`
}

// Result is the explicit outcome of one augmentation attempt. Unavailable
// distinguishes "skipped or failed" from "ran and returned text"; callers must
// check it before reading Diagnosis.
type Result struct {
	Diagnosis   *Diagnosis `json:"diagnosis,omitempty"`
	Unavailable bool       `json:"unavailable,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

// Unavailable builds a degraded result with the human-readable reason.
func Unavailable(reason string) Result {
	return Result{Unavailable: true, Reason: reason}
}

// Summary is the deterministic evidence handed to the augmenter. The analyzer
// reads it but never mutates it.
type Summary struct {
	CallID    string
	Symptom   string
	Transport string

	HasAudioSocket   bool
	HasExternalMedia bool
	HasTranscription bool
	HasPlayback      bool

	Errors      []string
	Warnings    []string
	AudioIssues []string

	Header   *metrics.CallHeader
	Metrics  *metrics.CallMetrics
	Baseline *baseline.Comparison

	LogText string
}

// Analyzer holds provider credentials and an HTTP client. Construct with
// NewAnalyzer; a nil Analyzer is valid and always reports unavailable.
type Analyzer struct {
	provider string
	apiKey   string
	model    string
	client   *http.Client
	logger   *slog.Logger
}

// Options configures NewAnalyzer. Empty fields fall back to provider defaults.
type Options struct {
	Provider        string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	Model           string
	Timeout         time.Duration
	Logger          *slog.Logger
}

// NewAnalyzer resolves the provider from options. The error is informational:
// callers should log it and continue without augmentation.
func NewAnalyzer(opts Options) (*Analyzer, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		switch {
		case opts.OpenAIAPIKey != "":
			provider = ProviderOpenAI
		case opts.AnthropicAPIKey != "":
			provider = ProviderAnthropic
		default:
			return nil, fmt.Errorf("no LLM provider configured")
		}
	}

	var apiKey, model string
	switch provider {
	case ProviderOpenAI:
		apiKey = opts.OpenAIAPIKey
		model = defaultOpenAIModel
	case ProviderAnthropic:
		apiKey = opts.AnthropicAPIKey
		model = defaultAnthropicModel
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key found for provider: %s", provider)
	}
	if opts.Model != "" {
		model = opts.Model
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Analyzer{
		provider: provider,
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}, nil
}

// Analyze performs one augmentation attempt. It never returns an error; all
// failures fold into an Unavailable result so the caller's report path stays
// linear.
func (a *Analyzer) Analyze(ctx context.Context, sum *Summary) Result {
	if a == nil {
		return Unavailable("LLM analysis not configured")
	}

	prompt := buildPrompt(sum)

	var (
		response string
		err      error
	)
	switch a.provider {
	case ProviderOpenAI:
		response, err = a.callOpenAI(ctx, prompt)
	case ProviderAnthropic:
		response, err = a.callAnthropic(ctx, prompt)
	default:
		err = fmt.Errorf("unsupported LLM provider: %s", a.provider)
	}
	if err != nil {
		a.logger.Warn("llm diagnosis failed", "provider", a.provider, "error", err)
		return Unavailable(fmt.Sprintf("LLM analysis failed: %v", err))
	}

	return Result{Diagnosis: &Diagnosis{
		Provider: a.provider,
		Model:    a.model,
		Analysis: response,
	}}
}

func buildPrompt(sum *Summary) string {
	var p strings.Builder

	p.WriteString("You are an expert in diagnosing Asterisk AI voice agent issues. ")
	p.WriteString("Analyze the following call logs and provide a concise diagnosis.\n")
	p.WriteString("Be evidence-driven: if the call looks healthy, do NOT invent problems or propose config changes.\n\n")

	p.WriteString("Call ID: " + sum.CallID + "\n\n")

	if h := sum.Header; h != nil {
		p.WriteString("Call Header (log-derived):\n")
		if h.CallerNumber != "" {
			fmt.Fprintf(&p, "- Caller: %s\n", h.CallerNumber)
		}
		if h.CalledNumber != "" {
			fmt.Fprintf(&p, "- Called: %s\n", h.CalledNumber)
		}
		if h.ContextName != "" {
			fmt.Fprintf(&p, "- Context: %s\n", h.ContextName)
		}
		if h.ProviderName != "" {
			fmt.Fprintf(&p, "- Provider: %s\n", h.ProviderName)
		}
		if h.AudioTransport != "" {
			fmt.Fprintf(&p, "- Transport: %s\n", h.AudioTransport)
		}
		if h.TransportProfileEncoding != "" || h.TransportProfileSampleRate > 0 {
			fmt.Fprintf(&p, "- TransportProfile: %s@%d\n", h.TransportProfileEncoding, h.TransportProfileSampleRate)
		}
		if h.StreamingSampleRate > 0 || h.StreamingJitterBufferMs > 0 {
			fmt.Fprintf(&p, "- Streaming: sample_rate=%d jitter_buffer_ms=%d\n", h.StreamingSampleRate, h.StreamingJitterBufferMs)
		}
		p.WriteString("\n")
	}

	p.WriteString("Pipeline Status:\n")
	transport := strings.ToLower(strings.TrimSpace(sum.Transport))
	if transport != "" {
		fmt.Fprintf(&p, "- Transport: %s\n", transport)
	}
	switch transport {
	case "externalmedia":
		fmt.Fprintf(&p, "- AudioSocket detected: %v (NOT APPLICABLE in ExternalMedia mode)\n", sum.HasAudioSocket)
		fmt.Fprintf(&p, "- ExternalMedia detected: %v\n", sum.HasExternalMedia)
	case "audiosocket":
		fmt.Fprintf(&p, "- AudioSocket detected: %v\n", sum.HasAudioSocket)
		fmt.Fprintf(&p, "- ExternalMedia detected: %v (NOT APPLICABLE in AudioSocket mode)\n", sum.HasExternalMedia)
	default:
		fmt.Fprintf(&p, "- AudioSocket detected: %v\n", sum.HasAudioSocket)
		fmt.Fprintf(&p, "- ExternalMedia detected: %v\n", sum.HasExternalMedia)
	}
	fmt.Fprintf(&p, "- Transcription: %v\n", sum.HasTranscription)
	fmt.Fprintf(&p, "- Playback: %v\n\n", sum.HasPlayback)

	writeIssueBlock(&p, "Errors found", sum.Errors)
	writeIssueBlock(&p, "Warnings found", sum.Warnings)

	if len(sum.AudioIssues) > 0 {
		p.WriteString("Audio Issues:\n")
		for _, issue := range sum.AudioIssues {
			fmt.Fprintf(&p, "- %s\n", issue)
		}
		p.WriteString("\n")
	}

	if sum.Symptom != "" {
		fmt.Fprintf(&p, "Reported Symptom: %s\n\n", sum.Symptom)
	}

	if sum.Metrics != nil {
		p.WriteString(sum.Metrics.PromptSummary())
	}

	if sum.Baseline != nil {
		p.WriteString(sum.Baseline.PromptSummary())
		p.WriteString("IMPORTANT: Use the exact configuration values from the golden baseline deviations above.\n")
		p.WriteString("These are VALIDATED production values that are known to work.\n\n")
	}

	if sum.Metrics != nil && sum.Metrics.Alignment != nil {
		p.WriteString(sum.Metrics.Alignment.PromptSummary())
		p.WriteString("CRITICAL: Format mismatches cause garbled audio, distortion, or complete audio failure.\n")
		switch transport {
		case "audiosocket":
			p.WriteString("Golden baseline: audiosocket.format=slin, provider transcodes as needed.\n\n")
		case "externalmedia":
			p.WriteString("Golden baseline: external_media.codec matches RTP wire codec (typically ulaw@8k); provider transcodes/resamples as needed.\n\n")
		default:
			p.WriteString("Golden baseline depends on transport (audiosocket vs externalmedia); validate transport/profile alignment first.\n\n")
		}
	}

	// Drift without underflows is usually a sample-rate bug, not jitter.
	if sum.Metrics != nil && sum.Metrics.HasEvidence() {
		p.WriteString("\nDRIFT GUIDANCE:\n")
		p.WriteString("- If drift is worse than 10% and underflows are 0, suspect a sample-rate mismatch/resampling bug (not jitter buffer tuning).\n")
		p.WriteString("- Do NOT suggest changing jitter_buffer_ms/min_start_ms/low_watermark_ms unless underflows/jitter evidence is present.\n\n")
	}

	p.WriteString("Sample Log Lines:\n")
	count := 0
	for _, line := range strings.Split(sum.LogText, "\n") {
		if count >= maxPromptLogLines {
			break
		}
		if line == "" {
			continue
		}
		p.WriteString(truncate(line, lineTruncateAt) + "\n")
		count++
	}
	p.WriteString("\n")

	p.WriteString("Please provide:\n")
	p.WriteString("1. Root Cause: Identify the root cause based on golden baseline deviations (if any)\n")
	p.WriteString("   - Prioritize CRITICAL severity deviations first\n")
	p.WriteString("   - Reference the exact current vs expected values shown above\n")
	p.WriteString("   - Greeting segments have high drift and underflows during conversation pauses - this is NORMAL\n")
	p.WriteString("   - If ALL metrics are GOOD (ratio ~1.0, drift <10%, no underflows), state: 'No issues detected - call quality is EXCELLENT'\n")
	p.WriteString("   - In ExternalMedia mode, AudioSocket is NOT used; do NOT treat AudioSocket=false as an issue.\n")
	p.WriteString("2. Confidence: How confident are you? (High/Medium/Low)\n")
	p.WriteString("3. Quick Fix: Provide EXACT configuration changes (or 'N/A' if no issues)\n")
	p.WriteString("   - Use the EXACT values from the golden baseline deviations\n")
	p.WriteString("   - Specify the exact config section (e.g., 'vad:', 'streaming:', 'audiosocket:')\n")
	p.WriteString("4. Prevention: How to prevent this in the future?\n")
	p.WriteString("\nKeep your response concise and actionable (under 400 words).")

	return p.String()
}

func writeIssueBlock(p *strings.Builder, label string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(p, "%s: %d\n", label, len(lines))
	count := len(lines)
	if count > maxIssueLines {
		count = maxIssueLines
	}
	for i := 0; i < count; i++ {
		fmt.Fprintf(p, "- %s\n", truncate(lines[i], lineTruncateAt))
	}
	p.WriteString("\n")
}

func (a *Analyzer) callOpenAI(ctx context.Context, prompt string) (string, error) {
	body := map[string]any{
		"model": a.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens":  800,
		"temperature": 0.3,
	}

	raw, err := a.post(ctx, openAIURL, body, map[string]string{
		"Authorization": "Bearer " + a.apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}

	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty openai response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (a *Analyzer) callAnthropic(ctx context.Context, prompt string) (string, error) {
	body := map[string]any{
		"model": a.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens": 800,
	}

	raw, err := a.post(ctx, anthropicURL, body, map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": "2023-06-01",
	})
	if err != nil {
		return "", fmt.Errorf("anthropic request: %w", err)
	}

	var resp struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode anthropic response: %w", err)
	}
	if len(resp.Content) == 0 || resp.Content[0].Text == "" {
		return "", fmt.Errorf("empty anthropic response")
	}
	return resp.Content[0].Text, nil
}

func (a *Analyzer) post(ctx context.Context, url string, body any, headers map[string]string) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}
	return raw, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
