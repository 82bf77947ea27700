package metrics

import (
	"strings"

	"github.com/quikefix/voice-rca/internal/logparse"
)

// callStartEvent is the flat config snapshot the engine logs when a call
// starts. It is the preferred source for configured (as opposed to observed)
// transport and audio settings.
const callStartEvent = "RCA_CALL_START"

// CallHeader is the log-derived configuration snapshot for one call.
// Intentionally flat so it parses from both JSON and console logs.
type CallHeader struct {
	CallID       string `json:"call_id"`
	CallerName   string `json:"caller_name,omitempty"`
	CallerNumber string `json:"caller_number,omitempty"`
	CalledNumber string `json:"called_number,omitempty"`

	ContextName  string `json:"context_name,omitempty"`
	ProviderName string `json:"provider_name,omitempty"`
	PipelineName string `json:"pipeline_name,omitempty"`

	AudioTransport string `json:"audio_transport,omitempty"`
	DownstreamMode string `json:"downstream_mode,omitempty"`

	TransportProfileEncoding   string `json:"tp_encoding,omitempty"`
	TransportProfileSampleRate int    `json:"tp_sample_rate,omitempty"`
	TransportProfileSource     string `json:"tp_source,omitempty"`

	AudioSocketFormat          string `json:"audiosocket_format,omitempty"`
	AudioSocketHost            string `json:"audiosocket_host,omitempty"`
	AudioSocketPort            int    `json:"audiosocket_port,omitempty"`
	ExternalMediaCodec         string `json:"external_media_codec,omitempty"`
	ExternalMediaRTPHost       string `json:"external_media_rtp_host,omitempty"`
	ExternalMediaRTPPort       int    `json:"external_media_rtp_port,omitempty"`
	ExternalMediaAdvertiseHost string `json:"external_media_advertise_host,omitempty"`

	StreamingSampleRate     int `json:"streaming_sample_rate,omitempty"`
	StreamingJitterBufferMs int `json:"streaming_jitter_buffer_ms,omitempty"`
	StreamingMinStartMs     int `json:"streaming_min_start_ms,omitempty"`
	StreamingLowWatermarkMs int `json:"streaming_low_watermark_ms,omitempty"`

	VADAggressiveness      int     `json:"vad_webrtc_aggressiveness,omitempty"`
	VADConfidenceThreshold float64 `json:"vad_confidence_threshold,omitempty"`
	VADEnergyThreshold     int     `json:"vad_energy_threshold,omitempty"`
	VADEnhancedEnabled     bool    `json:"vad_enhanced_enabled,omitempty"`

	BargeInProtectionMs int `json:"barge_in_post_tts_end_protection_ms,omitempty"`

	ProviderInputEncoding      string `json:"provider_input_encoding,omitempty"`
	ProviderInputSampleRateHz  int    `json:"provider_input_sample_rate_hz,omitempty"`
	ProviderOutputEncoding     string `json:"provider_output_encoding,omitempty"`
	ProviderOutputSampleRateHz int    `json:"provider_output_sample_rate_hz,omitempty"`
	ProviderTargetEncoding     string `json:"provider_target_encoding,omitempty"`
	ProviderTargetSampleRateHz int    `json:"provider_target_sample_rate_hz,omitempty"`
}

// ExtractHeader scans for the call-start snapshot. Returns nil when the call
// predates header logging or info logs were disabled; callers degrade to
// observed-only analysis.
func ExtractHeader(text string) *CallHeader {
	for _, raw := range strings.Split(text, "\n") {
		ln, ok := logparse.Parse(raw)
		if !ok || strings.TrimSpace(ln.Event) != callStartEvent {
			continue
		}
		f := ln.Fields
		return &CallHeader{
			CallID:       f["call_id"],
			CallerName:   f["caller_name"],
			CallerNumber: f["caller_number"],
			CalledNumber: f["called_number"],

			ContextName:  f["context_name"],
			ProviderName: f["provider_name"],
			PipelineName: f["pipeline_name"],

			AudioTransport: f["audio_transport"],
			DownstreamMode: f["downstream_mode"],

			TransportProfileEncoding:   f["tp_encoding"],
			TransportProfileSampleRate: logparse.Int(f["tp_sample_rate"]),
			TransportProfileSource:     f["tp_source"],

			AudioSocketFormat:          f["audiosocket_format"],
			AudioSocketHost:            f["audiosocket_host"],
			AudioSocketPort:            logparse.Int(f["audiosocket_port"]),
			ExternalMediaCodec:         f["external_media_codec"],
			ExternalMediaRTPHost:       f["external_media_rtp_host"],
			ExternalMediaRTPPort:       logparse.Int(f["external_media_rtp_port"]),
			ExternalMediaAdvertiseHost: f["external_media_advertise_host"],

			StreamingSampleRate:     logparse.Int(f["streaming_sample_rate"]),
			StreamingJitterBufferMs: logparse.Int(f["streaming_jitter_buffer_ms"]),
			StreamingMinStartMs:     logparse.Int(f["streaming_min_start_ms"]),
			StreamingLowWatermarkMs: logparse.Int(f["streaming_low_watermark_ms"]),

			VADAggressiveness:      logparse.Int(f["vad_webrtc_aggressiveness"]),
			VADConfidenceThreshold: logparse.Float(f["vad_confidence_threshold"]),
			VADEnergyThreshold:     logparse.Int(f["vad_energy_threshold"]),
			VADEnhancedEnabled:     logparse.Bool(f["vad_enhanced_enabled"]),

			BargeInProtectionMs: logparse.Int(f["barge_in_post_tts_end_protection_ms"]),

			ProviderInputEncoding:      f["provider_input_encoding"],
			ProviderInputSampleRateHz:  logparse.Int(f["provider_input_sample_rate_hz"]),
			ProviderOutputEncoding:     f["provider_output_encoding"],
			ProviderOutputSampleRateHz: logparse.Int(f["provider_output_sample_rate_hz"]),
			ProviderTargetEncoding:     f["provider_target_encoding"],
			ProviderTargetSampleRateHz: logparse.Int(f["provider_target_sample_rate_hz"]),
		}
	}
	return nil
}
