package metrics

import (
	"reflect"
	"strings"
	"testing"
)

func healthyFixture() string {
	return strings.Join([]string{
		`2026-01-30T12:00:01 [info     ] 🎯 PROVIDER SEGMENT BYTES: segment complete [src.streaming] provider_bytes=320000 enqueued_bytes=320000 enqueued_ratio=1.0`,
		`2026-01-30T12:00:02 [info     ] 📊 STREAMING TUNING SUMMARY [src.streaming] stream_id=resp-1 bytes_sent=320000 effective_seconds=20.0 wall_seconds=20.6 drift_pct=3.0 underflow_events=0`,
	}, "\n")
}

func TestExtractHealthyCall(t *testing.T) {
	t.Parallel()

	m := Extract(healthyFixture())

	if len(m.ProviderSegments) != 1 {
		t.Fatalf("segments=%d", len(m.ProviderSegments))
	}
	if m.ProviderBytesTotal != 320000 || m.EnqueuedBytesTotal != 320000 {
		t.Fatalf("bytes provider=%d enqueued=%d", m.ProviderBytesTotal, m.EnqueuedBytesTotal)
	}
	if r := m.EnqueuedRatio(); r != 1.0 {
		t.Fatalf("ratio=%v", r)
	}
	if len(m.StreamingSummaries) != 1 {
		t.Fatalf("summaries=%d", len(m.StreamingSummaries))
	}
	if m.WorstDriftPct != 3.0 {
		t.Fatalf("drift=%v", m.WorstDriftPct)
	}
	if m.UnderflowCount != 0 {
		t.Fatalf("underflows=%d", m.UnderflowCount)
	}
	if !m.HasEvidence() {
		t.Fatalf("expected evidence")
	}
}

func TestExtractGreetingExcludedFromAggregates(t *testing.T) {
	t.Parallel()

	text := strings.Join([]string{
		`2026-01-30T12:00:01 [info     ] 📊 STREAMING TUNING SUMMARY [src.streaming] stream_id=greeting-1 bytes_sent=64000 drift_pct=45.0 underflow_events=10`,
		`2026-01-30T12:00:02 [info     ] 📊 STREAMING TUNING SUMMARY [src.streaming] stream_id=resp-1 bytes_sent=320000 drift_pct=3.0 underflow_events=50`,
		`2026-01-30T12:00:03 [info     ] Streaming segment bytes summary v2 [src.streaming] stream_id=greeting-1 underflow_events=7`,
		`2026-01-30T12:00:04 [info     ] Streaming segment bytes summary v2 [src.streaming] stream_id=resp-2 underflow_events=3`,
	}, "\n")

	m := Extract(text)

	if len(m.StreamingSummaries) != 2 {
		t.Fatalf("summaries=%d", len(m.StreamingSummaries))
	}
	if !m.StreamingSummaries[0].IsGreeting {
		t.Fatalf("greeting segment not flagged")
	}
	// Greeting drift 45% and its underflows must not count.
	if m.WorstDriftPct != 3.0 {
		t.Fatalf("drift=%v", m.WorstDriftPct)
	}
	// Only the segment bytes summary counts underflows; the tuning summary's
	// underflow_events field stays on the per-stream record.
	if m.UnderflowCount != 3 {
		t.Fatalf("underflows=%d (want 3, greeting excluded)", m.UnderflowCount)
	}
	if m.StreamingSummaries[1].Underflows != 50 {
		t.Fatalf("per-stream underflows=%d", m.StreamingSummaries[1].Underflows)
	}

	// Frames include the greeting segment's bytes.
	if frames := m.TotalFramesSent(); frames != 1200 {
		t.Fatalf("frames=%d", frames)
	}
}

func TestExtractUnderflowsCountedOnce(t *testing.T) {
	t.Parallel()

	// One stream logging both summary events must not double its underflows.
	text := strings.Join([]string{
		`2026-01-30T12:00:01 [info     ] 📊 STREAMING TUNING SUMMARY [src.streaming] stream_id=resp-1 bytes_sent=320000 drift_pct=3.0 underflow_events=10`,
		`2026-01-30T12:00:02 [info     ] Streaming segment bytes summary v2 [src.streaming] stream_id=resp-1 underflow_events=10`,
	}, "\n")

	m := Extract(text)
	if m.UnderflowCount != 10 {
		t.Fatalf("underflows=%d (want 10, counted once)", m.UnderflowCount)
	}
}

func TestExtractVADAndGateFlutter(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString(`2026-01-30T12:00:00 [info     ] 🎚️ WebRTC VAD settings [src.vad] aggressiveness=0 confidence_threshold=0.5 energy_threshold=1200 enhanced_enabled=true` + "\n")
	for i := 0; i < 51; i++ {
		b.WriteString(`2026-01-30T12:00:01 [debug    ] gate_closure [src.audio] reason=barge_in seq=` + string(rune('a'+i%26)) + "\n")
	}

	m := Extract(b.String())

	if m.VAD == nil || m.VAD.Aggressiveness != 0 {
		t.Fatalf("vad=%+v", m.VAD)
	}
	if m.VAD.ConfidenceThreshold != 0.5 || m.VAD.EnergyThreshold != 1200 || !m.VAD.EnhancedEnabled {
		t.Fatalf("vad fields=%+v", m.VAD)
	}
	if m.GateClosures != 51 {
		t.Fatalf("closures=%d", m.GateClosures)
	}
	if !m.GateFlutterDetected {
		t.Fatalf("expected flutter above threshold %d", GateFlutterThreshold)
	}
}

func TestExtractGateClosuresBelowThreshold(t *testing.T) {
	t.Parallel()

	text := strings.Repeat(`[debug    ] gate_closure [src.audio] reason=tts_start`+"\n", 3)
	m := Extract(text)
	if m.GateClosures != 3 || m.GateFlutterDetected {
		t.Fatalf("closures=%d flutter=%v", m.GateClosures, m.GateFlutterDetected)
	}
}

func TestExtractTransportAlignmentFields(t *testing.T) {
	t.Parallel()

	text := `2026-01-30T12:00:00 [info     ] Transport alignment summary [src.audio] audiosocket_format=slin provider_input_format=mulaw provider_output_format=mulaw sample_rate=8000`
	m := Extract(text)

	if m.AudioSocketFormat != "slin" {
		t.Fatalf("audiosocket_format=%q", m.AudioSocketFormat)
	}
	if m.ProviderInputFormat != "mulaw" || m.ProviderOutputFormat != "mulaw" {
		t.Fatalf("provider formats=%q/%q", m.ProviderInputFormat, m.ProviderOutputFormat)
	}
	if m.SampleRate != 8000 {
		t.Fatalf("sample_rate=%d", m.SampleRate)
	}
}

func TestExtractConfigErrors(t *testing.T) {
	t.Parallel()

	text := strings.Join([]string{
		`2026-01-30T12:00:00 [error    ] config validation error: unknown field target_encoding [src.config]`,
		`2026-01-30T12:00:01 [error    ] DeepgramProviderConfig has no field target_encoding [src.config]`,
	}, "\n")

	m := Extract(text)
	if len(m.ConfigErrors) != 1 {
		t.Fatalf("config errors=%v (Deepgram line is benign)", m.ConfigErrors)
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	t.Parallel()

	text := healthyFixture()
	a := Extract(text)
	b := Extract(text)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("extraction not deterministic:\n%+v\n%+v", a, b)
	}
}

func TestUnderflowRatePct(t *testing.T) {
	t.Parallel()

	m := &CallMetrics{
		StreamingSummaries: []StreamingSummary{{BytesSent: 320000}},
		UnderflowCount:     50,
	}
	if rate := m.UnderflowRatePct(); rate != 5.0 {
		t.Fatalf("rate=%v", rate)
	}

	empty := &CallMetrics{UnderflowCount: 10}
	if rate := empty.UnderflowRatePct(); rate != 0 {
		t.Fatalf("rate without frames=%v", rate)
	}
}

func TestHasEvidenceEmptyMetrics(t *testing.T) {
	t.Parallel()

	if (&CallMetrics{}).HasEvidence() {
		t.Fatalf("empty metrics should carry no evidence")
	}
	var nilMetrics *CallMetrics
	if nilMetrics.HasEvidence() {
		t.Fatalf("nil metrics should carry no evidence")
	}
}
