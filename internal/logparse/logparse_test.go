package logparse

import "testing"

func TestParseJSONLine(t *testing.T) {
	t.Parallel()

	raw := `{"event":"PROVIDER SEGMENT BYTES","level":"info","call_id":"1769800000.100","provider_bytes":32000,"enqueued_ratio":1.0,"enabled":true}`
	ln, ok := Parse(raw)
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if ln.Level != "info" {
		t.Fatalf("level=%q", ln.Level)
	}
	if ln.Event != "PROVIDER SEGMENT BYTES" {
		t.Fatalf("event=%q", ln.Event)
	}
	if ln.Fields["call_id"] != "1769800000.100" {
		t.Fatalf("call_id=%q", ln.Fields["call_id"])
	}
	if Int(ln.Fields["provider_bytes"]) != 32000 {
		t.Fatalf("provider_bytes=%q", ln.Fields["provider_bytes"])
	}
	if Float(ln.Fields["enqueued_ratio"]) != 1.0 {
		t.Fatalf("enqueued_ratio=%q", ln.Fields["enqueued_ratio"])
	}
	if !Bool(ln.Fields["enabled"]) {
		t.Fatalf("enabled=%q", ln.Fields["enabled"])
	}
}

func TestParseConsoleLine(t *testing.T) {
	t.Parallel()

	raw := "2026-01-30T12:00:00.000000-07:00 [info     ] RCA_CALL_START [src.engine] call_id=1769800000.100 provider_name=google_live reason='not found'"
	ln, ok := Parse(raw)
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if ln.Level != "info" {
		t.Fatalf("level=%q", ln.Level)
	}
	if ln.Event != "RCA_CALL_START" {
		t.Fatalf("event=%q", ln.Event)
	}
	if ln.Fields["call_id"] != "1769800000.100" {
		t.Fatalf("call_id=%q", ln.Fields["call_id"])
	}
	if ln.Fields["provider_name"] != "google_live" {
		t.Fatalf("provider_name=%q", ln.Fields["provider_name"])
	}
	if ln.Fields["reason"] != "not found" {
		t.Fatalf("reason=%q", ln.Fields["reason"])
	}
}

func TestParseNormalizesWarnLevel(t *testing.T) {
	t.Parallel()

	ln, ok := Parse("2026-01-30T12:00:00 [warn     ] something happened [src.engine]")
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if ln.Level != "warning" {
		t.Fatalf("level=%q", ln.Level)
	}
}

func TestParseBlankLine(t *testing.T) {
	t.Parallel()

	if _, ok := Parse("   "); ok {
		t.Fatalf("expected blank line to fail parsing")
	}
}

func TestStripANSI(t *testing.T) {
	t.Parallel()

	in := "\x1b[32m[info     ]\x1b[0m call started"
	if got := StripANSI(in); got != "[info     ] call started" {
		t.Fatalf("got %q", got)
	}
	// No escapes: returned unchanged.
	if got := StripANSI("plain"); got != "plain" {
		t.Fatalf("got %q", got)
	}
}

func TestNumericHelpers(t *testing.T) {
	t.Parallel()

	if Int("320000") != 320000 {
		t.Fatalf("Int plain")
	}
	if Int("42.0") != 42 {
		t.Fatalf("Int float-formatted")
	}
	if Int("garbage") != 0 {
		t.Fatalf("Int malformed")
	}
	if Float("-12.5") != -12.5 {
		t.Fatalf("Float negative")
	}
	if Bool("no") || !Bool("True") {
		t.Fatalf("Bool spellings")
	}
}
