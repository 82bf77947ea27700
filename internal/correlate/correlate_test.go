package correlate

import (
	"strings"
	"testing"
)

func TestListCallsExcludesHelperChannels(t *testing.T) {
	t.Parallel()

	raw := strings.Join([]string{
		`{"event":"call started","level":"info","call_id":"1769800000.100"}`,
		`2026-01-30T12:00:05 [info     ] AudioSocket channel entered Stasis [src.ari] audiosocket_channel_id=1769800000.101`,
		`2026-01-30T12:00:06 [info     ] media attached [src.ari] channel_id=1769800000.101`,
		`2026-01-30T12:05:00 [info     ] call started [src.engine] call_id=1769800500.200`,
		`2026-01-30T12:06:00 [info     ] external media up [src.ari] external_media_id=1769800500.201`,
	}, "\n")

	calls := ListCalls(raw, 10)
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d: %+v", len(calls), calls)
	}
	// Newest id first.
	if calls[0].ID != "1769800500.200" || calls[1].ID != "1769800000.100" {
		t.Fatalf("order=%+v", calls)
	}
}

func TestListCallsLimit(t *testing.T) {
	t.Parallel()

	raw := strings.Join([]string{
		`call_id=1769800000.100 [info]`,
		`call_id=1769800001.101 [info]`,
		`call_id=1769800002.102 [info]`,
	}, "\n")

	calls := ListCalls(raw, 2)
	if len(calls) != 2 {
		t.Fatalf("expected limit to apply, got %d", len(calls))
	}
}

func TestListCallsEmpty(t *testing.T) {
	t.Parallel()

	if calls := ListCalls("no ids here\nat all", 10); len(calls) != 0 {
		t.Fatalf("expected no calls, got %+v", calls)
	}
}

func TestScopeCallTwoHopExpansion(t *testing.T) {
	t.Parallel()

	raw := strings.Join([]string{
		`2026-01-30T12:00:00 [info     ] Call started [src.engine] call_id=1769800000.100 audiosocket_channel_id=1769800000.101`,
		`2026-01-30T12:00:01 [info     ] gate_closure [src.audio] channel_id=1769800000.101`,
		`2026-01-30T12:00:02 [info     ] unrelated call [src.engine] call_id=1769809999.900`,
	}, "\n")

	scoped := ScopeCall(raw, "1769800000.100")
	if scoped.Empty() {
		t.Fatalf("expected scoped lines")
	}
	if len(scoped.Lines) != 2 {
		t.Fatalf("expected 2 lines (caller + helper), got %d:\n%s", len(scoped.Lines), scoped.Text())
	}
	if len(scoped.Related) != 1 || scoped.Related[0] != "1769800000.101" {
		t.Fatalf("related=%v", scoped.Related)
	}
	if strings.Contains(scoped.Text(), "1769809999.900") {
		t.Fatalf("unrelated call leaked into scope")
	}
}

func TestScopeCallIncludesBridgeLines(t *testing.T) {
	t.Parallel()

	// Bridge events carry only the bridge UUID, never the caller channel id.
	raw := strings.Join([]string{
		`2026-01-30T12:00:00 [info     ] Bridge created [src.ari] call_id=1769800000.100 bridge_id=3f2a1b4c-8d9e-4f10-a2b3-c4d5e6f7a8b9`,
		`2026-01-30T12:00:01 [info     ] Channel joined bridge [src.ari] bridge_id=3f2a1b4c-8d9e-4f10-a2b3-c4d5e6f7a8b9`,
		`2026-01-30T12:00:02 [info     ] Other bridge [src.ari] bridge_id=00000000-0000-4000-8000-000000000000`,
	}, "\n")

	scoped := ScopeCall(raw, "1769800000.100")
	if len(scoped.Lines) != 2 {
		t.Fatalf("expected bridge line to join the scope, got %d:\n%s", len(scoped.Lines), scoped.Text())
	}
	if len(scoped.Related) != 1 || scoped.Related[0] != "3f2a1b4c-8d9e-4f10-a2b3-c4d5e6f7a8b9" {
		t.Fatalf("related=%v", scoped.Related)
	}
	if strings.Contains(scoped.Text(), "Other bridge") {
		t.Fatalf("unrelated bridge leaked into scope")
	}
}

func TestScopeCallDeduplicates(t *testing.T) {
	t.Parallel()

	line := `2026-01-30T12:00:00 [info     ] tick [src.engine] call_id=1769800000.100`
	raw := line + "\n" + line + "\n" + line

	scoped := ScopeCall(raw, "1769800000.100")
	if len(scoped.Lines) != 1 {
		t.Fatalf("expected de-dup to 1 line, got %d", len(scoped.Lines))
	}
}

func TestScopeCallUnknownID(t *testing.T) {
	t.Parallel()

	scoped := ScopeCall("call_id=1769800000.100 [info]", "999999.1")
	if !scoped.Empty() {
		t.Fatalf("expected empty scope for unknown id")
	}
}

func TestCallIDExtractorOrder(t *testing.T) {
	t.Parallel()

	extractors := CallIDExtractors()
	if len(extractors) == 0 || extractors[0].Name != "json_call_id" {
		t.Fatalf("expected json_call_id first, got %+v", extractors)
	}

	line := `{"call_id": "1769800000.100", "caller_channel_id": "1769800000.999"}`
	if got := extractors[0].Extract(line); got != "1769800000.100" {
		t.Fatalf("json_call_id extracted %q", got)
	}
}
