// Package correlate identifies the working set of log lines for one call.
//
// The caller-facing channel id (shape <epoch>.<sequence>) is the primary call
// key, but audio-path events are often emitted under helper channels
// (AudioSocket bridge, ExternalMedia relay) with their own ids. Listing must
// exclude those ids, and single-call scoping must include their lines.
package correlate

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/quikefix/voice-rca/internal/logparse"
)

// Call is one caller-facing call discovered in the logs.
type Call struct {
	ID   string
	Seen time.Time
}

// Extractor is one named call-id extraction pattern. Patterns are applied in
// order and the first match wins for a line.
type Extractor struct {
	Name string
	re   *regexp.Regexp
}

// Extract returns the call id matched by this pattern, or "".
func (e Extractor) Extract(line string) string {
	m := e.re.FindStringSubmatch(line)
	if len(m) > 1 {
		return m[1]
	}
	return ""
}

// CallIDExtractors is the ordered pattern list for listing mode: prefer the
// explicit JSON field, fall back to loose key=value, then to the explicit
// caller-channel field in either rendering. Field names are the contract with
// the log producer and must not be renamed.
func CallIDExtractors() []Extractor {
	return []Extractor{
		{Name: "json_call_id", re: regexp.MustCompile(`"call_id":\s*"([0-9]+\.[0-9]+)"`)},
		{Name: "kv_call_or_channel_id", re: regexp.MustCompile(`(?:call_id|channel_id)[=:][\s]*"?([0-9]+\.[0-9]+)"?`)},
		{Name: "json_caller_channel_id", re: regexp.MustCompile(`"caller_channel_id":\s*"([0-9]+\.[0-9]+)"`)},
		{Name: "kv_caller_channel_id", re: regexp.MustCompile(`caller_channel_id[=:][\s]*"?([0-9]+\.[0-9]+)"?`)},
	}
}

// helperFieldNames are the structured fields that carry internal plumbing
// channel ids rather than caller-facing calls.
var helperFieldNames = []string{
	"audiosocket_channel_id",
	"external_media_id",
	"pending_external_media_id",
}

var (
	helperPatterns = func() []*regexp.Regexp {
		out := make([]*regexp.Regexp, 0, len(helperFieldNames)*2)
		for _, f := range helperFieldNames {
			out = append(out,
				regexp.MustCompile(`"`+f+`"\s*:\s*"([0-9]+\.[0-9]+)"`),
				regexp.MustCompile(f+`=([0-9]+\.[0-9]+)`),
			)
		}
		return out
	}()

	// bridge_id values are UUIDs, not <epoch>.<sequence> channel ids; pattern
	// matches here are trusted as-is and skip the channel id shape filter.
	relatedKVPatterns = []*regexp.Regexp{
		regexp.MustCompile(`audiosocket_channel_id=([0-9]+\.[0-9]+)`),
		regexp.MustCompile(`external_media_id=([0-9]+\.[0-9]+)`),
		regexp.MustCompile(`pending_external_media_id=([0-9]+\.[0-9]+)`),
		regexp.MustCompile(`\bchannel_id=([0-9]+\.[0-9]+)`),
		regexp.MustCompile(`\bbridge_id=([0-9a-fA-F-]{36})`),
	}

	channelIDRe = regexp.MustCompile(`^[0-9]+\.[0-9]+$`)
	timestampRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2})`)
)

// HelperChannels scans every line for helper-channel structured fields and
// returns the set of ids that denote internal plumbing, never user calls.
func HelperChannels(raw string) map[string]bool {
	excluded := make(map[string]bool)
	for _, line := range strings.Split(raw, "\n") {
		for _, re := range helperPatterns {
			if m := re.FindStringSubmatch(line); len(m) > 1 {
				excluded[m[1]] = true
			}
		}
	}
	return excluded
}

// ListCalls returns caller-facing calls found in the raw text, newest id
// first. Zero calls is a valid, reportable state, not an error. The ordering
// relies on the id's leading epoch component: lexicographic comparison is
// correct within a retrieval window of equal digit width.
func ListCalls(raw string, limit int) []Call {
	excluded := HelperChannels(raw)
	extractors := CallIDExtractors()

	seen := make(map[string]Call)
	for _, line := range strings.Split(raw, "\n") {
		for _, ex := range extractors {
			id := ex.Extract(line)
			if id == "" {
				continue
			}
			if excluded[id] {
				break // plumbing, not a call
			}
			if _, ok := seen[id]; !ok {
				seen[id] = Call{ID: id, Seen: lineTimestamp(line)}
			}
			break
		}
	}

	calls := make([]Call, 0, len(seen))
	for _, c := range seen {
		calls = append(calls, c)
	}
	sort.Slice(calls, func(i, j int) bool { return calls[i].ID > calls[j].ID })

	if limit > 0 && len(calls) > limit {
		calls = calls[:limit]
	}
	return calls
}

func lineTimestamp(line string) time.Time {
	m := timestampRe.FindStringSubmatch(line)
	if len(m) < 2 {
		return time.Time{}
	}
	ts, err := time.Parse("2006-01-02T15:04:05", m[1])
	if err != nil {
		return time.Time{}
	}
	return ts
}

// ScopedLog is the call-scoped line set produced by a correlation run.
type ScopedLog struct {
	CallID  string
	Lines   []string
	Related []string
}

// Text returns the scoped lines joined for text-oriented consumers.
func (s ScopedLog) Text() string {
	return strings.Join(s.Lines, "\n")
}

// Empty reports whether the scope contains no lines for the call.
func (s ScopedLog) Empty() bool {
	return len(s.Lines) == 0
}

// ScopeCall filters raw text down to the lines relevant to callID.
//
// Two-hop expansion: lines containing the target id verbatim are taken first;
// helper-channel ids found in their structured fields become relatedIDs, and a
// second sweep includes any line referencing a related id. Many audio-path
// events are logged exclusively under the helper channel's id. Lines are
// de-duplicated by exact text, encounter order preserved.
func ScopeCall(raw, callID string) ScopedLog {
	lines := strings.Split(raw, "\n")

	related := make(map[string]bool)
	included := make([]string, 0, 1024)
	includedSet := make(map[string]bool)

	addLine := func(line string) {
		if line == "" || includedSet[line] {
			return
		}
		includedSet[line] = true
		included = append(included, line)
	}

	addRelated := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" || id == callID {
			return
		}
		if channelIDRe.MatchString(id) {
			related[id] = true
		}
	}

	// First pass: lines referencing the caller id; capture helper ids from
	// their structured fields.
	for _, line := range lines {
		if !strings.Contains(line, callID) {
			continue
		}
		addLine(line)

		if ln, ok := logparse.Parse(line); ok {
			for _, f := range helperFieldNames {
				addRelated(ln.Fields[f])
			}
			// Some events reference the helper channel as a generic channel_id.
			addRelated(ln.Fields["channel_id"])
		}
		for _, re := range relatedKVPatterns {
			if m := re.FindStringSubmatch(line); len(m) > 1 {
				if id := strings.TrimSpace(m[1]); id != "" && id != callID {
					related[id] = true
				}
			}
		}
	}

	// Second pass: lines referencing any related helper id.
	if len(related) > 0 {
		for _, line := range lines {
			for id := range related {
				if strings.Contains(line, id) {
					addLine(line)
					break
				}
			}
		}
	}

	relatedIDs := make([]string, 0, len(related))
	for id := range related {
		relatedIDs = append(relatedIDs, id)
	}
	sort.Strings(relatedIDs)

	return ScopedLog{CallID: callID, Lines: included, Related: relatedIDs}
}
