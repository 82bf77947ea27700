// Package logparse turns raw ai_engine log lines into flat records.
//
// The engine emits two formats depending on deployment: single-line JSON
// (structlog JSON renderer) and console structlog ("[info     ] event ...
// key=value"). Both are handled here so downstream components never care
// which renderer was active.
package logparse

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var (
	ansiRe         = regexp.MustCompile(`\x1b\[[0-9;]*m`)
	consoleLevelRe = regexp.MustCompile(`(?i)\[(debug|info|warning|warn|error)\b`)
	consoleEventRe = regexp.MustCompile(`\]\s+([^\[]+?)\s+\[`)
	kvRe           = regexp.MustCompile(`([a-zA-Z_][a-zA-Z0-9_]*)=('[^']*'|"[^"]*"|\S+)`)
)

// StripANSI removes terminal color escape sequences. Console logs are
// colorized and the codes corrupt substring and regex matching downstream.
func StripANSI(s string) string {
	if !strings.Contains(s, "\x1b") {
		return s
	}
	return ansiRe.ReplaceAllString(s, "")
}

// Line is one parsed log record. Fields are flattened to strings
// best-effort; nested objects are dropped (metric events log flat fields).
type Line struct {
	Level  string
	Event  string
	Fields map[string]string
}

// Parse handles both JSON and console structlog lines. The second return
// is false only for blank lines: a console line that matches nothing still
// parses with the whole line as its event, so single-line failures never
// abort a caller's walk.
func Parse(raw string) (Line, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Line{}, false
	}

	var entry map[string]any
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if dec.Decode(&entry) == nil {
		return parseJSON(entry), true
	}
	return parseConsole(raw), true
}

func parseJSON(entry map[string]any) Line {
	ln := Line{Fields: make(map[string]string, len(entry))}
	if v, ok := entry["level"].(string); ok {
		ln.Level = normalizeLevel(v)
	}
	if v, ok := entry["event"].(string); ok {
		ln.Event = v
	}
	for k, v := range entry {
		if k == "" || k == "event" || k == "level" {
			continue
		}
		switch t := v.(type) {
		case string:
			ln.Fields[k] = t
		case json.Number:
			ln.Fields[k] = trimNumber(t.String())
		case bool:
			if t {
				ln.Fields[k] = "true"
			} else {
				ln.Fields[k] = "false"
			}
		}
	}
	return ln
}

func parseConsole(raw string) Line {
	ln := Line{Fields: make(map[string]string, 16)}
	if m := consoleLevelRe.FindStringSubmatch(raw); len(m) > 1 {
		ln.Level = normalizeLevel(m[1])
	}
	if m := consoleEventRe.FindStringSubmatch(raw); len(m) > 1 {
		ln.Event = strings.TrimSpace(m[1])
	}
	if ln.Event == "" {
		ln.Event = raw
	}
	for _, m := range kvRe.FindAllStringSubmatch(raw, -1) {
		if len(m) < 3 {
			continue
		}
		ln.Fields[m[1]] = stripQuotes(m[2])
	}
	return ln
}

func normalizeLevel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warn" {
		s = "warning"
	}
	return s
}

func trimNumber(num string) string {
	num = strings.TrimSpace(num)
	if strings.Contains(num, ".") && !strings.ContainsAny(num, "eE") {
		num = strings.TrimRight(num, "0")
		num = strings.TrimRight(num, ".")
	}
	return num
}

func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// Int parses a field value, tolerating float-formatted integers.
func Int(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if strings.Contains(s, ".") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return int(f)
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return i
}

// Float parses a field value, returning 0 on malformed input.
func Float(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// Bool parses the truthy spellings the engine's loggers produce.
func Bool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}
