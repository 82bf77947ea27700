package metrics

import (
	"regexp"
	"strings"

	"github.com/quikefix/voice-rca/internal/logparse"
)

// ToolCallRecord is one tool invocation observed during the call, paired
// with its execution result when one was logged.
type ToolCallRecord struct {
	Name      string `json:"name"`
	Status    string `json:"status,omitempty"`
	Message   string `json:"message,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

var (
	toolCallRe = regexp.MustCompile(`(?i)tool call:\s*([a-zA-Z0-9_]+)\((.*)\)`)
	toolExecRe = regexp.MustCompile(`(?i)Tool\s+([a-zA-Z0-9_]+)\s+executed:\s*([a-zA-Z0-9_]+)`)
)

// ExtractToolCalls pairs invocations with results, preferring the provider's
// function_call_id and falling back to name order when it is absent.
func ExtractToolCalls(text string) []ToolCallRecord {
	records := make([]ToolCallRecord, 0, 8)
	pendingByID := make(map[string]int)
	pendingByName := make(map[string][]int)

	for _, raw := range strings.Split(text, "\n") {
		ln, ok := logparse.Parse(raw)
		if !ok {
			continue
		}

		if m := toolCallRe.FindStringSubmatch(ln.Event); len(m) > 2 {
			rec := ToolCallRecord{
				Name:      strings.TrimSpace(m[1]),
				Arguments: strings.TrimSpace(m[2]),
			}
			records = append(records, rec)
			idx := len(records) - 1
			if id := strings.TrimSpace(ln.Fields["function_call_id"]); id != "" {
				pendingByID[id] = idx
			} else {
				pendingByName[rec.Name] = append(pendingByName[rec.Name], idx)
			}
			continue
		}

		if m := toolExecRe.FindStringSubmatch(ln.Event); len(m) > 2 {
			name := strings.TrimSpace(m[1])
			status := strings.TrimSpace(m[2])
			idx := -1
			if id := strings.TrimSpace(ln.Fields["function_call_id"]); id != "" {
				if v, ok := pendingByID[id]; ok {
					idx = v
					delete(pendingByID, id)
				}
			}
			if idx == -1 {
				if queue := pendingByName[name]; len(queue) > 0 {
					idx = queue[0]
					if len(queue) > 1 {
						pendingByName[name] = queue[1:]
					} else {
						delete(pendingByName, name)
					}
				}
			}
			if idx == -1 {
				records = append(records, ToolCallRecord{Name: name})
				idx = len(records) - 1
			}
			records[idx].Status = status
			if msg := strings.TrimSpace(ln.Fields["message"]); msg != "" {
				records[idx].Message = msg
			}
		}
	}

	return records
}
