// Package retrieve obtains raw log text for a bounded recent window.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/quikefix/voice-rca/internal/logparse"
)

// ErrSourceUnavailable marks fatal retrieval failures: the log source is not
// running, access was denied, or the retrieval tool is missing.
var ErrSourceUnavailable = errors.New("log source unavailable")

// Retriever fetches raw, time-bounded log text for one source.
type Retriever interface {
	Fetch(ctx context.Context, window string) (string, error)
}

// DockerRetriever reads a container's logs via the docker CLI. Output is
// returned with ANSI color escapes already stripped; console-format logs are
// colorized and the codes corrupt downstream matching.
type DockerRetriever struct {
	Source  string
	Timeout time.Duration
}

// NewDockerRetriever returns a retriever for the named container.
func NewDockerRetriever(source string, timeout time.Duration) *DockerRetriever {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DockerRetriever{Source: source, Timeout: timeout}
}

// Fetch runs `docker logs --since <window> <source>` and returns the combined
// output. One-shot; no retries.
func (r *DockerRetriever) Fetch(ctx context.Context, window string) (string, error) {
	if _, err := exec.LookPath("docker"); err != nil {
		return "", fmt.Errorf("%w: docker command not found (is Docker installed and on PATH?)", ErrSourceUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "docker", "logs", "--since", window, r.Source)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: reading %s logs for window %s: %v", ErrSourceUnavailable, r.Source, window, err)
	}

	return logparse.StripANSI(string(out)), nil
}
