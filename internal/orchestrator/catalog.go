// Package orchestrator implements the webhook-to-queue dispatch fabric:
// a pipeline catalog, a tag-matched FIFO job queue, and the HTTP handlers
// that front both, grounded on orchestrator.py.
package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bassci/bass/internal/notify"
)

// Descriptor is one pipeline's catalog entry: everything the orchestrator
// and worker need to dispatch and run a build, short of the step tree
// itself (which lives in the target repository and is walked by the
// worker-invoked executor).
type Descriptor struct {
	Repository    string         `json:"repository"`
	Ref           string         `json:"ref"`
	Exec          []string       `json:"exec"`
	WorkerTags    []string       `json:"worker-tags,omitempty"`
	Cwd           string         `json:"cwd,omitempty"`
	Notifications *notify.Config `json:"notifications,omitempty"`
}

// Catalog is the mapping of pipeline name to Descriptor loaded once at
// orchestrator startup.
type Catalog map[string]Descriptor

// LoadCatalog reads a JSON object of pipeline-name to Descriptor from path.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: read pipelines file: %w", err)
	}
	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("orchestrator: parse pipelines file: %w", err)
	}
	return cat, nil
}

// LoadWorkerKeys reads one API key per non-empty line from path. A missing
// path yields no keys, meaning /dequeue requires no authentication.
func LoadWorkerKeys(path string) (map[string]struct{}, error) {
	keys := map[string]struct{}{}
	if path == "" {
		return keys, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: read worker keys file: %w", err)
	}
	for _, line := range splitLines(string(data)) {
		if line != "" {
			keys[line] = struct{}{}
		}
	}
	return keys, nil
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			line := s[start:i]
			line = trimCR(line)
			lines = append(lines, line)
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, trimCR(s[start:]))
	}
	return lines
}

func trimCR(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\r' {
		return s[:len(s)-1]
	}
	return s
}
