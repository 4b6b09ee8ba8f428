package orchestrator

import (
	"fmt"
	"os"
	"strings"
)

// LoadEnvFile reads KEY=VALUE lines from path, expanding $VAR references in
// each value against the orchestrator process's own environment. A missing
// path yields an empty map. The result is merged into every enqueued job's
// Env so every worker-invoked build shares this base environment.
func LoadEnvFile(path string) (map[string]string, error) {
	env := map[string]string{}
	if path == "" {
		return env, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: read env file: %w", err)
	}
	for _, line := range splitLines(string(data)) {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("orchestrator: malformed env file line: %q", line)
		}
		env[key] = os.ExpandEnv(value)
	}
	return env, nil
}
