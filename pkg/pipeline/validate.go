package pipeline

import (
	"fmt"
	"log/slog"
	"regexp"
)

// Validate checks a pipeline tree's structural invariants, grounded on
// assert_pipeline: every node names itself, carries exactly one of Exec or
// Steps, Steps is non-empty when present, and IfChangesetMatches (when set)
// compiles as a regular expression. It recurses into Setup, Teardown, and
// Steps.
//
// cwd composition on unordered branches is flagged with a warning log
// rather than failing validation — spec.md does not list it as a hard
// validation error, only as a hazard workers should be aware of.
func Validate(n *Node) error {
	return validate(n, false)
}

func validate(n *Node, parentUnordered bool) error {
	if n.Name == "" {
		return fmt.Errorf("node: name is required")
	}
	if len(n.Exec) > 0 && len(n.Steps) > 0 {
		return fmt.Errorf("node %q: exec and steps are mutually exclusive", n.Name)
	}
	if len(n.Exec) == 0 && len(n.Steps) == 0 {
		return fmt.Errorf("node %q: must set exec or steps", n.Name)
	}
	if n.IfChangesetMatches != "" {
		if _, err := regexp.Compile(n.IfChangesetMatches); err != nil {
			return fmt.Errorf("node %q: invalid if-changeset-matches: %w", n.Name, err)
		}
	}
	if n.Cwd != "" && parentUnordered {
		slog.Warn("pipeline: cwd set on a node reachable from an unordered branch, process-wide cwd races are possible",
			"node", n.Name)
	}

	unordered := n.Order == OrderUnordered

	if n.Setup != nil {
		if err := validate(n.Setup, unordered); err != nil {
			return fmt.Errorf("node %q: setup: %w", n.Name, err)
		}
	}
	if n.Teardown != nil {
		if err := validate(n.Teardown, unordered); err != nil {
			return fmt.Errorf("node %q: teardown: %w", n.Name, err)
		}
	}
	for _, step := range n.Steps {
		if err := validate(step, unordered); err != nil {
			return fmt.Errorf("node %q: %w", n.Name, err)
		}
	}
	return nil
}
