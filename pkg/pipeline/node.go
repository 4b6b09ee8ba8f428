// Package pipeline holds the typed pipeline data model, validator, and
// recursive executor shared by cmd/bass-exec and the worker that invokes it.
package pipeline

import (
	"encoding/json"
	"fmt"
)

// Order controls how a node's Steps are executed.
type Order string

const (
	// OrderSequential runs steps one at a time, stopping after the first
	// non-OK result. This is the default when Order is empty.
	OrderSequential Order = "sequential"
	// OrderUnordered runs every step concurrently and waits for all of them,
	// regardless of individual failures.
	OrderUnordered Order = "unordered"
)

// Node is one node of a pipeline tree. Exactly one of Exec or Steps must be
// set — a leaf runs a command, a branch recurses into children. Setup and
// Teardown are themselves Nodes so they can carry their own exec/steps,
// cwd, and if-changeset-matches.
type Node struct {
	Name               string  `json:"name"`
	Exec               Exec    `json:"exec,omitempty"`
	Steps              []*Node `json:"steps,omitempty"`
	Order              Order   `json:"order,omitempty"`
	Setup              *Node   `json:"setup,omitempty"`
	Teardown           *Node   `json:"teardown,omitempty"`
	Cwd                string  `json:"cwd,omitempty"`
	IfChangesetMatches string  `json:"if-changeset-matches,omitempty"`
	Timeout            *int    `json:"timeout,omitempty"`
	Parallelism        int     `json:"parallelism,omitempty"`
}

// Exec holds a node's command, accepting either a bare string or an argv
// list on the wire, matching the original pipeline files' duck-typed
// "exec": "script.sh" / "exec": ["script.sh", "--flag"] shapes.
type Exec []string

// IsLeaf reports whether the node runs a command rather than recursing.
func (n *Node) IsLeaf() bool {
	return len(n.Exec) > 0
}

// UnmarshalJSON decodes Exec from either a JSON string or a JSON array of
// strings.
func (e *Exec) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*e = Exec{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("exec: must be a string or an array of strings: %w", err)
	}
	*e = list
	return nil
}

// MarshalJSON encodes a single-element Exec as a bare string and a
// multi-element Exec as an array, mirroring the shapes Unmarshal accepts.
func (e Exec) MarshalJSON() ([]byte, error) {
	if len(e) == 1 {
		return json.Marshal(e[0])
	}
	return json.Marshal([]string(e))
}

// rawNode mirrors Node's JSON shape without custom validation hooks, used
// so UnmarshalJSON can decode into a plain struct before enforcing the
// Exec-XOR-Steps invariant.
type rawNode struct {
	Name               string  `json:"name"`
	Exec               Exec    `json:"exec,omitempty"`
	Steps              []*Node `json:"steps,omitempty"`
	Order              Order   `json:"order,omitempty"`
	Setup              *Node   `json:"setup,omitempty"`
	Teardown           *Node   `json:"teardown,omitempty"`
	Cwd                string  `json:"cwd,omitempty"`
	IfChangesetMatches string  `json:"if-changeset-matches,omitempty"`
	Timeout            *int    `json:"timeout,omitempty"`
	Parallelism        int     `json:"parallelism,omitempty"`
}

// UnmarshalJSON decodes a Node and enforces that exactly one of Exec or
// Steps is present, the same shape assert_pipeline checks at validation
// time, caught here as early as possible during decode.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw rawNode
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Exec) > 0 && len(raw.Steps) > 0 {
		return fmt.Errorf("node %q: exec and steps are mutually exclusive", raw.Name)
	}
	if len(raw.Exec) == 0 && len(raw.Steps) == 0 {
		return fmt.Errorf("node %q: must set exec or steps", raw.Name)
	}
	*n = Node(raw)
	return nil
}
