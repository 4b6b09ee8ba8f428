package pipeline_test

import (
	"testing"

	"github.com/bassci/bass/pkg/pipeline"
)

func TestValidateEmptyStepsFails(t *testing.T) {
	n := &pipeline.Node{Name: "root", Steps: []*pipeline.Node{}}
	if err := pipeline.Validate(n); err == nil {
		t.Fatal("expected validation error for empty steps")
	}
}

func TestValidateExecAndStepsFails(t *testing.T) {
	n := &pipeline.Node{
		Name:  "root",
		Exec:  pipeline.Exec{"a.sh"},
		Steps: []*pipeline.Node{{Name: "b", Exec: pipeline.Exec{"b.sh"}}},
	}
	if err := pipeline.Validate(n); err == nil {
		t.Fatal("expected validation error for both exec and steps")
	}
}

func TestValidateMissingNameFails(t *testing.T) {
	n := &pipeline.Node{Exec: pipeline.Exec{"a.sh"}}
	if err := pipeline.Validate(n); err == nil {
		t.Fatal("expected validation error for missing name")
	}
}

func TestValidateInvalidRegexFails(t *testing.T) {
	n := &pipeline.Node{Name: "root", IfChangesetMatches: "(unterminated", Exec: pipeline.Exec{"a.sh"}}
	if err := pipeline.Validate(n); err == nil {
		t.Fatal("expected validation error for invalid regex")
	}
}

func TestValidateRecursesIntoSetupTeardownSteps(t *testing.T) {
	n := &pipeline.Node{
		Name:     "root",
		Setup:    &pipeline.Node{Name: "setup"},
		Teardown: &pipeline.Node{Name: "teardown", Exec: pipeline.Exec{"t.sh"}},
		Steps:    []*pipeline.Node{{Name: "a", Exec: pipeline.Exec{"a.sh"}}},
	}
	if err := pipeline.Validate(n); err == nil {
		t.Fatal("expected validation error propagated from malformed setup node")
	}
}

func TestValidateValidTreePasses(t *testing.T) {
	n := &pipeline.Node{
		Name:  "root",
		Setup: &pipeline.Node{Name: "setup", Exec: pipeline.Exec{"setup.sh"}},
		Steps: []*pipeline.Node{
			{Name: "a", Exec: pipeline.Exec{"a.sh"}},
			{Name: "b", Order: pipeline.OrderUnordered, Steps: []*pipeline.Node{
				{Name: "c", Exec: pipeline.Exec{"c.sh"}},
			}},
		},
		Teardown: &pipeline.Node{Name: "teardown", Exec: pipeline.Exec{"teardown.sh"}},
	}
	if err := pipeline.Validate(n); err != nil {
		t.Fatalf("expected valid tree to pass, got %v", err)
	}
}
