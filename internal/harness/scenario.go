package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines one conformance scenario: a scene fixture, an inline
// procedure, and the expectations about the resulting run.
type Scenario struct {
	// Name uniquely identifies this scenario. It is also the golden file
	// name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Scene configures the fake simulator fixture.
	Scene SceneFixture `yaml:"scene"`

	// Procedure is the inline CUE source of the procedure to run. It must
	// declare exactly one procedure.
	Procedure string `yaml:"procedure"`

	// RunID is an optional fixed run ID. Defaults to "test-run-default"
	// for deterministic golden comparison.
	RunID string `yaml:"run_id,omitempty"`

	// Expect describes the run's terminal state. A nil Expect means the
	// run must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// Assertions validate the trace and the final scene.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// SceneFixture describes the fake simulator scene a scenario runs against.
type SceneFixture struct {
	// DemoCell starts from the standard demo cell (UR3e, gripper, pick and
	// place frames, targets, one block). False starts from an empty scene.
	DemoCell bool `yaml:"demo_cell"`

	// Add places extra items into the scene.
	Add []FixtureItem `yaml:"add,omitempty"`

	// Remove deletes items by name, e.g. to make a lookup fail.
	Remove []string `yaml:"remove,omitempty"`

	// AttachRadius overrides the attach search radius in millimetres.
	AttachRadius float64 `yaml:"attach_radius,omitempty"`

	// FailMotion arms a one-shot motion failure with the given wire error
	// code (e.g. "E_UNREACHABLE").
	FailMotion string `yaml:"fail_motion,omitempty"`
}

// FixtureItem is one extra scene item.
type FixtureItem struct {
	Name string `yaml:"name"`
	// Type is the item type name: robot, frame, target, tool or object.
	Type string `yaml:"type"`
	// At is the item pose as [x, y, z, r, p, w] (mm and degrees).
	At []float64 `yaml:"at,omitempty"`
	// Frame parents an object item to a frame (makes it a block).
	Frame string `yaml:"frame,omitempty"`
}

// ExpectClause describes the run's expected terminal state.
type ExpectClause struct {
	// Error is the expected RunError code (e.g. "MISSING_ITEM"). Empty
	// means the run must succeed.
	Error string `yaml:"error,omitempty"`

	// Step is the expected failing step index; -1 means the failure must
	// occur before any step executes. Only checked when Error is set.
	Step *int `yaml:"step,omitempty"`

	// AbortBeforeMotion requires that no motion command reached the
	// simulator.
	AbortBeforeMotion bool `yaml:"abort_before_motion,omitempty"`
}

// Assertion validates the trace or the final scene.
type Assertion struct {
	// Type selects the assertion:
	//   trace_order    - event kinds appear in the given order
	//   trace_contains - an event matching kind/item/detail exists
	//   trace_count    - an event kind appears exactly Count times
	//   motion_count   - the simulator received exactly Count motions
	//   missing        - the run recorded exactly these absent names
	//   pose_restored  - the blocks sit at their captured poses again
	Type string `yaml:"type"`

	// Kinds is the expected event kind order (trace_order). Events may be
	// interleaved with others; the order is a subsequence check.
	Kinds []string `yaml:"kinds,omitempty"`

	// Kind, Item and Detail match one event (trace_contains, trace_count;
	// empty fields match anything, trace_count matches on Kind only).
	Kind   string `yaml:"kind,omitempty"`
	Item   string `yaml:"item,omitempty"`
	Detail string `yaml:"detail,omitempty"`

	// Count is the expected occurrence count (trace_count, motion_count).
	Count int `yaml:"count,omitempty"`

	// Names lists the expected absent names (missing) or the blocks to
	// check (pose_restored).
	Names []string `yaml:"names,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceOrder    = "trace_order"
	AssertTraceContains = "trace_contains"
	AssertTraceCount    = "trace_count"
	AssertMotionCount   = "motion_count"
	AssertMissing       = "missing"
	AssertPoseRestored  = "pose_restored"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so a typo fails loudly instead of silently passing.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML bytes.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Procedure == "" {
		return fmt.Errorf("procedure is required")
	}
	if s.Expect == nil && len(s.Assertions) == 0 {
		return fmt.Errorf("expect or assertions is required")
	}
	for i, it := range s.Scene.Add {
		if it.Name == "" {
			return fmt.Errorf("scene.add[%d]: name is required", i)
		}
		if it.Type == "" {
			return fmt.Errorf("scene.add[%d]: type is required", i)
		}
		if len(it.At) != 0 && len(it.At) != 6 {
			return fmt.Errorf("scene.add[%d]: at must have 6 components", i)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(i int, a Assertion) error {
	switch a.Type {
	case AssertTraceOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds is required for trace_order", i)
		}
	case AssertTraceContains:
		if a.Kind == "" && a.Item == "" && a.Detail == "" {
			return fmt.Errorf("assertions[%d]: trace_contains needs kind, item or detail", i)
		}
	case AssertTraceCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_count", i)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", i)
		}
	case AssertMotionCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", i)
		}
	case AssertMissing, AssertPoseRestored:
		// Names may legitimately be empty for missing (expect none absent).
	case "":
		return fmt.Errorf("assertions[%d]: type is required", i)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
	}
	return nil
}
