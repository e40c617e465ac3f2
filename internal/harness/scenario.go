package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/recman/internal/ir"
)

// Scenario defines a record-manager test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schemas lists CUE schema files. Relative paths are resolved against the
	// scenario file's directory by LoadScenario.
	Schemas []string `yaml:"schemas"`

	// Entity is the default entity for setup and steps.
	Entity string `yaml:"entity"`

	// Setup creates records before the steps run. Setup must succeed.
	Setup []SetupStep `yaml:"setup,omitempty"`

	// Steps are executed in order, each optionally checked.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// TraceID is the fixed trace id managers log with.
	// Defaults to "test-trace-default".
	TraceID string `yaml:"trace_id,omitempty"`
}

// SetupStep creates one record.
type SetupStep struct {
	Entity string         `yaml:"entity,omitempty"`
	Data   map[string]any `yaml:"data"`
}

// Step is one manager operation.
type Step struct {
	Op     string `yaml:"op"`
	Entity string `yaml:"entity,omitempty"`

	// ID is used by read, update and delete.
	ID int64 `yaml:"id,omitempty"`

	// Data is used by create and update.
	Data map[string]any `yaml:"data,omitempty"`

	// Filter is used by query and compile. Key order is preserved.
	Filter *ir.FilterMap `yaml:"filter,omitempty"`

	// Criteria is used by find.
	Criteria map[string]any `yaml:"criteria,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	// Error is the expected error kind, e.g. RESOURCE_NOT_FOUND.
	// Empty means the step must succeed.
	Error string `yaml:"error,omitempty"`

	// Count is the expected number of records returned.
	Count *int `yaml:"count,omitempty"`

	// IDs are the expected record ids, in order.
	IDs []int64 `yaml:"ids,omitempty"`

	// Record is a subset match on the single record a step returns.
	Record map[string]any `yaml:"record,omitempty"`

	// Query is the expected DQL for query and compile steps.
	Query string `yaml:"query,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type is trace_count, trace_order or final_state.
	Type string `yaml:"type"`

	// Op is the operation name (trace_count).
	Op string `yaml:"op,omitempty"`

	// Ops is the expected operation order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Entity is the entity to inspect (final_state).
	Entity string `yaml:"entity,omitempty"`

	// Where is an equality lookup (final_state). Empty matches every record.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect is a subset match applied to every matching record (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of matches (trace_count, final_state).
	Count *int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceCount = "trace_count"
	AssertTraceOrder = "trace_order"
	AssertFinalState = "final_state"
)

// Operation names.
const (
	OpCreate  = "create"
	OpRead    = "read"
	OpList    = "list"
	OpFind    = "find"
	OpQuery   = "query"
	OpCompile = "compile"
	OpUpdate  = "update"
	OpDelete  = "delete"
)

var validOps = map[string]bool{
	OpCreate: true, OpRead: true, OpList: true, OpFind: true,
	OpQuery: true, OpCompile: true, OpUpdate: true, OpDelete: true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Schema paths are resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	for i, p := range scenario.Schemas {
		if !filepath.IsAbs(p) {
			scenario.Schemas[i] = filepath.Join(base, p)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML. Schema paths are left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and per-op requirements.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Schemas) == 0 {
		return fmt.Errorf("schemas is required (at least one CUE file)")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps is required (at least one step)")
	}

	for i, st := range s.Setup {
		if st.Entity == "" && s.Entity == "" {
			return fmt.Errorf("setup[%d]: entity is required when the scenario has no default entity", i)
		}
	}

	for i, st := range s.Steps {
		if err := validateStep(i, st, s.Entity); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, st Step, defaultEntity string) error {
	if !validOps[st.Op] {
		return fmt.Errorf("steps[%d]: unknown op %q", i, st.Op)
	}
	if st.Entity == "" && defaultEntity == "" {
		return fmt.Errorf("steps[%d]: entity is required when the scenario has no default entity", i)
	}
	switch st.Op {
	case OpRead, OpUpdate, OpDelete:
		if st.ID <= 0 {
			return fmt.Errorf("steps[%d]: %s requires a positive id", i, st.Op)
		}
	}
	return nil
}

func validateAssertion(i int, a Assertion) error {
	switch a.Type {
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", i)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for trace_count", i)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", i)
		}
	case AssertFinalState:
		if a.Entity == "" {
			return fmt.Errorf("assertions[%d]: entity is required for final_state", i)
		}
		if a.Count == nil && len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: count or expect is required for final_state", i)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
	}
	return nil
}
