package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pathql/internal/engine"
	"github.com/roach88/pathql/internal/filter"
	"github.com/roach88/pathql/internal/record"
)

// Scenario is a query conformance test case.
type Scenario struct {
	// Name identifies the scenario and its golden file.
	Name string `yaml:"name"`

	// Description is a human-readable explanation.
	Description string `yaml:"description"`

	// Schema is the CUE or YAML schema the engine is built from.
	Schema string `yaml:"schema"`

	// Setup prepares the database before any step runs.
	Setup []SetupStep `yaml:"setup,omitempty"`

	// Steps are the queries to run, in order.
	Steps []Step `yaml:"steps"`
}

// SetupStep is one block of SQL, inline or read from a file.
type SetupStep struct {
	SQL  string `yaml:"sql,omitempty"`
	File string `yaml:"file,omitempty"`
}

// Step runs one query and checks its outcome.
type Step struct {
	Name   string  `yaml:"name"`
	Mode   string  `yaml:"mode,omitempty"`
	Query  Query   `yaml:"query"`
	Page   int     `yaml:"page,omitempty"`
	Size   int     `yaml:"size,omitempty"`
	Expect *Expect `yaml:"expect,omitempty"`
}

// Query is the YAML form of engine.Query.
type Query struct {
	Root    string         `yaml:"root"`
	Fields  string         `yaml:"fields,omitempty"`
	Sort    string         `yaml:"sort,omitempty"`
	Where   []Where        `yaml:"where,omitempty"`
	Group   string         `yaml:"group,omitempty"`
	Joins   []Join         `yaml:"joins,omitempty"`
	Example map[string]any `yaml:"example,omitempty"`
}

// Where is one path criterion.
type Where struct {
	Path string `yaml:"path"`
	Expr string `yaml:"expr"`
}

// Join is one join directive. Kind is inner, left or right.
type Join struct {
	Path  string `yaml:"path"`
	Kind  string `yaml:"kind,omitempty"`
	Fetch bool   `yaml:"fetch,omitempty"`
}

// Expect describes the expected outcome of a step. Unset fields are not
// checked.
type Expect struct {
	// Error is the queryerr code the step must fail with.
	Error string `yaml:"error,omitempty"`

	// Count is the number of results, the count, or the page total,
	// depending on the mode.
	Count *int64 `yaml:"count,omitempty"`

	// Results must equal the materialized objects, in order.
	Results []map[string]any `yaml:"results,omitempty"`

	// Contains lists objects that must each be a subset of some result.
	Contains []map[string]any `yaml:"contains,omitempty"`

	// Pages is the expected page count in page mode.
	Pages *int64 `yaml:"pages,omitempty"`

	// Statements are statement names expected from explain.
	Statements []string `yaml:"statements,omitempty"`

	// SQLContains are fragments every one of which must appear in some
	// explained statement.
	SQLContains []string `yaml:"sql_contains,omitempty"`
}

// Step modes.
const (
	ModeFind    = "find"
	ModeOne     = "one"
	ModeCount   = "count"
	ModePage    = "page"
	ModeExplain = "explain"
)

// LoadScenario reads and parses a scenario YAML file. Relative schema and
// setup file paths are resolved against the scenario's directory.
// Unknown fields are errors so typos surface early.
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
	scenario.Schema = resolve(base, scenario.Schema)
	for i := range scenario.Setup {
		scenario.Setup[i].File = resolve(base, scenario.Setup[i].File)
	}

	if err := checkFiles(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario decodes and validates a scenario without touching the
// filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func checkFiles(s *Scenario) error {
	if _, err := os.Stat(s.Schema); err != nil {
		return fmt.Errorf("schema not found: %s", s.Schema)
	}
	for i, step := range s.Setup {
		if step.File == "" {
			continue
		}
		if _, err := os.Stat(step.File); err != nil {
			return fmt.Errorf("setup[%d]: file not found: %s", i, step.File)
		}
	}
	return nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if (step.SQL == "") == (step.File == "") {
			return fmt.Errorf("setup[%d]: exactly one of sql or file is required", i)
		}
	}

	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st *Step) error {
	if st.Name == "" {
		st.Name = fmt.Sprintf("step%d", index+1)
	}
	if st.Mode == "" {
		st.Mode = ModeFind
	}
	switch st.Mode {
	case ModeFind, ModeOne, ModeCount, ModeExplain:
	case ModePage:
		if st.Page < 1 {
			st.Page = 1
		}
	default:
		return fmt.Errorf("steps[%d]: unknown mode %q", index, st.Mode)
	}
	if st.Query.Root == "" {
		return fmt.Errorf("steps[%d]: query.root is required", index)
	}
	for j, w := range st.Query.Where {
		if w.Path == "" {
			return fmt.Errorf("steps[%d].where[%d]: path is required", index, j)
		}
	}
	for j, jn := range st.Query.Joins {
		if jn.Path == "" {
			return fmt.Errorf("steps[%d].joins[%d]: path is required", index, j)
		}
	}
	if e := st.Expect; e != nil && st.Mode != ModeExplain {
		if len(e.Statements) > 0 || len(e.SQLContains) > 0 {
			return fmt.Errorf("steps[%d]: statements and sql_contains need mode explain", index)
		}
	}
	return nil
}

// EngineQuery converts the YAML query into an engine.Query.
func (q Query) EngineQuery() (engine.Query, error) {
	out := engine.Query{
		Root:   q.Root,
		Fields: q.Fields,
		Sort:   q.Sort,
		Group:  q.Group,
	}
	for _, w := range q.Where {
		out.Where = append(out.Where, engine.Where{Path: w.Path, Expr: w.Expr})
	}
	for _, j := range q.Joins {
		kind := filter.Inner
		if j.Kind != "" {
			var err error
			if kind, err = filter.ParseJoinKind(j.Kind); err != nil {
				return engine.Query{}, err
			}
		}
		out.Joins = append(out.Joins, engine.Join{Path: j.Path, Kind: kind, Fetch: j.Fetch})
	}
	if q.Example != nil {
		out.Example = exampleObject(q.Example)
	}
	return out, nil
}

// exampleObject turns decoded YAML maps into record objects. Lists of maps
// become collections.
func exampleObject(m map[string]any) record.Object {
	obj := make(record.Object, len(m))
	for k, v := range m {
		switch tv := v.(type) {
		case map[string]any:
			obj[k] = exampleObject(tv)
		case []any:
			elems := make([]record.Object, 0, len(tv))
			for _, e := range tv {
				if em, ok := e.(map[string]any); ok {
					elems = append(elems, exampleObject(em))
				}
			}
			obj[k] = elems
		default:
			obj[k] = v
		}
	}
	return obj
}
