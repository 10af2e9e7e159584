package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// AssertionError is returned when a step's outcome differs from its expect
// clause.
type AssertionError struct {
	Type     string // what was checked
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s\n  Expected: %s\n  Actual: %s", e.Type, e.Expected, e.Actual)
}

// checkExpect compares one step result with its expect clause. A step with
// no expect clause passes unless it failed.
func checkExpect(step Step, sr StepResult) error {
	exp := step.Expect
	if exp == nil || exp.Error == "" {
		if sr.Error != "" {
			return &AssertionError{Type: "error", Expected: "success", Actual: sr.Error}
		}
	}
	if exp == nil {
		return nil
	}
	if exp.Error != "" {
		if sr.Error != exp.Error {
			return &AssertionError{Type: "error", Expected: exp.Error, Actual: orNone(sr.Error)}
		}
		return nil
	}

	if exp.Count != nil && *exp.Count != sr.Count {
		return &AssertionError{Type: "count", Expected: fmt.Sprint(*exp.Count), Actual: fmt.Sprint(sr.Count)}
	}
	if exp.Pages != nil && *exp.Pages != sr.Pages {
		return &AssertionError{Type: "pages", Expected: fmt.Sprint(*exp.Pages), Actual: fmt.Sprint(sr.Pages)}
	}
	if exp.Results != nil {
		if err := assertResults(exp.Results, sr); err != nil {
			return err
		}
	}
	for _, want := range exp.Contains {
		if err := assertContains(want, sr); err != nil {
			return err
		}
	}
	if len(exp.Statements) > 0 {
		names := make([]string, len(sr.Statements))
		for i, st := range sr.Statements {
			names[i] = st.Name
		}
		if !reflect.DeepEqual(names, exp.Statements) {
			return &AssertionError{Type: "statements", Expected: fmt.Sprint(exp.Statements), Actual: fmt.Sprint(names)}
		}
	}
	for _, frag := range exp.SQLContains {
		if !sqlContains(sr, frag) {
			return &AssertionError{Type: "sql_contains", Expected: frag, Actual: "not found in any statement"}
		}
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "no error"
	}
	return s
}

// assertResults checks results for equality, in order.
func assertResults(want []map[string]any, sr StepResult) error {
	w, err := normalize(want)
	if err != nil {
		return err
	}
	got, err := normalize(sr.Results)
	if err != nil {
		return err
	}
	if got == nil {
		got = []any{}
	}
	if !reflect.DeepEqual(w, got) {
		return &AssertionError{Type: "results", Expected: compact(w), Actual: compact(got)}
	}
	return nil
}

// assertContains checks that want is a subset of at least one result.
func assertContains(want map[string]any, sr StepResult) error {
	w, err := normalize(want)
	if err != nil {
		return err
	}
	got, err := normalize(sr.Results)
	if err != nil {
		return err
	}
	list, _ := got.([]any)
	for _, elem := range list {
		if subset(w, elem) {
			return nil
		}
	}
	return &AssertionError{Type: "contains", Expected: compact(w), Actual: compact(got)}
}

// normalize round-trips v through JSON so that YAML-decoded expectations and
// materialized objects compare with the same number and map types.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize %T: %w", v, err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// subset reports whether want is contained in got. Maps match key by key,
// lists match when every wanted element is a subset of some actual element.
func subset(want, got any) bool {
	switch w := want.(type) {
	case map[string]any:
		g, ok := got.(map[string]any)
		if !ok {
			return false
		}
		for k, wv := range w {
			gv, ok := g[k]
			if !ok || !subset(wv, gv) {
				return false
			}
		}
		return true
	case []any:
		g, ok := got.([]any)
		if !ok {
			return false
		}
		for _, we := range w {
			found := false
			for _, ge := range g {
				if subset(we, ge) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(want, got)
	}
}

func sqlContains(sr StepResult, frag string) bool {
	for _, st := range sr.Statements {
		if strings.Contains(st.SQL, frag) {
			return true
		}
	}
	return false
}

func compact(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
