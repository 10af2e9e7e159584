package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pathql/internal/engine"
	"github.com/roach88/pathql/internal/record"
)

func int64p(n int64) *int64 { return &n }

func TestCheckExpect(t *testing.T) {
	people := StepResult{
		Name: "s",
		Mode: ModeFind,
		Results: []record.Object{
			{"nome": "Joao", "idade": int64(30), "enderecos": []record.Object{{"cidade": "Sao Paulo"}, {"cidade": "Campinas"}}},
			{"nome": "Ana", "idade": int64(35), "profissao": record.Object{"descricao": "Medica"}},
		},
		Count: 2,
	}
	explained := StepResult{
		Mode:       ModeExplain,
		Statements: []engine.Statement{{Name: "primary", SQL: "SELECT t0.nome FROM pessoa t0"}, {Name: "count", SQL: "SELECT COUNT(DISTINCT t0.id)"}},
		Count:      2,
	}

	testCases := []struct {
		name     string
		result   StepResult
		expect   *Expect
		wantType string
	}{
		{"no expect", people, nil, ""},
		{"no expect but failed", StepResult{Error: "FIELD_NOT_FOUND"}, nil, "error"},
		{"count", people, &Expect{Count: int64p(2)}, ""},
		{"count mismatch", people, &Expect{Count: int64p(3)}, "count"},
		{"pages mismatch", StepResult{Pages: 1}, &Expect{Pages: int64p(2)}, "pages"},
		{"results equal across number types", people, &Expect{Results: []map[string]any{
			{"nome": "Joao", "idade": 30, "enderecos": []any{map[string]any{"cidade": "Sao Paulo"}, map[string]any{"cidade": "Campinas"}}},
			{"nome": "Ana", "idade": 35, "profissao": map[string]any{"descricao": "Medica"}},
		}}, ""},
		{"results order matters", people, &Expect{Results: []map[string]any{
			{"nome": "Ana", "idade": 35, "profissao": map[string]any{"descricao": "Medica"}},
			{"nome": "Joao", "idade": 30, "enderecos": []any{map[string]any{"cidade": "Sao Paulo"}, map[string]any{"cidade": "Campinas"}}},
		}}, "results"},
		{"contains nested subset", people, &Expect{Contains: []map[string]any{
			{"nome": "Joao", "enderecos": []any{map[string]any{"cidade": "Campinas"}}},
		}}, ""},
		{"contains missing", people, &Expect{Contains: []map[string]any{{"nome": "Maria"}}}, "contains"},
		{"contains wrong shape", people, &Expect{Contains: []map[string]any{{"profissao": "Medica"}}}, "contains"},
		{"error matched", StepResult{Error: "FIELD_NOT_FOUND"}, &Expect{Error: "FIELD_NOT_FOUND"}, ""},
		{"error mismatch", StepResult{Error: "INVALID_EXPRESSION"}, &Expect{Error: "FIELD_NOT_FOUND"}, "error"},
		{"error expected", people, &Expect{Error: "FIELD_NOT_FOUND"}, "error"},
		{"statements", explained, &Expect{Statements: []string{"primary", "count"}}, ""},
		{"statements mismatch", explained, &Expect{Statements: []string{"primary"}}, "statements"},
		{"sql contains", explained, &Expect{SQLContains: []string{"COUNT(DISTINCT t0.id)", "FROM pessoa t0"}}, ""},
		{"sql missing", explained, &Expect{SQLContains: []string{"GROUP BY"}}, "sql_contains"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := checkExpect(Step{Name: "s", Expect: tc.expect}, tc.result)
			if tc.wantType == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ae *AssertionError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tc.wantType, ae.Type)
		})
	}
}

func TestSubset(t *testing.T) {
	got := map[string]any{"a": 1.0, "b": []any{map[string]any{"c": "x", "d": "y"}}}

	assert.True(t, subset(map[string]any{}, got))
	assert.True(t, subset(map[string]any{"a": 1.0}, got))
	assert.True(t, subset(map[string]any{"b": []any{map[string]any{"d": "y"}}}, got))
	assert.False(t, subset(map[string]any{"a": 2.0}, got))
	assert.False(t, subset(map[string]any{"z": nil}, got))
	assert.False(t, subset(map[string]any{"b": []any{map[string]any{"d": "z"}}}, got))
	assert.False(t, subset([]any{1.0}, "scalar"))
}

func TestAssertionError(t *testing.T) {
	err := &AssertionError{Type: "count", Expected: "3", Actual: "2"}
	assert.Contains(t, err.Error(), "assertion failed: count")
	assert.Contains(t, err.Error(), "Expected: 3")
	assert.Contains(t, err.Error(), "Actual: 2")
}
