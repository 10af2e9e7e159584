package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Scenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(context.Background(), scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Len(t, result.Steps, len(scenario.Steps))
		})
	}
}

func TestRun_StepResults(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/people.yaml")
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	byName := map[string]StepResult{}
	for _, sr := range result.Steps {
		byName[sr.Name] = sr
	}

	assert.Equal(t, int64(2), byName["women"].Count)
	assert.Empty(t, byName["women"].Results)

	page := byName["second_page"]
	assert.Equal(t, int64(4), page.Count)
	assert.Equal(t, int64(2), page.Pages)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "Ana Lima", page.Results[0]["nome"])

	assert.Equal(t, "FIELD_NOT_FOUND", byName["unknown_field"].Error)
	assert.Len(t, byName["statements"].Statements, 4)
}

func TestRun_FailedExpectations(t *testing.T) {
	scenario := loadInline(t, `
name: failing
schema: schema.cue
setup:
  - file: setup.sql
steps:
  - name: wrong_count
    mode: count
    query: {root: Pessoa}
    expect: {count: 7}
  - name: unexpected_error
    query: {root: Pessoa, fields: sobrenome}
  - name: wrong_results
    query: {root: Pessoa, fields: nome, sort: nome}
    expect:
      results:
        - {nome: Nobody}
  - name: missing_error
    query: {root: Pessoa}
    expect: {error: FIELD_NOT_FOUND}
  - name: passes
    mode: count
    query: {root: Pessoa}
    expect: {count: 4}
`)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "wrong_count")
	assert.Contains(t, result.Errors[0], "Expected: 7")
	assert.Contains(t, result.Errors[1], "unexpected_error")
	assert.Contains(t, result.Errors[2], "wrong_results")
	assert.Contains(t, result.Errors[3], "missing_error")
	assert.Contains(t, result.Errors[3], "no error")
}

func TestRun_SetupErrors(t *testing.T) {
	scenario := loadInline(t, `
name: broken
schema: schema.cue
setup:
  - sql: "CREATE TABLE nope ("
steps:
  - query: {root: Pessoa}
`)
	_, err := Run(context.Background(), scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup[0]")

	scenario.Setup = nil
	scenario.Schema = filepath.Join(t.TempDir(), "missing.cue")
	_, err = Run(context.Background(), scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load schema")
}

func TestRunWithGolden(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/counts.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

// loadInline parses a scenario and resolves its files against testdata.
func loadInline(t *testing.T, src string) *Scenario {
	t.Helper()
	scenario, err := ParseScenario([]byte(src))
	require.NoError(t, err)
	scenario.Schema = resolve("testdata", scenario.Schema)
	for i := range scenario.Setup {
		scenario.Setup[i].File = resolve("testdata", scenario.Setup[i].File)
	}
	return scenario
}
