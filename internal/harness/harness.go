package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/roach88/pathql/internal/engine"
	"github.com/roach88/pathql/internal/queryerr"
	"github.com/roach88/pathql/internal/schema"
	"github.com/roach88/pathql/internal/store"
	"github.com/roach88/pathql/internal/testutil"
)

// Harness runs the steps of one scenario against one engine.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	ids    *testutil.SequenceIDGenerator
	logger *slog.Logger
}

// Run executes a scenario and returns its result.
//
// Each scenario runs in a fresh in-memory database:
//  1. build the registry from the scenario schema
//  2. apply the setup SQL in order
//  3. run every step and check its expect clause
//
// A returned error means the scenario could not be run at all. Failed
// expectations are reported in the result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	registry, err := schema.Registry(scenario.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		ids:    testutil.NewSequenceIDGenerator(),
		logger: engine.DiscardLogger(),
	}
	h.engine = engine.New(registry, st,
		engine.WithIDGenerator(h.ids),
		engine.WithLogger(h.logger))

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, err
	}

	result := NewResult()
	for _, step := range scenario.Steps {
		sr := h.executeStep(ctx, step)
		result.Steps = append(result.Steps, sr)
		if err := checkExpect(step, sr); err != nil {
			result.AddError(fmt.Sprintf("%s: %v", step.Name, err))
		}
	}
	return result, nil
}

func (h *Harness) executeSetup(ctx context.Context, setup []SetupStep) error {
	for i, step := range setup {
		sql := step.SQL
		if step.File != "" {
			data, err := os.ReadFile(step.File)
			if err != nil {
				return fmt.Errorf("setup[%d]: %w", i, err)
			}
			sql = string(data)
		}
		if err := h.store.ApplySchema(ctx, sql); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	return nil
}

// executeStep runs one step. Query errors are recorded in the step result
// so expect clauses can assert on them.
func (h *Harness) executeStep(ctx context.Context, step Step) StepResult {
	sr := StepResult{Name: step.Name, Mode: step.Mode}

	q, err := step.Query.EngineQuery()
	if err != nil {
		sr.Error = string(queryerr.CodeInvalidExpression)
		return sr
	}

	switch step.Mode {
	case ModeFind:
		objs, ferr := h.engine.Find(ctx, q)
		err = ferr
		sr.Results = objs
		sr.Count = int64(len(objs))
	case ModeOne:
		obj, ferr := h.engine.FindOne(ctx, q)
		err = ferr
		if obj != nil {
			sr.Results = append(sr.Results, obj)
			sr.Count = 1
		}
	case ModeCount:
		sr.Count, err = h.engine.Count(ctx, q)
	case ModePage:
		page, ferr := h.engine.FindPage(ctx, q, step.Page, step.Size)
		err = ferr
		if page != nil {
			sr.Results = page.Elements
			sr.Count = page.TotalElements
			sr.Pages = page.TotalPages
		}
	case ModeExplain:
		sr.Statements, err = h.engine.Explain(q)
		sr.Count = int64(len(sr.Statements))
	}

	if err != nil {
		h.logger.Debug("step failed", "step", step.Name, "error", err)
		sr.Error = errorCode(err)
	}
	return sr
}

func errorCode(err error) string {
	var qe *queryerr.Error
	if errors.As(err, &qe) {
		return string(qe.Code)
	}
	return err.Error()
}
