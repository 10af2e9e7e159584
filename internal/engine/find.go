package engine

import (
	"context"
	"fmt"

	"github.com/roach88/pathql/internal/plan"
	"github.com/roach88/pathql/internal/plansql"
	"github.com/roach88/pathql/internal/queryerr"
	"github.com/roach88/pathql/internal/record"
	"github.com/roach88/pathql/internal/store"
)

// Page is one window of results with the totals it was cut from.
type Page struct {
	Elements        []record.Object `json:"elements" yaml:"elements"`
	TotalElements   int64           `json:"totalElements" yaml:"totalElements"`
	ElementsPerPage int             `json:"elementsPerPage" yaml:"elementsPerPage"`
	CurrentPage     int             `json:"currentPage" yaml:"currentPage"`
	TotalPages      int64           `json:"totalPages" yaml:"totalPages"`
}

// Statement is one compiled statement of a query, for inspection.
type Statement struct {
	Name string `json:"name" yaml:"name"`
	SQL  string `json:"sql" yaml:"sql"`
	Args []any  `json:"args" yaml:"args"`
}

// Find returns every object matching q. Collections selected by q are
// loaded by secondary queries and attached to their owners.
func (e *Engine) Find(ctx context.Context, q Query) ([]record.Object, error) {
	pr, err := e.prepareQuery(q)
	if err != nil {
		return nil, err
	}

	qid := e.ids.Generate()
	var out []record.Object
	err = e.db.WithTx(ctx, func(tx store.Querier) error {
		rows, err := e.load(ctx, tx, qid, pr)
		if err != nil {
			return err
		}
		out = objects(rows)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("find completed",
		"query_id", qid,
		"root", q.Root,
		"results", len(out))
	return out, nil
}

// FindOne returns the single object matching q, or nil when nothing
// matches. More than one match is a QueryExecutionFailure.
func (e *Engine) FindOne(ctx context.Context, q Query) (record.Object, error) {
	out, err := e.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0], nil
	default:
		return nil, &queryerr.Error{
			Code:    queryerr.CodeQueryExecutionFailure,
			Message: fmt.Sprintf("expected at most one result, got %d", len(out)),
			Entity:  q.Root,
		}
	}
}

// Count returns the number of root objects matching q.
func (e *Engine) Count(ctx context.Context, q Query) (int64, error) {
	pr, err := e.prepareQuery(q)
	if err != nil {
		return 0, err
	}
	return e.count(ctx, e.db, e.ids.Generate(), pr.plan)
}

// FindPage returns page number page (1-based) of size elements. Pages
// below one are page one; sizes below one use the default size and sizes
// above the maximum are capped. The count and the data query run in one
// transaction; a zero count skips the data query.
func (e *Engine) FindPage(ctx context.Context, q Query, page, size int) (*Page, error) {
	page, size = e.normalizePage(page, size)

	pr, err := e.prepareQuery(q)
	if err != nil {
		return nil, err
	}

	qid := e.ids.Generate()
	result := &Page{
		Elements:        []record.Object{},
		ElementsPerPage: size,
		CurrentPage:     page,
	}
	err = e.db.WithTx(ctx, func(tx store.Querier) error {
		total, err := e.count(ctx, tx, qid, pr.plan)
		if err != nil {
			return err
		}
		result.TotalElements = total
		result.TotalPages = (total + int64(size) - 1) / int64(size)
		if total == 0 {
			return nil
		}

		pr.plan.Window(uint64(page-1)*uint64(size), uint64(size))
		rows, err := e.load(ctx, tx, qid, pr)
		if err != nil {
			return err
		}
		result.Elements = objects(rows)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("page completed",
		"query_id", qid,
		"root", q.Root,
		"page", page,
		"size", size,
		"total", result.TotalElements)
	return result, nil
}

func (e *Engine) normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = e.defaultSize
	}
	if e.maxSize > 0 && size > e.maxSize {
		size = e.maxSize
	}
	return page, size
}

// Explain compiles q without running it. It returns the primary statement,
// its count variant, and one statement per collection relation correlated
// against a single placeholder parent key.
func (e *Engine) Explain(q Query) ([]Statement, error) {
	pr, err := e.prepareQuery(q)
	if err != nil {
		return nil, err
	}

	var out []Statement
	add := func(name string, p *plan.Plan) error {
		st, err := plansql.Compile(p, e.dialect)
		if err != nil {
			return err
		}
		out = append(out, Statement{Name: name, SQL: st.SQL, Args: st.Args})
		return nil
	}

	if err := add("primary", pr.plan); err != nil {
		return nil, err
	}
	if err := add("count", pr.plan.CountVariant()); err != nil {
		return nil, err
	}
	if err := e.explainRelations("", pr.split, add); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) explainRelations(prefix string, split *plan.Split, add func(string, *plan.Plan) error) error {
	for _, rel := range split.Relations {
		name := prefix + rel.Name
		pr, err := prepare(rel.Spec, nil)
		if err != nil {
			return err
		}
		pr.plan.Correlate(rel.BackRef, []any{"?"})
		if err := add(name, pr.plan); err != nil {
			return err
		}
		if err := e.explainRelations(name+".", pr.split, add); err != nil {
			return err
		}
	}
	return nil
}

// prepareQuery builds, splits and plans q.
func (e *Engine) prepareQuery(q Query) (*prepared, error) {
	spec, err := e.Spec(q)
	if err != nil {
		return nil, err
	}
	pr, err := prepare(spec, q.Example)
	if err != nil {
		return nil, queryerr.Wrap(queryerr.CodeCriteriaBuildFailure, q.Root, err)
	}
	return pr, nil
}
