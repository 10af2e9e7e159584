package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/roach88/pathql/internal/filter"
	"github.com/roach88/pathql/internal/plan"
	"github.com/roach88/pathql/internal/plansql"
	"github.com/roach88/pathql/internal/queryerr"
	"github.com/roach88/pathql/internal/reassemble"
	"github.com/roach88/pathql/internal/record"
	"github.com/roach88/pathql/internal/store"
)

// prepared is a split spec with the plan of its primary part.
type prepared struct {
	split *plan.Split
	plan  *plan.Plan
}

func prepare(spec *filter.Spec, example record.Object) (*prepared, error) {
	split, err := plan.SplitCollections(spec)
	if err != nil {
		return nil, err
	}
	opts := split.Options()
	if example != nil {
		opts = append(opts, plan.WithExample(example))
	}
	p, err := plan.Build(split.Primary, opts...)
	if err != nil {
		return nil, err
	}
	return &prepared{split: split, plan: p}, nil
}

// run executes one plan and returns its raw rows.
func (e *Engine) run(ctx context.Context, q store.Querier, qid string, p *plan.Plan) ([]store.Row, error) {
	st, err := plansql.Compile(p, e.dialect)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("executing statement",
		"query_id", qid,
		"root", p.Root.Name,
		"sql", st.SQL,
		"args", len(st.Args))

	rows, err := q.Query(ctx, st.SQL, st.Args...)
	if err != nil {
		e.logger.Error("statement failed",
			"query_id", qid,
			"root", p.Root.Name,
			"error", err)
		return nil, queryerr.Wrap(queryerr.CodeQueryExecutionFailure, p.Root.Name, err)
	}
	return rows, nil
}

// load runs the primary plan of pr and then every collection relation,
// attaching the children to the materialized parents.
func (e *Engine) load(ctx context.Context, q store.Querier, qid string, pr *prepared) ([]reassemble.Row, error) {
	rows, err := e.run(ctx, q, qid, pr.plan)
	if err != nil {
		return nil, err
	}
	parents, err := e.reassembler.Rows(pr.plan.Root, rows)
	if err != nil {
		return nil, err
	}
	for _, rel := range pr.split.Relations {
		if err := e.loadRelation(ctx, q, qid, rel, parents); err != nil {
			return nil, err
		}
	}
	return parents, nil
}

// loadRelation loads one collection for a set of parents, in batches of
// parent keys, and merges the children into the parents.
func (e *Engine) loadRelation(ctx context.Context, q store.Querier, qid string, rel *plan.Relation, parents []reassemble.Row) error {
	keys := parentKeys(parents)

	var children []reassemble.Row
	for start := 0; start < len(keys); start += e.batchSize {
		end := min(start+e.batchSize, len(keys))

		// Plans are consumed by Correlate; every batch gets its own.
		pr, err := prepare(rel.Spec, nil)
		if err != nil {
			return err
		}
		pr.plan.Correlate(rel.BackRef, keys[start:end])

		batch, err := e.load(ctx, q, qid, pr)
		if err != nil {
			return err
		}
		children = append(children, batch...)
	}

	e.logger.Debug("collection loaded",
		"query_id", qid,
		"relation", rel.Name,
		"parents", len(keys),
		"children", len(children))

	return e.reassembler.Merge(parents, rel.Field, rel.Name, children)
}

// parentKeys returns the distinct non-nil keys of rows in order.
func parentKeys(rows []reassemble.Row) []any {
	seen := make(map[string]bool, len(rows))
	keys := make([]any, 0, len(rows))
	for _, r := range rows {
		if r.Key == nil {
			continue
		}
		k := fmt.Sprint(r.Key)
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, r.Key)
	}
	return keys
}

func objects(rows []reassemble.Row) []record.Object {
	out := make([]record.Object, len(rows))
	for i, r := range rows {
		out[i] = r.Object
	}
	return out
}

// count runs the count variant of p.
func (e *Engine) count(ctx context.Context, q store.Querier, qid string, p *plan.Plan) (int64, error) {
	rows, err := e.run(ctx, q, qid, p.CountVariant())
	if err != nil {
		return 0, err
	}
	if len(rows) != 1 || len(rows[0].Values) != 1 {
		return 0, &queryerr.Error{
			Code:    queryerr.CodeResultMappingFailure,
			Message: fmt.Sprintf("count returned %d rows", len(rows)),
			Entity:  p.Root.Name,
		}
	}
	n, err := toInt64(rows[0].Values[0])
	if err != nil {
		return 0, &queryerr.Error{
			Code:    queryerr.CodeResultMappingFailure,
			Message: "count is not an integer",
			Entity:  p.Root.Name,
			Err:     err,
		}
	}
	return n, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}
