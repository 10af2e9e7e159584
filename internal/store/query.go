package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/pathql/internal/queryerr"
)

// Row is one result row: column aliases and values in select order.
type Row struct {
	Columns []string
	Values  []any
}

// Get returns the value of a column by alias.
func (r Row) Get(column string) (any, bool) {
	for i, c := range r.Columns {
		if c == column {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Querier runs one read statement and returns all of its rows.
//
// Errors are classified: a statement the engine refuses to prepare is a
// queryerr.CodeCriteriaBuildFailure, a failure while reading rows is a
// queryerr.CodeQueryExecutionFailure.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
}

// Executor is a Querier that can also group several reads into one
// transaction, so that a count and the page it describes see the same data.
type Executor interface {
	Querier
	WithTx(ctx context.Context, fn func(q Querier) error) error
}

type preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Query prepares and runs a statement.
// Returns an empty slice (not nil) when no rows match.
func (s *Store) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	return queryRows(ctx, s.db, query, args)
}

// WithTx runs fn inside a read-only transaction.
// The transaction is always rolled back: fn only reads.
func (s *Store) WithTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return queryerr.Wrap(queryerr.CodeQueryExecutionFailure, "", fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	return fn(&txQuerier{tx: tx})
}

type txQuerier struct {
	tx *sql.Tx
}

func (q *txQuerier) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	return queryRows(ctx, q.tx, query, args)
}

func queryRows(ctx context.Context, p preparer, query string, args []any) ([]Row, error) {
	stmt, err := p.PrepareContext(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, queryerr.Wrap(queryerr.CodeQueryExecutionFailure, "", fmt.Errorf("prepare: %w", err))
		}
		return nil, queryerr.Wrap(queryerr.CodeCriteriaBuildFailure, "", fmt.Errorf("prepare: %w", err))
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, queryerr.Wrap(queryerr.CodeQueryExecutionFailure, "", fmt.Errorf("query: %w", err))
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, queryerr.Wrap(queryerr.CodeQueryExecutionFailure, "", fmt.Errorf("columns: %w", err))
	}

	out := []Row{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, queryerr.Wrap(queryerr.CodeQueryExecutionFailure, "", fmt.Errorf("scan: %w", err))
		}
		out = append(out, Row{Columns: columns, Values: values})
	}

	if err := rows.Err(); err != nil {
		return nil, queryerr.Wrap(queryerr.CodeQueryExecutionFailure, "", fmt.Errorf("iterate rows: %w", err))
	}

	return out, nil
}
