// Package pgstore adapts PostgreSQL, through a pgx connection pool, as a
// persistence engine for the query pipeline. Statements must use the
// PostgreSQL placeholder format ($1, $2, ...).
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/pathql/internal/queryerr"
	"github.com/roach88/pathql/internal/store"
)

// Store wraps a pgx connection pool.
type Store struct {
	Pool *pgxpool.Pool
}

// Open creates a pool from a connection string and checks connectivity.
func Open(ctx context.Context, dsn string) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = 5
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Minute * 30
	poolConfig.MaxConnIdleTime = time.Minute * 5
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{Pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// queryer is satisfied by both the pool and a transaction.
type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Query runs a statement and collects all rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) ([]store.Row, error) {
	return queryRows(ctx, s.Pool, query, args)
}

// WithTx runs fn inside a read-only transaction that is always rolled back.
func (s *Store) WithTx(ctx context.Context, fn func(q store.Querier) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return queryerr.Wrap(queryerr.CodeQueryExecutionFailure, "", fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Warn("rollback failed", "error", err)
		}
	}()

	return fn(&txQuerier{tx: tx})
}

type txQuerier struct {
	tx pgx.Tx
}

func (q *txQuerier) Query(ctx context.Context, query string, args ...any) ([]store.Row, error) {
	return queryRows(ctx, q.tx, query, args)
}

func queryRows(ctx context.Context, q queryer, query string, args []any) ([]store.Row, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}

	out := []store.Row{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, queryerr.Wrap(queryerr.CodeQueryExecutionFailure, "", fmt.Errorf("scan: %w", err))
		}
		out = append(out, store.Row{Columns: columns, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// classify maps a pgx error onto the query error taxonomy. PostgreSQL
// reports statements it cannot plan (syntax errors, undefined tables or
// columns) under SQLSTATE class 42.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "42") {
		return queryerr.Wrap(queryerr.CodeCriteriaBuildFailure, "",
			fmt.Errorf("%s (SQLSTATE %s): %w", pgErr.Message, pgErr.Code, err))
	}
	return queryerr.Wrap(queryerr.CodeQueryExecutionFailure, "", fmt.Errorf("query: %w", err))
}

var _ store.Executor = (*Store)(nil)
