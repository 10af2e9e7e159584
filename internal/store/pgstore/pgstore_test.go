package pgstore

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pathql/internal/queryerr"
	"github.com/roach88/pathql/internal/store"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want queryerr.Code
	}{
		{"undefined column", &pgconn.PgError{Code: "42703", Message: "column does not exist"}, queryerr.CodeCriteriaBuildFailure},
		{"undefined table", &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}, queryerr.CodeCriteriaBuildFailure},
		{"syntax error", &pgconn.PgError{Code: "42601"}, queryerr.CodeCriteriaBuildFailure},
		{"division by zero", &pgconn.PgError{Code: "22012"}, queryerr.CodeQueryExecutionFailure},
		{"connection lost", errors.New("conn closed"), queryerr.CodeQueryExecutionFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.err)
			assert.Equal(t, tt.want, queryerr.CodeOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

// TestStore_Postgres runs against a live server when PATHQL_TEST_PG_DSN is set.
func TestStore_Postgres(t *testing.T) {
	dsn := os.Getenv("PATHQL_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("PATHQL_TEST_PG_DSN not set")
	}
	ctx := context.Background()

	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()

	rows, err := s.Query(ctx, "SELECT $1::int AS \"n\", 'x' AS \"a.b\"", 7)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"n", "a.b"}, rows[0].Columns)
	assert.Equal(t, int32(7), rows[0].Values[0])

	err = s.WithTx(ctx, func(q store.Querier) error {
		_, err := q.Query(ctx, "SELECT missing_column FROM pg_class")
		return err
	})
	assert.True(t, queryerr.IsCriteriaBuildFailure(err), "got %v", err)
}
