// Package store adapts SQLite (github.com/mattn/go-sqlite3) as the
// persistence engine the query pipeline delegates to.
//
// The pipeline never builds storage itself: it hands a parameterized
// statement to a Querier and gets flat rows back. Store implements Querier
// and Executor on top of database/sql; package pgstore does the same for
// PostgreSQL through pgx.
//
// # Error classification
//
// Statements are prepared before they run. A preparation failure (unknown
// table or column, syntax error) means the plan was rejected and is reported
// as queryerr.CodeCriteriaBuildFailure. Failures after that point are
// queryerr.CodeQueryExecutionFailure.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
