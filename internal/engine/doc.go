// Package engine runs field-path queries end to end.
//
// A Query names a root type and carries raw select, sort, where, group and
// join strings. The engine resolves them into a filter.Spec, splits
// collection selections into secondary specs, plans and compiles the
// primary statement, executes it, and reassembles the rows into nested
// record.Objects. Each collection relation is then loaded with one
// statement per batch of parent keys and merged into its owners.
//
// Execution flow:
//
//  1. Spec: raw strings resolved against the metadata registry
//  2. Split: to-many selections moved into secondary specs
//  3. Plan and compile: joins, predicates, projection, order
//  4. Execute: inside one read-only transaction
//  5. Reassemble: rows merged by root identifier
//  6. Relations: batched, correlated by back-reference, merged
//
// FindPage runs the count variant of the primary plan first and skips the
// data statement when the count is zero.
//
// Every call gets a query id from the configured IDGenerator. Log records
// carry it under "query_id" so the statements of one call can be grouped.
package engine
