package store

import (
	"context"
	"path/filepath"
	"testing"
)

const testSchema = `
CREATE TABLE IF NOT EXISTS item (
	id    INTEGER PRIMARY KEY,
	name  TEXT NOT NULL,
	price REAL,
	seen  INTEGER NOT NULL DEFAULT 0
);
`

// createTestStore creates a new file-backed store with the item table.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.ApplySchema(context.Background(), testSchema); err != nil {
		t.Fatalf("ApplySchema() failed: %v", err)
	}
	return s
}

// insertItem adds one row to the item table.
func insertItem(t *testing.T, s *Store, id int64, name string, price float64) {
	t.Helper()
	err := s.Exec(context.Background(),
		"INSERT INTO item (id, name, price) VALUES (?, ?, ?)", id, name, price)
	if err != nil {
		t.Fatalf("insert item %d: %v", id, err)
	}
}
