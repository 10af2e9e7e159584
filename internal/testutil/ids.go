package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDGenerator hands out query ids "q-1", "q-2", ... for tests that
// assert on log output.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequenceIDGenerator struct {
	mu  sync.Mutex
	seq int64
}

// NewSequenceIDGenerator creates a generator whose first id is "q-1".
func NewSequenceIDGenerator() *SequenceIDGenerator {
	return &SequenceIDGenerator{}
}

// Generate returns the next id.
func (g *SequenceIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("q-%d", g.seq)
}

// Reset restarts the sequence. After Reset, the next id is "q-1".
func (g *SequenceIDGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
