package testutil

import (
	"fmt"
	"sync"
)

// SequentialRunIDs generates predictable run ids: "<prefix>-0001",
// "<prefix>-0002", ...
//
// This enables deterministic test execution and golden snapshot
// comparison: stored runs carry the same ids on every test run, where
// real UUIDv7 ids would differ.
//
// If prefix is empty, "test-run" is used.
type SequentialRunIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialRunIDs creates a generator starting at 1.
func NewSequentialRunIDs(prefix string) *SequentialRunIDs {
	if prefix == "" {
		prefix = "test-run"
	}
	return &SequentialRunIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialRunIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
