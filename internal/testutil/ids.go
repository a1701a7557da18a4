package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDs generates UUID-shaped record ids from a counter, so the same
// scenario produces the same ids on every run.
//
// Thread-safety: safe for concurrent use.
type SequenceIDs struct {
	mu  sync.Mutex
	seq int64
}

// NewSequenceIDs returns a generator whose first id ends in 1.
func NewSequenceIDs() *SequenceIDs {
	return &SequenceIDs{}
}

// Generate returns the next id.
func (g *SequenceIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("00000000-0000-7000-8000-%012d", g.seq)
}
