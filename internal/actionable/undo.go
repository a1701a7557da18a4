package actionable

import (
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/chronicle/internal/identity"
)

// UndoStore keeps the last batch each principal applied. A new batch replaces
// the previous one.
//
// Safe for concurrent use.
type UndoStore struct {
	mu      sync.Mutex
	batches map[string][]Transaction
}

// NewUndoStore returns an empty store.
func NewUndoStore() *UndoStore {
	return &UndoStore{batches: make(map[string][]Transaction)}
}

func undoKey(p identity.Principal) string {
	if p.ID != uuid.Nil {
		return p.ID.String()
	}
	return "name:" + p.Name
}

// Put stores txs for p. An empty batch clears the entry.
func (u *UndoStore) Put(p identity.Principal, txs []Transaction) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(txs) == 0 {
		delete(u.batches, undoKey(p))
		return
	}
	u.batches[undoKey(p)] = txs
}

// Take removes and returns the batch stored for p.
func (u *UndoStore) Take(p identity.Principal) ([]Transaction, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	key := undoKey(p)
	txs, ok := u.batches[key]
	delete(u.batches, key)
	return txs, ok
}

// Len returns the number of transactions stored for p.
func (u *UndoStore) Len(p identity.Principal) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.batches[undoKey(p)])
}
