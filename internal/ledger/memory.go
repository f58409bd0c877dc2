package ledger

import (
	"context"
	"sync"

	"github.com/placepulse/backend-go/internal/models"
)

// MemoryStore is a Store kept entirely in memory. It backs tests and
// ephemeral deployments that run without a database.
type MemoryStore struct {
	mu      sync.Mutex
	state   models.TokenSupplyState
	version int64
}

// NewMemoryStore creates an empty in-memory supply store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Seed overwrites the stored state, bumping the version
func (m *MemoryStore) Seed(state models.TokenSupplyState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.version++
}

// Load returns the current state and version
func (m *MemoryStore) Load(ctx context.Context) (models.TokenSupplyState, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.version, nil
}

// Save applies the state only when the version still matches
func (m *MemoryStore) Save(ctx context.Context, state models.TokenSupplyState, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.version != expectedVersion {
		return ErrConflict
	}
	m.state = state
	m.version++
	return nil
}
