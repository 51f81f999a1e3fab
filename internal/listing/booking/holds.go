package booking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// HoldStore serializes capacity mutations per listing. A hold must be
// acquired before the read-check-decrement in Book so two racing bookings
// on the same listing can never both pass the capacity check. The TTL
// bounds how long a crashed worker can keep a listing locked.
type HoldStore interface {
	TryHold(ctx context.Context, listingID uuid.UUID, ttl time.Duration) (bool, error)
	Release(ctx context.Context, listingID uuid.UUID) error
}

// MemoryHoldStore implements HoldStore for single-process deployments and
// tests. TTLs are ignored; holds live until released.
type MemoryHoldStore struct {
	mu    sync.Mutex
	holds map[uuid.UUID]struct{}
}

// NewMemoryHoldStore constructs MemoryHoldStore.
func NewMemoryHoldStore() *MemoryHoldStore {
	return &MemoryHoldStore{holds: make(map[uuid.UUID]struct{})}
}

// TryHold acquires the listing hold if free.
func (m *MemoryHoldStore) TryHold(_ context.Context, listingID uuid.UUID, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.holds[listingID]; held {
		return false, nil
	}
	m.holds[listingID] = struct{}{}
	return true, nil
}

// Release frees the listing hold.
func (m *MemoryHoldStore) Release(_ context.Context, listingID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.holds, listingID)
	return nil
}
