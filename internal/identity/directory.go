// Package identity resolves host and renter references to minimal
// profiles. The core never mutates users; it only needs lookup-by-id.
package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Profile is the minimal user projection exposed to listing consumers.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
}

// DisplayName joins first and last name for search results.
func (p Profile) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Directory looks up user profiles by id.
type Directory interface {
	Profile(ctx context.Context, id uuid.UUID) (Profile, bool, error)
}

// MemoryDirectory is an in-process Directory for tests and local demos.
type MemoryDirectory struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID]Profile
}

// NewMemoryDirectory constructs an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{profiles: make(map[uuid.UUID]Profile)}
}

// Upsert stores a profile.
func (m *MemoryDirectory) Upsert(_ context.Context, p Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
}

// Profile returns the stored profile, if any.
func (m *MemoryDirectory) Profile(_ context.Context, id uuid.UUID) (Profile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	return p, ok, nil
}
