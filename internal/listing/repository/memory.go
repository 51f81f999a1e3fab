package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/boxspot/internal/listing/domain"
)

// MemoryListingRepository provides an in-memory ListingRepository suitable
// for tests and local demos. Insertion order is preserved so FindNearby
// output gives the search engine a stable tie-break.
type MemoryListingRepository struct {
	mu       sync.RWMutex
	listings map[uuid.UUID]domain.Listing
	order    []uuid.UUID
}

// NewMemoryListingRepository constructs an empty repository.
func NewMemoryListingRepository() *MemoryListingRepository {
	return &MemoryListingRepository{listings: make(map[uuid.UUID]domain.Listing)}
}

// CreateListing stores the listing and returns it.
func (m *MemoryListingRepository) CreateListing(_ context.Context, l domain.Listing) (domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings[l.ID] = l
	m.order = append(m.order, l.ID)
	return l, nil
}

// GetListing retrieves a listing by id.
func (m *MemoryListingRepository) GetListing(_ context.Context, id uuid.UUID) (domain.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrNotFound
	}
	return l, nil
}

// FindNearby returns listings satisfying every filter predicate, in
// insertion order.
func (m *MemoryListingRepository) FindNearby(_ context.Context, filter domain.SearchFilter) ([]domain.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matches []domain.Listing
	for _, id := range m.order {
		if l := m.listings[id]; filter.Matches(l) {
			matches = append(matches, l)
		}
	}
	return matches, nil
}

// FindByHost returns a host's listings sorted by end date descending.
func (m *MemoryListingRepository) FindByHost(_ context.Context, hostID uuid.UUID) ([]domain.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []domain.Listing
	for _, id := range m.order {
		if l := m.listings[id]; l.HostID == hostID {
			result = append(result, l)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].EndDate.After(result[j].EndDate)
	})
	return result, nil
}

// ReserveSpace atomically decrements remaining space. The check and the
// decrement happen under the same lock, so two racing reservations can
// never overdraw the listing.
func (m *MemoryListingRepository) ReserveSpace(_ context.Context, id uuid.UUID, boxes int) (domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrNotFound
	}
	if l.RemSpace < boxes {
		return domain.Listing{}, domain.ErrCapacity
	}
	l.RemSpace -= boxes
	l.Version++
	l.UpdatedAt = time.Now().UTC()
	m.listings[id] = l
	return l, nil
}

// ReleaseSpace returns boxes to the listing, clamped at its capacity.
func (m *MemoryListingRepository) ReleaseSpace(_ context.Context, id uuid.UUID, boxes int) (domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrNotFound
	}
	l.RemSpace += boxes
	if l.RemSpace > l.Capacity {
		l.RemSpace = l.Capacity
	}
	l.Version++
	l.UpdatedAt = time.Now().UTC()
	m.listings[id] = l
	return l, nil
}

// MemoryRentalRepository provides an in-memory RentalRepository.
type MemoryRentalRepository struct {
	mu      sync.RWMutex
	rentals map[uuid.UUID]domain.Rental
	order   []uuid.UUID
}

// NewMemoryRentalRepository constructs an empty repository.
func NewMemoryRentalRepository() *MemoryRentalRepository {
	return &MemoryRentalRepository{rentals: make(map[uuid.UUID]domain.Rental)}
}

// CreateRental stores the rental and returns it.
func (m *MemoryRentalRepository) CreateRental(_ context.Context, r domain.Rental) (domain.Rental, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rentals[r.ID] = r
	m.order = append(m.order, r.ID)
	return r, nil
}

// GetRental retrieves a rental by id.
func (m *MemoryRentalRepository) GetRental(_ context.Context, id uuid.UUID) (domain.Rental, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rentals[id]
	if !ok {
		return domain.Rental{}, domain.ErrNotFound
	}
	return r, nil
}

// ListByRenter returns a renter's full booking history, most recent
// dropoff first.
func (m *MemoryRentalRepository) ListByRenter(_ context.Context, renterID uuid.UUID) ([]domain.Rental, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []domain.Rental
	for _, id := range m.order {
		if r := m.rentals[id]; r.RenterID == renterID {
			result = append(result, r)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Dropoff.After(result[j].Dropoff)
	})
	return result, nil
}

// ListByListing returns every rental against a listing, used by the
// occupancy reconciler.
func (m *MemoryRentalRepository) ListByListing(_ context.Context, listingID uuid.UUID) ([]domain.Rental, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []domain.Rental
	for _, id := range m.order {
		if r := m.rentals[id]; r.ListingID == listingID {
			result = append(result, r)
		}
	}
	return result, nil
}

// MarkCancelled flips an active rental to cancelled.
func (m *MemoryRentalRepository) MarkCancelled(_ context.Context, id uuid.UUID, at time.Time) (domain.Rental, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rentals[id]
	if !ok {
		return domain.Rental{}, domain.ErrNotFound
	}
	if r.Status == domain.RentalCancelled {
		return domain.Rental{}, domain.Invalid("rental", "already cancelled")
	}
	r.Status = domain.RentalCancelled
	r.CancelledAt = &at
	m.rentals[id] = r
	return r, nil
}
