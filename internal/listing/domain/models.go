package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates a referenced listing, rental or user does not exist.
var ErrNotFound = errors.New("not found")

// ErrCapacity indicates a booking asked for more boxes than remain on the listing.
var ErrCapacity = errors.New("insufficient remaining space")

// ErrConflict indicates a conditional capacity update lost a race and may be retried.
var ErrConflict = errors.New("capacity update conflict")

// ValidationError reports malformed input. It is surfaced to the caller
// immediately and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// GeoPoint is a WGS84 coordinate in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// InRange reports whether the coordinate is a valid lat/lon pair.
func (p GeoPoint) InRange() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Listing is a host's offer of storage capacity at a location, time window
// and monthly price. RemSpace is mutated only through the capacity
// allocator and must stay within [0, Capacity].
type Listing struct {
	ID        uuid.UUID
	HostID    uuid.UUID
	Location  GeoPoint
	Capacity  int
	RemSpace  int
	StartDate time.Time
	EndDate   time.Time
	Price     float64
	ImageURL  string
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64
}

// RentalStatus tracks the rental lifecycle.
type RentalStatus string

const (
	RentalActive    RentalStatus = "ACTIVE"
	RentalCancelled RentalStatus = "CANCELLED"
)

// Rental books a number of boxes inside a listing's availability window.
type Rental struct {
	ID          uuid.UUID
	ListingID   uuid.UUID
	RenterID    uuid.UUID
	Boxes       int
	Dropoff     time.Time
	Pickup      time.Time
	Status      RentalStatus
	CreatedAt   time.Time
	CancelledAt *time.Time
}

// SearchFilter constrains FindNearby. Zero values select the model
// defaults: minimum capacity 1, unbounded price, and a date window that
// matches every listing currently available.
type SearchFilter struct {
	MinCapacity int
	MaxPrice    float64
	StartDate   time.Time
	EndDate     time.Time
}

// farFuture mirrors the model default used when no start date constraint
// is supplied, so listings opening at any point still match.
var farFuture = time.Date(2300, time.February, 1, 0, 0, 0, 0, time.UTC)

// Normalize fills zero fields with their defaults.
func (f SearchFilter) Normalize(now time.Time) SearchFilter {
	if f.MinCapacity <= 0 {
		f.MinCapacity = 1
	}
	if f.MaxPrice <= 0 {
		f.MaxPrice = math.MaxFloat64
	}
	if f.StartDate.IsZero() {
		f.StartDate = farFuture
	}
	if f.EndDate.IsZero() {
		f.EndDate = now
	}
	return f
}

// Matches applies the four FindNearby predicates to a listing.
func (f SearchFilter) Matches(l Listing) bool {
	return l.RemSpace >= f.MinCapacity &&
		l.Price <= f.MaxPrice &&
		!l.StartDate.After(f.StartDate) &&
		!l.EndDate.Before(f.EndDate)
}

// ListingRepository persists listings. FindNearby must return matches in
// insertion order; the search engine relies on that as its tie-break.
type ListingRepository interface {
	CreateListing(ctx context.Context, l Listing) (Listing, error)
	GetListing(ctx context.Context, id uuid.UUID) (Listing, error)
	FindNearby(ctx context.Context, filter SearchFilter) ([]Listing, error)
	FindByHost(ctx context.Context, hostID uuid.UUID) ([]Listing, error)

	// ReserveSpace decrements RemSpace by boxes only while RemSpace >= boxes,
	// returning ErrCapacity otherwise. ReleaseSpace is its inverse and is
	// clamped at Capacity.
	ReserveSpace(ctx context.Context, id uuid.UUID, boxes int) (Listing, error)
	ReleaseSpace(ctx context.Context, id uuid.UUID, boxes int) (Listing, error)
}

// RentalRepository persists rentals.
type RentalRepository interface {
	CreateRental(ctx context.Context, r Rental) (Rental, error)
	GetRental(ctx context.Context, id uuid.UUID) (Rental, error)
	ListByRenter(ctx context.Context, renterID uuid.UUID) ([]Rental, error)
	ListByListing(ctx context.Context, listingID uuid.UUID) ([]Rental, error)
	MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) (Rental, error)
}

// IdempotencyRepository caches responses keyed by client idempotency key.
type IdempotencyRepository interface {
	GetResponse(ctx context.Context, key string) ([]byte, bool, error)
	PutResponse(ctx context.Context, key string, payload []byte) error
}

// EventType names the domain events emitted by the service.
type EventType string

const (
	EventListingCreated  EventType = "ListingCreated"
	EventRentalBooked    EventType = "RentalBooked"
	EventRentalCancelled EventType = "RentalCancelled"
)

// Event is published after a state change commits.
type Event struct {
	ID        int64
	ListingID uuid.UUID
	Type      EventType
	Payload   map[string]any
	CreatedAt time.Time
}

// EventPublisher delivers events to interested consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

// SystemClock returns wall-clock UTC time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
