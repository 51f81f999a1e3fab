package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/boxspot/internal/identity"
	"github.com/example/boxspot/internal/listing/booking"
	"github.com/example/boxspot/internal/listing/domain"
	"github.com/example/boxspot/internal/listing/search"
)

// Service coordinates listing operations between handlers, the search
// engine and the capacity allocator.
type Service struct {
	listings   domain.ListingRepository
	rentals    domain.RentalRepository
	engine     *search.Engine
	allocator  *booking.Allocator
	hosts      identity.Directory
	index      search.GeoIndex
	events     domain.EventPublisher
	clock      domain.Clock
	idempotent domain.IdempotencyRepository
	logger     *zap.Logger
}

// New constructs a Service with the required collaborators.
func New(listings domain.ListingRepository, rentals domain.RentalRepository, engine *search.Engine, allocator *booking.Allocator, hosts identity.Directory, index search.GeoIndex, events domain.EventPublisher, clock domain.Clock, idem domain.IdempotencyRepository, logger *zap.Logger) *Service {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		listings:   listings,
		rentals:    rentals,
		engine:     engine,
		allocator:  allocator,
		hosts:      hosts,
		index:      index,
		events:     events,
		clock:      clock,
		idempotent: idem,
		logger:     logger,
	}
}

// CreateListingRequest contains the payload for offering storage space.
type CreateListingRequest struct {
	HostID    uuid.UUID
	Location  domain.GeoPoint
	Capacity  int
	StartDate time.Time
	EndDate   time.Time
	Price     float64
	ImageURL  string
}

// CreateListing validates and persists a new listing with its full
// capacity unbooked.
func (s *Service) CreateListing(ctx context.Context, req CreateListingRequest) (domain.Listing, error) {
	if req.Capacity < 1 {
		return domain.Listing{}, domain.Invalid("capacity", "must be at least 1")
	}
	if req.Price < 0 {
		return domain.Listing{}, domain.Invalid("price", "must not be negative")
	}
	if !req.Location.InRange() {
		return domain.Listing{}, domain.Invalid("location", "coordinates out of range")
	}
	if req.EndDate.Before(req.StartDate) {
		return domain.Listing{}, domain.Invalid("dates", "start date must not follow end date")
	}

	now := s.clock.Now()
	listing := domain.Listing{
		ID:        uuid.New(),
		HostID:    req.HostID,
		Location:  req.Location,
		Capacity:  req.Capacity,
		RemSpace:  req.Capacity,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Price:     req.Price,
		ImageURL:  req.ImageURL,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}

	created, err := s.listings.CreateListing(ctx, listing)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("create listing: %w", err)
	}

	if s.index != nil {
		if err := s.index.UpsertLocation(ctx, created.ID, created.Location); err != nil {
			s.logger.Warn("geo index upsert failed", zap.Error(err), zap.String("listing_id", created.ID.String()))
		}
	}

	s.publish(ctx, domain.Event{
		ListingID: created.ID,
		Type:      domain.EventListingCreated,
		Payload:   map[string]any{"host_id": created.HostID.String(), "capacity": created.Capacity},
	})
	return created, nil
}

// ListingDetail joins a listing with its host's profile.
type ListingDetail struct {
	Listing domain.Listing   `json:"listing"`
	Host    identity.Profile `json:"host"`
}

// GetListing retrieves a listing with its host resolved.
func (s *Service) GetListing(ctx context.Context, id uuid.UUID) (ListingDetail, error) {
	listing, err := s.listings.GetListing(ctx, id)
	if err != nil {
		return ListingDetail{}, err
	}
	detail := ListingDetail{Listing: listing}
	if s.hosts != nil {
		if profile, ok, err := s.hosts.Profile(ctx, listing.HostID); err == nil && ok {
			detail.Host = profile
		}
	}
	return detail, nil
}

// HostListings returns a host's listings, latest-ending first.
func (s *Service) HostListings(ctx context.Context, hostID uuid.UUID) ([]domain.Listing, error) {
	return s.listings.FindByHost(ctx, hostID)
}

// RenterHistory returns a renter's full booking history.
func (s *Service) RenterHistory(ctx context.Context, renterID uuid.UUID) ([]domain.Rental, error) {
	return s.rentals.ListByRenter(ctx, renterID)
}

// Search delegates to the search engine.
func (s *Service) Search(ctx context.Context, q search.Query) ([]search.Result, error) {
	return s.engine.Search(ctx, q)
}

// BookResponse returns the created rental and the listing's remaining
// space after the decrement.
type BookResponse struct {
	Rental   domain.Rental `json:"rental"`
	RemSpace int           `json:"rem_space"`
}

// Book allocates capacity for a rental, replaying a cached response when
// the idempotency key has been seen before.
func (s *Service) Book(ctx context.Context, key string, req booking.BookRequest) (BookResponse, error) {
	if key != "" && s.idempotent != nil {
		if cached, ok, err := s.idempotent.GetResponse(ctx, key); err == nil && ok {
			var resp BookResponse
			if err := json.Unmarshal(cached, &resp); err == nil {
				return resp, nil
			}
		}
	}

	rental, err := s.allocator.Book(ctx, req)
	if err != nil {
		return BookResponse{}, err
	}

	listing, err := s.listings.GetListing(ctx, rental.ListingID)
	if err != nil {
		return BookResponse{}, err
	}
	resp := BookResponse{Rental: rental, RemSpace: listing.RemSpace}

	s.publish(ctx, domain.Event{
		ListingID: rental.ListingID,
		Type:      domain.EventRentalBooked,
		Payload: map[string]any{
			"rental_id": rental.ID.String(),
			"renter_id": rental.RenterID.String(),
			"boxes":     rental.Boxes,
		},
	})

	if key != "" && s.idempotent != nil {
		if payload, err := json.Marshal(resp); err == nil {
			_ = s.idempotent.PutResponse(ctx, key, payload)
		}
	}
	return resp, nil
}

// Cancel reverses a booking and restores the listing's space.
func (s *Service) Cancel(ctx context.Context, rentalID uuid.UUID) (domain.Rental, error) {
	cancelled, err := s.allocator.Cancel(ctx, rentalID)
	if err != nil {
		return domain.Rental{}, err
	}
	s.publish(ctx, domain.Event{
		ListingID: cancelled.ListingID,
		Type:      domain.EventRentalCancelled,
		Payload:   map[string]any{"rental_id": cancelled.ID.String(), "boxes": cancelled.Boxes},
	})
	return cancelled, nil
}

func (s *Service) publish(ctx context.Context, event domain.Event) {
	if s.events == nil {
		return
	}
	event.CreatedAt = s.clock.Now()
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", zap.Error(err), zap.String("type", string(event.Type)))
	}
}
