package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/example/boxspot/internal/listing/domain"
)

// Config tunes the allocator's hold-contention retry behaviour.
type Config struct {
	MaxAttempts int
	Backoff     time.Duration
	HoldTTL     time.Duration
}

// Allocator mutates a listing's remaining space as rentals are created and
// cancelled. Every mutation happens under a per-listing hold so the
// read-check-decrement is atomic with respect to concurrent bookings.
type Allocator struct {
	listings domain.ListingRepository
	rentals  domain.RentalRepository
	holds    HoldStore
	clock    domain.Clock
	logger   *zap.Logger
	cfg      Config
	tracer   trace.Tracer
}

// NewAllocator constructs the allocator.
func NewAllocator(listings domain.ListingRepository, rentals domain.RentalRepository, holds HoldStore, clock domain.Clock, logger *zap.Logger, cfg Config) (*Allocator, error) {
	if listings == nil || rentals == nil {
		return nil, errors.New("listing and rental repositories are required")
	}
	if holds == nil {
		return nil, errors.New("hold store is required")
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 50 * time.Millisecond
	}
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = 5 * time.Second
	}
	return &Allocator{
		listings: listings,
		rentals:  rentals,
		holds:    holds,
		clock:    clock,
		logger:   logger,
		cfg:      cfg,
		tracer:   otel.Tracer("listing.booking"),
	}, nil
}

// BookRequest describes a booking attempt against a listing.
type BookRequest struct {
	ListingID uuid.UUID
	RenterID  uuid.UUID
	Boxes     int
	Dropoff   time.Time
	Pickup    time.Time
}

// Book decrements the listing's remaining space by req.Boxes and records a
// rental, as one atomic unit. On any failure no partial state is left
// behind. A contended hold is retried with exponential backoff before the
// attempt is given up as a conflict.
func (a *Allocator) Book(ctx context.Context, req BookRequest) (domain.Rental, error) {
	ctx, span := a.tracer.Start(ctx, "booking.book")
	defer span.End()
	start := a.clock.Now()

	if req.Boxes < 1 {
		bookingDuration.WithLabelValues("invalid").Observe(time.Since(start).Seconds())
		return domain.Rental{}, domain.Invalid("boxes", "must be at least 1")
	}
	if req.Pickup.Before(req.Dropoff) {
		bookingDuration.WithLabelValues("invalid").Observe(time.Since(start).Seconds())
		return domain.Rental{}, domain.Invalid("pickup", "must not precede dropoff")
	}

	for attempt := 0; attempt < a.cfg.MaxAttempts; attempt++ {
		held, err := a.holds.TryHold(ctx, req.ListingID, a.cfg.HoldTTL)
		if err != nil {
			bookingDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
			return domain.Rental{}, fmt.Errorf("acquire hold: %w", err)
		}
		if held {
			rental, err := a.bookHeld(ctx, req)
			if relErr := a.holds.Release(ctx, req.ListingID); relErr != nil {
				a.logger.Warn("release hold failed", zap.Error(relErr), zap.String("listing_id", req.ListingID.String()))
			}
			bookingDuration.WithLabelValues(resultLabel(err)).Observe(time.Since(start).Seconds())
			if err == nil {
				boxesBooked.Add(float64(req.Boxes))
			}
			return rental, err
		}

		holdContention.Inc()
		if attempt < a.cfg.MaxAttempts-1 {
			backoff := a.cfg.Backoff << attempt
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return domain.Rental{}, ctx.Err()
			}
		}
	}

	bookingDuration.WithLabelValues("conflict").Observe(time.Since(start).Seconds())
	return domain.Rental{}, domain.ErrConflict
}

// bookHeld runs the critical section. The caller owns the listing hold.
func (a *Allocator) bookHeld(ctx context.Context, req BookRequest) (domain.Rental, error) {
	listing, err := a.listings.GetListing(ctx, req.ListingID)
	if err != nil {
		return domain.Rental{}, err
	}
	if req.Dropoff.Before(listing.StartDate) || req.Pickup.After(listing.EndDate) {
		return domain.Rental{}, domain.Invalid("dates", "rental must fall within the listing window")
	}

	if _, err := a.listings.ReserveSpace(ctx, req.ListingID, req.Boxes); err != nil {
		return domain.Rental{}, err
	}

	rental := domain.Rental{
		ID:        uuid.New(),
		ListingID: req.ListingID,
		RenterID:  req.RenterID,
		Boxes:     req.Boxes,
		Dropoff:   req.Dropoff,
		Pickup:    req.Pickup,
		Status:    domain.RentalActive,
		CreatedAt: a.clock.Now(),
	}
	created, err := a.rentals.CreateRental(ctx, rental)
	if err != nil {
		// Roll the decrement back so no partial state is visible.
		if _, relErr := a.listings.ReleaseSpace(ctx, req.ListingID, req.Boxes); relErr != nil {
			a.logger.Error("capacity rollback failed", zap.Error(relErr), zap.String("listing_id", req.ListingID.String()))
		}
		return domain.Rental{}, fmt.Errorf("create rental: %w", err)
	}
	return created, nil
}

// Cancel reverses a booking: the rental is marked cancelled and its boxes
// are returned to the listing.
func (a *Allocator) Cancel(ctx context.Context, rentalID uuid.UUID) (domain.Rental, error) {
	ctx, span := a.tracer.Start(ctx, "booking.cancel")
	defer span.End()

	rental, err := a.rentals.GetRental(ctx, rentalID)
	if err != nil {
		return domain.Rental{}, err
	}

	for attempt := 0; attempt < a.cfg.MaxAttempts; attempt++ {
		held, err := a.holds.TryHold(ctx, rental.ListingID, a.cfg.HoldTTL)
		if err != nil {
			return domain.Rental{}, fmt.Errorf("acquire hold: %w", err)
		}
		if held {
			cancelled, err := a.cancelHeld(ctx, rentalID)
			if relErr := a.holds.Release(ctx, rental.ListingID); relErr != nil {
				a.logger.Warn("release hold failed", zap.Error(relErr), zap.String("listing_id", rental.ListingID.String()))
			}
			return cancelled, err
		}

		holdContention.Inc()
		if attempt < a.cfg.MaxAttempts-1 {
			backoff := a.cfg.Backoff << attempt
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return domain.Rental{}, ctx.Err()
			}
		}
	}
	return domain.Rental{}, domain.ErrConflict
}

func (a *Allocator) cancelHeld(ctx context.Context, rentalID uuid.UUID) (domain.Rental, error) {
	cancelled, err := a.rentals.MarkCancelled(ctx, rentalID, a.clock.Now())
	if err != nil {
		return domain.Rental{}, err
	}
	if _, err := a.listings.ReleaseSpace(ctx, cancelled.ListingID, cancelled.Boxes); err != nil {
		return domain.Rental{}, fmt.Errorf("release space: %w", err)
	}
	return cancelled, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrCapacity):
		return "capacity"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return "invalid"
		}
		return "error"
	}
}
