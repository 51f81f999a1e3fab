package occupancy

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/example/boxspot/internal/listing/domain"
)

// Drift compares the remaining space derived from the rental ledger with
// the listing's stored counter and, when available, a measured report.
type Drift struct {
	ListingID  uuid.UUID  `json:"listing_id"`
	Capacity   int        `json:"capacity"`
	RemSpace   int        `json:"rem_space"`
	LedgerFree int        `json:"ledger_free"`
	Reported   *int       `json:"reported,omitempty"`
	ReportedAt *time.Time `json:"reported_at,omitempty"`
	Consistent bool       `json:"consistent"`
}

// Reconciler recomputes a listing's free space from active rentals.
type Reconciler struct {
	listings domain.ListingRepository
	rentals  domain.RentalRepository
	observer *StreamObserver
}

// NewReconciler constructs the reconciler. The observer may be nil when no
// site telemetry is ingested.
func NewReconciler(listings domain.ListingRepository, rentals domain.RentalRepository, observer *StreamObserver) *Reconciler {
	return &Reconciler{listings: listings, rentals: rentals, observer: observer}
}

// Check returns the drift report for one listing. The stored counter is
// consistent when it equals capacity minus the sum of active rental boxes.
func (r *Reconciler) Check(ctx context.Context, listingID uuid.UUID) (Drift, error) {
	listing, err := r.listings.GetListing(ctx, listingID)
	if err != nil {
		return Drift{}, err
	}
	rentals, err := r.rentals.ListByListing(ctx, listingID)
	if err != nil {
		return Drift{}, err
	}

	booked := 0
	for _, rental := range rentals {
		if rental.Status == domain.RentalActive {
			booked += rental.Boxes
		}
	}

	drift := Drift{
		ListingID:  listingID,
		Capacity:   listing.Capacity,
		RemSpace:   listing.RemSpace,
		LedgerFree: listing.Capacity - booked,
	}
	drift.Consistent = drift.RemSpace == drift.LedgerFree

	if r.observer != nil {
		if rep, ok := r.observer.Report(ctx, listingID); ok {
			reported := rep.FreeBoxes
			reportedAt := rep.Updated
			drift.Reported = &reported
			drift.ReportedAt = &reportedAt
		}
	}
	return drift, nil
}
