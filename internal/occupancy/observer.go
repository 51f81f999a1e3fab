// Package occupancy ingests measured occupancy reports from hosts' site
// controllers and reconciles them against the rental ledger.
package occupancy

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Report is the latest measured free space for a listing.
type Report struct {
	ListingID uuid.UUID
	FreeBoxes int
	Updated   time.Time
}

// StreamObserver stores the latest occupancy report per listing.
type StreamObserver struct {
	mu      sync.RWMutex
	reports map[uuid.UUID]Report
}

// NewStreamObserver constructs the observer.
func NewStreamObserver() *StreamObserver {
	return &StreamObserver{reports: make(map[uuid.UUID]Report)}
}

// Update stores a report.
func (o *StreamObserver) Update(_ context.Context, listingID uuid.UUID, freeBoxes int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reports[listingID] = Report{
		ListingID: listingID,
		FreeBoxes: freeBoxes,
		Updated:   time.Now().UTC(),
	}
}

// Report returns the stored report for a listing.
func (o *StreamObserver) Report(_ context.Context, listingID uuid.UUID) (Report, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	rep, ok := o.reports[listingID]
	return rep, ok
}

// All returns every stored report.
func (o *StreamObserver) All() []Report {
	o.mu.RLock()
	defer o.mu.RUnlock()
	res := make([]Report, 0, len(o.reports))
	for _, rep := range o.reports {
		res = append(res, rep)
	}
	return res
}
