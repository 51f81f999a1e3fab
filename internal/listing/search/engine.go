// Package search finds listings matching capacity, price and date
// constraints and ranks them by distance from the query point.
package search

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/boxspot/internal/geo"
	"github.com/example/boxspot/internal/identity"
	"github.com/example/boxspot/internal/listing/domain"
)

// Query is a search request. RadiusKm is optional; zero means unbounded.
type Query struct {
	Lat         float64
	Lon         float64
	MinCapacity int
	MaxPrice    float64
	StartDate   time.Time
	EndDate     time.Time
	RadiusKm    float64
}

// Result pairs a matching listing with its distance from the query point
// and the host's display name.
type Result struct {
	Listing    domain.Listing `json:"listing"`
	DistanceKm float64        `json:"distance_km"`
	HostName   string         `json:"host_name"`
}

// Engine ranks filtered listings by haversine distance. The geo index is
// optional; when present and the query carries a radius it narrows the
// candidate set before the predicate pass.
type Engine struct {
	listings domain.ListingRepository
	hosts    identity.Directory
	index    GeoIndex
	clock    domain.Clock
	logger   *zap.Logger
}

// NewEngine constructs the engine.
func NewEngine(listings domain.ListingRepository, hosts identity.Directory, index GeoIndex, clock domain.Clock, logger *zap.Logger) *Engine {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{listings: listings, hosts: hosts, index: index, clock: clock, logger: logger}
}

// Search returns listings satisfying every query constraint, ascending by
// distance. Ties keep the repository's insertion order, so identical
// inputs over unchanged data always produce the same ordering. An empty
// result set is not an error.
func (e *Engine) Search(ctx context.Context, q Query) ([]Result, error) {
	start := e.clock.Now()

	filter := domain.SearchFilter{
		MinCapacity: q.MinCapacity,
		MaxPrice:    q.MaxPrice,
		StartDate:   q.StartDate,
		EndDate:     q.EndDate,
	}.Normalize(e.clock.Now())

	listings, err := e.listings.FindNearby(ctx, filter)
	if err != nil {
		searchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("find nearby: %w", err)
	}

	if q.RadiusKm > 0 && e.index != nil {
		listings, err = e.narrowByIndex(ctx, q, listings)
		if err != nil {
			// The index is an accelerator, not the source of truth; fall
			// back to the haversine cut below.
			e.logger.Warn("geo index narrow failed", zap.Error(err))
		}
	}

	results := make([]Result, 0, len(listings))
	for _, l := range listings {
		dist := roundKm(geo.Distance(q.Lat, q.Lon, l.Location.Lat, l.Location.Lon, geo.Kilometers))
		if q.RadiusKm > 0 && dist > q.RadiusKm {
			continue
		}
		results = append(results, Result{
			Listing:    l,
			DistanceKm: dist,
			HostName:   e.hostName(ctx, l.HostID),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].DistanceKm < results[j].DistanceKm
	})

	searchDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())
	resultCount.Observe(float64(len(results)))
	return results, nil
}

// narrowByIndex keeps only the candidates the geo index places within the
// query radius, preserving the repository's ordering.
func (e *Engine) narrowByIndex(ctx context.Context, q Query, listings []domain.Listing) ([]domain.Listing, error) {
	ids, err := e.index.Nearby(ctx, domain.GeoPoint{Lat: q.Lat, Lon: q.Lon}, q.RadiusKm, len(listings))
	if err != nil {
		return listings, err
	}
	within := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		within[id] = struct{}{}
	}
	narrowed := listings[:0]
	for _, l := range listings {
		if _, ok := within[l.ID]; ok {
			narrowed = append(narrowed, l)
		}
	}
	return narrowed, nil
}

func (e *Engine) hostName(ctx context.Context, hostID uuid.UUID) string {
	if e.hosts == nil {
		return ""
	}
	profile, ok, err := e.hosts.Profile(ctx, hostID)
	if err != nil {
		e.logger.Warn("host lookup failed", zap.Error(err), zap.String("host_id", hostID.String()))
		return ""
	}
	if !ok {
		return ""
	}
	return profile.DisplayName()
}

// roundKm matches the two-decimal rounding the API exposes.
func roundKm(d float64) float64 {
	return math.Round(d*100) / 100
}
