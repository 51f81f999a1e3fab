package search_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/example/boxspot/internal/identity"
	"github.com/example/boxspot/internal/listing/domain"
	"github.com/example/boxspot/internal/listing/repository"
	"github.com/example/boxspot/internal/listing/search"
)

type stubClock struct{ t time.Time }

func (s stubClock) Now() time.Time { return s.t }

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func seedListing(t *testing.T, repo *repository.MemoryListingRepository, host uuid.UUID, lat, lon float64, remSpace int, price float64) domain.Listing {
	t.Helper()
	l, err := repo.CreateListing(context.Background(), domain.Listing{
		ID:        uuid.New(),
		HostID:    host,
		Location:  domain.GeoPoint{Lat: lat, Lon: lon},
		Capacity:  remSpace,
		RemSpace:  remSpace,
		StartDate: day("2024-01-01"),
		EndDate:   day("2024-12-31"),
		Price:     price,
		Version:   1,
	})
	require.NoError(t, err)
	return l
}

func newEngine(repo *repository.MemoryListingRepository, hosts identity.Directory, index search.GeoIndex) *search.Engine {
	return search.NewEngine(repo, hosts, index, stubClock{t: day("2024-06-15")}, nil)
}

func TestSearchScenarioMidtownAtlanta(t *testing.T) {
	repo := repository.NewMemoryListingRepository()
	hosts := identity.NewMemoryDirectory()
	host := uuid.New()
	hosts.Upsert(context.Background(), identity.Profile{ID: host, FirstName: "Ada", LastName: "Lovelace"})
	seedListing(t, repo, host, 33.78, -84.39, 10, 50)

	results, err := newEngine(repo, hosts, nil).Search(context.Background(), search.Query{
		Lat:      33.75,
		Lon:      -84.40,
		MaxPrice: 60,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.InDelta(t, 3.5, results[0].DistanceKm, 0.1)
	require.Equal(t, "Ada Lovelace", results[0].HostName)
}

func TestSearchFiltersAndRanksByDistance(t *testing.T) {
	repo := repository.NewMemoryListingRepository()
	hosts := identity.NewMemoryDirectory()
	host := uuid.New()

	far := seedListing(t, repo, host, 34.05, -84.39, 5, 40)
	near := seedListing(t, repo, host, 33.76, -84.40, 5, 40)
	seedListing(t, repo, host, 33.76, -84.40, 1, 40)  // excluded: space
	seedListing(t, repo, host, 33.76, -84.40, 5, 200) // excluded: price

	results, err := newEngine(repo, hosts, nil).Search(context.Background(), search.Query{
		Lat:         33.75,
		Lon:         -84.40,
		MinCapacity: 2,
		MaxPrice:    60,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, near.ID, results[0].Listing.ID)
	require.Equal(t, far.ID, results[1].Listing.ID)
	require.Less(t, results[0].DistanceKm, results[1].DistanceKm)
}

func TestSearchDeterministicOrderOnTies(t *testing.T) {
	repo := repository.NewMemoryListingRepository()
	host := uuid.New()

	// Same coordinates, so identical distances; insertion order breaks the tie.
	first := seedListing(t, repo, host, 33.76, -84.40, 5, 40)
	second := seedListing(t, repo, host, 33.76, -84.40, 5, 40)
	third := seedListing(t, repo, host, 33.76, -84.40, 5, 40)

	engine := newEngine(repo, identity.NewMemoryDirectory(), nil)
	want := []uuid.UUID{first.ID, second.ID, third.ID}
	for i := 0; i < 5; i++ {
		results, err := engine.Search(context.Background(), search.Query{Lat: 33.75, Lon: -84.40})
		require.NoError(t, err)
		require.Len(t, results, 3)
		got := []uuid.UUID{results[0].Listing.ID, results[1].Listing.ID, results[2].Listing.ID}
		require.Equal(t, want, got)
	}
}

func TestSearchEmptyResultIsNotAnError(t *testing.T) {
	repo := repository.NewMemoryListingRepository()
	results, err := newEngine(repo, identity.NewMemoryDirectory(), nil).Search(context.Background(), search.Query{Lat: 0, Lon: 0})
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestSearchRadiusCutsDistantListings(t *testing.T) {
	repo := repository.NewMemoryListingRepository()
	host := uuid.New()
	near := seedListing(t, repo, host, 33.76, -84.40, 5, 40)
	seedListing(t, repo, host, 34.75, -84.40, 5, 40) // ~111 km away

	results, err := newEngine(repo, identity.NewMemoryDirectory(), nil).Search(context.Background(), search.Query{
		Lat: 33.75, Lon: -84.40, RadiusKm: 10,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, near.ID, results[0].Listing.ID)
}

func TestSearchUsesGeoIndexWhenConfigured(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	repo := repository.NewMemoryListingRepository()
	host := uuid.New()
	index := search.NewRedisGeoIndex(client, "")
	ctx := context.Background()

	near := seedListing(t, repo, host, 33.76, -84.40, 5, 40)
	farAway := seedListing(t, repo, host, 34.75, -84.40, 5, 40)
	require.NoError(t, index.UpsertLocation(ctx, near.ID, near.Location))
	require.NoError(t, index.UpsertLocation(ctx, farAway.ID, farAway.Location))

	engine := newEngine(repo, identity.NewMemoryDirectory(), index)
	results, err := engine.Search(ctx, search.Query{Lat: 33.75, Lon: -84.40, RadiusKm: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, near.ID, results[0].Listing.ID)
}
