package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/boxspot/internal/identity"
	"github.com/example/boxspot/internal/listing/booking"
	"github.com/example/boxspot/internal/listing/domain"
	"github.com/example/boxspot/internal/listing/repository"
	"github.com/example/boxspot/internal/listing/search"
	"github.com/example/boxspot/internal/listing/service"
)

type stubPublisher struct{ events []domain.Event }

func (s *stubPublisher) Publish(_ context.Context, event domain.Event) error {
	s.events = append(s.events, event)
	return nil
}

type stubClock struct{ t time.Time }

func (s stubClock) Now() time.Time { return s.t }

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

type fixture struct {
	svc       *service.Service
	listings  *repository.MemoryListingRepository
	rentals   *repository.MemoryRentalRepository
	hosts     *identity.MemoryDirectory
	publisher *stubPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	listings := repository.NewMemoryListingRepository()
	rentals := repository.NewMemoryRentalRepository()
	hosts := identity.NewMemoryDirectory()
	publisher := &stubPublisher{}
	clock := stubClock{t: day("2024-01-15")}

	engine := search.NewEngine(listings, hosts, nil, clock, nil)
	alloc, err := booking.NewAllocator(listings, rentals, booking.NewMemoryHoldStore(), clock, nil, booking.Config{
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
	})
	require.NoError(t, err)

	svc := service.New(listings, rentals, engine, alloc, hosts, nil, publisher, clock, repository.NewMemoryIdempotencyRepo(), nil)
	return &fixture{svc: svc, listings: listings, rentals: rentals, hosts: hosts, publisher: publisher}
}

func validCreate(host uuid.UUID) service.CreateListingRequest {
	return service.CreateListingRequest{
		HostID:    host,
		Location:  domain.GeoPoint{Lat: 33.78, Lon: -84.39},
		Capacity:  10,
		StartDate: day("2024-01-01"),
		EndDate:   day("2024-12-31"),
		Price:     50,
	}
}

func TestCreateListingStartsWithFullCapacity(t *testing.T) {
	f := newFixture(t)
	listing, err := f.svc.CreateListing(context.Background(), validCreate(uuid.New()))
	require.NoError(t, err)
	require.Equal(t, 10, listing.Capacity)
	require.Equal(t, 10, listing.RemSpace)
	require.NotEqual(t, uuid.Nil, listing.ID)

	require.Len(t, f.publisher.events, 1)
	require.Equal(t, domain.EventListingCreated, f.publisher.events[0].Type)
}

func TestCreateListingValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var verr *domain.ValidationError

	req := validCreate(uuid.New())
	req.Capacity = 0
	_, err := f.svc.CreateListing(ctx, req)
	require.ErrorAs(t, err, &verr)

	req = validCreate(uuid.New())
	req.Price = -1
	_, err = f.svc.CreateListing(ctx, req)
	require.ErrorAs(t, err, &verr)

	req = validCreate(uuid.New())
	req.Location = domain.GeoPoint{Lat: 91, Lon: 0}
	_, err = f.svc.CreateListing(ctx, req)
	require.ErrorAs(t, err, &verr)

	req = validCreate(uuid.New())
	req.StartDate = day("2024-12-31")
	req.EndDate = day("2024-01-01")
	_, err = f.svc.CreateListing(ctx, req)
	require.ErrorAs(t, err, &verr)
}

func TestGetListingResolvesHostProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	host := uuid.New()
	f.hosts.Upsert(ctx, identity.Profile{ID: host, FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com"})

	listing, err := f.svc.CreateListing(ctx, validCreate(host))
	require.NoError(t, err)

	detail, err := f.svc.GetListing(ctx, listing.ID)
	require.NoError(t, err)
	require.Equal(t, "Grace Hopper", detail.Host.DisplayName())

	_, err = f.svc.GetListing(ctx, uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBookPublishesEventAndReportsRemainingSpace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	listing, err := f.svc.CreateListing(ctx, validCreate(uuid.New()))
	require.NoError(t, err)

	resp, err := f.svc.Book(ctx, "", booking.BookRequest{
		ListingID: listing.ID, RenterID: uuid.New(), Boxes: 4,
		Dropoff: day("2024-02-01"), Pickup: day("2024-03-01"),
	})
	require.NoError(t, err)
	require.Equal(t, 6, resp.RemSpace)

	require.Len(t, f.publisher.events, 2)
	require.Equal(t, domain.EventRentalBooked, f.publisher.events[1].Type)
}

func TestBookIdempotencyReplaysCachedResponse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	listing, err := f.svc.CreateListing(ctx, validCreate(uuid.New()))
	require.NoError(t, err)

	renter := uuid.New()
	req := booking.BookRequest{
		ListingID: listing.ID, RenterID: renter, Boxes: 4,
		Dropoff: day("2024-02-01"), Pickup: day("2024-03-01"),
	}
	resp, err := f.svc.Book(ctx, "key-1", req)
	require.NoError(t, err)

	replay, err := f.svc.Book(ctx, "key-1", req)
	require.NoError(t, err)
	require.Equal(t, resp.Rental.ID, replay.Rental.ID)
	require.Equal(t, resp.RemSpace, replay.RemSpace)

	// No second decrement happened.
	updated, err := f.svc.GetListing(ctx, listing.ID)
	require.NoError(t, err)
	require.Equal(t, 6, updated.Listing.RemSpace)
}

func TestCancelRestoresSpaceAndPublishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	listing, err := f.svc.CreateListing(ctx, validCreate(uuid.New()))
	require.NoError(t, err)

	resp, err := f.svc.Book(ctx, "", booking.BookRequest{
		ListingID: listing.ID, RenterID: uuid.New(), Boxes: 4,
		Dropoff: day("2024-02-01"), Pickup: day("2024-03-01"),
	})
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, resp.Rental.ID)
	require.NoError(t, err)
	require.Equal(t, domain.RentalCancelled, cancelled.Status)

	updated, err := f.svc.GetListing(ctx, listing.ID)
	require.NoError(t, err)
	require.Equal(t, 10, updated.Listing.RemSpace)

	require.Equal(t, domain.EventRentalCancelled, f.publisher.events[len(f.publisher.events)-1].Type)
}

func TestRenterHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	listing, err := f.svc.CreateListing(ctx, validCreate(uuid.New()))
	require.NoError(t, err)

	renter := uuid.New()
	_, err = f.svc.Book(ctx, "", booking.BookRequest{
		ListingID: listing.ID, RenterID: renter, Boxes: 2,
		Dropoff: day("2024-02-01"), Pickup: day("2024-03-01"),
	})
	require.NoError(t, err)
	_, err = f.svc.Book(ctx, "", booking.BookRequest{
		ListingID: listing.ID, RenterID: renter, Boxes: 1,
		Dropoff: day("2024-05-01"), Pickup: day("2024-06-01"),
	})
	require.NoError(t, err)

	history, err := f.svc.RenterHistory(ctx, renter)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, day("2024-05-01"), history[0].Dropoff)
}
