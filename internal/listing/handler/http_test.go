package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/boxspot/internal/identity"
	"github.com/example/boxspot/internal/listing/booking"
	"github.com/example/boxspot/internal/listing/handler"
	"github.com/example/boxspot/internal/listing/repository"
	"github.com/example/boxspot/internal/listing/search"
	"github.com/example/boxspot/internal/listing/service"
)

func newServer(t *testing.T) (*httptest.Server, *identity.MemoryDirectory) {
	t.Helper()
	listings := repository.NewMemoryListingRepository()
	rentals := repository.NewMemoryRentalRepository()
	hosts := identity.NewMemoryDirectory()

	engine := search.NewEngine(listings, hosts, nil, nil, nil)
	alloc, err := booking.NewAllocator(listings, rentals, booking.NewMemoryHoldStore(), nil, nil, booking.Config{
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
	})
	require.NoError(t, err)

	svc := service.New(listings, rentals, engine, alloc, hosts, nil, nil, nil, repository.NewMemoryIdempotencyRepo(), nil)
	srv := httptest.NewServer(handler.NewHTTP(svc).Router())
	t.Cleanup(srv.Close)
	return srv, hosts
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// listingWindow keeps the availability window around the present so the
// search defaults (open now, still available) match.
func listingWindow() (string, string) {
	now := time.Now()
	return now.AddDate(-1, 0, 0).Format("2006-01-02"), now.AddDate(1, 0, 0).Format("2006-01-02")
}

func createListing(t *testing.T, srv *httptest.Server, hostID string) map[string]any {
	t.Helper()
	start, end := listingWindow()
	resp := postJSON(t, srv.URL+"/v1/listings", map[string]any{
		"host_id":    hostID,
		"lat":        33.78,
		"lon":        -84.39,
		"capacity":   10,
		"start_date": start,
		"end_date":   end,
		"price":      50,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var listing map[string]any
	decode(t, resp, &listing)
	return listing
}

func TestCreateSearchAndBookFlow(t *testing.T) {
	srv, hosts := newServer(t)
	host := uuid.New()
	hosts.Upsert(context.Background(), identity.Profile{ID: host, FirstName: "Ada", LastName: "Lovelace"})

	listing := createListing(t, srv, host.String())
	listingID := listing["ID"].(string)

	resp, err := http.Get(srv.URL + "/v1/listings/nearby?lat=33.75&lon=-84.40&max_price=60")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var results []map[string]any
	decode(t, resp, &results)
	require.Len(t, results, 1)
	require.InDelta(t, 3.5, results[0]["distance_km"].(float64), 0.1)
	require.Equal(t, "Ada Lovelace", results[0]["host_name"])

	dropoff := time.Now().AddDate(0, 1, 0).Format("2006-01-02")
	pickup := time.Now().AddDate(0, 2, 0).Format("2006-01-02")
	resp = postJSON(t, fmt.Sprintf("%s/v1/listings/%s/rentals", srv.URL, listingID), map[string]any{
		"renter_id": uuid.New().String(),
		"boxes":     4,
		"dropoff":   dropoff,
		"pickup":    pickup,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var booked map[string]any
	decode(t, resp, &booked)
	require.EqualValues(t, 6, booked["rem_space"])

	// Overdraw is a conflict, not a server error.
	resp = postJSON(t, fmt.Sprintf("%s/v1/listings/%s/rentals", srv.URL, listingID), map[string]any{
		"renter_id": uuid.New().String(),
		"boxes":     7,
		"dropoff":   dropoff,
		"pickup":    pickup,
	})
	resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestValidationAndNotFoundStatusCodes(t *testing.T) {
	srv, _ := newServer(t)

	resp := postJSON(t, srv.URL+"/v1/listings", map[string]any{
		"host_id":    uuid.New().String(),
		"lat":        33.78,
		"lon":        -84.39,
		"capacity":   0,
		"start_date": "2024-01-01",
		"end_date":   "2024-12-31",
		"price":      50,
	})
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	getResp, err := http.Get(srv.URL + "/v1/listings/" + uuid.New().String())
	require.NoError(t, err)
	getResp.Body.Close()
	require.Equal(t, http.StatusNotFound, getResp.StatusCode)

	cancelResp, err := http.Post(srv.URL+"/v1/rentals/"+uuid.New().String()+"/cancel", "application/json", nil)
	require.NoError(t, err)
	cancelResp.Body.Close()
	require.Equal(t, http.StatusNotFound, cancelResp.StatusCode)
}

func TestSearchReturnsEmptyArrayNotNull(t *testing.T) {
	srv, _ := newServer(t)
	resp, err := http.Get(srv.URL + "/v1/listings/nearby?lat=0&lon=0")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var raw bytes.Buffer
	_, err = raw.ReadFrom(resp.Body)
	require.NoError(t, err)
	require.JSONEq(t, "[]", raw.String())
}
