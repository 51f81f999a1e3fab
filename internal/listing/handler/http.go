package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/example/boxspot/internal/listing/booking"
	"github.com/example/boxspot/internal/listing/domain"
	"github.com/example/boxspot/internal/listing/search"
	"github.com/example/boxspot/internal/listing/service"
)

// HTTP exposes the listing, search and booking endpoints.
type HTTP struct {
	svc *service.Service
}

// NewHTTP constructs a handler.
func NewHTTP(svc *service.Service) *HTTP {
	return &HTTP{svc: svc}
}

// Router builds the chi router with all endpoints and middlewares.
func (h *HTTP) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Post("/v1/listings", h.createListing)
	r.Get("/v1/listings/nearby", h.searchNearby)
	r.Get("/v1/listings/{id}", h.getListing)
	r.Post("/v1/listings/{id}/rentals", h.bookListing)
	r.Get("/v1/hosts/{id}/listings", h.hostListings)
	r.Post("/v1/rentals/{id}/cancel", h.cancelRental)
	r.Get("/v1/renters/{id}/rentals", h.renterHistory)
	return r
}

type createListingRequest struct {
	HostID    string  `json:"host_id"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Capacity  int     `json:"capacity"`
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
	Price     float64 `json:"price"`
	ImageURL  string  `json:"image_url,omitempty"`
}

func (h *HTTP) createListing(w http.ResponseWriter, r *http.Request) {
	var payload createListingRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	hostID, err := uuid.Parse(payload.HostID)
	if err != nil {
		http.Error(w, "invalid host_id", http.StatusBadRequest)
		return
	}
	startDate, err := parseDate(payload.StartDate)
	if err != nil {
		http.Error(w, "invalid start_date", http.StatusBadRequest)
		return
	}
	endDate, err := parseDate(payload.EndDate)
	if err != nil {
		http.Error(w, "invalid end_date", http.StatusBadRequest)
		return
	}

	listing, err := h.svc.CreateListing(r.Context(), service.CreateListingRequest{
		HostID:    hostID,
		Location:  domain.GeoPoint{Lat: payload.Lat, Lon: payload.Lon},
		Capacity:  payload.Capacity,
		StartDate: startDate,
		EndDate:   endDate,
		Price:     payload.Price,
		ImageURL:  payload.ImageURL,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, listing)
}

func (h *HTTP) getListing(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	detail, err := h.svc.GetListing(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *HTTP) searchNearby(w http.ResponseWriter, r *http.Request) {
	q := search.Query{
		Lat:      parseQueryFloat(r, "lat"),
		Lon:      parseQueryFloat(r, "lon"),
		MaxPrice: parseQueryFloat(r, "max_price"),
		RadiusKm: parseQueryFloat(r, "radius_km"),
	}
	if v := r.URL.Query().Get("min_capacity"); v != "" {
		q.MinCapacity, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("start_date"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			http.Error(w, "invalid start_date", http.StatusBadRequest)
			return
		}
		q.StartDate = t
	}
	if v := r.URL.Query().Get("end_date"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			http.Error(w, "invalid end_date", http.StatusBadRequest)
			return
		}
		q.EndDate = t
	}

	results, err := h.svc.Search(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	if results == nil {
		results = []search.Result{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *HTTP) hostListings(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	listings, err := h.svc.HostListings(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

type bookRequest struct {
	RenterID string `json:"renter_id"`
	Boxes    int    `json:"boxes"`
	Dropoff  string `json:"dropoff"`
	Pickup   string `json:"pickup"`
}

func (h *HTTP) bookListing(w http.ResponseWriter, r *http.Request) {
	listingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var payload bookRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	renterID, err := uuid.Parse(payload.RenterID)
	if err != nil {
		http.Error(w, "invalid renter_id", http.StatusBadRequest)
		return
	}
	dropoff, err := parseDate(payload.Dropoff)
	if err != nil {
		http.Error(w, "invalid dropoff", http.StatusBadRequest)
		return
	}
	pickup, err := parseDate(payload.Pickup)
	if err != nil {
		http.Error(w, "invalid pickup", http.StatusBadRequest)
		return
	}

	resp, err := h.svc.Book(r.Context(), r.Header.Get("Idempotency-Key"), booking.BookRequest{
		ListingID: listingID,
		RenterID:  renterID,
		Boxes:     payload.Boxes,
		Dropoff:   dropoff,
		Pickup:    pickup,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *HTTP) cancelRental(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	cancelled, err := h.svc.Cancel(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelled)
}

func (h *HTTP) renterHistory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	history, err := h.svc.RenterHistory(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if history == nil {
		history = []domain.Rental{}
	}
	writeJSON(w, http.StatusOK, history)
}

// writeError maps the domain error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		http.Error(w, verr.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrCapacity), errors.Is(err, domain.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

func parseQueryFloat(r *http.Request, key string) float64 {
	v, _ := strconv.ParseFloat(r.URL.Query().Get(key), 64)
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
