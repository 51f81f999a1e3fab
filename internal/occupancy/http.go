package occupancy

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/example/boxspot/internal/listing/domain"
)

// HTTP exposes the /v1/occupancy endpoints.
type HTTP struct {
	recon *Reconciler
}

// NewHTTP creates the handler.
func NewHTTP(recon *Reconciler) *HTTP {
	return &HTTP{recon: recon}
}

// Router builds the chi router. The caller mounts it under /v1/occupancy.
func (h *HTTP) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/{id}", h.check)
	return r
}

func (h *HTTP) check(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	drift, err := h.recon.Check(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(drift)
}
