// Package registry receives container registry webhook notifications and
// feeds them to the catalog ingestor.
package registry

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vehicleplus/sums/core/ingest"
	"github.com/vehicleplus/sums/core/logger"
)

// Handler serves the registry webhook endpoint.
type Handler struct {
	ing *ingest.Ingestor
	log logger.Logger
}

// NewHandler creates a Handler backed by the ingestor.
func NewHandler(ing *ingest.Ingestor, log logger.Logger) *Handler {
	return &Handler{ing: ing, log: log}
}

// Register mounts the webhook route on the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/notify", h.notify).Methods(http.MethodPost)
}

func (h *Handler) notify(w http.ResponseWriter, r *http.Request) {
	var n ingest.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		http.Error(w, "invalid notification body", http.StatusBadRequest)
		return
	}
	res := h.ing.Apply(r.Context(), n)
	h.log.Debugf("registry batch: %d created, %d updated, %d skipped, %d failed",
		res.Created, res.Updated, res.Skipped, res.Failed)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(res)
}
