// Package unit exposes the endpoints a head unit or TCU polls on wake-up:
// the rendered manifest, the image pre-pull list and the acknowledgement
// callback.
package unit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vehicleplus/sums/auth"
	"github.com/vehicleplus/sums/core/catalog"
	"github.com/vehicleplus/sums/core/logger"
	"github.com/vehicleplus/sums/core/reconcile"
)

// Handler serves the unit-facing reconciliation endpoints.
type Handler struct {
	rec      *reconcile.Reconciler
	renderer reconcile.Renderer
	log      logger.Logger
}

// NewHandler creates a Handler backed by the reconciler and a manifest
// renderer.
func NewHandler(rec *reconcile.Reconciler, renderer reconcile.Renderer, log logger.Logger) *Handler {
	return &Handler{rec: rec, renderer: renderer, log: log}
}

// Register mounts the unit routes on the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/features", h.manifest).Methods(http.MethodGet)
	r.HandleFunc("/images", h.images).Methods(http.MethodGet)
	r.HandleFunc("/ack", h.acknowledge).Methods(http.MethodPost)
}

type ackRequest struct {
	FeatureID int64 `json:"feature_id"`
	Action    int   `json:"action"`
}

func (h *Handler) manifest(w http.ResponseWriter, r *http.Request) {
	mac, ok := unitMAC(r)
	if !ok {
		http.Error(w, "unit token required", http.StatusUnauthorized)
		return
	}
	m, changed, err := h.rec.ComputeManifest(r.Context(), mac)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if !changed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	body, err := h.renderer.Render(m)
	if err != nil {
		h.log.Errorf("render manifest for %s: %v", mac, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", h.renderer.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.renderer.Filename()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.log.Errorf("write manifest: %v", err)
	}
}

func (h *Handler) images(w http.ResponseWriter, r *http.Request) {
	mac, ok := unitMAC(r)
	if !ok {
		http.Error(w, "unit token required", http.StatusUnauthorized)
		return
	}
	refs, err := h.rec.PendingImages(r.Context(), mac)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if refs == nil {
		refs = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string][]string{"images": refs})
}

func (h *Handler) acknowledge(w http.ResponseWriter, r *http.Request) {
	mac, ok := unitMAC(r)
	if !ok {
		http.Error(w, "unit token required", http.StatusUnauthorized)
		return
	}
	var req ackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.rec.Acknowledge(r.Context(), mac, req.FeatureID, reconcile.Action(req.Action)); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, reconcile.ErrMissingFeature), errors.Is(err, reconcile.ErrInvalidAction):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.Errorf("unit handler: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func unitMAC(r *http.Request) (string, bool) {
	id, ok := auth.FromContext(r.Context())
	if !ok || !id.Unit || id.MAC == "" {
		return "", false
	}
	return id.MAC, true
}
