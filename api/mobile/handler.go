// Package mobile exposes the feature lifecycle endpoints used by the
// companion app: listing feature states, fetching display images and setting
// installation intent for the paired vehicle.
package mobile

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/vehicleplus/sums/auth"
	"github.com/vehicleplus/sums/core/catalog"
	"github.com/vehicleplus/sums/core/desired"
	"github.com/vehicleplus/sums/core/logger"
)

// Handler serves the mobile feature endpoints.
type Handler struct {
	ctrl *desired.Controller
	log  logger.Logger
}

// NewHandler creates a Handler backed by the desired-state controller.
func NewHandler(ctrl *desired.Controller, log logger.Logger) *Handler {
	return &Handler{ctrl: ctrl, log: log}
}

// Register mounts the mobile routes on the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/features", h.list).Methods(http.MethodGet)
	r.HandleFunc("/features", h.activate).Methods(http.MethodPut)
	r.HandleFunc("/features", h.deactivate).Methods(http.MethodDelete)
	r.HandleFunc("/features/images/{featureID}", h.image).Methods(http.MethodGet)
}

type intentRequest struct {
	FeatureID int64 `json:"feature_id"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := callerDevice(r)
	if !ok {
		http.Error(w, "mobile token required", http.StatusUnauthorized)
		return
	}
	states, err := h.ctrl.ListFeatureStates(r.Context(), deviceID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, states)
}

func (h *Handler) image(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerDevice(r); !ok {
		http.Error(w, "mobile token required", http.StatusUnauthorized)
		return
	}
	featureID, err := strconv.ParseInt(mux.Vars(r)["featureID"], 10, 64)
	if err != nil {
		http.Error(w, "invalid feature id", http.StatusBadRequest)
		return
	}
	img, err := h.ctrl.FeatureImage(r.Context(), featureID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(img))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(img); err != nil {
		h.log.Errorf("write image: %v", err)
	}
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, h.ctrl.Activate)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, h.ctrl.Deactivate)
}

func (h *Handler) intent(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, deviceID string, featureID int64) (desired.Outcome, error)) {
	deviceID, ok := callerDevice(r)
	if !ok {
		http.Error(w, "mobile token required", http.StatusUnauthorized)
		return
	}
	var req intentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	out, err := op(r.Context(), deviceID, req.FeatureID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrUnknownIdentity):
		http.Error(w, "unknown device", http.StatusUnauthorized)
	case errors.Is(err, catalog.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, desired.ErrMissingFeature):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.Errorf("mobile handler: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func callerDevice(r *http.Request) (string, bool) {
	id, ok := auth.FromContext(r.Context())
	if !ok || id.Unit || id.DeviceID == "" {
		return "", false
	}
	return id.DeviceID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
