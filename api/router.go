// Package api assembles the HTTP surface: the unauthenticated registry
// webhook plus the token-protected mobile and unit route groups.
package api

import (
	"github.com/gorilla/mux"

	"github.com/vehicleplus/sums/api/mobile"
	"github.com/vehicleplus/sums/api/registry"
	"github.com/vehicleplus/sums/api/unit"
	"github.com/vehicleplus/sums/auth"
)

// NewRouter builds the full route tree under /OTA. The registry webhook is
// left unauthenticated; registries sign nothing useful, so deployments fence
// it off at the network layer instead.
func NewRouter(verifier *auth.Verifier, mobileH *mobile.Handler, unitH *unit.Handler, registryH *registry.Handler) *mux.Router {
	r := mux.NewRouter()
	ota := r.PathPrefix("/OTA").Subrouter()

	registryH.Register(ota)

	mobileRoutes := ota.PathPrefix("/mobile").Subrouter()
	mobileRoutes.Use(verifier.Middleware)
	mobileH.Register(mobileRoutes)

	unitRoutes := ota.PathPrefix("/TCU").Subrouter()
	unitRoutes.Use(verifier.Middleware)
	unitH.Register(unitRoutes)

	return r
}
