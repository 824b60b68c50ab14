package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/vehicleplus/sums/core/model"
)

var (
	// ErrNotFound is returned when a referenced entity or record is absent.
	ErrNotFound = errors.New("not found")
	// ErrUnknownIdentity is returned when an authenticated claim does not
	// resolve to a known device or unit.
	ErrUnknownIdentity = errors.New("unknown identity")
)

// AppStore persists the container image catalog fed by registry events.
type AppStore interface {
	AppByID(ctx context.Context, id int64) (model.App, error)
	AppByRepoTag(ctx context.Context, repo, tag string) (model.App, error)
	InsertApp(ctx context.Context, app model.App) (int64, error)
	// TouchApp refreshes the latest-update timestamp of an existing app.
	// Returns ErrNotFound when no app matches repo and tag.
	TouchApp(ctx context.Context, repo, tag string, at time.Time) error
}

// FeatureStore reads and mutates the feature catalog.
type FeatureStore interface {
	FeatureByID(ctx context.Context, id int64) (model.Feature, error)
	// FeaturesForModel returns every feature joined through the model-feature
	// compatibility edge for the given vehicle model.
	FeaturesForModel(ctx context.Context, modelID int64) ([]model.Feature, error)
	IsCompatible(ctx context.Context, modelID, featureID int64) (bool, error)
	// DueFeatures returns unreleased features whose release time has passed.
	DueFeatures(ctx context.Context, now time.Time) ([]model.Feature, error)
	MarkFeatureReleased(ctx context.Context, id int64) error
}

// FleetStore resolves units, devices and their pairings.
type FleetStore interface {
	UnitByMAC(ctx context.Context, mac string) (model.Unit, error)
	DeviceByID(ctx context.Context, id string) (model.Device, error)
	// UnitForDevice resolves the unit behind the device's primary pairing.
	UnitForDevice(ctx context.Context, deviceID string) (model.Unit, error)
	ModelsForFeature(ctx context.Context, featureID int64) ([]int64, error)
	UnitsByModels(ctx context.Context, modelIDs []int64) ([]model.Unit, error)
	DevicesForUnits(ctx context.Context, unitIDs []int64) ([]model.Device, error)
}

// InstallationStore mutates per-(unit, feature) installation records. Every
// mutation is a single conditional statement so that concurrent calls for the
// same key cannot produce lost updates.
type InstallationStore interface {
	InstallationsForUnit(ctx context.Context, unitID int64) ([]model.Installation, error)
	Installation(ctx context.Context, unitID, featureID int64) (model.Installation, error)
	// CreateInstallation inserts a fresh pending-install record. Returns false
	// when a record for the pair already exists.
	CreateInstallation(ctx context.Context, unitID, featureID int64) (bool, error)
	// ReinstateInstallation resets a record pending removal back to
	// pending install. Returns false when the record is not marked removing.
	ReinstateInstallation(ctx context.Context, unitID, featureID int64) (bool, error)
	// RequestRemoval marks the record as pending removal. Returns false when
	// it is already marked. ErrNotFound when no record exists.
	RequestRemoval(ctx context.Context, unitID, featureID int64) (bool, error)
	// AckInstall records unit confirmation of a completed install.
	AckInstall(ctx context.Context, unitID, featureID int64) error
	// AckUpdate records unit confirmation of a completed update, leaving the
	// install confirmation untouched.
	AckUpdate(ctx context.Context, unitID, featureID int64) error
	// AckRemoval deletes a record the unit confirmed it tore down.
	AckRemoval(ctx context.Context, unitID, featureID int64) error
	// MarkStaleByApp clears the up-to-date flag on every installation of a
	// feature backed by the given app. Returns the number of records touched.
	MarkStaleByApp(ctx context.Context, appID int64) (int64, error)
}

// Store aggregates all catalog persistence concerns.
type Store interface {
	AppStore
	FeatureStore
	FleetStore
	InstallationStore
	Close() error
}
