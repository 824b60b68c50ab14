// Package desired implements the mobile-facing desired-state controller. A
// device sets installation intent for its paired unit; the unit itself later
// confirms the actual state through the reconciler.
package desired

import (
	"context"
	"errors"
	"fmt"

	"github.com/vehicleplus/sums/core/catalog"
	"github.com/vehicleplus/sums/core/events"
	"github.com/vehicleplus/sums/core/logger"
	"github.com/vehicleplus/sums/core/model"
	"github.com/vehicleplus/sums/internal/eventbus"
)

// ErrMissingFeature is returned when a request omits the feature identifier.
var ErrMissingFeature = errors.New("feature id is required")

// FeatureStatus is one row of the mobile feature listing.
type FeatureStatus struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	State       string `json:"state"`
}

// Store is the slice of the catalog the controller needs.
type Store interface {
	catalog.FeatureStore
	catalog.FleetStore
	catalog.InstallationStore
}

// Controller handles mobile intent: listing feature states and activating or
// deactivating features for the device's paired unit.
type Controller struct {
	store    Store
	resolver *catalog.Resolver
	bus      eventbus.EventBus
	log      logger.Logger
}

// NewController creates a Controller. bus may be nil.
func NewController(store Store, resolver *catalog.Resolver, bus eventbus.EventBus, log logger.Logger) *Controller {
	return &Controller{store: store, resolver: resolver, bus: bus, log: log}
}

// resolveUnit maps an authenticated device to its primary paired unit. An
// unknown device is an identity failure; a known but unpaired device is not
// found.
func (c *Controller) resolveUnit(ctx context.Context, deviceID string) (model.Unit, error) {
	if _, err := c.store.DeviceByID(ctx, deviceID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return model.Unit{}, fmt.Errorf("device %s: %w", deviceID, catalog.ErrUnknownIdentity)
		}
		return model.Unit{}, fmt.Errorf("device lookup: %w", err)
	}
	unit, err := c.store.UnitForDevice(ctx, deviceID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return model.Unit{}, fmt.Errorf("device %s has no paired unit: %w", deviceID, catalog.ErrNotFound)
		}
		return model.Unit{}, fmt.Errorf("pairing lookup: %w", err)
	}
	return unit, nil
}

// ListFeatureStates returns the lifecycle state of every feature compatible
// with the device's unit.
func (c *Controller) ListFeatureStates(ctx context.Context, deviceID string) ([]FeatureStatus, error) {
	unit, err := c.resolveUnit(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	feats, err := c.resolver.FeaturesForModel(ctx, unit.ModelID)
	if err != nil {
		return nil, fmt.Errorf("features for model %d: %w", unit.ModelID, err)
	}
	insts, err := c.store.InstallationsForUnit(ctx, unit.ID)
	if err != nil {
		return nil, fmt.Errorf("installations for unit %d: %w", unit.ID, err)
	}
	byFeature := make(map[int64]model.Installation, len(insts))
	for _, inst := range insts {
		byFeature[inst.FeatureID] = inst
	}
	res := make([]FeatureStatus, 0, len(feats))
	for _, f := range feats {
		var instPtr *model.Installation
		if inst, ok := byFeature[f.ID]; ok {
			instPtr = &inst
		}
		res = append(res, FeatureStatus{
			ID:          f.ID,
			Name:        f.Name,
			Description: f.Description,
			State:       model.StateOf(instPtr).String(),
		})
	}
	return res, nil
}

// FeatureImage returns the display image bytes for the feature.
func (c *Controller) FeatureImage(ctx context.Context, featureID int64) ([]byte, error) {
	f, err := c.store.FeatureByID(ctx, featureID)
	if err != nil {
		return nil, err
	}
	if len(f.Image) == 0 {
		return nil, catalog.ErrNotFound
	}
	return f.Image, nil
}

// Activate records installation intent for the feature on the device's unit.
// It never overwrites an existing record; an existing record pending removal
// is reinstated as a fresh pending install since the unit may already have
// torn the container down.
func (c *Controller) Activate(ctx context.Context, deviceID string, featureID int64) (Outcome, error) {
	if featureID == 0 {
		return Outcome{}, ErrMissingFeature
	}
	unit, err := c.resolveUnit(ctx, deviceID)
	if err != nil {
		return Outcome{}, err
	}
	ok, err := c.resolver.IsCompatible(ctx, unit.ModelID, featureID)
	if err != nil {
		return Outcome{}, fmt.Errorf("compatibility check: %w", err)
	}
	if !ok {
		return c.done(unit.ID, featureID, CodeIncompatible), nil
	}

	inst, err := c.store.Installation(ctx, unit.ID, featureID)
	switch {
	case err == nil && inst.Removing:
		if _, err := c.store.ReinstateInstallation(ctx, unit.ID, featureID); err != nil {
			return Outcome{}, fmt.Errorf("reinstate installation: %w", err)
		}
		return c.done(unit.ID, featureID, CodeAccepted), nil
	case err == nil:
		return c.done(unit.ID, featureID, CodeAlreadyInstalled), nil
	case !errors.Is(err, catalog.ErrNotFound):
		return Outcome{}, fmt.Errorf("installation lookup: %w", err)
	}

	created, err := c.store.CreateInstallation(ctx, unit.ID, featureID)
	if err != nil {
		return Outcome{}, fmt.Errorf("create installation: %w", err)
	}
	if !created {
		// Lost the race against a concurrent Activate for the same pair.
		return c.done(unit.ID, featureID, CodeAlreadyInstalled), nil
	}
	return c.done(unit.ID, featureID, CodeAccepted), nil
}

// Deactivate marks the installation for removal. The record stays until the
// unit acknowledges tearing the container down.
func (c *Controller) Deactivate(ctx context.Context, deviceID string, featureID int64) (Outcome, error) {
	if featureID == 0 {
		return Outcome{}, ErrMissingFeature
	}
	unit, err := c.resolveUnit(ctx, deviceID)
	if err != nil {
		return Outcome{}, err
	}
	requested, err := c.store.RequestRemoval(ctx, unit.ID, featureID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return Outcome{}, fmt.Errorf("no installation for feature %d: %w", featureID, catalog.ErrNotFound)
		}
		return Outcome{}, fmt.Errorf("request removal: %w", err)
	}
	if !requested {
		return c.done(unit.ID, featureID, CodeRemovalPending), nil
	}
	return c.done(unit.ID, featureID, CodeRemovalScheduled), nil
}

func (c *Controller) done(unitID, featureID int64, code Code) Outcome {
	c.log.Debugw("mobile intent", map[string]any{
		"unit_id":    unitID,
		"feature_id": featureID,
		"outcome":    string(code),
	})
	if c.bus != nil {
		c.bus.Publish(events.ActivationEvent{UnitID: unitID, FeatureID: featureID, Outcome: string(code)})
	}
	return outcome(code)
}
