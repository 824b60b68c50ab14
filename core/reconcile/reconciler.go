// Package reconcile implements the unit-facing actual-state reconciler: the
// manifest a unit must be running, the images it should pre-pull, and the
// acknowledgements that advance installation state.
package reconcile

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

// Action is the acknowledgement kind a unit reports.
type Action int

const (
	// ActionInstall confirms a fresh install completed.
	ActionInstall Action = 0
	// ActionUpdate confirms an update to the latest catalog revision.
	ActionUpdate Action = 1
	// ActionRemove confirms a requested removal was torn down.
	ActionRemove Action = 2
)

func (a Action) String() string {
	switch a {
	case ActionInstall:
		return "install"
	case ActionUpdate:
		return "update"
	case ActionRemove:
		return "remove"
	default:
		return "invalid"
	}
}

var (
	// ErrMissingFeature is returned when an acknowledgement omits the feature.
	ErrMissingFeature = errors.New("feature id is required")
	// ErrInvalidAction is returned for an unknown acknowledgement action.
	ErrInvalidAction = errors.New("invalid acknowledge action")
)

// Store is the slice of the catalog the reconciler needs.
type Store interface {
	catalog.AppStore
	catalog.FeatureStore
	catalog.FleetStore
	catalog.InstallationStore
}

// Reconciler computes unit manifests and processes acknowledgements.
type Reconciler struct {
	store    Store
	registry string
	bus      eventbus.EventBus
	log      logger.Logger
}

// NewReconciler creates a Reconciler. registry is the host prefixed to image
// references. bus may be nil.
func NewReconciler(store Store, registry string, bus eventbus.EventBus, log logger.Logger) *Reconciler {
	return &Reconciler{store: store, registry: registry, bus: bus, log: log}
}

func (r *Reconciler) resolveUnit(ctx context.Context, mac string) (model.Unit, error) {
	unit, err := r.store.UnitByMAC(ctx, mac)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return model.Unit{}, fmt.Errorf("unit %s: %w", mac, catalog.ErrNotFound)
		}
		return model.Unit{}, fmt.Errorf("unit lookup: %w", err)
	}
	return unit, nil
}

// ComputeManifest returns the full manifest for the unit, or changed=false
// when every installation record is settled and the unit should not re-pull.
// The manifest covers every installed feature not pending removal, not only
// the pending ones; applying it converges the unit to the whole desired set.
func (r *Reconciler) ComputeManifest(ctx context.Context, mac string) (Manifest, bool, error) {
	unit, err := r.resolveUnit(ctx, mac)
	if err != nil {
		return Manifest{}, false, err
	}
	insts, err := r.store.InstallationsForUnit(ctx, unit.ID)
	if err != nil {
		return Manifest{}, false, fmt.Errorf("installations for unit %d: %w", unit.ID, err)
	}
	pending := false
	for _, inst := range insts {
		if !inst.Settled() {
			pending = true
			break
		}
	}
	if !pending {
		r.publishManifest(unit.ID, 0, true)
		return Manifest{}, false, nil
	}

	var m Manifest
	for _, inst := range insts {
		if inst.Removing {
			continue
		}
		spec, err := r.serviceSpec(ctx, inst.FeatureID)
		if err != nil {
			return Manifest{}, false, err
		}
		m.Services = append(m.Services, spec)
	}
	r.publishManifest(unit.ID, len(m.Services), false)
	return m, true, nil
}

func (r *Reconciler) serviceSpec(ctx context.Context, featureID int64) (ServiceSpec, error) {
	feature, err := r.store.FeatureByID(ctx, featureID)
	if err != nil {
		return ServiceSpec{}, fmt.Errorf("feature %d: %w", featureID, err)
	}
	app, err := r.store.AppByID(ctx, feature.AppID)
	if err != nil {
		return ServiceSpec{}, fmt.Errorf("app %d for feature %d: %w", feature.AppID, featureID, err)
	}
	return ServiceSpec{
		Name:          app.Repo,
		Image:         app.ImageRef(r.registry),
		Privileged:    true,
		RestartPolicy: "always",
		Environment:   app.Environment,
		Ports:         app.Ports,
		Volumes:       app.Volumes,
	}, nil
}

// PendingImages returns the image references a unit should pre-pull before
// applying its manifest: one per app backing a feature with a pending install
// or update, deduplicated.
func (r *Reconciler) PendingImages(ctx context.Context, mac string) ([]string, error) {
	unit, err := r.resolveUnit(ctx, mac)
	if err != nil {
		return nil, err
	}
	insts, err := r.store.InstallationsForUnit(ctx, unit.ID)
	if err != nil {
		return nil, fmt.Errorf("installations for unit %d: %w", unit.ID, err)
	}
	seen := map[int64]bool{}
	var refs []string
	for _, inst := range insts {
		if inst.Removing || (inst.Active && inst.UpToDate) {
			continue
		}
		feature, err := r.store.FeatureByID(ctx, inst.FeatureID)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", inst.FeatureID, err)
		}
		if seen[feature.AppID] {
			continue
		}
		app, err := r.store.AppByID(ctx, feature.AppID)
		if err != nil {
			return nil, fmt.Errorf("app %d: %w", feature.AppID, err)
		}
		seen[app.ID] = true
		refs = append(refs, app.ImageRef(r.registry))
	}
	return refs, nil
}

// Acknowledge advances the installation record after the unit confirmed an
// install, update or removal. The mutation is a single conditional statement
// on the (unit, feature) key.
func (r *Reconciler) Acknowledge(ctx context.Context, mac string, featureID int64, action Action) error {
	if featureID == 0 {
		return ErrMissingFeature
	}
	if action != ActionInstall && action != ActionUpdate && action != ActionRemove {
		return fmt.Errorf("action %d: %w", int(action), ErrInvalidAction)
	}
	unit, err := r.resolveUnit(ctx, mac)
	if err != nil {
		return err
	}

	switch action {
	case ActionInstall:
		err = r.store.AckInstall(ctx, unit.ID, featureID)
	case ActionUpdate:
		err = r.store.AckUpdate(ctx, unit.ID, featureID)
	case ActionRemove:
		err = r.store.AckRemoval(ctx, unit.ID, featureID)
	}
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return fmt.Errorf("no installation for feature %d: %w", featureID, catalog.ErrNotFound)
		}
		return fmt.Errorf("acknowledge %s: %w", action, err)
	}

	r.log.Infof("unit %d acknowledged %s of feature %d", unit.ID, action, featureID)
	if r.bus != nil {
		r.bus.Publish(events.AckEvent{UnitID: unit.ID, FeatureID: featureID, Action: int(action)})
	}
	return nil
}

func (r *Reconciler) publishManifest(unitID int64, services int, noChange bool) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(events.ManifestEvent{UnitID: unitID, Services: services, NoChange: noChange})
}
