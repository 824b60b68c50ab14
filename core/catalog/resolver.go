package catalog

import (
	"context"

	"github.com/vehicleplus/sums/core/model"
)

// Resolver answers compatibility queries between vehicle models and features.
// It is a pure read path over the model-feature edge set.
type Resolver struct {
	features FeatureStore
}

// NewResolver creates a Resolver backed by the given feature store.
func NewResolver(features FeatureStore) *Resolver {
	return &Resolver{features: features}
}

// FeaturesForModel returns the set of features the model may run. An unknown
// model yields an empty set, not an error.
func (r *Resolver) FeaturesForModel(ctx context.Context, modelID int64) ([]model.Feature, error) {
	return r.features.FeaturesForModel(ctx, modelID)
}

// IsCompatible reports whether the model-feature edge exists.
func (r *Resolver) IsCompatible(ctx context.Context, modelID, featureID int64) (bool, error) {
	return r.features.IsCompatible(ctx, modelID, featureID)
}
