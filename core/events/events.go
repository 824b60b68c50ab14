// Package events defines the payload types published on the internal event
// bus as the engine processes registry events, mobile intent, unit
// acknowledgements and release sweeps.
package events

import "time"

// IngestEvent is published for every registry event processed by the catalog
// ingestor, including skipped and failed ones.
type IngestEvent struct {
	Action string
	Repo   string
	Tag    string
	Err    error
}

// ActivationEvent is published when a mobile client activates or deactivates
// a feature for its unit.
type ActivationEvent struct {
	UnitID    int64
	FeatureID int64
	Outcome   string
}

// AckEvent is published when a unit acknowledges an install, update or
// removal.
type AckEvent struct {
	UnitID    int64
	FeatureID int64
	Action    int
}

// ManifestEvent is published after a manifest computation for a unit.
type ManifestEvent struct {
	UnitID   int64
	Services int
	NoChange bool
}

// ReleaseEvent is published when the release publisher flips a feature's
// release gate.
type ReleaseEvent struct {
	FeatureID int64
	Name      string
	Notified  int
	Failed    int
	Duration  time.Duration
}
