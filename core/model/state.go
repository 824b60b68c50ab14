package model

// FeatureState is the per-unit lifecycle state of a feature as reported to
// mobile clients.
type FeatureState int

const (
	// StateNotDownloaded means no installation record exists for the pair.
	StateNotDownloaded FeatureState = iota
	// StatePendingInstall means the record exists but the unit has not yet
	// confirmed the install.
	StatePendingInstall
	// StatePendingUpdate means the unit runs the feature but the catalog has
	// moved on since the last confirmation.
	StatePendingUpdate
	// StateInstalled means the unit confirmed both install and currency.
	StateInstalled
	// StatePendingRemove means removal was requested and the unit has not yet
	// confirmed tearing the container down.
	StatePendingRemove
)

func (s FeatureState) String() string {
	switch s {
	case StateNotDownloaded:
		return "NOT_DOWNLOADED"
	case StatePendingInstall:
		return "PENDING_INSTALL"
	case StatePendingUpdate:
		return "PENDING_UPDATE"
	case StateInstalled:
		return "INSTALLED"
	case StatePendingRemove:
		return "PENDING_REMOVE"
	default:
		return "UNKNOWN"
	}
}

// StateOf derives the reported state from an installation record. A nil
// record means the feature was never requested for the unit.
func StateOf(inst *Installation) FeatureState {
	if inst == nil {
		return StateNotDownloaded
	}
	if inst.Removing {
		return StatePendingRemove
	}
	if !inst.Active {
		return StatePendingInstall
	}
	if !inst.UpToDate {
		return StatePendingUpdate
	}
	return StateInstalled
}
