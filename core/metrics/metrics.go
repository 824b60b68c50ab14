package metrics

import "time"

// AckRecord captures a unit acknowledgement for observability purposes.
type AckRecord struct {
	UnitID    int64
	FeatureID int64
	Action    string
	Time      time.Time
}

// MetricsSink records OTA lifecycle events.
type MetricsSink interface {
	RecordAcknowledge(ev AckRecord) error
}

// IngestRecord captures one processed registry event.
type IngestRecord struct {
	Action string
	Repo   string
	Failed bool
	Time   time.Time
}

// IngestRecorder records registry ingestion events.
type IngestRecorder interface {
	RecordIngest(ev IngestRecord) error
}

// ActivationRecord captures a mobile activation or deactivation outcome.
type ActivationRecord struct {
	UnitID    int64
	FeatureID int64
	Outcome   string
	Time      time.Time
}

// ActivationRecorder records mobile intent events.
type ActivationRecorder interface {
	RecordActivation(ev ActivationRecord) error
}

// ManifestRecord captures a manifest computation for a unit.
type ManifestRecord struct {
	UnitID   int64
	Services int
	NoChange bool
	Time     time.Time
}

// ManifestRecorder records manifest computations.
type ManifestRecorder interface {
	RecordManifest(ev ManifestRecord) error
}

// ReleaseRecord captures one release-gate flip and its notification fan-out.
type ReleaseRecord struct {
	FeatureID int64
	Name      string
	Notified  int
	Failed    int
	Duration  time.Duration
	Time      time.Time
}

// ReleaseRecorder records release publisher sweeps.
type ReleaseRecorder interface {
	RecordRelease(ev ReleaseRecord) error
}

// NopSink discards all records.
type NopSink struct{}

// RecordAcknowledge implements MetricsSink.
func (NopSink) RecordAcknowledge(AckRecord) error { return nil }
