package metrics

import coremetrics "github.com/vehicleplus/sums/core/metrics"

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAcknowledge forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordAcknowledge(ev coremetrics.AckRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordAcknowledge(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordIngest forwards registry events when supported by the sink.
func (m *MultiSink) RecordIngest(ev coremetrics.IngestRecord) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.IngestRecorder); ok {
			if err := rec.RecordIngest(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordActivation forwards mobile intent outcomes when supported by the sink.
func (m *MultiSink) RecordActivation(ev coremetrics.ActivationRecord) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.ActivationRecorder); ok {
			if err := rec.RecordActivation(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordManifest forwards manifest computations when supported by the sink.
func (m *MultiSink) RecordManifest(ev coremetrics.ManifestRecord) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.ManifestRecorder); ok {
			if err := rec.RecordManifest(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordRelease forwards release sweeps when supported by the sink.
func (m *MultiSink) RecordRelease(ev coremetrics.ReleaseRecord) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.ReleaseRecorder); ok {
			if err := rec.RecordRelease(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
