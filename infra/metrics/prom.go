package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/vehicleplus/sums/core/metrics"
)

// PromSink records OTA lifecycle events in Prometheus metrics.
type PromSink struct {
	ingest        *prometheus.CounterVec
	activations   *prometheus.CounterVec
	acks          *prometheus.CounterVec
	manifests     *prometheus.CounterVec
	releases      prometheus.Counter
	notifications *prometheus.CounterVec
	fanout        prometheus.Histogram
}

// NewPromSink registers OTA metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (*PromSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		ingest: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sums_registry_events_total",
			Help: "Total number of registry events processed",
		}, []string{"action", "failed"}),
		activations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sums_feature_intents_total",
			Help: "Total number of mobile activate/deactivate outcomes",
		}, []string{"outcome"}),
		acks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sums_acknowledgements_total",
			Help: "Total number of unit acknowledgements",
		}, []string{"action"}),
		manifests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sums_manifest_builds_total",
			Help: "Total number of manifest computations",
		}, []string{"result"}),
		releases: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sums_feature_releases_total",
			Help: "Total number of feature release gates flipped",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sums_notifications_total",
			Help: "Total number of release notifications attempted",
		}, []string{"result"}),
		fanout: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sums_release_fanout_seconds",
			Help:    "Time spent notifying devices for one feature release",
			Buckets: prometheus.DefBuckets,
		}),
	}

	collectors := []prometheus.Collector{
		s.ingest, s.activations, s.acks, s.manifests, s.releases, s.notifications, s.fanout,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}
	return s, nil
}

// RecordAcknowledge increments the acknowledgement counter.
func (s *PromSink) RecordAcknowledge(ev coremetrics.AckRecord) error {
	s.acks.WithLabelValues(ev.Action).Inc()
	return nil
}

// RecordIngest increments the registry event counter.
func (s *PromSink) RecordIngest(ev coremetrics.IngestRecord) error {
	s.ingest.WithLabelValues(ev.Action, strconv.FormatBool(ev.Failed)).Inc()
	return nil
}

// RecordActivation increments the mobile intent counter.
func (s *PromSink) RecordActivation(ev coremetrics.ActivationRecord) error {
	s.activations.WithLabelValues(ev.Outcome).Inc()
	return nil
}

// RecordManifest increments the manifest build counter.
func (s *PromSink) RecordManifest(ev coremetrics.ManifestRecord) error {
	result := "manifest"
	if ev.NoChange {
		result = "no_change"
	}
	s.manifests.WithLabelValues(result).Inc()
	return nil
}

// RecordRelease records the gate flip, its notification results and fan-out duration.
func (s *PromSink) RecordRelease(ev coremetrics.ReleaseRecord) error {
	s.releases.Inc()
	s.notifications.WithLabelValues("sent").Add(float64(ev.Notified))
	s.notifications.WithLabelValues("failed").Add(float64(ev.Failed))
	s.fanout.Observe(ev.Duration.Seconds())
	return nil
}
