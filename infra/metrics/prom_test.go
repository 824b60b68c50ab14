package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/vehicleplus/sums/core/metrics"
)

func TestPromSinkRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	if err := sink.RecordIngest(coremetrics.IngestRecord{Action: "push", Repo: "navigation"}); err != nil {
		t.Fatalf("record ingest: %v", err)
	}
	if err := sink.RecordActivation(coremetrics.ActivationRecord{Outcome: "accepted"}); err != nil {
		t.Fatalf("record activation: %v", err)
	}
	if err := sink.RecordAcknowledge(coremetrics.AckRecord{Action: "install"}); err != nil {
		t.Fatalf("record ack: %v", err)
	}
	if err := sink.RecordManifest(coremetrics.ManifestRecord{NoChange: true}); err != nil {
		t.Fatalf("record manifest: %v", err)
	}
	if err := sink.RecordRelease(coremetrics.ReleaseRecord{Notified: 3, Failed: 1, Duration: time.Second}); err != nil {
		t.Fatalf("record release: %v", err)
	}

	if got := testutil.ToFloat64(sink.ingest.WithLabelValues("push", "false")); got != 1 {
		t.Fatalf("ingest counter: %v", got)
	}
	if got := testutil.ToFloat64(sink.acks.WithLabelValues("install")); got != 1 {
		t.Fatalf("ack counter: %v", got)
	}
	if got := testutil.ToFloat64(sink.manifests.WithLabelValues("no_change")); got != 1 {
		t.Fatalf("manifest counter: %v", got)
	}
	if got := testutil.ToFloat64(sink.notifications.WithLabelValues("sent")); got != 3 {
		t.Fatalf("notifications counter: %v", got)
	}
	if got := testutil.ToFloat64(sink.releases); got != 1 {
		t.Fatalf("release counter: %v", got)
	}
}

func TestPromSinkDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg); err != nil {
		t.Fatalf("second registration must tolerate existing collectors: %v", err)
	}
}
