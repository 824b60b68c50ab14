package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/vehicleplus/sums/core/metrics"
	"github.com/vehicleplus/sums/infra/logger"
)

// InfluxSink writes OTA lifecycle events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordAcknowledge writes a unit acknowledgement event.
func (s *InfluxSink) RecordAcknowledge(ev coremetrics.AckRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("acknowledgement").
		AddTag("unit_id", strconv.FormatInt(ev.UnitID, 10)).
		AddTag("action", ev.Action).
		AddTag("component", "reconciler").
		AddField("feature_id", ev.FeatureID).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordIngest writes a processed registry event.
func (s *InfluxSink) RecordIngest(ev coremetrics.IngestRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("registry_event").
		AddTag("action", ev.Action).
		AddTag("failed", strconv.FormatBool(ev.Failed)).
		AddTag("component", "ingestor").
		AddField("repository", ev.Repo).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordActivation writes a mobile activate/deactivate outcome.
func (s *InfluxSink) RecordActivation(ev coremetrics.ActivationRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("feature_intent").
		AddTag("unit_id", strconv.FormatInt(ev.UnitID, 10)).
		AddTag("outcome", ev.Outcome).
		AddTag("component", "desired-state").
		AddField("feature_id", ev.FeatureID).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordManifest writes a manifest computation event.
func (s *InfluxSink) RecordManifest(ev coremetrics.ManifestRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("manifest_build").
		AddTag("unit_id", strconv.FormatInt(ev.UnitID, 10)).
		AddTag("no_change", strconv.FormatBool(ev.NoChange)).
		AddTag("component", "reconciler").
		AddField("services", ev.Services).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordRelease writes a release-gate flip and its fan-out results.
func (s *InfluxSink) RecordRelease(ev coremetrics.ReleaseRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("feature_release").
		AddTag("feature_id", strconv.FormatInt(ev.FeatureID, 10)).
		AddTag("component", "publisher").
		AddField("name", ev.Name).
		AddField("notified", ev.Notified).
		AddField("failed", ev.Failed).
		AddField("duration_ms", ev.Duration.Seconds()*1000).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}
