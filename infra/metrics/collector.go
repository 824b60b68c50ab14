package metrics

import (
	"context"
	"time"

	"github.com/vehicleplus/sums/core/events"
	coremetrics "github.com/vehicleplus/sums/core/metrics"
	"github.com/vehicleplus/sums/core/reconcile"
	"github.com/vehicleplus/sums/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for events.
// It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				switch e := ev.(type) {
				case events.IngestEvent:
					if r, ok := sink.(coremetrics.IngestRecorder); ok {
						_ = r.RecordIngest(coremetrics.IngestRecord{
							Action: e.Action,
							Repo:   e.Repo,
							Failed: e.Err != nil,
							Time:   time.Now(),
						})
					}
				case events.ActivationEvent:
					if r, ok := sink.(coremetrics.ActivationRecorder); ok {
						_ = r.RecordActivation(coremetrics.ActivationRecord{
							UnitID:    e.UnitID,
							FeatureID: e.FeatureID,
							Outcome:   e.Outcome,
							Time:      time.Now(),
						})
					}
				case events.AckEvent:
					_ = sink.RecordAcknowledge(coremetrics.AckRecord{
						UnitID:    e.UnitID,
						FeatureID: e.FeatureID,
						Action:    reconcile.Action(e.Action).String(),
						Time:      time.Now(),
					})
				case events.ManifestEvent:
					if r, ok := sink.(coremetrics.ManifestRecorder); ok {
						_ = r.RecordManifest(coremetrics.ManifestRecord{
							UnitID:   e.UnitID,
							Services: e.Services,
							NoChange: e.NoChange,
							Time:     time.Now(),
						})
					}
				case events.ReleaseEvent:
					if r, ok := sink.(coremetrics.ReleaseRecorder); ok {
						_ = r.RecordRelease(coremetrics.ReleaseRecord{
							FeatureID: e.FeatureID,
							Name:      e.Name,
							Notified:  e.Notified,
							Failed:    e.Failed,
							Duration:  e.Duration,
							Time:      time.Now(),
						})
					}
				}
			}
		}
	}()
}
