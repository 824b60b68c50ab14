// Package release implements the background sweep that promotes features past
// their release time and fans out availability notifications to paired
// mobile devices.
package release

import (
	"context"
	"fmt"
	"time"

	"github.com/vehicleplus/sums/core/catalog"
	"github.com/vehicleplus/sums/core/events"
	"github.com/vehicleplus/sums/core/logger"
	"github.com/vehicleplus/sums/core/model"
	"github.com/vehicleplus/sums/core/notify"
	"github.com/vehicleplus/sums/internal/eventbus"
)

// Config defines release publisher settings.
type Config struct {
	IntervalSeconds int `json:"interval_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = 60
	}
}

// Store is the slice of the catalog the publisher needs.
type Store interface {
	catalog.FeatureStore
	catalog.FleetStore
}

// Publisher periodically releases features whose release time has passed.
// Notification delivery is best effort and never blocks the gate flip; a
// failed send is logged and forgotten.
type Publisher struct {
	store    Store
	sender   notify.Sender
	interval time.Duration
	bus      eventbus.EventBus
	log      logger.Logger
	now      func() time.Time
}

// NewPublisher creates a Publisher. bus may be nil; a nil sender is replaced
// with a no-op.
func NewPublisher(store Store, sender notify.Sender, interval time.Duration, bus eventbus.EventBus, log logger.Logger) *Publisher {
	if sender == nil {
		sender = notify.NopSender{}
	}
	return &Publisher{
		store:    store,
		sender:   sender,
		interval: interval,
		bus:      bus,
		log:      log,
		now:      time.Now,
	}
}

// Run sweeps once immediately, then on every tick until the context is
// cancelled. A tick in flight finishes before Run returns on the next select.
func (p *Publisher) Run(ctx context.Context) {
	if _, err := p.SweepOnce(ctx); err != nil {
		p.log.Errorf("release sweep: %v", err)
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.SweepOnce(ctx); err != nil {
				p.log.Errorf("release sweep: %v", err)
			}
		}
	}
}

// SweepOnce releases every due feature and returns how many gates were
// flipped. A failure on one feature does not abort the others.
func (p *Publisher) SweepOnce(ctx context.Context) (int, error) {
	due, err := p.store.DueFeatures(ctx, p.now())
	if err != nil {
		return 0, fmt.Errorf("due features: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}
	p.log.Infof("found %d feature(s) due for release", len(due))

	released := 0
	for _, f := range due {
		start := p.now()
		notified, failed := p.fanOut(ctx, f)
		if err := p.store.MarkFeatureReleased(ctx, f.ID); err != nil {
			// The gate stays down; the next tick retries (and re-notifies).
			p.log.Errorf("mark feature %d released: %v", f.ID, err)
			continue
		}
		released++
		p.log.Infof("feature %q released, notified %d device(s), %d failure(s)", f.Name, notified, failed)
		if p.bus != nil {
			p.bus.Publish(events.ReleaseEvent{
				FeatureID: f.ID,
				Name:      f.Name,
				Notified:  notified,
				Failed:    failed,
				Duration:  p.now().Sub(start),
			})
		}
	}
	return released, nil
}

// fanOut notifies every device paired to a unit whose model is compatible
// with the feature. No store lock is held across sends.
func (p *Publisher) fanOut(ctx context.Context, f model.Feature) (notified, failed int) {
	modelIDs, err := p.store.ModelsForFeature(ctx, f.ID)
	if err != nil {
		p.log.Errorf("models for feature %d: %v", f.ID, err)
		return 0, 0
	}
	units, err := p.store.UnitsByModels(ctx, modelIDs)
	if err != nil {
		p.log.Errorf("units for feature %d: %v", f.ID, err)
		return 0, 0
	}
	unitIDs := make([]int64, 0, len(units))
	for _, u := range units {
		unitIDs = append(unitIDs, u.ID)
	}
	devices, err := p.store.DevicesForUnits(ctx, unitIDs)
	if err != nil {
		p.log.Errorf("devices for feature %d: %v", f.ID, err)
		return 0, 0
	}

	for _, d := range devices {
		if d.NotificationToken == "" {
			continue
		}
		n := notify.Notification{
			Token: d.NotificationToken,
			Title: f.Name + " is now available!",
			Body:  f.Description,
		}
		if err := p.sender.Send(ctx, n); err != nil {
			failed++
			p.log.Errorf("notify device %s: %v", d.ID, err)
			continue
		}
		notified++
	}
	return notified, failed
}
