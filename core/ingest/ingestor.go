package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vehicleplus/sums/core/catalog"
	"github.com/vehicleplus/sums/core/events"
	"github.com/vehicleplus/sums/core/logger"
	"github.com/vehicleplus/sums/core/model"
	"github.com/vehicleplus/sums/internal/eventbus"
)

// Statuses reported per event in an ingestion result.
const (
	StatusCreated = "created"
	StatusUpdated = "updated"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// EventResult is the per-event outcome within a batch.
type EventResult struct {
	ID     string `json:"id,omitempty"`
	Action string `json:"action"`
	Repo   string `json:"repo"`
	Tag    string `json:"tag"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Result aggregates the outcome of a full webhook batch.
type Result struct {
	Created int           `json:"created"`
	Updated int           `json:"updated"`
	Skipped int           `json:"skipped"`
	Failed  int           `json:"failed"`
	Events  []EventResult `json:"events"`
}

// Ingestor applies registry push/update events to the app catalog. A push for
// an already known repository+tag is reclassified as an update so that
// re-posted notifications stay idempotent. A malformed event is logged and
// skipped without aborting its siblings.
type Ingestor struct {
	apps     catalog.AppStore
	installs catalog.InstallationStore
	bus      eventbus.EventBus
	log      logger.Logger
	now      func() time.Time
}

// NewIngestor creates an Ingestor. bus may be nil.
func NewIngestor(apps catalog.AppStore, installs catalog.InstallationStore, bus eventbus.EventBus, log logger.Logger) *Ingestor {
	return &Ingestor{apps: apps, installs: installs, bus: bus, log: log, now: time.Now}
}

// Apply processes the whole batch and returns the aggregate result. Event
// failures are isolated; the batch never short-circuits.
func (in *Ingestor) Apply(ctx context.Context, n Notification) Result {
	var res Result
	for _, ev := range n.Events {
		er := in.applyEvent(ctx, ev)
		switch er.Status {
		case StatusCreated:
			res.Created++
		case StatusUpdated:
			res.Updated++
		case StatusSkipped:
			res.Skipped++
		case StatusFailed:
			res.Failed++
			in.log.Warnf("registry event %s: %s", ev.ID, er.Error)
		}
		res.Events = append(res.Events, er)
	}
	return res
}

func (in *Ingestor) applyEvent(ctx context.Context, ev Event) EventResult {
	er := EventResult{ID: ev.ID, Action: ev.Action, Repo: ev.Target.Repository, Tag: ev.Target.Tag}

	if ev.Action != "push" && ev.Action != "update" {
		in.log.Debugf("%s", ev.Describe())
		er.Status = StatusSkipped
		in.publish(ev, nil)
		return er
	}
	if ev.Target.Repository == "" || ev.Target.Tag == "" {
		return in.fail(er, ev, errors.New("event target missing repository or tag"))
	}

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = in.now()
	}

	existing, err := in.apps.AppByRepoTag(ctx, ev.Target.Repository, ev.Target.Tag)
	switch {
	case err == nil:
		// Known repository+tag: a re-pushed image is an update.
		if ev.Action == "push" {
			er.Action = "update"
		}
		if err := in.apps.TouchApp(ctx, ev.Target.Repository, ev.Target.Tag, ts); err != nil {
			return in.fail(er, ev, fmt.Errorf("touch app: %w", err))
		}
		if n, err := in.installs.MarkStaleByApp(ctx, existing.ID); err != nil {
			in.log.Errorf("mark stale for app %d: %v", existing.ID, err)
		} else if n > 0 {
			in.log.Infof("app %s:%s updated, %d installation(s) marked stale", existing.Repo, existing.Tag, n)
		}
		er.Status = StatusUpdated
	case errors.Is(err, catalog.ErrNotFound):
		if ev.Action == "update" {
			return in.fail(er, ev, errors.New("update references an app never pushed"))
		}
		app := model.App{
			Repo:         ev.Target.Repository,
			Tag:          ev.Target.Tag,
			Digest:       ev.Target.Digest,
			ReleasedAt:   ts,
			LatestUpdate: ts,
		}
		if _, err := in.apps.InsertApp(ctx, app); err != nil {
			return in.fail(er, ev, fmt.Errorf("insert app: %w", err))
		}
		er.Status = StatusCreated
	default:
		return in.fail(er, ev, fmt.Errorf("lookup app: %w", err))
	}

	in.log.Infof("%s", ev.Describe())
	in.publish(ev, nil)
	return er
}

func (in *Ingestor) fail(er EventResult, ev Event, err error) EventResult {
	er.Status = StatusFailed
	er.Error = err.Error()
	in.publish(ev, err)
	return er
}

func (in *Ingestor) publish(ev Event, err error) {
	if in.bus == nil {
		return
	}
	in.bus.Publish(events.IngestEvent{
		Action: ev.Action,
		Repo:   ev.Target.Repository,
		Tag:    ev.Target.Tag,
		Err:    err,
	})
}
