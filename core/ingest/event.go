package ingest

import (
	"fmt"
	"time"
)

// Target identifies the image a registry event refers to.
type Target struct {
	Repository string `json:"repository"`
	Tag        string `json:"tag"`
	Digest     string `json:"digest"`
}

// Event is one entry of a registry webhook notification. A zero Timestamp
// means the registry omitted it; the ingestor substitutes processing time.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Target    Target    `json:"target"`
}

// Notification is the registry webhook payload: a batch of events.
type Notification struct {
	Events []Event `json:"events"`
}

// Describe renders a one-line summary of the event for logs.
func (e Event) Describe() string {
	switch e.Action {
	case "pull":
		return fmt.Sprintf("application %s:%s has been downloaded", e.Target.Repository, e.Target.Tag)
	case "push":
		return fmt.Sprintf("application %s:%s has been published", e.Target.Repository, e.Target.Tag)
	case "update":
		return fmt.Sprintf("application %s:%s has been updated", e.Target.Repository, e.Target.Tag)
	default:
		return fmt.Sprintf("unhandled registry action %q", e.Action)
	}
}
