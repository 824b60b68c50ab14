// Package notify defines the notification request the release publisher
// emits and the Sender interface delivery adapters implement. Delivery is
// best effort; the engine never retries a failed send.
package notify

import "context"

// Notification is an abstract push notification request. Token is the
// destination device's push token.
type Notification struct {
	Token string `json:"token"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Sender delivers notifications to mobile devices.
type Sender interface {
	Send(ctx context.Context, n Notification) error
	Close() error
}

// NopSender discards notifications. Used when no push backend is configured.
type NopSender struct{}

func (NopSender) Send(context.Context, Notification) error { return nil }
func (NopSender) Close() error                             { return nil }
