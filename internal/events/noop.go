package events

import "context"

// NoopPublisher discards status change events. The server uses it when no
// NATS URL is configured, so handlers always have a publisher to call.
type NoopPublisher struct{}

// Publish drops event.
func (NoopPublisher) Publish(context.Context, string, any) error { return nil }

// Close has nothing to release.
func (NoopPublisher) Close() error { return nil }
