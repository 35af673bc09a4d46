package eventstream

import "context"

// Publisher publishes seed events to an event stream backend.
type Publisher interface {
	Publish(ctx context.Context, event *SeedEvent) error
	Close() error
}
