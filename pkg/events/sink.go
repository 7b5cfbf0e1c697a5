package events

import (
	"context"
	"time"
)

// Event types published by the sync controller.
const (
	TypeSyncUpdated   = "sync.updated"
	TypeSyncUnchanged = "sync.unchanged"
	TypeSyncFailed    = "sync.failed"
)

// Event is one sync-outcome record.
type Event struct {
	Type      string    `json:"type"`
	At        time.Time `json:"at"`
	Reason    string    `json:"reason,omitempty"`
	SyncToken string    `json:"syncToken,omitempty"`
}

// Sink receives sync-outcome events. Publish must not block the sync cycle
// for longer than its own write timeout.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Publish(context.Context, Event) error { return nil }
func (NopSink) Close() error                         { return nil }
