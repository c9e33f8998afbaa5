// Package events carries shift lifecycle notifications to the live feed,
// caches, metrics and the Kafka stream.
package events

import (
	"context"
	"time"
)

type Type string

const (
	ShiftStarted Type = "shift_started"
	ShiftEnded   Type = "shift_ended"
	ShiftsReset  Type = "shifts_reset"
)

// Event describes one lifecycle change. ExternalID, Department and
// DurationMinutes are empty for ShiftsReset.
type Event struct {
	ID              string    `json:"id"`
	Type            Type      `json:"type"`
	ExternalID      string    `json:"discord_id,omitempty"`
	Department      string    `json:"department,omitempty"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
	At              time.Time `json:"at"`
}

// Publisher receives events after the store change was committed. Publish
// must not block for long and never fails the originating operation.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, e Event)

func (f PublisherFunc) Publish(ctx context.Context, e Event) { f(ctx, e) }

// Fanout delivers each event to every publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, e Event) {
	for _, p := range f {
		if p != nil {
			p.Publish(ctx, e)
		}
	}
}

// Nop discards events.
var Nop Publisher = PublisherFunc(func(context.Context, Event) {})
