// Package events publishes journey lifecycle events to a message broker.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Routing keys on the journey exchange.
const (
	JourneyCreated = "journey.created"
	JourneyJoined  = "journey.joined"
	JourneyLeft    = "journey.left"
	JourneyDeleted = "journey.deleted"
)

// DefaultExchange is used when no exchange name is configured.
const DefaultExchange = "tellevo.journeys"

// Event is the JSON body of every published message.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	JourneyID string    `json:"journey_id"`
	Actor     string    `json:"actor"`
	Capacity  int       `json:"capacity,omitempty"`
	At        time.Time `json:"at"`
}

// New stamps a fresh id and time on an event of the given type.
func New(typ, journeyID, actor string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		JourneyID: journeyID,
		Actor:     actor,
		At:        time.Now().UTC(),
	}
}

// Publisher sends events. Implementations are safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Noop drops every event. It is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
