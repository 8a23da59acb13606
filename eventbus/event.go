package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// Wildcard is the pseudo event type that matches every emission.
// Subscribing to Wildcard receives every event regardless of its Type.
const Wildcard = "*"

// Metadata carries emission bookkeeping that travels with every Event.
type Metadata struct {
	ID            string    // Unique per emission.
	Timestamp     time.Time // Set by NewEvent at construction time.
	Source        string    // Optional: component that emitted the event.
	CorrelationID string    // Optional: ties related events together.
	Version       int       // Schema version of Data, defaults to 1.
}

// Event is the unit of publication on the bus.
type Event struct {
	Type     string
	Data     any
	Metadata Metadata
}

// DomainEvent is an Event that additionally identifies the aggregate it
// describes. SequenceNumber must be monotonic per AggregateID; the bus
// does not enforce this itself, callers are responsible for assigning it.
type DomainEvent struct {
	Event
	AggregateID    string
	AggregateType  string
	SequenceNumber int64
}

// NewEvent constructs an Event with a freshly generated metadata.ID and the
// current timestamp. Source and CorrelationID are left empty; set them with
// WithSource / WithCorrelationID.
func NewEvent(eventType string, data any) Event {
	return Event{
		Type: eventType,
		Data: data,
		Metadata: Metadata{
			ID:        uuid.NewString(),
			Timestamp: time.Now(),
			Version:   1,
		},
	}
}

// WithSource returns a copy of the event with Metadata.Source set.
func (e Event) WithSource(source string) Event {
	e.Metadata.Source = source
	return e
}

// WithCorrelationID returns a copy of the event with Metadata.CorrelationID set.
func (e Event) WithCorrelationID(id string) Event {
	e.Metadata.CorrelationID = id
	return e
}
