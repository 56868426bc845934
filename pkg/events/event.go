package events

import "time"

// Event defines the contract for all events leaving the process.
type Event interface {
	// EventType returns the unique code for this event (e.g., "TICKET_RECORDED").
	EventType() string

	// Key is the partition key; events with the same key share a subject.
	Key() string

	// MessageID is stable across retries so the broker and consumers can deduplicate.
	MessageID() string

	// Payload returns the data that is serialized onto the wire.
	Payload() interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}
