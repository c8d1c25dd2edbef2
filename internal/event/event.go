// Package event defines ProjectEvent: the tagged payload that
// watchers emit and the core dispatches to handlers.
package event

import "time"

// Kind enumerates the small, extensible set of event tags a watcher
// may emit.
type Kind string

const (
	ProjectChange Kind = "ProjectChange"
	FlowcellReady Kind = "FlowcellReady"
	DeliveryReady Kind = "DeliveryReady"
)

// Event is the envelope every watcher emits and the core dispatches.
// Payload's schema is per-kind; handlers type-assert the fields they
// expect and reject anything else as a validation error.
type Event struct {
	Kind      Kind
	Payload   map[string]interface{}
	Source    string
	Timestamp time.Time
}

// New constructs an Event stamped with the current time.
func New(kind Kind, source string, payload map[string]interface{}) Event {
	return Event{
		Kind:      kind,
		Payload:   payload,
		Source:    source,
		Timestamp: time.Now().UTC(),
	}
}
