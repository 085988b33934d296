// Package runlog provides an append-only event log for agent calls.
//
// A Recorder hook appends one event per lifecycle notification of the agent
// it is registered with. Callers list the events of a call using opaque
// cursors.
package runlog

import (
	"context"
	"encoding/json"
	"time"

	"goa.design/agentcall/runtime/agent/hooks"
)

type (
	// Event is a single immutable call event appended to the run log.
	//
	// Store implementations assign the ID when persisting the event. IDs are
	// opaque, monotonically ordered within a call, and suitable for
	// cursor-based pagination.
	Event struct {
		// ID is the store-assigned opaque identifier for this event.
		ID string
		// CallID identifies the agent call this event belongs to.
		CallID string
		// Agent is the name of the agent that emitted the event.
		Agent string
		// Point is the lifecycle notification that produced the event.
		Point hooks.Point
		// Phase is set for reasoning notifications.
		Phase hooks.Phase
		// MessageID is the ID of the message carried by the notification, if any.
		MessageID string
		// Payload is the JSON-encoded message or error carried by the
		// notification.
		Payload json.RawMessage
		// Timestamp is the event time.
		Timestamp time.Time
	}

	// Page is a forward page of call events.
	Page struct {
		// Events are ordered oldest-first.
		Events []*Event
		// NextCursor is the cursor to use to fetch the next page.
		// It is empty when there are no further events.
		NextCursor string
	}

	// Store is an append-only event store.
	//
	// Implementations must provide stable ordering within a call. Cursor
	// values are store-owned and opaque to callers.
	Store interface {
		// Append stores the event in the run log.
		//
		// Store implementations assign the event ID and persist the payload
		// verbatim. Failures are surfaced to callers so calls can fail fast
		// when logging is unavailable.
		Append(ctx context.Context, e *Event) error

		// List returns the next forward page of events for the given call ID.
		//
		// Cursor is an opaque value returned by a previous call to List (or
		// empty to start from the beginning). Limit must be greater than zero.
		List(ctx context.Context, callID string, cursor string, limit int) (Page, error)
	}
)
