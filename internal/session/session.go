package session

import (
	"sync"
	"time"

	"github.com/AdamSaleh/runotebook/internal/pty"
)

// Session is one live terminal session owned by a registry.
type Session struct {
	ID        string
	Name      string
	Cols      int
	Rows      int
	CreatedAt time.Time

	// adapter is nil while the session is still being spawned; such a
	// session is reserved (its ID cannot be reused) but not yet
	// addressable.
	adapter   *pty.Adapter
	closeOnce sync.Once
}

// Info is the public snapshot of a session.
type Info struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Cols      int       `json:"cols"`
	Rows      int       `json:"rows"`
	CreatedAt time.Time `json:"created_at"`
}

// EventKind discriminates registry events.
type EventKind int

const (
	// EventCreated: the session is live and ready to accept input.
	EventCreated EventKind = iota
	// EventOutput: the session produced a chunk of bytes.
	EventOutput
	// EventClosed: the session terminated, whatever the cause.
	EventClosed
)

// String returns the wire-level name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventOutput:
		return "output"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is one lifecycle or output notification from the registry.
//
// For a given session, Created precedes every Output, and Closed
// follows every Output. Events of different sessions may interleave
// arbitrarily.
type Event struct {
	Kind      EventKind
	SessionID string
	Data      []byte
}
