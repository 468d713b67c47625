// Package protocol defines the wire messages exchanged over the /ws
// channel.
//
// The client drives sessions with four message kinds (create, input,
// resize, close); the server answers with four event kinds (created,
// output, closed, error). Frames are small tagged JSON records.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Client message types.
const (
	TypeCreate = "create"
	TypeInput  = "input"
	TypeResize = "resize"
	TypeClose  = "close"
)

// Server event types.
const (
	TypeCreated = "created"
	TypeOutput  = "output"
	TypeClosed  = "closed"
	TypeError   = "error"
)

// ErrMalformed marks frames that cannot be dispatched: unparseable
// JSON, an unknown type tag, or missing required fields for the tag.
var ErrMalformed = errors.New("malformed message")

// ClientMessage is one inbound frame.
//
// ID carries the client-minted session identifier on create; all other
// kinds address an existing session via SessionID. Cols/Rows accompany
// create (optional, defaulted server-side) and resize (required). Name
// optionally attaches a human-readable name at creation.
type ClientMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Data      string `json:"data,omitempty"`
	Cols      int    `json:"cols,omitempty"`
	Rows      int    `json:"rows,omitempty"`
	Name      string `json:"name,omitempty"`
}

// ServerEvent is one outbound frame.
type ServerEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Data      string `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
}

// DecodeClient parses and validates one inbound frame. Any validation
// failure is reported as ErrMalformed; callers drop such frames with a
// diagnostic instead of failing the connection.
func DecodeClient(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch msg.Type {
	case TypeCreate:
		if msg.ID == "" {
			return ClientMessage{}, fmt.Errorf("%w: create requires id", ErrMalformed)
		}
	case TypeInput:
		if msg.SessionID == "" {
			return ClientMessage{}, fmt.Errorf("%w: input requires session_id", ErrMalformed)
		}
	case TypeResize:
		if msg.SessionID == "" {
			return ClientMessage{}, fmt.Errorf("%w: resize requires session_id", ErrMalformed)
		}
		if msg.Cols <= 0 || msg.Rows <= 0 {
			return ClientMessage{}, fmt.Errorf("%w: resize requires positive cols and rows", ErrMalformed)
		}
	case TypeClose:
		if msg.SessionID == "" {
			return ClientMessage{}, fmt.Errorf("%w: close requires session_id", ErrMalformed)
		}
	case "":
		return ClientMessage{}, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return ClientMessage{}, fmt.Errorf("%w: unknown type %q", ErrMalformed, msg.Type)
	}

	return msg, nil
}

// Created acknowledges that a session is live and ready for input.
func Created(sessionID string) ServerEvent {
	return ServerEvent{Type: TypeCreated, SessionID: sessionID}
}

// Output carries bytes produced by a session.
func Output(sessionID string, data []byte) ServerEvent {
	return ServerEvent{Type: TypeOutput, SessionID: sessionID, Data: string(data)}
}

// Closed reports that a session has terminated, whatever the cause.
func Closed(sessionID string) ServerEvent {
	return ServerEvent{Type: TypeClosed, SessionID: sessionID}
}

// Errorf reports a request that could not be satisfied. The connection
// remains open.
func Errorf(format string, args ...any) ServerEvent {
	return ServerEvent{Type: TypeError, Message: fmt.Sprintf(format, args...)}
}
