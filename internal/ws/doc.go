// Package ws binds the session multiplexing protocol to WebSocket.
//
// The Gateway authenticates and upgrades inbound requests on /ws; the
// Router it binds decodes client frames (create, input, resize, close),
// drives the connection's session registry, and streams registry events
// (created, output, closed, error) back to the peer. One session
// failing never terminates the connection; only authentication failure
// does.
package ws
