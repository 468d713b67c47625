// Package session implements the server-side session registry.
//
// A Registry owns every live terminal session of one connection: the
// id -> session table, the name -> id index, and one output pump
// goroutine per session. Lifecycle and output notifications flow out of
// a single event channel that the connection's writer drains; within a
// session the order is always created, outputs, closed.
package session
