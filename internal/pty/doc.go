// Package pty wraps an OS pseudo-terminal and the interactive shell
// process attached to it.
//
// Each Adapter exposes byte-stream write, terminal resize, forced
// termination, and an ordered output channel that ends exactly when the
// process exits or the PTY is closed. Callers must drain Output until it
// closes; the session registry's per-session pump does this.
package pty
