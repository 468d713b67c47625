package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AdamSaleh/runotebook/internal/infrastructure/logging"
	"github.com/AdamSaleh/runotebook/internal/infrastructure/monitoring"
	"github.com/AdamSaleh/runotebook/internal/pty"
)

var (
	// ErrDuplicateID is returned when a create reuses a live identifier.
	ErrDuplicateID = errors.New("duplicate session id")
	// ErrUnknownSession is returned for operations on ids with no live session.
	ErrUnknownSession = errors.New("unknown session")
	// ErrSpawnFailed is returned when the shell process cannot be started.
	ErrSpawnFailed = errors.New("failed to spawn session")
	// ErrRegistryClosed is returned for creates after CloseAll.
	ErrRegistryClosed = errors.New("registry closed")
)

const eventBuffer = 256

// Registry is the authoritative store of live sessions for one
// connection. All mutation of the session table goes through its
// methods; per-session pump goroutines never touch the maps directly.
type Registry struct {
	ptyOpts pty.Options
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu       sync.Mutex
	sessions map[string]*Session
	names    map[string]string
	closed   bool

	events       chan Event
	eventsMu     sync.RWMutex
	eventsClosed bool

	wg sync.WaitGroup
}

// NewRegistry creates an empty registry. ptyOpts configures the shell
// spawned for each session.
func NewRegistry(ptyOpts pty.Options, logger *logging.Logger) *Registry {
	return &Registry{
		ptyOpts:  ptyOpts,
		logger:   logger,
		sessions: make(map[string]*Session),
		names:    make(map[string]string),
		events:   make(chan Event, eventBuffer),
	}
}

// WithMetrics attaches a metrics collector.
func (r *Registry) WithMetrics(m *monitoring.Metrics) *Registry {
	r.metrics = m
	return r
}

// Events returns the ordered event stream. The channel is closed after
// CloseAll has torn down every session. The consumer must keep draining
// it until closed; registry operations may otherwise stall.
func (r *Registry) Events() <-chan Event {
	return r.events
}

// Create spawns a new session under the client-chosen id.
//
// The id is reserved before the shell is spawned so no lock is held
// across process startup. A name, when given, is bound to the id unless
// a live session already holds that name (the stale binding of a dead
// session is overwritten).
func (r *Registry) Create(id string, cols, rows int, name string) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	if _, dup := r.sessions[id]; dup {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	placeholder := &Session{ID: id, CreatedAt: time.Now()}
	r.sessions[id] = placeholder
	r.mu.Unlock()

	adapter, err := pty.Open(cols, rows, r.ptyOpts, r.logger)
	if err != nil {
		r.mu.Lock()
		delete(r.sessions, id)
		r.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	r.mu.Lock()
	if cur, ok := r.sessions[id]; !ok || cur != placeholder || r.closed {
		// Closed (or torn down) while the shell was spawning.
		r.mu.Unlock()
		adapter.Terminate()
		return ErrRegistryClosed
	}
	placeholder.Name = name
	placeholder.Cols = cols
	placeholder.Rows = rows
	placeholder.adapter = adapter
	if name != "" {
		if prior, bound := r.names[name]; !bound || !r.liveLocked(prior) {
			r.names[name] = id
		}
	}
	r.wg.Add(1)
	// Created is emitted before the pump starts so it always precedes
	// the session's first output event.
	r.emit(Event{Kind: EventCreated, SessionID: id})
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.SessionsActive.Inc()
		r.metrics.SessionsTotal.Inc()
	}
	r.logger.Info("session created",
		zap.String("session_id", id),
		zap.String("name", name),
		zap.Int("cols", cols),
		zap.Int("rows", rows),
		zap.String("shell", adapter.Shell()),
	)

	go r.pump(placeholder)
	return nil
}

// Input forwards bytes to a session's input stream. Write failures on a
// live session are logged, not surfaced; only an unknown id is an error.
func (r *Registry) Input(id string, data []byte) error {
	sess, err := r.lookup(id)
	if err != nil {
		return err
	}
	if r.metrics != nil {
		r.metrics.TerminalBytesIn.Add(float64(len(data)))
	}
	sess.adapter.Write(data)
	return nil
}

// Resize changes a session's terminal geometry.
func (r *Registry) Resize(id string, cols, rows int) error {
	sess, err := r.lookup(id)
	if err != nil {
		return err
	}
	r.mu.Lock()
	sess.Cols = cols
	sess.Rows = rows
	r.mu.Unlock()
	sess.adapter.Resize(cols, rows)
	return nil
}

// Close terminates a session. It always succeeds: closing an unknown or
// already-closed id is a no-op, which keeps client-initiated and
// process-exit-initiated closes race-free.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return
	}
	r.finish(sess)
}

// CloseAll terminates every session and closes the event stream. Used
// on connection teardown; the registry accepts no creates afterwards.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	r.closed = true
	snapshot := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		snapshot = append(snapshot, sess)
	}
	r.mu.Unlock()

	for _, sess := range snapshot {
		r.finish(sess)
	}
	r.wg.Wait()

	r.eventsMu.Lock()
	if !r.eventsClosed {
		r.eventsClosed = true
		close(r.events)
	}
	r.eventsMu.Unlock()
}

// LookupNamed resolves a session name to its live session id.
func (r *Registry) LookupNamed(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.names[name]
	if !ok || !r.liveLocked(id) {
		return "", false
	}
	return id, true
}

// List returns a snapshot of all live sessions.
func (r *Registry) List() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]Info, 0, len(r.sessions))
	for _, sess := range r.sessions {
		if sess.adapter == nil {
			continue
		}
		infos = append(infos, Info{
			ID:        sess.ID,
			Name:      sess.Name,
			Cols:      sess.Cols,
			Rows:      sess.Rows,
			CreatedAt: sess.CreatedAt,
		})
	}
	return infos
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, sess := range r.sessions {
		if sess.adapter != nil {
			n++
		}
	}
	return n
}

func (r *Registry) lookup(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok || sess.adapter == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return sess, nil
}

// liveLocked reports whether id maps to a fully created session.
// Caller holds r.mu.
func (r *Registry) liveLocked(id string) bool {
	sess, ok := r.sessions[id]
	return ok && sess.adapter != nil
}

// pump forwards one session's output into the event stream. It runs as
// an independent goroutine per session, so a slow or idle session never
// delays another. Closed is emitted here, after the output stream has
// drained, so every output event for the session precedes it.
func (r *Registry) pump(sess *Session) {
	defer r.wg.Done()

	for chunk := range sess.adapter.Output() {
		if r.metrics != nil {
			r.metrics.TerminalBytesOut.Add(float64(len(chunk)))
		}
		r.emit(Event{Kind: EventOutput, SessionID: sess.ID, Data: chunk})
	}

	// Natural exit and explicit close converge here.
	r.finish(sess)
	r.emit(Event{Kind: EventClosed, SessionID: sess.ID})
	r.logger.Info("session closed", zap.String("session_id", sess.ID))
}

// finish unregisters a session and releases its process. Idempotent:
// the client close path, the natural-exit path, and CloseAll all funnel
// through the session's closeOnce.
func (r *Registry) finish(sess *Session) {
	sess.closeOnce.Do(func() {
		r.mu.Lock()
		delete(r.sessions, sess.ID)
		if sess.Name != "" && r.names[sess.Name] == sess.ID {
			delete(r.names, sess.Name)
		}
		r.mu.Unlock()

		if sess.adapter != nil {
			sess.adapter.Terminate()
			if r.metrics != nil {
				r.metrics.SessionsActive.Dec()
			}
		} else {
			// Reserved but never spawned; no pump exists to report it.
			r.emit(Event{Kind: EventClosed, SessionID: sess.ID})
		}
	})
}

// emit delivers an event unless the stream has been closed. Delivery
// may block on a full buffer; the consumer contract (drain until
// closed) bounds that.
func (r *Registry) emit(ev Event) {
	r.eventsMu.RLock()
	defer r.eventsMu.RUnlock()
	if r.eventsClosed {
		return
	}
	r.events <- ev
}
