// Package client implements the peer side of the session protocol: a
// proxy that mints session identifiers, queues an initial command until
// the server acknowledges creation, tracks named sessions for reuse,
// and renders output through a caller-supplied sink. A Backoff state
// machine governs reconnection with fixed-step delay growth and a hard
// give-up after too many consecutive failures.
package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/AdamSaleh/runotebook/internal/infrastructure/logging"
	"github.com/AdamSaleh/runotebook/internal/protocol"
	"github.com/AdamSaleh/runotebook/internal/shared/id"
)

// OutputSink receives bytes produced by a session, in production order
// for that session. Called from the proxy's read goroutine.
type OutputSink func(sessionID string, data []byte)

// DialConfig addresses a server.
type DialConfig struct {
	// URL is the websocket endpoint, e.g. ws://localhost:8080/ws.
	URL string
	// Token authenticates the connection; sent as a query parameter.
	Token string
	// HandshakeTimeout bounds the dial. Defaults to 10s.
	HandshakeTimeout time.Duration
}

// Proxy drives sessions over one established connection.
//
// All exported methods are safe for concurrent use. Run must be
// invoked (usually in its own goroutine) for acknowledgments and
// output to flow; it returns when the transport closes.
type Proxy struct {
	conn   *websocket.Conn
	sink   OutputSink
	logger *logging.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	live    map[string]bool   // session id -> alive locally
	pending map[string]string // session id -> initial command, consumed once
	named   map[string]string // name -> session id
}

// Dial connects and returns a proxy bound to the new connection.
func Dial(ctx context.Context, cfg DialConfig, sink OutputSink, logger *logging.Logger) (*Proxy, error) {
	timeout := cfg.HandshakeTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	url := cfg.URL
	if cfg.Token != "" {
		url += "?token=" + cfg.Token
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return NewProxy(conn, sink, logger), nil
}

// NewProxy wraps an already-established connection.
func NewProxy(conn *websocket.Conn, sink OutputSink, logger *logging.Logger) *Proxy {
	if sink == nil {
		sink = func(string, []byte) {}
	}
	return &Proxy{
		conn:    conn,
		sink:    sink,
		logger:  logger,
		live:    make(map[string]bool),
		pending: make(map[string]string),
		named:   make(map[string]string),
	}
}

// CreateSession mints a fresh session identifier and sends a create
// request. The identifier is chosen locally so initialCommand can be
// queued before the server answers; it is sent as input exactly once,
// on the first created acknowledgment for that identifier. cols/rows
// of zero let the server apply its defaults.
func (p *Proxy) CreateSession(name, initialCommand string, cols, rows int) (string, error) {
	sessionID := id.NewSessionID().String()

	p.mu.Lock()
	p.live[sessionID] = true
	if initialCommand != "" {
		p.pending[sessionID] = initialCommand
	}
	if name != "" {
		p.named[name] = sessionID
	}
	p.mu.Unlock()

	err := p.write(protocol.ClientMessage{
		Type: protocol.TypeCreate,
		ID:   sessionID,
		Name: name,
		Cols: cols,
		Rows: rows,
	})
	if err != nil {
		p.forget(sessionID)
		return "", err
	}
	return sessionID, nil
}

// Input sends bytes to a session's input stream.
func (p *Proxy) Input(sessionID, data string) error {
	return p.write(protocol.ClientMessage{
		Type:      protocol.TypeInput,
		SessionID: sessionID,
		Data:      data,
	})
}

// Resize requests a terminal geometry change.
func (p *Proxy) Resize(sessionID string, cols, rows int) error {
	return p.write(protocol.ClientMessage{
		Type:      protocol.TypeResize,
		SessionID: sessionID,
		Cols:      cols,
		Rows:      rows,
	})
}

// CloseSession asks the server to terminate a session. Local
// bookkeeping is cleared when the closed event arrives, not here.
func (p *Proxy) CloseSession(sessionID string) error {
	return p.write(protocol.ClientMessage{
		Type:      protocol.TypeClose,
		SessionID: sessionID,
	})
}

// LookupNamed reports the live session bound to name, if any. Callers
// use it to send input to an existing session instead of spawning a
// duplicate.
func (p *Proxy) LookupNamed(name string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sessionID, ok := p.named[name]
	return sessionID, ok
}

// Run reads server events until the transport closes and dispatches
// them: created triggers the pending command, output feeds the sink,
// closed clears local bookkeeping. It returns the read error that
// ended the loop.
func (p *Proxy) Run() error {
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return err
		}

		var ev protocol.ServerEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			p.logger.Warn("dropping unparseable server event", zap.Error(err))
			continue
		}
		p.handle(ev)
	}
}

// Close tears down the transport. Sessions die with the connection.
func (p *Proxy) Close() error {
	return p.conn.Close()
}

func (p *Proxy) handle(ev protocol.ServerEvent) {
	switch ev.Type {
	case protocol.TypeCreated:
		p.mu.Lock()
		cmd, ok := p.pending[ev.SessionID]
		delete(p.pending, ev.SessionID)
		p.mu.Unlock()
		// No pending command is a normal idle creation.
		if ok {
			if err := p.Input(ev.SessionID, cmd); err != nil {
				p.logger.Warn("sending pending command failed",
					zap.String("session_id", ev.SessionID),
					zap.Error(err),
				)
			}
		}

	case protocol.TypeOutput:
		p.mu.Lock()
		known := p.live[ev.SessionID]
		p.mu.Unlock()
		if !known {
			// The render target may already be gone locally.
			p.logger.Debug("dropping output for unknown session",
				zap.String("session_id", ev.SessionID))
			return
		}
		p.sink(ev.SessionID, []byte(ev.Data))

	case protocol.TypeClosed:
		p.forget(ev.SessionID)

	case protocol.TypeError:
		p.logger.Warn("server rejected request", zap.String("message", ev.Message))
	}
}

// forget removes every trace of a session: liveness, any unconsumed
// pending command, and its name binding whatever the close cause.
func (p *Proxy) forget(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.live, sessionID)
	delete(p.pending, sessionID)
	for name, bound := range p.named {
		if bound == sessionID {
			delete(p.named, name)
		}
	}
}

func (p *Proxy) write(msg protocol.ClientMessage) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.conn.WriteJSON(msg)
}

// Redial runs a connect/serve loop governed by a Backoff: each
// successful connection resets the delay, each failure grows it by a
// fixed step, and once the attempt budget is exhausted the loop
// returns ErrGaveUp. onConnect receives each fresh proxy before its
// Run loop starts, so callers can recreate sessions after a drop.
func Redial(ctx context.Context, cfg DialConfig, backoff *Backoff, sink OutputSink, logger *logging.Logger, onConnect func(*Proxy)) error {
	for {
		proxy, err := Dial(ctx, cfg, sink, logger)
		if err == nil {
			backoff.Reset()
			if onConnect != nil {
				onConnect(proxy)
			}
			err = proxy.Run()
			proxy.Close()
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay, ok := backoff.Next()
		if !ok {
			logger.Error("giving up on reconnection",
				zap.Int("failures", backoff.Failures()),
				zap.Error(err),
			)
			return ErrGaveUp
		}
		logger.Info("reconnecting",
			zap.Duration("delay", delay),
			zap.Int("failures", backoff.Failures()),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
