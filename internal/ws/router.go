package ws

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/AdamSaleh/runotebook/internal/infrastructure/logging"
	"github.com/AdamSaleh/runotebook/internal/infrastructure/monitoring"
	"github.com/AdamSaleh/runotebook/internal/protocol"
	"github.com/AdamSaleh/runotebook/internal/session"
)

// Router decodes inbound frames, dispatches them to the session
// registry, and serializes registry events back onto the connection.
//
// Two goroutines drive it: the caller's (inbound frames) and an
// internal writer draining the registry event stream. Both funnel
// writes through a single mutex, as the websocket allows only one
// concurrent writer.
type Router struct {
	conn        *websocket.Conn
	registry    *session.Registry
	defaultCols int
	defaultRows int
	logger      *logging.Logger
	metrics     *monitoring.Metrics

	writeMu     sync.Mutex
	writeFailed bool
}

// NewRouter binds a router to an upgraded connection. defaultCols and
// defaultRows fill in create requests that carry no geometry.
func NewRouter(conn *websocket.Conn, registry *session.Registry, defaultCols, defaultRows int, logger *logging.Logger, metrics *monitoring.Metrics) *Router {
	if defaultCols <= 0 {
		defaultCols = 80
	}
	if defaultRows <= 0 {
		defaultRows = 24
	}
	return &Router{
		conn:        conn,
		registry:    registry,
		defaultCols: defaultCols,
		defaultRows: defaultRows,
		logger:      logger,
		metrics:     metrics,
	}
}

// Run services the connection until the transport closes, then tears
// down every session it owns. It blocks for the connection lifetime.
func (rt *Router) Run() {
	writerDone := make(chan struct{})
	go rt.writeEvents(writerDone)

	rt.readLoop()

	// Transport is gone: sessions do not outlive their connection.
	rt.registry.CloseAll()
	<-writerDone
}

func (rt *Router) readLoop() {
	for {
		_, data, err := rt.conn.ReadMessage()
		if err != nil {
			rt.logger.Debug("websocket read ended", zap.Error(err))
			return
		}

		msg, err := protocol.DecodeClient(data)
		if err != nil {
			// Malformed frames are dropped, never fatal and never
			// reinterpreted as another message kind.
			rt.logger.Warn("dropping malformed frame", zap.Error(err))
			if rt.metrics != nil {
				rt.metrics.MalformedMessages.Inc()
			}
			continue
		}

		if rt.metrics != nil {
			rt.metrics.RecordMessage(msg.Type, "in")
		}
		rt.dispatch(msg)
	}
}

func (rt *Router) dispatch(msg protocol.ClientMessage) {
	switch msg.Type {
	case protocol.TypeCreate:
		cols, rows := msg.Cols, msg.Rows
		if cols <= 0 {
			cols = rt.defaultCols
		}
		if rows <= 0 {
			rows = rt.defaultRows
		}
		if err := rt.registry.Create(msg.ID, cols, rows, msg.Name); err != nil {
			rt.send(protocol.Errorf("%s", err))
		}
		// The created acknowledgment flows through the event stream so
		// it always precedes the session's first output.

	case protocol.TypeInput:
		if err := rt.registry.Input(msg.SessionID, []byte(msg.Data)); err != nil {
			rt.send(protocol.Errorf("%s", err))
		}

	case protocol.TypeResize:
		if err := rt.registry.Resize(msg.SessionID, msg.Cols, msg.Rows); err != nil {
			rt.send(protocol.Errorf("%s", err))
		}

	case protocol.TypeClose:
		rt.registry.Close(msg.SessionID)
	}
}

// writeEvents drains the registry event stream until it closes. It
// keeps draining even after a write failure so session teardown never
// stalls behind a dead transport.
func (rt *Router) writeEvents(done chan<- struct{}) {
	defer close(done)

	for ev := range rt.registry.Events() {
		switch ev.Kind {
		case session.EventCreated:
			rt.send(protocol.Created(ev.SessionID))
		case session.EventOutput:
			rt.send(protocol.Output(ev.SessionID, ev.Data))
		case session.EventClosed:
			rt.send(protocol.Closed(ev.SessionID))
		}
	}
}

func (rt *Router) send(ev protocol.ServerEvent) {
	rt.writeMu.Lock()
	defer rt.writeMu.Unlock()

	if rt.writeFailed {
		return
	}
	if err := rt.conn.WriteJSON(ev); err != nil {
		rt.writeFailed = true
		rt.logger.Debug("websocket write failed", zap.Error(err))
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordMessage(ev.Type, "out")
	}
}
