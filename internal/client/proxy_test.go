package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdamSaleh/runotebook/internal/infrastructure/config"
	"github.com/AdamSaleh/runotebook/internal/infrastructure/logging"
	"github.com/AdamSaleh/runotebook/internal/infrastructure/monitoring"
	"github.com/AdamSaleh/runotebook/internal/protocol"
	"github.com/AdamSaleh/runotebook/internal/ws"
)

const testToken = "proxy-test-token"

func init() {
	gin.SetMode(gin.TestMode)
}

// sinkRecorder accumulates output per session for assertions.
type sinkRecorder struct {
	mu  sync.Mutex
	out map[string]*strings.Builder
}

func newSinkRecorder() *sinkRecorder {
	return &sinkRecorder{out: make(map[string]*strings.Builder)}
}

func (r *sinkRecorder) sink(sessionID string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.out[sessionID]
	if !ok {
		b = &strings.Builder{}
		r.out[sessionID] = b
	}
	b.Write(data)
}

func (r *sinkRecorder) get(sessionID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.out[sessionID]; ok {
		return b.String()
	}
	return ""
}

func startServer(t *testing.T) string {
	t.Helper()

	cfg := config.Default()
	cfg.Auth.Token = testToken
	cfg.Terminal.Shell = "/bin/sh"
	cfg.Terminal.WorkingDir = "/tmp"

	gateway := ws.NewGateway(cfg, logging.NewNop(), monitoring.NewMetrics())
	router := gin.New()
	router.GET("/ws", gateway.HandleConnection)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestProxyPendingCommandRunsOnCreated(t *testing.T) {
	url := startServer(t)
	rec := newSinkRecorder()

	proxy, err := Dial(context.Background(), DialConfig{URL: url, Token: testToken}, rec.sink, logging.NewNop())
	require.NoError(t, err)
	defer proxy.Close()
	go proxy.Run()

	sessionID, err := proxy.CreateSession("build", "echo BOOT\n", 0, 0)
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)

	eventually(t, 5*time.Second, func() bool {
		return strings.Contains(rec.get(sessionID), "BOOT")
	}, "pending command output never arrived")

	got, ok := proxy.LookupNamed("build")
	require.True(t, ok)
	assert.Equal(t, sessionID, got)
}

func TestProxyNamedReuseAndForgetOnClosed(t *testing.T) {
	url := startServer(t)
	rec := newSinkRecorder()

	proxy, err := Dial(context.Background(), DialConfig{URL: url, Token: testToken}, rec.sink, logging.NewNop())
	require.NoError(t, err)
	defer proxy.Close()
	go proxy.Run()

	sessionID, err := proxy.CreateSession("deploy", "", 0, 0)
	require.NoError(t, err)

	// Reuse path: named lookup routes a second command into the
	// existing session instead of spawning another.
	got, ok := proxy.LookupNamed("deploy")
	require.True(t, ok)
	require.NoError(t, proxy.Input(got, "echo AGAIN\n"))
	eventually(t, 5*time.Second, func() bool {
		return strings.Contains(rec.get(sessionID), "AGAIN")
	}, "input to reused session produced no output")

	require.NoError(t, proxy.CloseSession(sessionID))
	eventually(t, 5*time.Second, func() bool {
		_, ok := proxy.LookupNamed("deploy")
		return !ok
	}, "name binding survived the closed event")
}

func TestProxyHandleUnknownOutputDropped(t *testing.T) {
	var called bool
	p := &Proxy{
		sink:    func(string, []byte) { called = true },
		logger:  logging.NewNop(),
		live:    map[string]bool{},
		pending: map[string]string{},
		named:   map[string]string{},
	}

	p.handle(protocol.Output("ghost", []byte("boo")))
	assert.False(t, called, "output for an unknown session must be dropped")
}

func TestProxyHandleIdleCreated(t *testing.T) {
	p := &Proxy{
		sink:    func(string, []byte) {},
		logger:  logging.NewNop(),
		live:    map[string]bool{"s1": true},
		pending: map[string]string{},
		named:   map[string]string{},
	}

	// created with no pending command is a normal idle creation.
	p.handle(protocol.Created("s1"))
	assert.True(t, p.live["s1"])
}

func TestProxyHandleClosedClearsBookkeeping(t *testing.T) {
	p := &Proxy{
		sink:    func(string, []byte) {},
		logger:  logging.NewNop(),
		live:    map[string]bool{"s1": true},
		pending: map[string]string{"s1": "echo never\n"},
		named:   map[string]string{"build": "s1", "other": "s2"},
	}

	p.handle(protocol.Closed("s1"))

	assert.Empty(t, p.live)
	assert.Empty(t, p.pending)
	assert.Equal(t, map[string]string{"other": "s2"}, p.named)
}

func TestRedialGivesUp(t *testing.T) {
	backoff := NewBackoff(Settings{Step: time.Millisecond, MaxAttempts: 2})

	err := Redial(context.Background(),
		DialConfig{URL: "ws://127.0.0.1:1/ws", HandshakeTimeout: 100 * time.Millisecond},
		backoff, nil, logging.NewNop(), nil)

	assert.ErrorIs(t, err, ErrGaveUp)
	assert.Equal(t, StateGaveUp, backoff.State())
}

func TestRedialHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	backoff := NewBackoff(Settings{Step: time.Second, MaxAttempts: 100})
	err := Redial(ctx,
		DialConfig{URL: "ws://127.0.0.1:1/ws", HandshakeTimeout: 100 * time.Millisecond},
		backoff, nil, logging.NewNop(), nil)

	assert.ErrorIs(t, err, context.Canceled)
}
