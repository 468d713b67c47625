package pty

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdamSaleh/runotebook/internal/infrastructure/logging"
)

func testOptions() Options {
	return Options{Shell: "/bin/sh", WorkingDir: "/tmp"}
}

// collectUntil drains the adapter output until the predicate matches the
// accumulated bytes or the timeout expires.
func collectUntil(t *testing.T, a *Adapter, timeout time.Duration, pred func([]byte) bool) []byte {
	t.Helper()
	var acc bytes.Buffer
	deadline := time.After(timeout)
	for {
		select {
		case chunk, ok := <-a.Output():
			if !ok {
				return acc.Bytes()
			}
			acc.Write(chunk)
			if pred(acc.Bytes()) {
				return acc.Bytes()
			}
		case <-deadline:
			t.Fatalf("timed out waiting for output, got %q", acc.String())
		}
	}
}

func drain(a *Adapter) {
	go func() {
		for range a.Output() {
		}
	}()
}

func TestOpenRejectsBadGeometry(t *testing.T) {
	logger := logging.NewNop()

	for _, tc := range []struct{ cols, rows int }{
		{0, 24}, {80, 0}, {-1, 24}, {80, -1}, {0, 0},
	} {
		_, err := Open(tc.cols, tc.rows, testOptions(), logger)
		assert.ErrorIs(t, err, ErrBadGeometry, "geometry %dx%d", tc.cols, tc.rows)
	}
}

func TestOpenRejectsMissingShell(t *testing.T) {
	_, err := Open(80, 24, Options{Shell: "/no/such/shell"}, logging.NewNop())
	assert.Error(t, err)
}

func TestEchoRoundTrip(t *testing.T) {
	a, err := Open(80, 24, testOptions(), logging.NewNop())
	require.NoError(t, err)
	defer a.Terminate()

	a.Write([]byte("echo HELLO\n"))

	out := collectUntil(t, a, 5*time.Second, func(b []byte) bool {
		return bytes.Contains(b, []byte("HELLO"))
	})
	assert.Contains(t, string(out), "HELLO")
}

func TestOutputOrderingPreserved(t *testing.T) {
	a, err := Open(80, 24, testOptions(), logging.NewNop())
	require.NoError(t, err)
	defer a.Terminate()

	a.Write([]byte("echo AAAA; echo BBBB\n"))

	out := collectUntil(t, a, 5*time.Second, func(b []byte) bool {
		// Skip the echoed command line; wait for both results.
		i := bytes.Index(b, []byte("AAAA"))
		if i < 0 {
			return false
		}
		return bytes.Contains(b[i+4:], []byte("BBBB"))
	})

	first := bytes.Index(out, []byte("AAAA"))
	second := bytes.LastIndex(out, []byte("BBBB"))
	assert.Less(t, first, second)
}

func TestOutputEndsOnProcessExit(t *testing.T) {
	a, err := Open(80, 24, testOptions(), logging.NewNop())
	require.NoError(t, err)

	a.Write([]byte("exit\n"))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-a.Output():
			if !ok {
				return // stream ended, as expected
			}
		case <-deadline:
			t.Fatal("output channel never closed after process exit")
		}
	}
}

func TestTerminateIdempotent(t *testing.T) {
	a, err := Open(80, 24, testOptions(), logging.NewNop())
	require.NoError(t, err)
	drain(a)

	a.Terminate()
	a.Terminate()

	select {
	case <-a.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process was not reaped after terminate")
	}
}

func TestWriteAfterTerminateIsDropped(t *testing.T) {
	a, err := Open(80, 24, testOptions(), logging.NewNop())
	require.NoError(t, err)
	drain(a)

	a.Terminate()
	<-a.Done()

	// Must not panic or block.
	a.Write([]byte("echo nope\n"))
	a.Resize(100, 40)
}

func TestResize(t *testing.T) {
	a, err := Open(80, 24, testOptions(), logging.NewNop())
	require.NoError(t, err)
	defer a.Terminate()
	drain(a)

	a.Resize(120, 48)
	a.Resize(120, 48) // idempotent
	a.Resize(0, 48)   // invalid, ignored
}
