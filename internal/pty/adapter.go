package pty

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
	"go.uber.org/zap"

	"github.com/AdamSaleh/runotebook/internal/infrastructure/logging"
)

// ErrBadGeometry is returned by Open for non-positive dimensions.
var ErrBadGeometry = errors.New("terminal geometry must be positive")

const readBufferSize = 4096

// Options configures the shell process attached to a new adapter.
type Options struct {
	Shell      string
	WorkingDir string
	Env        map[string]string
}

// Adapter wraps one pseudo-terminal and its attached shell process.
//
// Output is delivered as an ordered sequence of byte chunks on the
// channel returned by Output; the channel is closed exactly once, when
// the process exits or the pseudo-terminal is closed. Terminate is
// idempotent and safe to call after natural process exit.
type Adapter struct {
	shell  string
	cmd    *exec.Cmd
	ptmx   *os.File
	output chan []byte
	done   chan struct{}
	logger *logging.Logger

	mu       sync.RWMutex
	closed   bool
	termOnce sync.Once
}

// Open allocates a pseudo-terminal of the given geometry and starts an
// interactive shell attached to it.
func Open(cols, rows int, opts Options, logger *logging.Logger) (*Adapter, error) {
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadGeometry, cols, rows)
	}

	shell := opts.Shell
	if shell == "" {
		shell = os.Getenv("SHELL")
		if shell == "" {
			shell = "/bin/bash"
		}
	}

	workingDir := opts.WorkingDir
	if workingDir == "" {
		workingDir = os.Getenv("HOME")
		if workingDir == "" {
			workingDir = "/tmp"
		}
	}

	cmd := exec.Command(shell)
	cmd.Dir = workingDir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	for key, value := range opts.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start pty: %w", err)
	}

	a := &Adapter{
		shell:  shell,
		cmd:    cmd,
		ptmx:   ptmx,
		output: make(chan []byte, 64),
		done:   make(chan struct{}),
		logger: logger,
	}

	go a.readLoop()
	go a.reap()

	return a, nil
}

// Shell returns the shell binary attached to the adapter.
func (a *Adapter) Shell() string { return a.shell }

// Output returns the ordered stream of chunks produced by the process.
// The channel is closed when the stream ends.
func (a *Adapter) Output() <-chan []byte { return a.output }

// Done is closed once the shell process has been reaped.
func (a *Adapter) Done() <-chan struct{} { return a.done }

// Write forwards bytes to the process input. Writes to a closed adapter
// are dropped; failures are logged, never surfaced to the remote peer.
func (a *Adapter) Write(p []byte) {
	a.mu.RLock()
	closed := a.closed
	a.mu.RUnlock()

	if closed {
		a.logger.Debug("dropping write to closed terminal", zap.Int("bytes", len(p)))
		return
	}

	if _, err := a.ptmx.Write(p); err != nil {
		a.logger.Warn("terminal write failed", zap.Error(err))
	}
}

// Resize propagates a geometry change to the pseudo-terminal. It is
// idempotent and a no-op once the adapter is closed.
func (a *Adapter) Resize(cols, rows int) {
	if cols <= 0 || rows <= 0 {
		a.logger.Warn("ignoring resize to invalid geometry",
			zap.Int("cols", cols), zap.Int("rows", rows))
		return
	}

	a.mu.RLock()
	closed := a.closed
	a.mu.RUnlock()
	if closed {
		return
	}

	if err := pty.Setsize(a.ptmx, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	}); err != nil {
		a.logger.Warn("terminal resize failed", zap.Error(err))
	}
}

// Terminate kills the shell process and releases the pseudo-terminal.
// Safe to call concurrently and after natural process exit.
func (a *Adapter) Terminate() {
	a.termOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		a.mu.Unlock()

		if a.cmd.Process != nil {
			if err := a.cmd.Process.Kill(); err != nil {
				a.logger.Debug("terminal kill", zap.Error(err))
			}
		}
		if err := a.ptmx.Close(); err != nil {
			a.logger.Debug("pty close", zap.Error(err))
		}
	})
}

// readLoop pumps PTY output into the output channel until the stream
// ends, then converges on the terminated state.
func (a *Adapter) readLoop() {
	buf := make([]byte, readBufferSize)
	for {
		n, err := a.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			a.output <- chunk
		}
		if err != nil {
			// EOF or closed PTY ends the stream; both paths converge
			// on Terminate so resources are released exactly once.
			break
		}
	}
	close(a.output)
	a.Terminate()
}

// reap waits for the shell process so it never lingers as a zombie.
func (a *Adapter) reap() {
	_ = a.cmd.Wait()
	close(a.done)
}
