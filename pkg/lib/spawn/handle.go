package spawn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/hexsh/hexsh/pkg/lib"
	"github.com/hexsh/hexsh/pkg/lib/stream"
)

// Handle is the parent's grip on one spawned child: native identity, the
// per-stream resources still owned by the shell, and the lifecycle state.
// State is mutated only by the launch path and the reap goroutine.
type Handle struct {
	id      string
	command lib.Command
	cmd     *exec.Cmd

	mu         sync.RWMutex
	pid        int
	state      lib.LifecycleState
	exitCode   *int
	start      time.Time
	end        *time.Time
	inputs     map[stream.Kind]io.WriteCloser
	streamErrs map[stream.Kind]error

	drains sync.WaitGroup
	done   chan struct{} // closed once Reaped
}

// ID returns the spawn's generated identifier.
func (h *Handle) ID() string { return h.id }

// Command returns the command line this handle was spawned with.
func (h *Handle) Command() lib.Command { return h.command }

// PID returns the native process id, or 0 if the child never started.
func (h *Handle) PID() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.pid
}

// Status returns a snapshot of the lifecycle state.
func (h *Handle) Status() lib.Status {
	h.mu.RLock()
	defer h.mu.RUnlock()

	st := lib.Status{State: h.state, StartTime: h.start}
	if h.exitCode != nil {
		st.ExitCode = new(int)
		*st.ExitCode = *h.exitCode
	}
	if h.end != nil {
		t := *h.end
		st.EndTime = &t
	}
	return st
}

// Done returns a channel closed once the handle is Reaped: exit status
// collected and every drain worker finished.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the handle is Reaped or the context ends, and returns
// the status snapshot either way.
func (h *Handle) Wait(ctx context.Context) (lib.Status, error) {
	select {
	case <-h.done:
		return h.Status(), nil
	case <-ctx.Done():
		return h.Status(), ctx.Err()
	}
}

// Input returns the held write end of a parent-to-child stream, for callers
// that feed the child incrementally. It fails unless the stream was spawned
// with Hold and has not been closed yet.
func (h *Handle) Input(k stream.Kind) (io.Writer, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	w := h.inputs[k]
	if w == nil {
		return nil, fmt.Errorf("stream %s is not held open", k)
	}
	return w, nil
}

// CloseInput closes a held stream, delivering EOF to the child. Closing a
// stream that is not held is a no-op.
func (h *Handle) CloseInput(k stream.Kind) error {
	h.mu.Lock()
	w := h.inputs[k]
	delete(h.inputs, k)
	h.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Close()
}

// StreamErrors returns the I/O errors absorbed by stream workers, keyed by
// stream. End-of-file is not an error; an entry appears only when a read or
// a feed copy genuinely failed. The child's lifecycle is unaffected, the map
// exists for the shell's debug output.
func (h *Handle) StreamErrors() map[stream.Kind]error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.streamErrs) == 0 {
		return nil
	}
	out := make(map[stream.Kind]error, len(h.streamErrs))
	for k, err := range h.streamErrs {
		out[k] = err
	}
	return out
}

// recordStreamErr keeps the first error a stream worker absorbed.
func (h *Handle) recordStreamErr(k stream.Kind, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.streamErrs == nil {
		h.streamErrs = make(map[stream.Kind]error)
	}
	if _, dup := h.streamErrs[k]; !dup {
		h.streamErrs[k] = err
	}
}

// reap collects the exit status, then holds the handle in Exited until every
// drain worker has seen end-of-stream. Only then does the state become
// Reaped, so output that arrived just before death is never lost behind a
// reappearing prompt.
func (h *Handle) reap(done <-chan error) {
	err := <-done

	h.mu.Lock()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitCodeOf(exitErr)
			h.exitCode = &code
		}
		// Non-exit errors leave the code unknown.
	} else {
		code := 0
		h.exitCode = &code
	}
	now := time.Now()
	h.end = &now
	h.state = lib.StateExited
	h.mu.Unlock()

	logger.Printf("child %s exited, waiting for drains", h.id)
	h.drains.Wait()

	h.mu.Lock()
	h.state = lib.StateReaped
	held := h.inputs
	h.inputs = make(map[stream.Kind]io.WriteCloser)
	h.mu.Unlock()

	for _, w := range held {
		_ = w.Close()
	}

	logger.Printf("child %s reaped", h.id)
	close(h.done)
}

// markLaunchFailed settles a handle whose child never started: it passes
// through Exited with the reserved code and, having nothing to drain, lands
// Reaped immediately.
func (h *Handle) markLaunchFailed() {
	now := time.Now()
	code := LaunchFailureExitCode

	h.mu.Lock()
	h.exitCode = &code
	h.end = &now
	h.state = lib.StateExited
	h.mu.Unlock()

	h.mu.Lock()
	h.state = lib.StateReaped
	h.mu.Unlock()

	close(h.done)
}

// exitCodeOf maps a wait result to the shell's exit code convention:
// signal-terminated children report 128 plus the signal number.
func exitCodeOf(exitErr *exec.ExitError) int {
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return exitErr.ExitCode()
}
