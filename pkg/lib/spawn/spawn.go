// Package spawn launches child processes with the six-stream topology and
// owns everything that keeps it live afterward: one drain worker per
// child-to-parent stream so the child can never block on a full pipe, feed
// writers for the parent-to-child streams with close-as-EOF semantics, and
// the lifecycle bookkeeping from launch to reap.
package spawn

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"time"

	"github.com/hexsh/hexsh/pkg/lib"
	"github.com/hexsh/hexsh/pkg/lib/pipes"
	"github.com/hexsh/hexsh/pkg/lib/sink"
	"github.com/hexsh/hexsh/pkg/lib/stream"
)

var logger = log.New(io.Discard, "", log.LstdFlags)

// SetLogOutput routes this package's debug log, which is silent by default.
func SetLogOutput(w io.Writer) { logger.SetOutput(w) }

// LaunchFailureExitCode is the reserved code reported when the child never
// reached its program entry point. A running child may legitimately exit
// with any code, so launch failures are detected through the runtime's
// close-on-exec status channel, never inferred from this value.
const LaunchFailureExitCode = 127

// ErrResourceExhausted marks a spawn that failed while allocating its pipes.
// Nothing was started and no descriptors are left behind.
var ErrResourceExhausted = errors.New("descriptor budget exhausted")

// LaunchError reports a child that could not be started: image not found,
// permission denied, native process creation failed. The handle it
// accompanies is already terminal with LaunchFailureExitCode.
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching %s: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Input selects what a parent-to-child stream carries. The zero value closes
// the stream immediately, so the child sees EOF on first read.
type Input struct {
	// Reader is copied to the child; when it is exhausted the stream closes,
	// which is the only EOF signal the child ever gets.
	Reader io.Reader
	// Hold keeps the write end open for explicit writes through
	// Handle.Input until Handle.CloseInput or reap.
	Hold bool
}

// Plan describes one spawn: the command line plus what each of the six
// streams is connected to on the shell side.
type Plan struct {
	Command lib.Command
	Dir     string
	Env     []string // extra KEY=VALUE entries on top of the shell environment

	// Inputs configures the parent-to-child streams. Absent kinds get
	// immediate EOF.
	Inputs map[stream.Kind]Input
	// Outputs configures the child-to-parent streams. Absent kinds are
	// drained to sink.Discard; they are consumed either way.
	Outputs map[stream.Kind]sink.Sink
}

func (p *Plan) validate() error {
	if p.Command.Command == "" {
		return errors.New("command is required")
	}
	for k := range p.Inputs {
		if !k.Valid() || k.Direction() != stream.ParentToChild {
			return fmt.Errorf("stream %s cannot be an input", k)
		}
		if in := p.Inputs[k]; in.Reader != nil && in.Hold {
			return fmt.Errorf("stream %s cannot both feed a reader and be held open", k)
		}
	}
	for k := range p.Outputs {
		if !k.Valid() || k.Direction() != stream.ChildToParent {
			return fmt.Errorf("stream %s cannot be an output", k)
		}
	}
	return nil
}

// Spawn launches the plan's command with all six streams wired. On success
// the returned handle is Running, its drain workers are attached, and the
// parent holds no child-side endpoints. A launch failure returns both a
// *LaunchError and a handle already terminal with LaunchFailureExitCode, so
// failed spawns can be registered and observed like any exited job.
func Spawn(plan Plan) (*Handle, error) {
	if err := plan.validate(); err != nil {
		return nil, err
	}

	// The endpoint set is built up front and consumed exactly once below:
	// every end is either handed to the child, taken over by a worker, or
	// closed before Spawn returns.
	set, err := pipes.NewSet()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResourceExhausted, err)
	}

	cmd := exec.Command(plan.Command.Command, plan.Command.Args...)
	cmd.Dir = plan.Dir
	cmd.Env = append(os.Environ(), plan.Env...)

	if err := configure(cmd, set); err != nil {
		_ = set.Close()
		return nil, err
	}

	h := &Handle{
		id:      lib.NewID(),
		command: plan.Command,
		cmd:     cmd,
		state:   lib.StateSpawning,
		start:   time.Now(),
		inputs:  make(map[stream.Kind]io.WriteCloser),
		done:    make(chan struct{}),
	}

	logger.Printf("spawning %s as %s", plan.Command, h.id)
	if err := cmd.Start(); err != nil {
		_ = set.Close()
		h.markLaunchFailed()
		return h, &LaunchError{Command: plan.Command.Command, Err: err}
	}

	h.mu.Lock()
	h.pid = cmd.Process.Pid
	h.state = lib.StateRunning
	h.mu.Unlock()

	// The child holds its copies now; dropping ours is what lets EOF reach
	// the drain workers when the child goes away.
	_ = set.CloseChildEnds()

	for _, k := range stream.ByDirection(stream.ChildToParent) {
		out := plan.Outputs[k]
		if out == nil {
			out = sink.Discard
		}
		h.drains.Add(1)
		go h.drain(k, set.TakeParent(k), out)
	}

	for _, k := range stream.ByDirection(stream.ParentToChild) {
		in := plan.Inputs[k]
		w := set.TakeParent(k)
		switch {
		case in.Reader != nil:
			go h.feed(k, in.Reader, w)
		case in.Hold:
			h.inputs[k] = w
		default:
			_ = w.Close()
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()
	go h.reap(done)

	return h, nil
}
