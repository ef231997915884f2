package lib

import (
	"strings"
	"time"
)

// LifecycleState tracks a spawned child through its life.
// Spawning exists only inside the launch call. Reaped is reached only after
// the exit status has been collected AND every drain worker has seen EOF.
type LifecycleState int

const (
	StateSpawning LifecycleState = iota
	StateRunning
	StateExited
	StateReaped
)

// String returns a human-readable state name.
func (s LifecycleState) String() string {
	switch s {
	case StateSpawning:
		return "spawning"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateReaped:
		return "reaped"
	default:
		return "unknown"
	}
}

// Command captures what to launch: a program plus its argument vector.
// The program is expected to be pre-resolved by the caller; the shell's
// lexing and interpolation happen before spawn ever sees it.
type Command struct {
	Command string
	Args    []string
}

// String renders the command the way a job listing shows it.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Command
	}
	return c.Command + " " + strings.Join(c.Args, " ")
}

// Status is a point-in-time snapshot of one child's lifecycle.
type Status struct {
	State     LifecycleState
	ExitCode  *int
	StartTime time.Time
	EndTime   *time.Time
}
