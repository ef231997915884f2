//go:build unix

package spawn

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/hexsh/hexsh/pkg/lib/pipes"
	"github.com/hexsh/hexsh/pkg/lib/stream"
)

// configure wires the child-side pipe ends into cmd for fork/exec platforms.
// Slots 0-2 ride the standard stdio fields; ExtraFiles lands the remaining
// ends on descriptors 3, 4 and 5 in order, so each stream's descriptor
// number equals its slot. The runtime opens every pipe close-on-exec and
// re-enables inheritance only for these six by duplicating them into place
// between fork and exec; an exec failure travels back over its internal
// close-on-exec status pipe and surfaces as the error of Start.
func configure(cmd *exec.Cmd, set *pipes.Set) error {
	cmd.Stdin = set.Child(stream.Stdin)
	cmd.Stdout = set.Child(stream.Stdout)
	cmd.Stderr = set.Child(stream.Stderr)
	cmd.ExtraFiles = []*os.File{
		set.Child(stream.Stddbg),
		set.Child(stream.Stddati),
		set.Child(stream.Stddato),
	}

	// The bootstrap table names the same descriptor numbers explicitly, so
	// children resolve streams by name rather than trusting position.
	for _, k := range stream.Kinds() {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%d", k.EnvVar(), k.Slot()))
	}

	cmd.SysProcAttr = &syscall.SysProcAttr{
		// New process group to manage children as a unit
		Setpgid: true,
	}
	return nil
}
