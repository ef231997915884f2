//go:build windows

package spawn

import (
	"fmt"
	"os/exec"
	"syscall"

	"github.com/hexsh/hexsh/pkg/lib/pipes"
	"github.com/hexsh/hexsh/pkg/lib/stream"
)

// configure wires the child-side pipe ends into cmd for platforms without
// fork/exec. Descriptor inheritance by fixed number does not exist here:
// the three non-stdio ends are passed by handle value instead. Each handle
// is marked inheritable immediately before launch, listed explicitly so no
// unrelated handle leaks into the child, and keeps its numeric value across
// CreateProcess. The bootstrap table carries slot numbers for the standard
// trio and raw handle values for the rest; the child runtime maps both back
// to streams before user code runs.
func configure(cmd *exec.Cmd, set *pipes.Set) error {
	cmd.Stdin = set.Child(stream.Stdin)
	cmd.Stdout = set.Child(stream.Stdout)
	cmd.Stderr = set.Child(stream.Stderr)

	for _, k := range []stream.Kind{stream.Stdin, stream.Stdout, stream.Stderr} {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%d", k.EnvVar(), k.Slot()))
	}

	extra := make([]syscall.Handle, 0, 3)
	for _, k := range []stream.Kind{stream.Stddbg, stream.Stddati, stream.Stddato} {
		f := set.Child(k)
		if err := pipes.MarkInheritable(f); err != nil {
			return fmt.Errorf("marking %s handle inheritable: %w", k, err)
		}
		extra = append(extra, syscall.Handle(f.Fd()))
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%d", k.EnvVar(), f.Fd()))
	}

	cmd.SysProcAttr = &syscall.SysProcAttr{
		AdditionalInheritedHandles: extra,
	}
	return nil
}
