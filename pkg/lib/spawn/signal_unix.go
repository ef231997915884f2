//go:build unix

package spawn

import (
	"os"
	"syscall"

	"github.com/hexsh/hexsh/pkg/lib"
)

// Terminate asks the child's process group to shut down. Exited and reaped
// children are left alone.
func (h *Handle) Terminate() error {
	return h.signalGroup(syscall.SIGTERM)
}

// Kill forcefully ends the child's process group.
func (h *Handle) Kill() error {
	return h.signalGroup(syscall.SIGKILL)
}

// Signal delivers sig to the child process itself, not its group.
func (h *Handle) Signal(sig os.Signal) error {
	h.mu.RLock()
	running := h.state == lib.StateRunning
	h.mu.RUnlock()
	if !running {
		return nil
	}
	return h.cmd.Process.Signal(sig)
}

func (h *Handle) signalGroup(sig syscall.Signal) error {
	h.mu.RLock()
	pid := h.pid
	running := h.state == lib.StateRunning
	h.mu.RUnlock()
	if !running {
		return nil
	}
	// Negative pid addresses the whole process group set up at launch, so
	// grandchildren sharing our pipes go down with the child.
	return syscall.Kill(-pid, sig)
}
