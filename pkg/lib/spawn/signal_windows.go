//go:build windows

package spawn

import (
	"os"

	"github.com/hexsh/hexsh/pkg/lib"
)

// Terminate ends the child. There is no graceful termination signal on this
// platform, so Terminate and Kill behave identically.
func (h *Handle) Terminate() error {
	return h.Kill()
}

// Kill forcefully ends the child.
func (h *Handle) Kill() error {
	h.mu.RLock()
	running := h.state == lib.StateRunning
	h.mu.RUnlock()
	if !running {
		return nil
	}
	return h.cmd.Process.Kill()
}

// Signal delivers sig to the child. Only os.Kill is supported natively.
func (h *Handle) Signal(sig os.Signal) error {
	h.mu.RLock()
	running := h.state == lib.StateRunning
	h.mu.RUnlock()
	if !running {
		return nil
	}
	return h.cmd.Process.Signal(sig)
}
