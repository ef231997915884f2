//go:build unix

package pipes

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// Readable reports how many bytes are queued in the pipe behind f and could
// be read without blocking. Drain workers use it to size reads under burst
// load instead of growing buffers blindly.
func Readable(f *os.File) (int, error) {
	conn, err := f.SyscallConn()
	if err != nil {
		return 0, err
	}

	var (
		queued   int
		ioctlErr error
	)
	ctrlErr := conn.Control(func(fd uintptr) {
		for {
			queued, ioctlErr = unix.IoctlGetInt(int(fd), unix.FIONREAD)
			if !errors.Is(ioctlErr, unix.EINTR) {
				return
			}
		}
	})
	if ctrlErr != nil {
		return 0, ctrlErr
	}
	return queued, ioctlErr
}
