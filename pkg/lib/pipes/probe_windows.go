//go:build windows

package pipes

import (
	"os"

	"golang.org/x/sys/windows"
)

// Readable reports how many bytes are queued in the pipe behind f and could
// be read without blocking.
func Readable(f *os.File) (int, error) {
	conn, err := f.SyscallConn()
	if err != nil {
		return 0, err
	}

	var (
		avail   uint32
		peekErr error
	)
	ctrlErr := conn.Control(func(fd uintptr) {
		peekErr = windows.PeekNamedPipe(windows.Handle(fd), nil, 0, nil, &avail, nil)
	})
	if ctrlErr != nil {
		return 0, ctrlErr
	}
	return int(avail), peekErr
}

// MarkInheritable flags the file's handle so a child created with handle
// inheritance enabled can see it. Anonymous pipe handles are created
// non-inheritable; the launcher marks exactly the six child-side ends just
// before creating the process.
func MarkInheritable(f *os.File) error {
	conn, err := f.SyscallConn()
	if err != nil {
		return err
	}

	var setErr error
	ctrlErr := conn.Control(func(fd uintptr) {
		setErr = windows.SetHandleInformation(windows.Handle(fd),
			windows.HANDLE_FLAG_INHERIT, windows.HANDLE_FLAG_INHERIT)
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return setErr
}
