// Package childio is the child-side half of the bootstrap contract. A
// program spawned by the shell finds one environment variable per logical
// stream; resolving them maps each name back to an open file before user
// code runs. The table is consumed on first resolve and removed from the
// environment, so child code and grandchildren never see it.
//
// Values are platform-neutral by construction: the standard trio is always
// published as its slot number and resolves through the process's standard
// files, everything else is the native descriptor or handle value the parent
// arranged to be inherited.
package childio

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/hexsh/hexsh/pkg/lib/stream"
)

// ErrNotChild means the bootstrap table is absent: the process was not
// spawned by the shell.
var ErrNotChild = errors.New("stream bootstrap table not present in environment")

// Streams holds the six resolved stream files.
type Streams struct {
	files [stream.Count]*os.File
}

// Resolve consumes the bootstrap table and returns the six streams. All six
// variables must be present; a partial table means a broken parent and is an
// error, not a fallback.
func Resolve() (*Streams, error) {
	s := &Streams{}
	for _, k := range stream.Kinds() {
		name := k.EnvVar()
		raw, ok := os.LookupEnv(name)
		if !ok {
			if k == stream.Stdin {
				return nil, ErrNotChild
			}
			return nil, fmt.Errorf("%s missing: %w", name, ErrNotChild)
		}

		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s has malformed value %q: %v", name, raw, err)
		}

		switch v {
		case uint64(stream.Stdin.Slot()):
			s.files[k] = os.Stdin
		case uint64(stream.Stdout.Slot()):
			s.files[k] = os.Stdout
		case uint64(stream.Stderr.Slot()):
			s.files[k] = os.Stderr
		default:
			s.files[k] = os.NewFile(uintptr(v), k.String())
		}
		if s.files[k] == nil {
			return nil, fmt.Errorf("%s refers to an unusable descriptor %d", name, v)
		}
	}

	for _, k := range stream.Kinds() {
		_ = os.Unsetenv(k.EnvVar())
	}
	return s, nil
}

// IsChild reports whether the bootstrap table is present, without consuming
// it.
func IsChild() bool {
	_, ok := os.LookupEnv(stream.Stdin.EnvVar())
	return ok
}

// File returns the resolved file for a stream kind.
func (s *Streams) File(k stream.Kind) *os.File {
	if !k.Valid() {
		return nil
	}
	return s.files[k]
}

// Debug returns the stddbg stream, the conventional place for out-of-band
// diagnostics that must not mix with stdout or stderr.
func (s *Streams) Debug() *os.File { return s.files[stream.Stddbg] }

// DataIn returns the binary input stream.
func (s *Streams) DataIn() *os.File { return s.files[stream.Stddati] }

// DataOut returns the binary output stream.
func (s *Streams) DataOut() *os.File { return s.files[stream.Stddato] }
