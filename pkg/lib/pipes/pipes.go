// Package pipes allocates the OS pipe pairs behind the six logical streams
// of a spawn. Each stream gets one unidirectional pipe; the shell keeps one
// end and the child receives the other, oriented by the stream's direction.
package pipes

import (
	"fmt"
	"os"

	"github.com/hexsh/hexsh/pkg/lib/stream"
)

// Endpoints is one allocated pipe pair, oriented for its stream kind.
// For parent-to-child streams Parent is the write end and Child the read end;
// for child-to-parent streams the orientation is reversed.
type Endpoints struct {
	Kind   stream.Kind
	Parent *os.File
	Child  *os.File
}

// Set holds the endpoints for all six streams of a single spawn.
type Set struct {
	byKind [stream.Count]Endpoints
}

// NewSet allocates one pipe per stream kind. If any allocation fails the
// pairs created so far are closed before the error is returned, so a failed
// call never leaks descriptors.
func NewSet() (*Set, error) {
	s := &Set{}
	for _, k := range stream.Kinds() {
		r, w, err := os.Pipe()
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("allocating %s pipe: %w", k, err)
		}
		ep := Endpoints{Kind: k}
		if k.Direction() == stream.ParentToChild {
			ep.Parent, ep.Child = w, r
		} else {
			ep.Parent, ep.Child = r, w
		}
		s.byKind[k] = ep
	}
	return s, nil
}

// Get returns the endpoints for the given kind.
func (s *Set) Get(k stream.Kind) Endpoints {
	return s.byKind[k]
}

// Parent returns the shell-side end for the given kind.
func (s *Set) Parent(k stream.Kind) *os.File {
	return s.byKind[k].Parent
}

// Child returns the child-side end for the given kind.
func (s *Set) Child(k stream.Kind) *os.File {
	return s.byKind[k].Child
}

// TakeParent returns the shell-side end and removes it from the set, so a
// later Close will not touch it. The caller owns the file from then on.
func (s *Set) TakeParent(k stream.Kind) *os.File {
	f := s.byKind[k].Parent
	s.byKind[k].Parent = nil
	return f
}

// CloseChildEnds closes the child-side ends still held by the set. The shell
// calls this right after handing them to the launched child: keeping them
// open would hold the write side of every child-to-parent pipe and EOF would
// never reach the drain workers.
func (s *Set) CloseChildEnds() error {
	var first error
	for i := range s.byKind {
		if f := s.byKind[i].Child; f != nil {
			if err := f.Close(); err != nil && first == nil {
				first = err
			}
			s.byKind[i].Child = nil
		}
	}
	return first
}

// CloseParentEnds closes the shell-side ends still held by the set.
func (s *Set) CloseParentEnds() error {
	var first error
	for i := range s.byKind {
		if f := s.byKind[i].Parent; f != nil {
			if err := f.Close(); err != nil && first == nil {
				first = err
			}
			s.byKind[i].Parent = nil
		}
	}
	return first
}

// Close closes every end still held by the set.
func (s *Set) Close() error {
	err := s.CloseChildEnds()
	if err2 := s.CloseParentEnds(); err == nil {
		err = err2
	}
	return err
}
