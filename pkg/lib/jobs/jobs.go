// Package jobs tracks spawned children by ordinal, the way an interactive
// shell numbers its jobs. The table is the only shared mutable state between
// the prompt loop and the per-child goroutines; everything it hands out is a
// snapshot or a handle with its own synchronization.
package jobs

import (
	"context"
	"errors"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/hexsh/hexsh/pkg/lib"
	"github.com/hexsh/hexsh/pkg/lib/sink"
	"github.com/hexsh/hexsh/pkg/lib/spawn"
	"github.com/hexsh/hexsh/pkg/lib/stream"
)

var logger = log.New(io.Discard, "jobs: ", log.LstdFlags)

// SetLogOutput routes this package's debug log, which is silent by default.
func SetLogOutput(w io.Writer) { logger.SetOutput(w) }

// ErrNoSuchJob is returned for ordinals that are not in the table.
var ErrNoSuchJob = errors.New("no such job")

// Mode says whether the shell is waiting on the job at the prompt.
type Mode int

const (
	Foreground Mode = iota
	Background
)

func (m Mode) String() string {
	if m == Background {
		return "background"
	}
	return "foreground"
}

// Entry is one tracked job. Buffers holds the retained sinks of background
// jobs so their output can be replayed when brought to the foreground.
type Entry struct {
	ID      int
	Mode    Mode
	Handle  *spawn.Handle
	Buffers map[stream.Kind]*sink.Buffer

	notified bool
}

// Table is the job registry.
type Table struct {
	mu      sync.RWMutex
	entries map[int]*Entry
	nextID  int
}

func NewTable() *Table {
	return &Table{
		entries: make(map[int]*Entry),
		nextID:  1,
	}
}

// Register adds a spawned handle to the table and returns its ordinal.
// Failed launches are registered too; they are already terminal and show up
// in listings like any exited job.
func (t *Table) Register(h *spawn.Handle, mode Mode, buffers map[stream.Kind]*sink.Buffer) *Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := &Entry{
		ID:      t.nextID,
		Mode:    mode,
		Handle:  h,
		Buffers: buffers,
	}
	t.entries[e.ID] = e
	t.nextID++
	logger.Printf("[%d] %s registered as %s", e.ID, h.ID(), mode)
	return e
}

// Get returns the entry for an ordinal.
func (t *Table) Get(id int) (*Entry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e := t.entries[id]
	if e == nil {
		return nil, ErrNoSuchJob
	}
	return e, nil
}

// Poll reports the job's lifecycle snapshot without blocking.
func (t *Table) Poll(id int) (lib.Status, error) {
	e, err := t.Get(id)
	if err != nil {
		return lib.Status{}, err
	}
	return e.Handle.Status(), nil
}

// Wait blocks until the job is Reaped or the context ends. Reaped is gated
// on the drain workers, so when Wait returns cleanly every byte the child
// ever wrote has already reached its sink.
func (t *Table) Wait(ctx context.Context, id int) (lib.Status, error) {
	e, err := t.Get(id)
	if err != nil {
		return lib.Status{}, err
	}
	return e.Handle.Wait(ctx)
}

// Remove drops an entry from the table. Waiting on a removed job is the
// caller's loss; the handle itself stays valid.
func (t *Table) Remove(id int) {
	t.mu.Lock()
	delete(t.entries, id)
	t.mu.Unlock()
}

// List returns the current entries in ordinal order.
func (t *Table) List() []*Entry {
	t.mu.RLock()
	out := make([]*Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TakeFinished returns jobs that reached Reaped since the last call and
// removes them from the table, mirroring how a shell announces finished
// background jobs once, right before the next prompt.
func (t *Table) TakeFinished() []*Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []*Entry
	for id, e := range t.entries {
		if e.notified {
			continue
		}
		if e.Handle.Status().State != lib.StateReaped {
			continue
		}
		e.notified = true
		out = append(out, e)
		delete(t.entries, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Terminate asks a job to shut down.
func (t *Table) Terminate(id int) error {
	e, err := t.Get(id)
	if err != nil {
		return err
	}
	return e.Handle.Terminate()
}

// Kill forcefully ends a job.
func (t *Table) Kill(id int) error {
	e, err := t.Get(id)
	if err != nil {
		return err
	}
	return e.Handle.Kill()
}

// Shutdown terminates every live job, gives their drains a grace period to
// reach EOF, then kills whatever is left and blocks until all of it is
// reaped. Output that made it into a pipe before the grace ran out is
// delivered; nothing is reported lost silently.
func (t *Table) Shutdown(grace time.Duration) {
	t.mu.RLock()
	live := make([]*Entry, 0, len(t.entries))
	for _, e := range t.entries {
		live = append(live, e)
	}
	t.mu.RUnlock()

	logger.Printf("shutting down %d jobs, grace %v", len(live), grace)
	for _, e := range live {
		_ = e.Handle.Terminate()
	}

	allDone := make(chan struct{})
	go func() {
		for _, e := range live {
			<-e.Handle.Done()
		}
		close(allDone)
	}()

	select {
	case <-allDone:
	case <-time.After(grace):
		logger.Printf("grace expired, killing remaining jobs")
		for _, e := range live {
			_ = e.Handle.Kill()
		}
		<-allDone
	}
}
