package sink

import (
	"bytes"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// Terminal is a shared write path onto one output device. Several streams of
// the same child (typically stderr and stddbg) can target the same device;
// the terminal serializes their batches so two streams never interleave in
// the middle of a line. Batches are ordered first-come first-served.
type Terminal struct {
	mu  sync.Mutex
	w   io.Writer
	tty bool
}

const (
	escDim   = "\x1b[2m"
	escReset = "\x1b[0m"
)

// NewTerminal wraps an output device. When the device is an interactive
// terminal, stream labels are dimmed so they stand apart from child output.
func NewTerminal(w io.Writer) *Terminal {
	t := &Terminal{w: w}
	if f, ok := w.(*os.File); ok {
		t.tty = term.IsTerminal(int(f.Fd()))
	}
	return t
}

// EnableColor overrides terminal detection. Label dimming is forced on or
// off regardless of what the device is.
func (t *Terminal) EnableColor(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tty = on
}

// Stream returns a sink feeding this terminal. A non-empty label is printed
// in front of every line of that stream. Each returned sink must be used by
// a single drain worker.
func (t *Terminal) Stream(label string) Sink {
	return &termStream{t: t, label: label}
}

// termStream assembles complete lines for one stream. Bytes after the last
// newline of a write are held back until the line completes or the stream
// closes, so a chunk boundary inside a line never splits it across another
// stream's output.
type termStream struct {
	t       *Terminal
	label   string
	pending []byte
}

func (s *termStream) Write(p []byte) (int, error) {
	s.pending = append(s.pending, p...)
	i := bytes.LastIndexByte(s.pending, '\n')
	if i < 0 {
		return len(p), nil
	}

	if err := s.t.writeBatch(s.label, s.pending[:i+1]); err != nil {
		return 0, err
	}
	s.pending = append(s.pending[:0], s.pending[i+1:]...)
	return len(p), nil
}

// Close flushes a trailing partial line, if any. The device itself stays
// open; it does not belong to the stream.
func (s *termStream) Close() error {
	if len(s.pending) == 0 {
		return nil
	}
	err := s.t.writeBatch(s.label, s.pending)
	s.pending = nil
	return err
}

func (t *Terminal) writeBatch(label string, batch []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if label == "" {
		_, err := t.w.Write(batch)
		return err
	}

	prefix := "[" + label + "] "
	if t.tty {
		prefix = escDim + "[" + label + "]" + escReset + " "
	}
	for len(batch) > 0 {
		line := batch
		if i := bytes.IndexByte(batch, '\n'); i >= 0 {
			line, batch = batch[:i+1], batch[i+1:]
		} else {
			batch = nil
		}
		if _, err := io.WriteString(t.w, prefix); err != nil {
			return err
		}
		if _, err := t.w.Write(line); err != nil {
			return err
		}
	}
	return nil
}
