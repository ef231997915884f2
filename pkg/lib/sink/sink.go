// Package sink provides the consumers a drain worker hands child output to:
// an in-memory replayable buffer, a shared terminal writer that batches text
// at newline boundaries, a file target, and a discarder. Every sink accepts
// writes until the stream reaches EOF, at which point the drain worker closes
// it exactly once.
package sink

import (
	"fmt"
	"io"
	"log"
	"os"
)

var logger = log.New(io.Discard, "sink: ", log.LstdFlags)

// SetLogOutput routes this package's debug log, which is silent by default.
func SetLogOutput(w io.Writer) { logger.SetOutput(w) }

// Sink consumes the bytes drained from one child-to-parent stream.
type Sink interface {
	io.Writer
	Close() error
}

// Discard accepts and drops everything. Streams without a configured
// destination drain here; they must still be consumed or the child would
// block once the pipe fills.
var Discard Sink = discard{}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
func (discard) Close() error                { return nil }

// NewFile opens (and truncates) a file as a stream destination.
func NewFile(path string) (Sink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening sink file: %w", err)
	}
	return f, nil
}
