package spawn

import (
	"io"
	"os"

	"github.com/hexsh/hexsh/pkg/lib/pipes"
	"github.com/hexsh/hexsh/pkg/lib/sink"
	"github.com/hexsh/hexsh/pkg/lib/stream"
)

const (
	// drainChunk is the default read size per loop iteration.
	drainChunk = 32 * 1024
	// drainChunkMax bounds how far a worker grows its buffer when the pipe
	// backlog reported by the kernel exceeds the default.
	drainChunkMax = 1 << 20
)

// drain moves everything the child writes on one stream into its sink, one
// bounded read at a time, until end-of-stream. One goroutine per stream is
// what makes the no-deadlock guarantee: the shell can never stall all output
// pipes at once, so a child blocked writing is always unblocked eventually.
func (h *Handle) drain(k stream.Kind, r *os.File, out sink.Sink) {
	defer h.drains.Done()

	buf := make([]byte, drainChunk)
	for {
		if queued, err := pipes.Readable(r); err == nil && queued > len(buf) && len(buf) < drainChunkMax {
			size := queued
			if size > drainChunkMax {
				size = drainChunkMax
			}
			buf = make([]byte, size)
		}

		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				// A failing sink must not stall the stream; keep consuming
				// so the child never blocks on us.
				logger.Printf("%s: %s sink failed: %v", h.id, k, werr)
				h.recordStreamErr(k, werr)
				_ = out.Close()
				out = sink.Discard
			}
		}
		if err != nil {
			// EOF and read errors end this stream only; the other five
			// streams and the process itself are unaffected.
			if err != io.EOF {
				h.recordStreamErr(k, err)
			}
			break
		}
	}

	_ = out.Close()
	_ = r.Close()
	logger.Printf("%s: %s drained", h.id, k)
}
