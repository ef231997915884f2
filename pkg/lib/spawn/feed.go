package spawn

import (
	"io"
	"os"

	"github.com/hexsh/hexsh/pkg/lib/stream"
)

// feed copies a source into one parent-to-child stream and then closes the
// write end, which is the only way the child ever sees EOF. Write errors are
// absorbed here: a child that exits without consuming its input turns the
// copy into a broken pipe, and that ends this stream without touching the
// other five.
func (h *Handle) feed(k stream.Kind, src io.Reader, w *os.File) {
	n, err := io.Copy(w, src)
	if err != nil {
		logger.Printf("%s: %s feed stopped after %d bytes: %v", h.id, k, n, err)
		h.recordStreamErr(k, err)
	} else {
		logger.Printf("%s: %s fed %d bytes", h.id, k, n)
	}
	_ = w.Close()
}
