package sandbox

import "bytes"

// capWriter stores at most max bytes and silently discards the rest.
// It never returns an error or a short write, so the goroutine draining
// the child's pipe keeps consuming and the child is never blocked on a
// full pipe buffer once the cap is reached.
type capWriter struct {
	max   int
	buf   bytes.Buffer
	total int64
}

func newCapWriter(max int) *capWriter {
	return &capWriter{max: max}
}

func (w *capWriter) Write(p []byte) (int, error) {
	w.total += int64(len(p))
	if remaining := w.max - w.buf.Len(); remaining > 0 {
		if len(p) > remaining {
			p = p[:remaining]
		}
		w.buf.Write(p)
	}
	return len(p), nil
}

// Bytes returns the captured prefix, at most max bytes long
func (w *capWriter) Bytes() []byte {
	return w.buf.Bytes()
}

// Truncated reports whether any bytes were discarded
func (w *capWriter) Truncated() bool {
	return w.total > int64(w.buf.Len())
}
