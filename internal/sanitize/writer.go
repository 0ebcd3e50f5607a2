package sanitize

import (
	"bytes"
	"io"
	"sync"
)

// Writer wraps an io.Writer and sanitizes output line by line. It exists for
// subprocess and git progress streams, which echo remote URLs verbatim.
// Output is buffered until a line break so a credential split across Write
// calls cannot slip through.
type Writer struct {
	mu  sync.Mutex
	dst io.Writer
	buf bytes.Buffer
}

// NewWriter returns a sanitizing writer around dst.
func NewWriter(dst io.Writer) *Writer {
	return &Writer{dst: dst}
}

// Write implements io.Writer. Complete lines (terminated by \n or \r) are
// sanitized and forwarded; the trailing partial line stays buffered.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		data := w.buf.Bytes()
		idx := bytes.IndexAny(data, "\r\n")
		if idx < 0 {
			break
		}
		line := string(data[:idx+1])
		w.buf.Next(idx + 1)
		if _, err := io.WriteString(w.dst, String(line)); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// Flush sanitizes and forwards any buffered partial line.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() == 0 {
		return nil
	}
	rest := w.buf.String()
	w.buf.Reset()
	_, err := io.WriteString(w.dst, String(rest))
	return err
}
