package message

import (
	"io"
)

// Writer is a write-through helper, collecting properties about the written
// message and replacing bare \n line endings with \r\n.
type Writer struct {
	writer io.Writer

	Has8bit bool  // Whether a byte with the high/8bit has been written.
	Size    int64 // Number of bytes written, may be different from bytes written to Writer due to LF to CRLF conversion.

	lastCR bool // Whether the last byte written was \r, for \r\n spanning writes.
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{writer: w}
}

// Write implements io.Writer, and writes buf to the Writer's underlying
// io.Writer. It converts bare new lines (LF) to carriage returns with new lines
// (CRLF).
func (w *Writer) Write(buf []byte) (int, error) {
	if !w.Has8bit {
		for _, b := range buf {
			if b&0x80 != 0 {
				w.Has8bit = true
				break
			}
		}
	}

	wrote := 0
	o := 0
	for i, b := range buf {
		if b != '\n' || i > 0 && buf[i-1] == '\r' || i == 0 && w.lastCR {
			continue
		}
		// Write buffer leading up to missing \r.
		if i > o {
			n, err := w.writer.Write(buf[o:i])
			wrote += n
			w.Size += int64(n)
			if err != nil {
				return wrote, err
			}
		}
		n, err := w.writer.Write([]byte{'\r', '\n'})
		if n == 2 {
			wrote += 1 // For only the newline.
			w.Size += 2
		}
		if err != nil {
			return wrote, err
		}
		o = i + 1
	}
	if o < len(buf) {
		n, err := w.writer.Write(buf[o:])
		wrote += n
		w.Size += int64(n)
		if err != nil {
			return wrote, err
		}
	}
	if len(buf) > 0 {
		w.lastCR = buf[len(buf)-1] == '\r'
	}
	return wrote, nil
}
