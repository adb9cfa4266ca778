package moxio

import (
	"io"
	"log/slog"

	"github.com/mjl-/mailflow/mlog"
)

// TraceWriter logs data written through it at trace level.
type TraceWriter struct {
	log  mlog.Log
	what string
	w    io.Writer
}

// NewTraceWriter wraps w into a writer that logs all writes to log with level
// trace, with message what.
func NewTraceWriter(log mlog.Log, what string, w io.Writer) *TraceWriter {
	return &TraceWriter{log, what, w}
}

// Write logs a trace line for buf, then writes buf.
func (w *TraceWriter) Write(buf []byte) (int, error) {
	w.log.Trace(w.what, slog.String("data", string(buf)))
	return w.w.Write(buf)
}

// TraceReader logs data read through it at trace level.
type TraceReader struct {
	log  mlog.Log
	what string
	r    io.Reader
}

// NewTraceReader wraps reader r into a reader that logs all reads to log with
// level trace, with message what.
func NewTraceReader(log mlog.Log, what string, r io.Reader) *TraceReader {
	return &TraceReader{log, what, r}
}

// Read does a single Read on its underlying reader, logs data of successful
// reads, and returns the data read.
func (r *TraceReader) Read(buf []byte) (int, error) {
	n, err := r.r.Read(buf)
	if n > 0 {
		r.log.Trace(r.what, slog.String("data", string(buf[:n])))
	}
	return n, err
}
