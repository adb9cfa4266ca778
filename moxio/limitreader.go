package moxio

import (
	"errors"
	"io"
)

var (
	ErrLimit          = errors.New("input exceeds maximum size") // Returned by LimitReader.
	ErrUnknownCharset = errors.New("unknown charset")            // Returned by DecodeBytes.
)

// LimitReader reads up to Limit bytes, returning an error if more bytes are
// read. LimitReader can be used to enforce a maximum input length.
type LimitReader struct {
	R     io.Reader
	Limit int64
}

// Read reads bytes from the underlying reader.
func (r *LimitReader) Read(buf []byte) (int, error) {
	n, err := r.R.Read(buf)
	if n > 0 {
		r.Limit -= int64(n)
		if r.Limit < 0 {
			return 0, ErrLimit
		}
	}
	return n, err
}

// ReadAll reads all of r, returning ErrLimit if r has more than limit bytes. A
// limit of zero or less means no limit.
func ReadAll(r io.Reader, limit int64) ([]byte, error) {
	if limit > 0 {
		r = &LimitReader{R: r, Limit: limit}
	}
	return io.ReadAll(r)
}
