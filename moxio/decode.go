package moxio

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// charsetEncoding returns the encoding for charset, or nil for charsets that
// need no decoding (empty, us-ascii, utf-8) or are unknown.
func charsetEncoding(charset string) (enc encoding.Encoding, known bool) {
	switch strings.ToLower(charset) {
	case "", "us-ascii", "ascii", "utf-8", "utf8":
		return nil, true
	}
	enc, _ = ianaindex.MIME.Encoding(charset)
	if enc == nil {
		enc, _ = ianaindex.IANA.Encoding(charset)
	}
	return enc, enc != nil
}

// DecodeReader returns a reader that reads from r, decoding as charset. If
// charset is empty, us-ascii, utf-8 or unknown, the original reader is
// returned and no decoding takes place.
func DecodeReader(charset string, r io.Reader) io.Reader {
	enc, _ := charsetEncoding(charset)
	if enc == nil {
		return r
	}
	return enc.NewDecoder().Reader(r)
}

// DecodeBytes returns buf decoded from charset to a UTF-8 string. Unlike
// DecodeReader, an unknown charset is an error.
func DecodeBytes(charset string, buf []byte) (string, error) {
	enc, known := charsetEncoding(charset)
	if !known {
		return "", fmt.Errorf("%w: %q", ErrUnknownCharset, charset)
	}
	if enc == nil {
		return string(buf), nil
	}
	out, err := enc.NewDecoder().Bytes(buf)
	if err != nil {
		return "", fmt.Errorf("decoding from %s: %w", charset, err)
	}
	return string(out), nil
}
