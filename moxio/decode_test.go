package moxio

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestDecode(t *testing.T) {
	input := []byte{'t', 0xe9, 's', 't'}

	buf, err := io.ReadAll(DecodeReader("iso-8859-1", bytes.NewReader(input)))
	if err != nil {
		t.Fatalf("read from decoder: %v", err)
	}
	if string(buf) != "tést" {
		t.Fatalf("got %q, expected tést", buf)
	}

	s, err := DecodeBytes("ISO-8859-1", input)
	if err != nil || s != "tést" {
		t.Fatalf("decode bytes: got %q %v", s, err)
	}

	s, err = DecodeBytes("", []byte("plain"))
	if err != nil || s != "plain" {
		t.Fatalf("decode bytes without charset: got %q %v", s, err)
	}

	// Unknown charsets pass through the reader, but are an error for DecodeBytes.
	buf, err = io.ReadAll(DecodeReader("x-bogus", bytes.NewReader(input)))
	if err != nil || !bytes.Equal(buf, input) {
		t.Fatalf("unknown charset reader: got %q %v", buf, err)
	}
	_, err = DecodeBytes("x-bogus", input)
	if !errors.Is(err, ErrUnknownCharset) {
		t.Fatalf("got err %v, expected %v", err, ErrUnknownCharset)
	}
}

func TestReadAll(t *testing.T) {
	buf, err := ReadAll(strings.NewReader("12345"), 5)
	if err != nil || string(buf) != "12345" {
		t.Fatalf("got %q %v", buf, err)
	}
	_, err = ReadAll(strings.NewReader("123456"), 5)
	if !errors.Is(err, ErrLimit) {
		t.Fatalf("got err %v, expected %v", err, ErrLimit)
	}
	buf, err = ReadAll(strings.NewReader("123456"), 0)
	if err != nil || string(buf) != "123456" {
		t.Fatalf("no limit: got %q %v", buf, err)
	}
}
