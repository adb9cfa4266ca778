package message

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func tcheck(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %s", msg, err)
	}
}

func tcompare(t *testing.T, got, exp any) {
	t.Helper()
	if !reflect.DeepEqual(got, exp) {
		t.Fatalf("got %q, expected %q", got, exp)
	}
}

func tfail(t *testing.T, err, expErr error) {
	t.Helper()
	if (err == nil) != (expErr == nil) || expErr != nil && !errors.Is(err, expErr) {
		t.Fatalf("got err %v, expected %v", err, expErr)
	}
}

func TestLineStats(t *testing.T) {
	test := func(body string, expLines, expLongest int, expASCII bool) {
		t.Helper()
		lines, longest, ascii := LineStats([]byte(body))
		if lines != expLines || longest != expLongest || ascii != expASCII {
			t.Fatalf("line stats %q: got %d %d %v, expected %d %d %v", body, lines, longest, ascii, expLines, expLongest, expASCII)
		}
	}

	test("", 0, 0, true)
	test("a", 1, 1, true)
	test("a\n", 1, 1, true)
	test("a\nbb\r\nccc\rdddd", 4, 4, true)
	test("\n\n", 2, 0, true)
	test("\r\r\n", 2, 0, true)
	test("héllo\nx", 2, 6, false)
}

func TestSelectEncoding(t *testing.T) {
	test := func(body string, exp Encoding) {
		t.Helper()
		sel := SelectEncoding([]byte(body))
		if sel.Encoding != exp {
			t.Fatalf("select encoding for %q: got %s, expected %s", body, sel.Encoding, exp)
		}
		tcompare(t, string(sel.Content), body)
	}

	test("", Encoding7bit)
	test("plain text\nwith lines\n", Encoding7bit)
	test("grüße\n", Encoding8bit)
	test("\x00\x7f", Encoding7bit)
	test(strings.Repeat("a", 998), Encoding7bit)
	test(strings.Repeat("a", 999), EncodingUnchanged)
	test("short\r\n"+strings.Repeat("a", 998)+"\r\n", Encoding7bit)
	test("short\r"+strings.Repeat("a", 999)+"\rshort", EncodingUnchanged)

	// Line length is in bytes, not characters.
	test(strings.Repeat("é", 499), Encoding8bit)
	test(strings.Repeat("é", 500), EncodingUnchanged)
}

func TestSelectPartEncoding(t *testing.T) {
	test := func(ct, body string, exp Encoding) {
		t.Helper()
		sel := SelectPartEncoding(ct, []byte(body))
		if sel.Encoding != exp {
			t.Fatalf("select part encoding for %q: got %s, expected %s", ct, sel.Encoding, exp)
		}
	}

	test("", "text", Encoding7bit)
	test("text/plain", "text", Encoding7bit)
	test("TEXT/Plain; charset=utf-8", "grüße", Encoding8bit)
	test("text/plain; format=flowed", strings.Repeat("x", 1000), EncodingUnchanged)
	test("text/html", "<p>text</p>", EncodingUnchanged)
	test("application/octet-stream", "data", EncodingUnchanged)
	test("text/", "text", EncodingUnchanged)
}
