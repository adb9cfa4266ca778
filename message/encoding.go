package message

import (
	"mime"
	"strings"

	"github.com/mjl-/mailflow/metrics"
)

// Encoding is the result of selecting a Content-Transfer-Encoding for a body.
type Encoding string

const (
	Encoding7bit      Encoding = "7bit"
	Encoding8bit      Encoding = "8bit"
	EncodingUnchanged Encoding = "unchanged" // Body can not be sent as 7bit or 8bit, caller must use a fallback.
)

// MaxLineLength is the maximum length of a line in bytes, excluding the line
// ending, for bodies without transfer encoding, RFC 5322 section 2.1.1.
const MaxLineLength = 998

// Selection is the encoding selected for a body. Content is the body,
// unmodified.
type Selection struct {
	Encoding Encoding
	Content  []byte
}

// LineStats returns the number of lines in body, the length in bytes of the
// longest line excluding line ending, and whether body is 7bit ASCII. Lines
// end with \n, \r\n or a bare \r.
func LineStats(body []byte) (lines, longest int, ascii bool) {
	ascii = true
	n := 0
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c >= 0x80 {
			ascii = false
		}
		if c != '\r' && c != '\n' {
			n++
			continue
		}
		if c == '\r' && i+1 < len(body) && body[i+1] == '\n' {
			i++
		}
		lines++
		longest = max(longest, n)
		n = 0
	}
	if n > 0 {
		lines++
		longest = max(longest, n)
	}
	return
}

// SelectEncoding returns the transfer encoding for a plain text body: 7bit for
// ASCII, 8bit for other data, and EncodingUnchanged if a line is longer than
// MaxLineLength, regardless of its characters.
func SelectEncoding(body []byte) Selection {
	_, longest, ascii := LineStats(body)
	var enc Encoding
	switch {
	case longest > MaxLineLength:
		enc = EncodingUnchanged
	case ascii:
		enc = Encoding7bit
	default:
		enc = Encoding8bit
	}
	metrics.EncodingInc(string(enc))
	return Selection{enc, body}
}

// SelectPartEncoding is like SelectEncoding, but only selects 7bit or 8bit for
// text/plain parts. For other media types, or an unparsable contentType,
// EncodingUnchanged is returned. An empty contentType is text/plain.
// RFC 2045 section 5.2.
func SelectPartEncoding(contentType string, body []byte) Selection {
	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err != nil || strings.ToLower(mt) != "text/plain" {
			metrics.EncodingInc(string(EncodingUnchanged))
			return Selection{EncodingUnchanged, body}
		}
	}
	return SelectEncoding(body)
}
