package flow

import (
	"strings"
)

// Unflow reassembles paragraphs from format=flowed text, as sent by Flow.
//
// Lines ending with a space, except the signature separator, are joined with
// the next line if it has the same quote depth. If delsp is set, the trailing
// space of a flowed line is removed before joining. Space-stuffing is undone
// for lines without quote marker, RFC 3676 section 4.4.
func Unflow(text string, delsp bool) string {
	var b strings.Builder
	var quote string // Of current paragraph.
	var flowed bool  // Whether previous line was flowed.
	var started bool // Whether anything was written.
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		q, _ := Prefix(line)
		content := line[len(q):]
		if q == "" && strings.HasPrefix(content, " ") {
			content = content[1:]
		}

		if !flowed || Depth(q) != Depth(quote) {
			if started {
				b.WriteString("\n")
			}
			b.WriteString(q)
			quote = q
		}
		started = true

		flowed = strings.HasSuffix(content, " ") && content != Signature
		if flowed && delsp {
			content = content[:len(content)-1]
		}
		b.WriteString(content)
	}
	return b.String()
}
