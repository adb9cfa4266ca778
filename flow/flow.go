// Package flow implements format=flowed wrapping of plain text lines, with
// DelSp=yes semantics, RFC 3676.
//
// Flow splits a single logical line into physical lines of at most a given
// width. Each physical line but the last ends with a space that was added, the
// soft break, which a receiver removes before joining the lines again. Quote
// markers are repeated on each physical line. Lines that could be mistaken for
// quoted text or an mbox "From " line are space-stuffed.
package flow

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultWidth is the default maximum width of a flowed line. It leaves room
// for quoting by a reply while staying below 78 characters, RFC 3676 section 4.2.
const DefaultWidth = 77

// Signature is the signature separator line. It ends with a space, but is
// never a flowed line, RFC 3676 section 4.3.
const Signature = "-- "

const tabStop = 8

// Flow returns the physical lines for a single logical line of text (without
// line ending), wrapped at width visual columns. Tabs are expanded to the next
// multiple of 8 columns for measuring, but kept in the output.
//
// The returned slice always has at least one element. Words longer than width
// are not broken, so a line can be longer than width if it consists of a
// single word.
func Flow(text string, width int) []string {
	quote, indent := Prefix(text)
	if text[len(quote):] == Signature {
		return []string{text}
	}
	text = strings.TrimRight(text, " \t")

	if quote == "" && (strings.HasPrefix(indent, " ") || strings.HasPrefix(text, "From ")) {
		text = " " + text
	}
	if indent != "" || utf8.RuneCountInString(text) <= width {
		return []string{text}
	}

	var lines []string
	prefix := min(len(quote), len(text)) // Trimming may have removed the space of the quote marker.
	for {
		o := breakOffset(text, prefix, width)
		if o < 0 {
			return append(lines, text)
		}
		lines = append(lines, text[:o]+" ")

		// Continue with the remainder, starting with a word. It gets the quote
		// marker, or is stuffed when it would look like an mbox separator.
		tail := text[o:]
		if quote == "" && strings.HasPrefix(tail, "From ") {
			text, prefix = " "+tail, 0
		} else {
			text, prefix = quote+tail, len(quote)
		}
	}
}

// Prefix returns the quote marker of line, a sequence of ">", each optionally
// followed by a single space, and the whitespace following the quote marker.
func Prefix(line string) (quote, indent string) {
	n := 0
	for n < len(line) && line[n] == '>' {
		n++
		if n < len(line) && line[n] == ' ' {
			n++
		}
	}
	i := n
	for i < len(line) {
		r, size := utf8.DecodeRuneInString(line[i:])
		if !unicode.IsSpace(r) {
			break
		}
		i += size
	}
	return line[:n], line[n:i]
}

// Depth returns the number of ">" characters in quote marker quote.
func Depth(quote string) int {
	return strings.Count(quote, ">")
}

// breakOffset returns the byte offset in text to break the line at, or -1 if
// text needs no further breaking. Candidate offsets are just after the
// whitespace following a word, starting after the prefix. The last candidate
// for which the text before it is narrower than width is used. The first
// candidate is always acceptable, long words are not broken.
func breakOffset(text string, prefix, width int) int {
	col := columns(0, text[:prefix])
	last := -1
	word := false
	space := false
	for i, r := range text[prefix:] {
		isSpace := unicode.IsSpace(r)
		if !isSpace && space && word {
			if last >= 0 && col >= width {
				return last
			}
			last = prefix + i
		}
		word = word || !isSpace
		space = isSpace
		col = advance(col, r)
	}
	// End of text is the final candidate.
	if word && last >= 0 && col >= width {
		return last
	}
	return -1
}

// Columns returns the visual width of s, with tabs expanded to the next
// multiple of 8 columns.
func Columns(s string) int {
	return columns(0, s)
}

func columns(col int, s string) int {
	for _, r := range s {
		col = advance(col, r)
	}
	return col
}

func advance(col int, r rune) int {
	switch r {
	case '\t':
		return (col/tabStop + 1) * tabStop
	case '\r', '\n':
		return 0
	}
	return col + 1
}
