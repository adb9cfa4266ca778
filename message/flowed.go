package message

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"

	gomessage "github.com/emersion/go-message"

	"github.com/mjl-/mailflow/flow"
	"github.com/mjl-/mailflow/metrics"
	"github.com/mjl-/mailflow/mlog"
	"github.com/mjl-/mailflow/moxio"
)

var (
	ErrBadFallback = errors.New("bad fallback transfer encoding")
	ErrBadWidth    = errors.New("width out of range")
)

// Lines are handed to workers in chunks, flowing a single line is too little
// work for a goroutine handoff.
const flowChunk = 256

// FlowOptions configure FlowBody and RewriteMessage.
type FlowOptions struct {
	Width    int    // Zero means flow.DefaultWidth, otherwise between 1 and MaxLineLength.
	Procs    int    // Goroutines for flowing lines. Zero or one flows in the calling goroutine.
	Raw      bool   // Do not flow, only select charset and transfer encoding.
	Fallback string // Transfer encoding if 7bit/8bit is not possible: quoted-printable (default) or base64.
}

// FlowedPart is a text/plain body ready to be written as MIME part.
type FlowedPart struct {
	Text             string            // Lines separated by \n.
	Charset          string            // "us-ascii" or "utf-8".
	Params           map[string]string // Content-Type parameters.
	Encoding         Encoding          // As selected, can be EncodingUnchanged.
	TransferEncoding string            // Content-Transfer-Encoding to use, the fallback if Encoding is EncodingUnchanged.
}

// ContentType returns the formatted text/plain media type with parameters.
func (p FlowedPart) ContentType() string {
	return mime.FormatMediaType("text/plain", p.Params)
}

// FlowText flows each line of text, with "\r\n" or "\n" line endings, and
// returns the physical lines joined with "\n".
func FlowText(text string, width int) string {
	lines := splitLines(text)
	units := make([][]string, len(lines))
	for i, line := range lines {
		units[i] = flow.Flow(line, width)
	}
	return joinUnits(len(lines), units)
}

// FlowTextParallel returns the same as FlowText, but flows lines with procs
// goroutines.
func FlowTextParallel(text string, width, procs int) (string, error) {
	if procs <= 1 {
		return FlowText(text, width), nil
	}

	lines := splitLines(text)
	var chunks [][]string
	for o := 0; o < len(lines); o += flowChunk {
		chunks = append(chunks, lines[o:min(o+flowChunk, len(lines))])
	}
	results, err := moxio.Ordered(procs, chunks, func(chunk []string) ([][]string, error) {
		units := make([][]string, len(chunk))
		for i, line := range chunk {
			units[i] = flow.Flow(line, width)
		}
		return units, nil
	})
	if err != nil {
		return "", fmt.Errorf("flowing lines: %w", err)
	}
	var units [][]string
	for _, r := range results {
		units = append(units, r...)
	}
	return joinUnits(len(lines), units), nil
}

func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

func joinUnits(logical int, units [][]string) string {
	var physical, wrapped int
	var b strings.Builder
	for i, unit := range units {
		if len(unit) > 1 {
			wrapped++
		}
		for j, line := range unit {
			if i > 0 || j > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(line)
		}
		physical += len(unit)
	}
	metrics.FlowLines(logical, physical, wrapped)
	return b.String()
}

// CheckWidth returns an error wrapping ErrBadWidth if width is not between 1
// and MaxLineLength.
func CheckWidth(width int) error {
	if width < 1 || width > MaxLineLength {
		return fmt.Errorf("%w: %d, must be between 1 and %d", ErrBadWidth, width, MaxLineLength)
	}
	return nil
}

// checkOptions returns the width and fallback encoding to use for opts.
func checkOptions(opts FlowOptions) (width int, fallback string, err error) {
	width = opts.Width
	if width == 0 {
		width = flow.DefaultWidth
	} else if err := CheckWidth(width); err != nil {
		return 0, "", err
	}
	fallback, err = fallbackEncoding(opts.Fallback)
	return width, fallback, err
}

func fallbackEncoding(s string) (string, error) {
	switch s = strings.ToLower(s); s {
	case "":
		return "quoted-printable", nil
	case "quoted-printable", "base64":
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrBadFallback, s)
}

// FlowBody decodes body from charset, flows it unless opts.Raw is set, and
// selects the charset and transfer encoding for the resulting text/plain part.
func FlowBody(log mlog.Log, body []byte, charset string, opts FlowOptions) (FlowedPart, error) {
	width, fallback, err := checkOptions(opts)
	if err != nil {
		return FlowedPart{}, err
	}
	text, err := moxio.DecodeBytes(charset, body)
	if err != nil {
		return FlowedPart{}, fmt.Errorf("decoding body: %w", err)
	}

	if opts.Raw {
		text = strings.ReplaceAll(text, "\r\n", "\n")
	} else {
		text, err = FlowTextParallel(text, width, opts.Procs)
		if err != nil {
			return FlowedPart{}, err
		}
	}

	p := FlowedPart{Text: text, Charset: "us-ascii"}
	if !isASCII(text) {
		p.Charset = "utf-8"
	}
	p.Encoding = SelectEncoding([]byte(text)).Encoding
	p.TransferEncoding = string(p.Encoding)
	if p.Encoding == EncodingUnchanged {
		p.TransferEncoding = fallback
	}
	p.Params = map[string]string{"charset": p.Charset}
	if !opts.Raw {
		p.Params["format"] = "flowed"
		p.Params["delsp"] = "yes"
	}
	log.Debug("flowed body",
		slog.String("charset", charset),
		slog.Int("width", width),
		slog.Bool("raw", opts.Raw),
		slog.String("encoding", string(p.Encoding)),
		slog.String("cte", p.TransferEncoding))
	return p, nil
}

func isASCII(s string) bool {
	for _, c := range s {
		if c >= 0x80 {
			return false
		}
	}
	return true
}

// WriteFlowedPart writes part as MIME entity with header h to w. The
// Content-Type and Content-Transfer-Encoding headers are set from part, other
// fields in h are written as is. Line endings are written as CRLF.
func WriteFlowedPart(w io.Writer, h gomessage.Header, part FlowedPart) error {
	h = h.Copy()
	h.SetContentType("text/plain", part.Params)
	h.Set("Content-Transfer-Encoding", part.TransferEncoding)

	mw := NewWriter(w)
	ew, err := gomessage.CreateWriter(mw, h)
	if err != nil {
		return fmt.Errorf("creating part: %w", err)
	}
	// Canonical line endings before transfer encoding, base64 would keep bare LF.
	if _, err := io.WriteString(ew, strings.ReplaceAll(part.Text, "\n", "\r\n")); err != nil {
		return fmt.Errorf("writing part: %w", err)
	}
	if err := ew.Close(); err != nil {
		return fmt.Errorf("closing part: %w", err)
	}
	return nil
}
