package message

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	gomessage "github.com/emersion/go-message"

	"github.com/mjl-/mailflow/metrics"
	"github.com/mjl-/mailflow/mlog"
	"github.com/mjl-/mailflow/moxio"
)

// RewriteStats has counts of the parts of a rewritten message.
type RewriteStats struct {
	Parts  int // Non-multipart parts, including the message itself if not multipart.
	Flowed int // Parts rewritten as format=flowed.
}

// RewriteMessage reads a message from r and writes it to w, with each inline
// text/plain part that is not yet format=flowed replaced by its flowed
// version. Multipart parts are recursed into, other parts are copied. Lines
// are written with CRLF.
func RewriteMessage(log mlog.Log, r io.Reader, w io.Writer, opts FlowOptions) (RewriteStats, error) {
	var stats RewriteStats
	if _, _, err := checkOptions(opts); err != nil {
		return stats, err
	}

	e, err := gomessage.Read(r)
	if err != nil && !gomessage.IsUnknownCharset(err) {
		return stats, fmt.Errorf("reading message: %w", err)
	}
	mw := NewWriter(w)
	create := func(h gomessage.Header) (*gomessage.Writer, error) {
		return gomessage.CreateWriter(mw, h)
	}
	if err := rewritePart(log, e, create, opts, &stats); err != nil {
		return stats, err
	}
	log.Debug("rewrote message",
		slog.Int("parts", stats.Parts),
		slog.Int("flowed", stats.Flowed),
		slog.Int64("size", mw.Size))
	return stats, nil
}

func rewritePart(log mlog.Log, e *gomessage.Entity, create func(gomessage.Header) (*gomessage.Writer, error), opts FlowOptions, stats *RewriteStats) error {
	if mr := e.MultipartReader(); mr != nil {
		pw, err := create(e.Header)
		if err != nil {
			return fmt.Errorf("creating multipart: %w", err)
		}
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			} else if err != nil && !gomessage.IsUnknownCharset(err) {
				return fmt.Errorf("reading part: %w", err)
			}
			if err := rewritePart(log, p, pw.CreatePart, opts, stats); err != nil {
				return err
			}
		}
		if err := pw.Close(); err != nil {
			return fmt.Errorf("closing multipart: %w", err)
		}
		return nil
	}

	stats.Parts++
	body, err := io.ReadAll(e.Body)
	if err != nil {
		return fmt.Errorf("reading part body: %w", err)
	}

	if charset, ok := flowable(e.Header); ok {
		part, err := FlowBody(log, body, charset, opts)
		if err != nil {
			return fmt.Errorf("flowing part: %w", err)
		}
		h := e.Header.Copy()
		h.SetContentType("text/plain", part.Params)
		h.Set("Content-Transfer-Encoding", part.TransferEncoding)
		stats.Flowed++
		metrics.RewritePartInc("flowed")
		return writePart(create, h, []byte(strings.ReplaceAll(part.Text, "\n", "\r\n")))
	}

	h := e.Header.Copy()
	cte := strings.ToLower(h.Get("Content-Transfer-Encoding"))
	mt, params, err := h.ContentType()
	if err == nil && params["charset"] != "" && !strings.EqualFold(params["charset"], "utf-8") && !strings.EqualFold(params["charset"], "us-ascii") {
		// Parts are only written as utf-8 or us-ascii. Text is transcoded, the
		// parameter is meaningless for other types.
		if strings.HasPrefix(mt, "text/") {
			text, err := moxio.DecodeBytes(params["charset"], body)
			if err != nil {
				return fmt.Errorf("copying part: %w", err)
			}
			log.Debug("transcoded part to utf-8", slog.String("mediatype", mt), slog.String("charset", params["charset"]))
			body = []byte(text)
			params["charset"] = "utf-8"
		} else {
			delete(params, "charset")
		}
		h.SetContentType(mt, params)
	}
	// Quoted-printable and base64 are encoded again as is. Others get an
	// encoding that is safe for their content.
	if cte != "quoted-printable" && cte != "base64" {
		h.Del("Content-Transfer-Encoding")
		if cte := copyEncoding(mt, body); cte != "" {
			h.Set("Content-Transfer-Encoding", cte)
		}
	}
	metrics.RewritePartInc("copied")
	return writePart(create, h, body)
}

func writePart(create func(gomessage.Header) (*gomessage.Writer, error), h gomessage.Header, body []byte) error {
	pw, err := create(h)
	if err != nil {
		return fmt.Errorf("creating part: %w", err)
	}
	if _, err := pw.Write(body); err != nil {
		return fmt.Errorf("writing part: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("closing part: %w", err)
	}
	return nil
}

// flowable returns whether a part with header h should be flowed, and its
// charset. A part without Content-Type is text/plain.
func flowable(h gomessage.Header) (charset string, ok bool) {
	mt, params, err := h.ContentType()
	if err != nil || mt != "text/plain" || strings.EqualFold(params["format"], "flowed") {
		return "", false
	}
	if disp, _, err := h.ContentDisposition(); err == nil && disp == "attachment" {
		return "", false
	}
	return params["charset"], true
}

// copyEncoding returns the Content-Transfer-Encoding for copying a part that is
// not quoted-printable or base64. Empty means no header is needed.
func copyEncoding(mediaType string, body []byte) string {
	sel := SelectPartEncoding(mediaType, body)
	if sel.Encoding == EncodingUnchanged && mediaType != "text/plain" {
		// Other types are copied without encoding if their lines fit.
		sel = SelectEncoding(body)
	}
	switch sel.Encoding {
	case Encoding7bit:
		return ""
	case Encoding8bit:
		return "8bit"
	}
	if strings.HasPrefix(mediaType, "text/") {
		return "quoted-printable"
	}
	return "base64"
}
