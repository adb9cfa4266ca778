// Package webflow is an HTTP service for flowing text, reconstructing flowed
// text, selecting transfer encodings and rewriting full messages.
//
// Endpoints take the request body as input, and return the result as response
// body. Query string parameters set options:
//
//	POST /flow?width=77
//	POST /unflow?delsp=yes
//	POST /encoding?type=text/plain
//	POST /rewrite?width=77&raw=1
//	GET /metrics
package webflow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mjl-/mailflow/flow"
	"github.com/mjl-/mailflow/message"
	"github.com/mjl-/mailflow/mlog"
	"github.com/mjl-/mailflow/moxio"
)

var pkglog = mlog.New("webflow", nil)

// Config holds the settings for the handler, typically from the config file.
type Config struct {
	Width       int    // Default width, if not in query string.
	Procs       int    // Goroutines for flowing a single body.
	Fallback    string // Transfer encoding for rewritten parts that cannot be 7bit/8bit.
	MaxBodySize int64  // Maximum request body size, zero for no limit.
	Metrics     bool   // Whether to serve /metrics.
}

// EncodingResult is the JSON response of /encoding.
type EncodingResult struct {
	Encoding    message.Encoding // 7bit, 8bit or unchanged.
	Lines       int              // Number of lines.
	LongestLine int              // In bytes, excluding line ending.
}

type server struct {
	Config
}

const index = `mailflow, format=flowed text for email

POST /flow?width=77             flow text in request body, at most width columns per line
POST /unflow?delsp=yes          reconstruct paragraphs from flowed text, delsp=no for DelSp=No
POST /encoding?type=text/plain  select 7bit/8bit content-transfer-encoding, as JSON
POST /rewrite?width=77&raw=1    rewrite text/plain parts of a message as format=flowed
`

// NewHandler returns a handler serving the webflow endpoints.
func NewHandler(c Config) http.Handler {
	s := server{c}

	r := chi.NewRouter()
	r.Use(observe)
	r.Use(middleware.Recoverer)
	r.Use(countPanics)
	r.Use(safeHeaders)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(index))
	})
	r.Post("/flow", s.flow)
	r.Post("/unflow", s.unflow)
	r.Post("/encoding", s.encoding)
	r.Post("/rewrite", s.rewrite)
	if c.Metrics {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}
	return r
}

// httpError is a request error, the code is the http status.
type httpError struct {
	code int
	err  error
}

func (e httpError) Error() string { return e.err.Error() }
func (e httpError) Unwrap() error { return e.err }

func badRequestf(format string, args ...any) error {
	return httpError{http.StatusBadRequest, fmt.Errorf(format, args...)}
}

func writeError(log mlog.Log, w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	var herr httpError
	if errors.As(err, &herr) {
		code = herr.code
	} else if errors.Is(err, moxio.ErrLimit) {
		code = http.StatusRequestEntityTooLarge
	}
	if code/100 == 5 {
		log.Errorx("webflow request", err, slog.Int("code", code))
	} else {
		log.Debugx("webflow request", err, slog.Int("code", code))
	}
	http.Error(w, fmt.Sprintf("%d - %s - %s", code, http.StatusText(code), err), code)
}

// readBody reads the request body, decoding to utf-8 from the charset of the
// Content-Type header if present.
func (s server) readBody(log mlog.Log, r *http.Request, decode bool) ([]byte, error) {
	buf, err := moxio.ReadAll(moxio.NewTraceReader(log, "request body", r.Body), s.MaxBodySize)
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	if !decode {
		return buf, nil
	}
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return buf, nil
	}
	_, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return nil, badRequestf("parsing content-type: %v", err)
	}
	text, err := moxio.DecodeBytes(params["charset"], buf)
	if err != nil {
		return nil, badRequestf("%w", err)
	}
	return []byte(text), nil
}

func (s server) width(r *http.Request) (int, error) {
	v := r.URL.Query().Get("width")
	if v == "" {
		return s.Width, nil
	}
	width, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequestf("bad width %q: %v", v, err)
	}
	if err := message.CheckWidth(width); err != nil {
		return 0, badRequestf("%w", err)
	}
	return width, nil
}

func boolParam(r *http.Request, name string, def bool) (bool, error) {
	switch v := r.URL.Query().Get(name); v {
	case "":
		return def, nil
	case "yes", "1", "true":
		return true, nil
	case "no", "0", "false":
		return false, nil
	default:
		return false, badRequestf("bad value %q for %s, must be yes or no", v, name)
	}
}

func (s server) flow(w http.ResponseWriter, r *http.Request) {
	log := pkglog.WithContext(r.Context())
	width, err := s.width(r)
	if err != nil {
		writeError(log, w, err)
		return
	}
	buf, err := s.readBody(log, r, true)
	if err != nil {
		writeError(log, w, err)
		return
	}
	text, err := message.FlowTextParallel(string(buf), width, s.Procs)
	if err != nil {
		writeError(log, w, err)
		return
	}
	log.Debug("flowed text", slog.Int("width", width), slog.Int("size", len(buf)))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8; format=flowed; delsp=yes")
	w.Write([]byte(text))
}

func (s server) unflow(w http.ResponseWriter, r *http.Request) {
	log := pkglog.WithContext(r.Context())
	delsp, err := boolParam(r, "delsp", true)
	if err != nil {
		writeError(log, w, err)
		return
	}
	buf, err := s.readBody(log, r, true)
	if err != nil {
		writeError(log, w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(flow.Unflow(string(buf), delsp)))
}

func (s server) encoding(w http.ResponseWriter, r *http.Request) {
	log := pkglog.WithContext(r.Context())
	buf, err := s.readBody(log, r, false)
	if err != nil {
		writeError(log, w, err)
		return
	}
	var sel message.Selection
	if ct, ok := r.URL.Query()["type"]; ok {
		sel = message.SelectPartEncoding(ct[0], buf)
	} else {
		sel = message.SelectEncoding(buf)
	}
	lines, longest, _ := message.LineStats(buf)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	err = enc.Encode(EncodingResult{sel.Encoding, lines, longest})
	log.Check(err, "writing encoding response")
}

func (s server) rewrite(w http.ResponseWriter, r *http.Request) {
	log := pkglog.WithContext(r.Context())
	width, err := s.width(r)
	if err != nil {
		writeError(log, w, err)
		return
	}
	raw, err := boolParam(r, "raw", false)
	if err != nil {
		writeError(log, w, err)
		return
	}
	buf, err := s.readBody(log, r, false)
	if err != nil {
		writeError(log, w, err)
		return
	}

	// Rewrite into a buffer, errors are about the message and must be returned
	// before writing a response.
	var out bytes.Buffer
	opts := message.FlowOptions{Width: width, Procs: s.Procs, Raw: raw, Fallback: s.Fallback}
	stats, err := message.RewriteMessage(log, bytes.NewReader(buf), &out, opts)
	if err != nil {
		writeError(log, w, badRequestf("rewriting message: %w", err))
		return
	}
	h := w.Header()
	h.Set("Content-Type", "message/rfc822")
	h.Set("X-Parts", strconv.Itoa(stats.Parts))
	h.Set("X-Flowed-Parts", strconv.Itoa(stats.Flowed))
	_, err = moxio.NewTraceWriter(log, "rewritten message", w).Write(out.Bytes())
	log.Check(err, "writing rewritten message")
}
