package webflow

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mjl-/mailflow/message"
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

const longLine = "This is a long line of plain text that should wrap because it exceeds the seventy seven column limit for flowed text"

var testConfig = Config{
	Width:       77,
	Procs:       2,
	Fallback:    "quoted-printable",
	MaxBodySize: 4 * 1024,
	Metrics:     true,
}

func request(t *testing.T, h http.Handler, method, path, contentType, body string, expCode int) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != expCode {
		t.Fatalf("%s %s: got status %d, expected %d, body %q", method, path, rec.Code, expCode, rec.Body.String())
	}
	return rec
}

func TestFlow(t *testing.T) {
	h := NewHandler(testConfig)

	rec := request(t, h, "POST", "/flow", "", longLine, http.StatusOK)
	tcompare(t, rec.Body.String(), message.FlowText(longLine, 77))
	tcompare(t, rec.Header().Get("Content-Type"), "text/plain; charset=utf-8; format=flowed; delsp=yes")
	tcompare(t, rec.Header().Get("X-Content-Type-Options"), "nosniff")

	rec = request(t, h, "POST", "/flow?width=20", "text/plain", "aaa bbb ccc ddd eee fff ggg", http.StatusOK)
	tcompare(t, rec.Body.String(), "aaa bbb ccc ddd  \neee fff ggg")

	// Request charset is decoded.
	rec = request(t, h, "POST", "/flow", "text/plain; charset=iso-8859-1", "gr\xfc\xdfe", http.StatusOK)
	tcompare(t, rec.Body.String(), "grüße")

	request(t, h, "POST", "/flow?width=0", "", "text", http.StatusBadRequest)
	request(t, h, "POST", "/flow?width=999", "", "text", http.StatusBadRequest)
	request(t, h, "POST", "/flow?width=x", "", "text", http.StatusBadRequest)
	request(t, h, "POST", "/flow", "text/plain; charset=x-bogus", "text", http.StatusBadRequest)
	request(t, h, "POST", "/flow", "text/", "text", http.StatusBadRequest)
	request(t, h, "POST", "/flow", "", strings.Repeat("x", 4*1024+1), http.StatusRequestEntityTooLarge)
	request(t, h, "GET", "/flow", "", "", http.StatusMethodNotAllowed)
}

func TestUnflow(t *testing.T) {
	h := NewHandler(testConfig)

	flowed := message.FlowText(longLine, 40)
	rec := request(t, h, "POST", "/unflow", "", flowed, http.StatusOK)
	tcompare(t, rec.Body.String(), longLine)

	rec = request(t, h, "POST", "/unflow?delsp=no", "", "a  \nb", http.StatusOK)
	tcompare(t, rec.Body.String(), "a  b")

	request(t, h, "POST", "/unflow?delsp=maybe", "", "a", http.StatusBadRequest)
}

func TestEncoding(t *testing.T) {
	h := NewHandler(testConfig)

	test := func(path, body string, exp EncodingResult) {
		t.Helper()
		rec := request(t, h, "POST", path, "", body, http.StatusOK)
		var r EncodingResult
		err := json.Unmarshal(rec.Body.Bytes(), &r)
		tcheck(t, err, "parsing json")
		tcompare(t, r, exp)
	}

	test("/encoding", "line\r\nanother line\r\n", EncodingResult{message.Encoding7bit, 2, 12})
	test("/encoding", "grüße", EncodingResult{message.Encoding8bit, 1, 7})
	test("/encoding", strings.Repeat("x", 999), EncodingResult{message.EncodingUnchanged, 1, 999})
	test("/encoding?type=text/html", "<p>x</p>", EncodingResult{message.EncodingUnchanged, 1, 8})
	test("/encoding?type=text/plain;+charset=utf-8", "text", EncodingResult{message.Encoding7bit, 1, 4})
}

func TestRewrite(t *testing.T) {
	h := NewHandler(testConfig)

	msg := "Subject: test\r\n\r\n" + longLine + "\r\n"
	rec := request(t, h, "POST", "/rewrite", "message/rfc822", msg, http.StatusOK)
	tcompare(t, rec.Header().Get("X-Parts"), "1")
	tcompare(t, rec.Header().Get("X-Flowed-Parts"), "1")
	out := rec.Body.String()
	if !strings.Contains(out, "format=flowed") || !strings.Contains(out, "\r\n\r\n"+strings.ReplaceAll(message.FlowText(longLine, 77), "\n", "\r\n")) {
		t.Fatalf("unexpected rewritten message %q", out)
	}

	rec = request(t, h, "POST", "/rewrite?raw=1", "", msg, http.StatusOK)
	if strings.Contains(rec.Body.String(), "format=flowed") {
		t.Fatalf("raw rewrite is flowed: %q", rec.Body.String())
	}

	request(t, h, "POST", "/rewrite", "", "Content-Type: text/plain; charset=x-bogus\r\n\r\ntext", http.StatusBadRequest)
	request(t, h, "POST", "/rewrite?raw=maybe", "", msg, http.StatusBadRequest)
	request(t, h, "POST", "/rewrite?width=-1", "", msg, http.StatusBadRequest)
}

func TestIndexMetrics(t *testing.T) {
	h := NewHandler(testConfig)
	rec := request(t, h, "GET", "/", "", "", http.StatusOK)
	if !strings.Contains(rec.Body.String(), "POST /flow") {
		t.Fatalf("unexpected index %q", rec.Body.String())
	}

	request(t, h, "POST", "/flow", "", "text", http.StatusOK)
	rec = request(t, h, "GET", "/metrics", "", "", http.StatusOK)
	if !strings.Contains(rec.Body.String(), "mailflow_httpserver_request_duration_seconds") {
		t.Fatalf("missing metric in %q", rec.Body.String())
	}

	c := testConfig
	c.Metrics = false
	request(t, NewHandler(c), "GET", "/metrics", "", "", http.StatusNotFound)
}

func TestPanic(t *testing.T) {
	h := observe(countPanics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))
	defer func() {
		x := recover()
		if x != "boom" {
			t.Fatalf("got panic %v, expected boom", x)
		}
		rec := request(t, promhttp.Handler(), "GET", "/metrics", "", "", http.StatusOK)
		if !strings.Contains(rec.Body.String(), `mailflow_panic_total{pkg="webflow"}`) {
			t.Fatalf("panic not counted in %q", rec.Body.String())
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
}

func TestServe(t *testing.T) {
	ln, err := net.Listen("tcp", "localhost:0")
	tcheck(t, err, "listen")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, ln, NewHandler(testConfig))
	}()

	resp, err := http.Post("http://"+ln.Addr().String()+"/flow?width=10", "text/plain", strings.NewReader("aaa bbb ccc"))
	tcheck(t, err, "post")
	buf, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	tcheck(t, err, "read response")
	tcompare(t, string(buf), "aaa bbb  \nccc")

	cancel()
	select {
	case err := <-done:
		tcheck(t, err, "serve")
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not stop")
	}
}
