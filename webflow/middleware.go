package webflow

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mjl-/mailflow/metrics"
	"github.com/mjl-/mailflow/mlog"
)

var cid atomic.Int64

func init() {
	cid.Store(time.Now().UnixMilli())
}

// observe adds a unique cid to the request context for logging, and tracks the
// duration and result of the request in metrics.
func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := context.WithValue(r.Context(), mlog.CidKey, cid.Add(1))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			endpoint := "(unknown)"
			if rctx := chi.RouteContext(ctx); rctx != nil && rctx.RoutePattern() != "" {
				endpoint = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			metrics.HTTPServerObserve(ctx, endpoint, status, start)
		}()
		next.ServeHTTP(ww, r.WithContext(ctx))
	})
}

// countPanics counts and logs panics in handlers. The panic is raised again,
// for middleware.Recoverer to respond with an error.
func countPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			x := recover()
			if x == nil {
				return
			}
			if x != http.ErrAbortHandler {
				pkglog.WithContext(r.Context()).Error("unhandled panic in webflow handler", slog.Any("x", x), slog.String("path", r.URL.Path))
				metrics.PanicInc("webflow")
			}
			panic(x)
		}()
		next.ServeHTTP(w, r)
	})
}

// safeHeaders sets headers that prevent the responses from being framed or
// sniffed by browsers.
func safeHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "deny")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Content-Security-Policy", "default-src 'none'")
		h.Set("Referrer-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}
