package worker

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// requestID assigns a uuid when the client sent no usable id, then lets chi
// store it in the context. The id is echoed on the response.
func requestID(next http.Handler) http.Handler {
	inner := middleware.RequestID(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		inner.ServeHTTP(w, r)
	})
}

// RequestIDFrom returns the id assigned to the request carried by ctx.
func RequestIDFrom(ctx context.Context) string {
	return middleware.GetReqID(ctx)
}

func (s *Service) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		took := time.Since(start)
		s.metrics.ObserveHTTP(r.Method, route, status, took)

		evt := log.Debug()
		if status >= http.StatusInternalServerError {
			evt = log.Warn()
		} else if r.Method != http.MethodGet {
			evt = log.Info()
		}
		evt.
			Str("requestId", RequestIDFrom(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("took", took).
			Msg("HTTP request")
	})
}

// recoverer answers a panic with the same {"detail"} body as every other
// error. middleware.Recoverer only writes a bare 500.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rv := recover(); rv != nil {
				if rv == http.ErrAbortHandler {
					panic(rv)
				}
				log.Error().
					Str("requestId", RequestIDFrom(r.Context())).
					Interface("panic", rv).
					Bytes("stack", debug.Stack()).
					Msg("Handler panicked")
				writeDetail(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
