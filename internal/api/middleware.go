package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

// requestLogger logs each request through the structured logger. Probe and
// scrape endpoints log at Debug.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		fields := []interface{}{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		}
		switch r.URL.Path {
		case "/health", "/metrics":
			logger.Debug("[api] request", fields...)
		default:
			logger.Info("[api] request", fields...)
		}
	})
}
