package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"git.home.luguber.info/inful/sitesmith/internal/logfields"
)

// requestLogger logs each request at debug level, except the long-lived
// livereload stream.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == liveReloadPath {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debug("HTTP request",
				logfields.Method(r.Method),
				logfields.Path(r.URL.Path),
				logfields.Status(status),
				slog.Duration("duration", time.Since(start)),
				logfields.RemoteAddr(r.RemoteAddr))
		})
	}
}
