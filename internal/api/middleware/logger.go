package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// StatusRecorder はレスポンスのステータスコードを記録します
type StatusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *StatusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *StatusRecorder) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// Logger はリクエストIDを付けたロガーをコンテキストに設定し、リクエストの完了を記録します
func Logger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLogger := logger.With().Str("request_id", GetRequestID(r.Context())).Logger()
			recorder := &StatusRecorder{ResponseWriter: w}

			next.ServeHTTP(recorder, r.WithContext(reqLogger.WithContext(r.Context())))

			event := reqLogger.Info()
			if recorder.Status() >= http.StatusInternalServerError {
				event = reqLogger.Error()
			}
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Int("status", recorder.Status()).
				Dur("duration", time.Since(start)).
				Msg("request completed")
		})
	}
}
