package logging

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// RequestLogger returns chi middleware that writes one record per request
// through logger. It must run after middleware.RequestID for the record to
// carry request_id.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return middleware.RequestLogger(&requestFormatter{logger: logger})
}

type requestFormatter struct {
	logger *slog.Logger
}

func (f *requestFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &requestEntry{logger: f.logger, req: r}
}

type requestEntry struct {
	logger *slog.Logger
	req    *http.Request
}

func (e *requestEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	e.logger.Log(e.req.Context(), level, "request completed",
		"method", e.req.Method,
		"path", e.req.URL.Path,
		"status", status,
		"bytes", bytes,
		"duration_ms", elapsed.Milliseconds(),
		"remote_addr", e.req.RemoteAddr,
	)
}

func (e *requestEntry) Panic(v interface{}, stack []byte) {
	e.logger.ErrorContext(e.req.Context(), "request panicked",
		"panic", fmt.Sprint(v),
		"stack", string(stack),
	)
}
