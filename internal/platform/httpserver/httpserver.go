package httpserver

import (
	"log/slog"
	"net/http"
	"time"
)

// New builds the API server. WriteTimeout stays unset because /v1/events holds
// responses open; request deadlines come from the Timeout middleware instead.
// Server-level errors (TLS handshakes, panics outside handlers) go to logger.
func New(addr string, handler http.Handler, logger *slog.Logger) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    64 << 10,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
}
