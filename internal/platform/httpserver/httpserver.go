package httpserver

import (
	"net/http"
	"time"
)

// New builds the platform's HTTP server. The read-header timeout is the
// only tuned knob; handler-level deadlines come from request contexts.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
