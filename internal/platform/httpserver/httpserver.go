// Package httpserver builds the http.Server both careflow binaries listen on.
package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server for the careflow API surface. The write timeout
// leaves room for the patient create path, which waits on the billing call
// and the publish handoff before responding; per-route budgets are tighter
// (middleware.Timeout).
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
