// Package api provides the HTTP servers: the scrape endpoint serving live
// player counts and the optional telemetry endpoint.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jsirianni/gamemetrics/internal/collector"
	"go.uber.org/zap"
)

// ContentType is the Prometheus text exposition content type.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

// ErrCollect wraps a collection failure that ended the scrape server.
var ErrCollect = errors.New("collect metrics")

const shutdownTimeout = 5 * time.Second

// ScrapeServer runs a fresh collection for every request, whatever the method
// or path. Requests are served one at a time. The first failed collection
// aborts its request and stops the server.
type ScrapeServer struct {
	collector collector.Collector
	logger    *zap.Logger
	srv       *http.Server

	mu     sync.Mutex
	failed bool
	errCh  chan error
}

// NewScrapeServer returns a scrape server listening on addr.
func NewScrapeServer(addr string, c collector.Collector, logger *zap.Logger) *ScrapeServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ScrapeServer{
		collector: c,
		logger:    logger,
		errCh:     make(chan error, 1),
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		// A collection may block for the full RCON read timeout.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Addr returns the configured listen address.
func (s *ScrapeServer) Addr() string {
	return s.srv.Addr
}

// ServeHTTP implements http.Handler.
func (s *ScrapeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failed {
		panic(http.ErrAbortHandler)
	}

	s.logger.Debug("received scrape request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote_addr", r.RemoteAddr))

	snap, err := s.collector.Metrics(r.Context())
	if err != nil {
		s.failed = true
		s.errCh <- fmt.Errorf("%w: %w", ErrCollect, err)
		// No response is defined for a failed collection; drop the connection.
		panic(http.ErrAbortHandler)
	}

	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, snap.Exposition())
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *ScrapeServer) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or a collection fails.
// It returns nil on ctx cancellation and an error wrapping ErrCollect when a
// collection failed.
func (s *ScrapeServer) Serve(ctx context.Context, ln net.Listener) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.srv.Serve(ln)
	}()

	var result error
	select {
	case <-ctx.Done():
	case result = <-s.errCh:
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("scrape server shutdown", zap.Error(err))
	}
	return result
}
