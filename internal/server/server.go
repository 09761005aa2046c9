// Package server runs the HTTP listener for the web and event front-ends.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"go.trai.ch/pgo/internal/core/domain"
	"go.trai.ch/pgo/internal/core/ports"
	"go.trai.ch/zerr"
)

// InvokePath is the route of the event front-end.
const InvokePath = "/invoke"

const defaultShutdownTimeout = 10 * time.Second

// Server serves the image cache over HTTP.
type Server struct {
	address         string
	handler         http.Handler
	logger          ports.Logger
	shutdownTimeout time.Duration

	ready chan struct{}
	addr  net.Addr
}

// NewMux returns the fallback routes behind the web front-end: the event
// front-end on POST /invoke and 404 elsewhere.
func NewMux(events http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("POST "+InvokePath, events)
	return mux
}

// Compress wraps h in gzip compression for responses of at least minSize bytes.
func Compress(h http.Handler, minSize int) (http.Handler, error) {
	wrap, err := gzhttp.NewWrapper(gzhttp.MinSize(minSize))
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to configure compression"), "min_size", minSize)
	}
	return wrap(h), nil
}

// New creates a Server for cfg. handler is the root of the routing tree,
// usually a web front-end wrapping NewMux.
func New(cfg domain.Config, handler http.Handler, logger ports.Logger) (*Server, error) {
	if cfg.Listen == "" {
		return nil, zerr.Wrap(domain.ErrConfiguration, "listen address is empty")
	}

	compressed, err := Compress(handler, cfg.CompressMinSize)
	if err != nil {
		return nil, err
	}

	return &Server{
		address:         cfg.Listen,
		handler:         compressed,
		logger:          logger,
		shutdownTimeout: defaultShutdownTimeout,
		ready:           make(chan struct{}),
	}, nil
}

// Handler returns the compressed routing tree.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address. Only valid after Ready is closed.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Run serves until ctx is done and then shuts down, waiting for in-flight
// requests up to the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to listen"), "address", s.address)
	}
	s.addr = listener.Addr()
	close(s.ready)

	// No write timeout: a cold request blocks on the image build.
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("listening on " + s.addr.String())

	serveDone := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down")
	case err := <-serveDone:
		if err != nil {
			return zerr.Wrap(err, "server failed")
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return zerr.Wrap(err, "server shutdown failed")
	}

	s.logger.Info("server stopped")
	return nil
}
