package httpserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/yndnr/tlsdir/internal/telemetry/logger"
)

// ErrNotListening is returned by Serve before Listen succeeded.
var ErrNotListening = errors.New("httpserver: not listening")

// Config configures a Server.
type Config struct {
	// Addr is the host:port to bind.
	Addr string

	// TLSConfig enables HTTPS. Nil serves plain HTTP.
	TLSConfig *tls.Config

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// Logger receives server errors. Defaults to logger.Default().
	Logger logger.Logger

	// ConnState is called on every connection state change.
	ConnState func(net.Conn, http.ConnState)

	// OnHandshakeError is called for every failed TLS handshake.
	OnHandshakeError func()
}

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	cfg        Config
	log        logger.Logger

	mu sync.Mutex
	ln net.Listener
}

// New creates a new server. Nothing is bound until Listen.
func New(cfg Config, handler http.Handler) *Server {
	l := cfg.Logger
	if l == nil {
		l = logger.Default()
	}

	s := &Server{cfg: cfg, log: l}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		TLSConfig:         cfg.TLSConfig,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
		ConnState:         cfg.ConnState,
		ErrorLog:          log.New(&errorLogWriter{log: l, onHandshakeError: cfg.OnHandshakeError}, "", 0),
	}
	return s
}

// Listen binds the TCP listener.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}

	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts connections until Shutdown. It returns nil after a
// graceful shutdown.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return ErrNotListening
	}

	var err error
	if s.httpServer.TLSConfig != nil {
		// certificates come from TLSConfig
		err = s.httpServer.ServeTLS(ln, "", "")
	} else {
		err = s.httpServer.Serve(ln)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server. A listener bound but never
// served is closed as well.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	s.mu.Lock()
	if s.ln != nil {
		s.ln.Close() // already closed when Serve ran
	}
	s.mu.Unlock()

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("graceful shutdown timed out, closing connections", "addr", s.cfg.Addr)
		s.httpServer.Close()
	}
	return err
}

// errorLogWriter bridges http.Server's error log to the structured
// logger. Handshake failures are routine on a public port and go to
// debug.
type errorLogWriter struct {
	log              logger.Logger
	onHandshakeError func()
}

func (w *errorLogWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))
	msg = strings.TrimPrefix(msg, "http: ")

	if strings.HasPrefix(msg, "TLS handshake error") {
		if w.onHandshakeError != nil {
			w.onHandshakeError()
		}
		w.log.Debug("tls handshake failed", "detail", msg)
		return len(p), nil
	}

	w.log.Warn("http server error", "detail", msg)
	return len(p), nil
}
