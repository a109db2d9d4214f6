// Package server exposes the annotation export engine and its collaborators
// over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/winsonsd1123/pdfano/ai"
	"github.com/winsonsd1123/pdfano/annotate"
	"github.com/winsonsd1123/pdfano/config"
	"github.com/winsonsd1123/pdfano/observability"
)

// Store is the blob-store surface the handlers need.
type Store interface {
	Head(ctx context.Context, filename string) (string, error)
	Fetch(ctx context.Context, objectURL string) ([]byte, error)
	Put(ctx context.Context, filename, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, filename string) error
}

// Exporter merges annotations into a source document.
type Exporter interface {
	Assemble(ctx context.Context, src []byte, anns []annotate.FrontendAnnotation) ([]byte, int, error)
}

// Suggester proposes annotations for a passage of text.
type Suggester interface {
	Suggest(ctx context.Context, text string) ([]ai.Suggestion, error)
}

// Deps are the collaborators a Server is wired with. Suggester may be nil;
// the suggestion endpoint then answers 503.
type Deps struct {
	Store     Store
	Exporter  Exporter
	Suggester Suggester
	Logger    observability.Logger

	// Clock names exported files; nil means time.Now.
	Clock func() time.Time
}

// Server is the HTTP front of the service.
type Server struct {
	cfg        config.ServerConfig
	store      Store
	exporter   Exporter
	suggester  Suggester
	logger     observability.Logger
	clock      func() time.Time
	httpServer *http.Server

	mu      sync.RWMutex
	running bool
}

// New creates a Server from cfg and deps.
func New(cfg config.ServerConfig, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = observability.NopLogger{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	s := &Server{
		cfg:       cfg,
		store:     deps.Store,
		exporter:  deps.Exporter,
		suggester: deps.Suggester,
		logger:    logger,
		clock:     clock,
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Handler builds the routed and middleware-wrapped handler. Exposed so
// tests can drive the server through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/export", s.handleExport)
	mux.HandleFunc("POST /api/files", s.handleUpload)
	mux.HandleFunc("DELETE /api/files/{name}", s.handleDelete)
	mux.HandleFunc("POST /api/suggest", s.handleSuggest)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	middlewares := []Middleware{
		RecoveryMiddleware(s.logger),
		RequestIDMiddleware(),
		CORSMiddleware(s.cfg.CORSOrigins),
	}
	if s.cfg.EnableLogging {
		middlewares = append(middlewares, LoggingMiddleware(s.logger))
	}
	return Chain(mux, middlewares...)
}

// Start begins serving. It returns once the listener is up, or with the
// binding error.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr(), err)
	case <-time.After(100 * time.Millisecond):
	}
	s.logger.Info("server started", observability.String("addr", s.cfg.Addr()))
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	return s.httpServer.Shutdown(ctx)
}
