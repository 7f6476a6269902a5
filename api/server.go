// Package api provides the HTTP REST API for taskyard.
//
// Endpoints:
//
//	POST   /api/chat                     - chat turn with the assistant
//	GET    /api/conversations            - list the user's conversations
//	GET    /api/conversations/{id}       - conversation with full history
//	GET    /api/tasks                    - list tasks (optional ?filter=)
//	POST   /api/tasks                    - create a task
//	GET    /api/tasks/{id}               - fetch a task
//	PUT    /api/tasks/{id}               - update a task
//	DELETE /api/tasks/{id}               - delete a task
//	GET    /health                       - liveness probe
//	GET    /ready                        - readiness probe
//
// Identity arrives in the X-User-ID header, set by a trusted upstream proxy.
// Requests without it are rejected with 401.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/taskyard/taskyard/internal/log"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:3400"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// Chat turns can spend most of this waiting on the model.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the maximum time to wait for the next request on
	// keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// userIDHeader carries the authenticated user identity, injected by a
// trusted upstream.
const userIDHeader = "X-User-ID"

// Server is the HTTP server for taskyard's REST API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	health       *HealthHandler
	chat         *ChatHandler
	task         *TaskHandler
	conversation *ConversationHandler
}

// Config contains the handlers' dependencies.
type Config struct {
	Health       *HealthHandler
	Chat         *ChatHandler
	Task         *TaskHandler
	Conversation *ConversationHandler
	Logger       log.Logger
}

// NewServer creates a new HTTP server with all routes registered. Handlers
// may be nil; their routes are simply not registered.
func NewServer(cfg Config) *Server {
	mux := http.NewServeMux()

	s := &Server{
		mux:          mux,
		logger:       cfg.Logger,
		health:       cfg.Health,
		chat:         cfg.Chat,
		task:         cfg.Task,
		conversation: cfg.Conversation,
	}

	if s.health != nil {
		s.health.RegisterRoutes(mux)
	}
	if s.chat != nil {
		s.chat.RegisterRoutes(mux)
	}
	if s.task != nil {
		s.task.RegisterRoutes(mux)
	}
	if s.conversation != nil {
		s.conversation.RegisterRoutes(mux)
	}

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery, then logging, then the mux.
func (s *Server) Handler() http.Handler {
	return chain(s.mux, recoveryMiddleware(s.logger), loggingMiddleware(s.logger))
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// requestUser extracts the authenticated user id from the request.
// Returns empty string when the header is absent.
func requestUser(r *http.Request) string {
	return r.Header.Get(userIDHeader)
}
