package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	. "github.com/bvisser/relogin/internal/logging"
	"github.com/bvisser/relogin/internal/service"
)

// Server exposes the login service over a local JSON API.
type Server struct {
	server *http.Server
	svc    *service.Service
	wg     sync.WaitGroup
}

// NewServer creates an HTTP server bound to listenAddr.
func NewServer(listenAddr string, svc *service.Service) *Server {
	if listenAddr == "" {
		listenAddr = "127.0.0.1:8743"
	}

	s := &Server{svc: svc}
	s.server = &http.Server{
		Addr:        listenAddr,
		Handler:     s.setupRoutes(),
		ReadTimeout: 30 * time.Second,
		// Login attempts can legitimately take minutes when a second
		// factor round-trip is involved; keep writes generous.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/login", s.logRequest(s.handleLogin))
	mux.HandleFunc("/api/quick-login", s.logRequest(s.handleQuickLogin))
	mux.HandleFunc("/api/second-factor/submit", s.logRequest(s.handleSecondFactorSubmit))
	mux.HandleFunc("/api/second-factor/cancel", s.logRequest(s.handleSecondFactorCancel))
	mux.HandleFunc("/api/second-factor/pending.json", s.logRequest(s.handlePending))
	mux.HandleFunc("/api/sessions.json", s.logRequest(s.handleSessions))
	mux.HandleFunc("/api/sessions/close", s.logRequest(s.handleSessionClose))
	mux.HandleFunc("/api/sessions/screenshot", s.logRequest(s.handleScreenshot))
	mux.HandleFunc("/api/accounts.json", s.logRequest(s.handleAccounts))
	mux.HandleFunc("/api/accounts/delete", s.logRequest(s.handleAccountDelete))
	mux.HandleFunc("/api/caches.json", s.logRequest(s.handleCaches))
	mux.HandleFunc("/api/purge", s.logRequest(s.handlePurge))

	return mux
}

// logRequest wraps a handler with a per-request id and debug logging.
func (s *Server) logRequest(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		w.Header().Set("X-Request-Id", reqID)
		start := time.Now()

		handler(w, r)

		L_debug("http: request handled", "method", r.Method, "path", r.URL.Path, "request_id", reqID, "elapsed", time.Since(start))
	}
}

// Start starts the HTTP server in the background.
func (s *Server) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		L_info("http: server starting", "listen", s.server.Addr)

		err := s.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			L_error("http: server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		L_error("http: shutdown error", "error", err)
		return err
	}
	s.wg.Wait()
	L_info("http: server stopped")
	return nil
}
