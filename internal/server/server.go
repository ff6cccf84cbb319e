// Package server is the reference mail store: the session and mailbox
// endpoints the client talks to, backed by a Store.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/webmail/internal/logging"
	"github.com/nhle/webmail/internal/store"
)

// Writer generates a message body from a prompt.
type Writer interface {
	Write(ctx context.Context, prompt string) (string, error)
}

// Config holds the server's session settings.
type Config struct {
	JWTSecret     string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SecureCookies bool
}

// Server serves the mail API.
type Server struct {
	store  store.Store
	tokens *tokenIssuer
	cfg    Config
	writer Writer
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithWriter enables POST /ai/draft.
func WithWriter(w Writer) Option {
	return func(s *Server) { s.writer = w }
}

// WithClock replaces the clock used for token and session expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a Server over st.
func New(st store.Store, cfg Config, opts ...Option) *Server {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	s := &Server{
		store: st,
		cfg:   cfg,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDiscard(s.logger)
	s.tokens = newTokenIssuer([]byte(cfg.JWTSecret), cfg.AccessTTL, s.now)
	return s
}

// Register adds every route under prefix to mux.
func (s *Server) Register(prefix string, mux *http.ServeMux) {
	mux.HandleFunc("POST "+prefix+"/auth/signup", s.handleSignup)
	mux.HandleFunc("POST "+prefix+"/auth/login", s.handleLogin)
	mux.HandleFunc("POST "+prefix+"/auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST "+prefix+"/auth/logout", s.handleLogout)
	mux.Handle("GET "+prefix+"/auth/me", s.authenticated(s.handleMe))

	mux.Handle("GET "+prefix+"/emails/folder/{folder}", s.authenticated(s.handleListFolder))
	mux.Handle("GET "+prefix+"/emails/search", s.authenticated(s.handleSearch))
	mux.Handle("GET "+prefix+"/emails/counts", s.authenticated(s.handleCounts))
	mux.Handle("GET "+prefix+"/emails/{id}", s.authenticated(s.handleGetEmail))
	mux.Handle("PUT "+prefix+"/emails/{id}/read", s.authenticated(s.handleSetRead))
	mux.Handle("PUT "+prefix+"/emails/{id}/star", s.authenticated(s.handleToggleStar))
	mux.Handle("PUT "+prefix+"/emails/{id}/trash", s.authenticated(s.handleTrash))
	mux.Handle("DELETE "+prefix+"/emails/{id}", s.authenticated(s.handleDelete))
	mux.Handle("POST "+prefix+"/emails/send", s.authenticated(s.handleSend))
	mux.Handle("POST "+prefix+"/emails/draft", s.authenticated(s.handleSaveDraft))
	mux.Handle("POST "+prefix+"/emails/{id}/reply", s.authenticated(s.handleReply))
	mux.Handle("POST "+prefix+"/emails/{id}/forward", s.authenticated(s.handleForward))

	mux.Handle("POST "+prefix+"/ai/draft", s.authenticated(s.handleAIDraft))
}

// Handler returns the full API mounted under /api with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register("/api", mux)
	return s.logRequests(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"request_id", requestID,
		)
	})
}
