package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"spendbook/internal/auth"
	"spendbook/internal/cache"
	"spendbook/internal/core"
	applog "spendbook/internal/log"
	"spendbook/internal/services"
	"spendbook/internal/storage"
	appweb "spendbook/web"
)

type Server struct {
	http.Server
	templates    *template.Template
	ledger       *services.LedgerService
	verifier     *auth.Verifier
	users        *storage.SQLiteRepository
	sessions     *sessionManager
	loginLimiter *loginLimiter
	logger       *applog.Logger

	// monthCache holds recently viewed month listings, invalidated on
	// every mutation of the month.
	monthCache   *cache.LRUCache[[]core.Expense]
	cacheManager *cache.Manager

	stopSweep    chan struct{}
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, ledger *services.LedgerService, verifier *auth.Verifier, repo *storage.SQLiteRepository, sessionTTL time.Duration, secureCookie bool) (*Server, error) {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		ledger:       ledger,
		verifier:     verifier,
		users:        repo,
		sessions:     newSessionManager(repo, sessionTTL, secureCookie),
		loginLimiter: newLoginLimiter(),
		logger:       applog.New(applog.ComponentServer, slog.LevelInfo),
		monthCache:   cache.NewLRUCache[[]core.Expense](100, 5*time.Minute),
		cacheManager: cache.NewManager(),
		stopSweep:    make(chan struct{}),
	}
	s.cacheManager.Register(s.monthCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /login", s.withRequestLog(s.handleLoginForm))
	mux.HandleFunc("POST /login", s.withRequestLog(s.handleLogin))
	mux.HandleFunc("POST /logout", s.withRequestLog(s.requireUser(s.handleLogout)))

	// "/" doubles as the month route: "/" redirects to the current month,
	// "/{year}/{month}" renders that month, anything else is a 404.
	mux.HandleFunc("GET /", s.withRequestLog(s.requireUser(s.handleRoot)))
	mux.HandleFunc("GET /expenses/new", s.withRequestLog(s.requireUser(s.handleNewExpenseForm)))
	mux.HandleFunc("POST /expenses", s.withRequestLog(s.requireUser(s.handleCreateExpense)))
	mux.HandleFunc("GET /expenses/{id}/edit", s.withRequestLog(s.requireUser(s.handleEditExpenseForm)))
	mux.HandleFunc("POST /expenses/{id}", s.withRequestLog(s.requireUser(s.handleUpdateExpense)))
	mux.HandleFunc("POST /expenses/{id}/delete", s.withRequestLog(s.requireUser(s.handleDeleteExpense)))

	go s.startSessionSweep()

	return s, nil
}

// startSessionSweep periodically removes expired session rows.
func (s *Server) startSessionSweep() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			n, err := s.sessions.sweep(ctx)
			cancel()
			if err != nil {
				s.logger.Warn("Session sweep failed", applog.FieldError, err)
			} else if n > 0 {
				s.logger.Debug("Session sweep completed", "sessions_removed", n)
			}
		case <-s.stopSweep:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.stopSweep != nil {
			close(s.stopSweep)
		}
		if s.loginLimiter != nil {
			s.loginLimiter.stop()
		}
		if s.cacheManager != nil {
			s.cacheManager.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withRequestLog adds security headers, a request ID, and request logging.
func (s *Server) withRequestLog(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		s.logger.InfoContext(ctx, "Request started",
			applog.FieldRequestID, requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		s.logger.InfoContext(ctx, "Request completed",
			applog.FieldRequestID, requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

// requireUser redirects to the login page when the request has no live session.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.sessions.user(r) == nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
