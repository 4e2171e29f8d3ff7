package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"spendbook/internal/core"
)

const sessionCookieName = "spendbook_session"

// SessionStore is the subset of the storage layer the session manager needs.
type SessionStore interface {
	CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error
	UserBySession(ctx context.Context, token string) (*core.User, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// sessionManager issues cookie-backed sessions persisted in SQLite and
// keeps one-shot flash messages in memory per session token.
type sessionManager struct {
	store  SessionStore
	ttl    time.Duration
	secure bool

	mu      sync.Mutex
	flashes map[string]string
}

func newSessionManager(store SessionStore, ttl time.Duration, secure bool) *sessionManager {
	return &sessionManager{
		store:   store,
		ttl:     ttl,
		secure:  secure,
		flashes: make(map[string]string),
	}
}

// start issues a fresh session for the user and sets the cookie.
func (sm *sessionManager) start(ctx context.Context, w http.ResponseWriter, userID int64) error {
	token := uuid.NewString()
	expiresAt := time.Now().UTC().Add(sm.ttl)
	if err := sm.store.CreateSession(ctx, token, userID, expiresAt); err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// user resolves the request's session cookie to a user, or nil when the
// request carries no live session.
func (sm *sessionManager) user(r *http.Request) *core.User {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	u, err := sm.store.UserBySession(r.Context(), cookie.Value)
	if err != nil {
		return nil
	}
	return u
}

// end deletes the session row and clears the cookie.
func (sm *sessionManager) end(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		_ = sm.store.DeleteSession(ctx, cookie.Value)
		sm.mu.Lock()
		delete(sm.flashes, cookie.Value)
		sm.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// setFlash stores a one-shot message for the request's session.
func (sm *sessionManager) setFlash(r *http.Request, msg string) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return
	}
	sm.mu.Lock()
	sm.flashes[cookie.Value] = msg
	sm.mu.Unlock()
}

// popFlash returns and clears the session's flash message, if any.
func (sm *sessionManager) popFlash(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	msg := sm.flashes[cookie.Value]
	delete(sm.flashes, cookie.Value)
	return msg
}

// sweep removes expired session rows. Run periodically by the server.
func (sm *sessionManager) sweep(ctx context.Context) (int64, error) {
	return sm.store.DeleteExpiredSessions(ctx)
}
