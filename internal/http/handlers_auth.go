package http

import (
	"net/http"

	"spendbook/internal/core"
	applog "spendbook/internal/log"
)

type loginPage struct {
	Error    string
	Username string
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if s.sessions.user(r) != nil {
		http.Redirect(w, r, core.CurrentMonthToken().Path(), http.StatusSeeOther)
		return
	}
	s.render(w, r, "login.html", loginPage{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	clientIP := extractClientIP(r)
	if !s.loginLimiter.allow(clientIP) {
		s.logger.WarnContext(r.Context(), "Login rate limit exceeded", applog.FieldClientIP, clientIP)
		w.Header().Set("Retry-After", "60")
		http.Error(w, "Too many login attempts. Please try again later.", http.StatusTooManyRequests)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	if !s.verifier.Authenticate(r.Context(), username, password) {
		s.logger.WarnContext(r.Context(), "Login failed",
			applog.FieldUsername, username, applog.FieldClientIP, clientIP)
		w.WriteHeader(http.StatusUnauthorized)
		s.render(w, r, "login.html", loginPage{
			Error:    "Invalid username or password.",
			Username: username,
		})
		return
	}

	user, err := s.users.GetUserByUsername(r.Context(), username)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "User lookup failed after login", applog.FieldError, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if err := s.sessions.start(r.Context(), w, user.ID); err != nil {
		s.logger.ErrorContext(r.Context(), "Session start failed", applog.FieldError, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	s.logger.InfoContext(r.Context(), "Login succeeded", applog.FieldUsername, username)
	http.Redirect(w, r, core.CurrentMonthToken().Path(), http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.end(r.Context(), w, r)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
