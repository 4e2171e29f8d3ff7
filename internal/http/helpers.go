package http

import (
	"net"
	"net/http"
	"strings"

	"spendbook/internal/core"
	applog "spendbook/internal/log"
)

// extractClientIP returns the client address for logging and rate
// limiting, preferring proxy headers when present.
func extractClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		// First address in the list is the originating client.
		if idx := strings.Index(fwd, ","); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return strings.TrimSpace(real)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func templateFuncs() map[string]any {
	return map[string]any{
		"amount": core.FormatAmount,
	}
}

// render executes the named template, answering 500 on failure.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			applog.FieldError, err, "template", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// monthPathToken splits a "/{year}/{month}" path into a month token.
// It only checks the shape; IsValid judges the token itself.
func monthPathToken(path string) (core.MonthToken, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 {
		return core.MonthToken{}, false
	}
	return core.MonthToken{Year: parts[0], Month: parts[1]}, true
}
