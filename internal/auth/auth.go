// Package auth verifies submitted credentials against stored bcrypt hashes.
package auth

import (
	"context"
	"log/slog"

	"spendbook/internal/core"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is a real bcrypt hash of an unguessable value. The unknown-user
// path compares against it so both failure paths cost one bcrypt comparison
// and are indistinguishable to the caller.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// UserReader is the single storage read the verifier needs.
type UserReader interface {
	GetUserByUsername(ctx context.Context, username string) (*core.User, error)
}

// Verifier checks a submitted password against a user's stored hash.
type Verifier struct {
	users UserReader
}

func NewVerifier(users UserReader) *Verifier {
	return &Verifier{users: users}
}

// Authenticate reports whether the username/password pair is valid. An
// unknown user and a wrong password both return plain false; neither path
// leaks which part failed, in error detail or in timing.
func (v *Verifier) Authenticate(ctx context.Context, username, password string) bool {
	user, err := v.users.GetUserByUsername(ctx, username)
	if err != nil {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		slog.InfoContext(ctx, "Authentication failed", "username", username)
		return false
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.InfoContext(ctx, "Authentication failed", "username", username)
		return false
	}
	return true
}

// HashPassword produces a bcrypt hash for storing a new user's password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
