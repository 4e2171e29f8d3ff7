package auth

import (
	"context"
	"testing"

	"spendbook/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserReader struct {
	users map[string]*core.User
}

func (f *fakeUserReader) GetUserByUsername(_ context.Context, username string) (*core.User, error) {
	if u, ok := f.users[username]; ok {
		return u, nil
	}
	return nil, core.ErrNotFound
}

func TestAuthenticate(t *testing.T) {
	hash, err := HashPassword("secret123")
	require.NoError(t, err)

	v := NewVerifier(&fakeUserReader{users: map[string]*core.User{
		"realuser": {ID: 1, Username: "realuser", PasswordHash: hash},
	}})
	ctx := context.Background()

	assert.True(t, v.Authenticate(ctx, "realuser", "secret123"))
	assert.False(t, v.Authenticate(ctx, "realuser", "wrongpassword"))
	assert.False(t, v.Authenticate(ctx, "unknownuser", "anything"))
	assert.False(t, v.Authenticate(ctx, "", ""))
}

func TestHashPasswordSalted(t *testing.T) {
	h1, err := HashPassword("same")
	require.NoError(t, err)
	h2, err := HashPassword("same")
	require.NoError(t, err)

	// salted hashes differ even for identical inputs
	assert.NotEqual(t, h1, h2)
}
