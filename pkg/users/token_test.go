package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nive-cms/userdb/pkg/errors"
)

func TestTokenService(t *testing.T) {
	config := DefaultConfig()
	config.JWTSecret = "test-secret-key-for-testing-only"

	ts := NewTokenService(config)

	t.Run("round trip", func(t *testing.T) {
		token, expiresAt, err := ts.Issue("alice", []string{"group:a"})
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(24*time.Hour), expiresAt, time.Minute)

		claims, err := ts.Parse(token)
		require.NoError(t, err)
		assert.Equal(t, "alice", claims.Identity)
		assert.Equal(t, "alice", claims.Subject)
		assert.Equal(t, []string{"group:a"}, claims.Groups)
		assert.Equal(t, "userdb", claims.Issuer)
	})

	t.Run("tampered", func(t *testing.T) {
		token, _, err := ts.Issue("alice", nil)
		require.NoError(t, err)

		_, err = ts.Parse(token + "x")
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidToken))

		_, err = ts.Parse("not-a-token")
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidToken))
	})

	t.Run("other secret", func(t *testing.T) {
		other := DefaultConfig()
		other.JWTSecret = "another-secret"
		token, _, err := NewTokenService(other).Issue("alice", nil)
		require.NoError(t, err)

		_, err = ts.Parse(token)
		assert.True(t, errors.IsUnauthorized(err))
	})

	t.Run("other issuer", func(t *testing.T) {
		other := DefaultConfig()
		other.JWTSecret = config.JWTSecret
		other.JWTIssuer = "someone-else"
		token, _, err := NewTokenService(other).Issue("alice", nil)
		require.NoError(t, err)

		_, err = ts.Parse(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		past := NewTokenService(config)
		past.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
		token, _, err := past.Issue("alice", nil)
		require.NoError(t, err)

		_, err = ts.Parse(token)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidToken))
	})
}

func TestUserDB_Authenticate(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestUserDB(t, nil)
	defer teardownTestUserDB(t, db)

	addTestUser(t, db, "alice", "alice@example.com", AddUserOptions{Groups: []string{"group:a"}})
	user, err := db.Root().Login(ctx, "alice", "s3cret-pass", false)
	require.NoError(t, err)

	token, _, err := db.Tokens().Issue(user.Identity(), user.Groups())
	require.NoError(t, err)

	resolved, err := db.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", resolved.Identity())
	assert.True(t, resolved.InGroups("group:a"))

	require.NoError(t, db.Root().DeleteUser(ctx, "alice"))
	_, err = db.Authenticate(ctx, token)
	assert.True(t, errors.IsUnauthorized(err))

	_, err = db.Authenticate(ctx, "garbage")
	assert.True(t, errors.IsUnauthorized(err))
}

func TestUserDB_AuthenticateInactive(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestUserDB(t, nil)
	defer teardownTestUserDB(t, db)

	addTestUser(t, db, "bob", "bob@example.com", AddUserOptions{Activate: boolPtr(false)})
	token, _, err := db.Tokens().Issue("bob", nil)
	require.NoError(t, err)

	_, err = db.Authenticate(ctx, token)
	require.Error(t, err)
	assert.True(t, errors.IsUnauthorized(err))
	assert.True(t, errors.IsCode(err, errors.ErrCodeInactive))
	assert.Equal(t, "bob", errors.AsUserDBError(err).Details["identity"])
}
