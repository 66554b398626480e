package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/rylac/internal/apperrors"
	"github.com/thereayou/rylac/internal/cache"
	"github.com/thereayou/rylac/internal/database"
	"github.com/thereayou/rylac/internal/database/dbtest"
	"github.com/thereayou/rylac/pkg/auth"
	"go.uber.org/zap"
)

func newAuthFixture(t *testing.T) (*AuthService, *database.Database, *auth.JWTManager) {
	t.Helper()
	db := dbtest.New(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	jwt := auth.NewJWTManager("access-secret", "refresh-secret", 15*time.Minute, time.Hour)
	return NewAuthService(db, db, jwt, cache.New(client), zap.NewNop().Sugar()), db, jwt
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, RegisterRequest{Username: "Alice_01", Password: "secret1", DisplayName: " Alice "})
	require.NoError(t, err)
	assert.Equal(t, "alice_01", session.User.Username)
	assert.Equal(t, "Alice", session.User.DisplayName)
	assert.Len(t, session.User.UserID, 8)
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)

	_, err = svc.Register(ctx, RegisterRequest{Username: "alice_01", Password: "secret1", DisplayName: "Other"})
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	login, err := svc.Login(ctx, LoginRequest{Username: "ALICE_01", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, session.User.UserID, login.User.UserID)

	_, err = svc.Login(ctx, LoginRequest{Username: "alice_01", Password: "wrong"})
	assert.Equal(t, apperrors.KindAuthentication, apperrors.KindOf(err))
	_, err = svc.Login(ctx, LoginRequest{Username: "nobody", Password: "secret1"})
	assert.Equal(t, apperrors.KindAuthentication, apperrors.KindOf(err))
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	cases := []RegisterRequest{
		{Username: "ab", Password: "secret1", DisplayName: "A"},
		{Username: "bad name", Password: "secret1", DisplayName: "A"},
		{Username: "alice", Password: "123", DisplayName: "A"},
		{Username: "alice", Password: "secret1", DisplayName: "   "},
	}
	for i, req := range cases {
		_, err := svc.Register(ctx, req)
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err), "case %d", i)
	}
}

func TestUserIDCollisionRetry(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	svc.newID = func() (string, error) { return "10000001", nil }
	_, err := svc.Register(ctx, RegisterRequest{Username: "first", Password: "secret1", DisplayName: "F"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterRequest{Username: "second", Password: "secret1", DisplayName: "S"})
	assert.Equal(t, apperrors.KindUnavailable, apperrors.KindOf(err))

	ids := []string{"10000001", "10000001", "10000002"}
	svc.newID = func() (string, error) {
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}
	session, err := svc.Register(ctx, RegisterRequest{Username: "third", Password: "secret1", DisplayName: "T"})
	require.NoError(t, err)
	assert.Equal(t, "10000002", session.User.UserID)
}

func TestAuthenticateFallsBackToRefresh(t *testing.T) {
	svc, _, jwt := newAuthFixture(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, RegisterRequest{Username: "alice", Password: "secret1", DisplayName: "Alice"})
	require.NoError(t, err)

	id, err := svc.Authenticate(ctx, session.AccessToken, "")
	require.NoError(t, err)
	assert.Equal(t, session.User.UserID, id.UserID)
	assert.False(t, id.ViaRefresh)

	expired := expiredAccess(t, jwt, session.User.UserID)
	id, err = svc.Authenticate(ctx, expired, session.RefreshToken)
	require.NoError(t, err)
	assert.True(t, id.ViaRefresh)
	assert.Equal(t, "user", id.Role)

	_, err = svc.Authenticate(ctx, expired, "")
	assert.Equal(t, apperrors.KindAuthentication, apperrors.KindOf(err))
	_, err = svc.Authenticate(ctx, "", "")
	assert.Equal(t, apperrors.KindAuthentication, apperrors.KindOf(err))
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, db, _ := newAuthFixture(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, RegisterRequest{Username: "alice", Password: "secret1", DisplayName: "Alice"})
	require.NoError(t, err)
	require.NoError(t, db.SetPresence(ctx, session.User.UserID, true, time.Now().UTC()))

	require.NoError(t, svc.Logout(ctx, session.User.UserID, session.AccessToken, session.RefreshToken))

	_, err = svc.Authenticate(ctx, session.AccessToken, "")
	assert.Equal(t, apperrors.KindAuthentication, apperrors.KindOf(err))
	_, err = svc.Authenticate(ctx, "", session.RefreshToken)
	assert.Equal(t, apperrors.KindAuthentication, apperrors.KindOf(err))
	_, err = svc.Refresh(ctx, session.RefreshToken)
	assert.Equal(t, apperrors.KindAuthentication, apperrors.KindOf(err))

	// присутствие принадлежит жизненному циклу соединений, logout его не трогает
	user, err := svc.Me(ctx, session.User.UserID)
	require.NoError(t, err)
	assert.True(t, user.IsOnline)
}

func TestRefreshIssuesAccess(t *testing.T) {
	svc, _, jwt := newAuthFixture(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, RegisterRequest{Username: "alice", Password: "secret1", DisplayName: "Alice"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, session.RefreshToken)
	require.NoError(t, err)
	assert.Empty(t, refreshed.RefreshToken)

	claims, err := jwt.VerifyAccess(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.User.UserID, claims.UserID())

	_, err = svc.Refresh(ctx, session.AccessToken)
	assert.Equal(t, apperrors.KindAuthentication, apperrors.KindOf(err))
}

func expiredAccess(t *testing.T, jwt *auth.JWTManager, userID string) string {
	t.Helper()
	old := auth.NewJWTManager("access-secret", "refresh-secret", -time.Minute, time.Hour)
	token, _, err := old.GenerateAccess(userID, "user")
	require.NoError(t, err)
	_, err = jwt.VerifyAccess(token)
	require.ErrorIs(t, err, auth.ErrTokenExpired)
	return token
}
