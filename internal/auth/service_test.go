package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/users"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type memorySessions struct {
	mu       sync.Mutex
	sessions map[string]memorySession
}

type memorySession struct {
	userID uuid.UUID
	token  string
}

func newMemorySessions() *memorySessions {
	return &memorySessions{sessions: map[string]memorySession{}}
}

func (m *memorySessions) Generate(_ context.Context, accessID string, userID uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token := "refresh-" + uuid.NewString()
	m.sessions[accessID] = memorySession{userID: userID, token: token}
	return token, nil
}

func (m *memorySessions) Rotate(_ context.Context, oldAccessID, provided string) (*session.Rotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.sessions[oldAccessID]
	if !ok || current.token != provided {
		return nil, session.ErrInvalidRefreshToken
	}
	delete(m.sessions, oldAccessID)
	next := session.NewAccessID()
	token := "refresh-" + uuid.NewString()
	m.sessions[next] = memorySession{userID: current.userID, token: token}
	return &session.Rotation{UserID: current.userID, AccessID: next, RefreshToken: token}, nil
}

func (m *memorySessions) Revoke(_ context.Context, accessID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, accessID)
	return nil
}

func (m *memorySessions) has(accessID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[accessID]
	return ok
}

var testJWT = config.JWTConfig{Secret: "test-secret", Issuer: "storefront-test", ExpirationMinutes: 15}

func newTestService(t *testing.T) (*service, *memorySessions) {
	t.Helper()
	conn := dbtest.Open(t)
	sessions := newMemorySessions()
	svc, err := NewService(ServiceParams{
		UserRepo:       users.NewRepository(conn),
		SessionManager: sessions,
		JWTConfig:      testJWT,
		PasswordConfig: config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32},
	})
	require.NoError(t, err)
	return svc.(*service), sessions
}

func validRegistration() RegisterRequest {
	return RegisterRequest{
		Username:        "shopper",
		Email:           "Shopper@Example.com",
		Password:        "testpass123",
		PasswordConfirm: "testpass123",
		FirstName:       "Sam",
		LastName:        "Shopper",
	}
}

func TestRegisterCreatesCustomerAndSession(t *testing.T) {
	svc, sessions := newTestService(t)

	resp, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	assert.Equal(t, "shopper@example.com", resp.User.Email)
	assert.Equal(t, enums.UserRoleCustomer, resp.User.Role)
	assert.Equal(t, "0.00", resp.User.Balance)
	require.NotEmpty(t, resp.Tokens.RefreshToken)

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.True(t, sessions.has(claims.ID))
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)

	req := validRegistration()
	req.PasswordConfirm = "different123"
	req.Password = "123"
	_, err := svc.Register(context.Background(), req)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Contains(t, details, "password")
	assert.Contains(t, details, "password_confirm")
}

func TestRegisterDuplicateEmailAndUsername(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), validRegistration())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	sameUsername := validRegistration()
	sameUsername.Email = "other@example.com"
	_, err = svc.Register(context.Background(), sameUsername)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: " SHOPPER@example.com ", Password: "testpass123"})
	require.NoError(t, err)
	assert.NotNil(t, resp.User.LastLoginAt)
	assert.NotEmpty(t, resp.Tokens.AccessToken)

	_, err = svc.Login(context.Background(), LoginRequest{Email: "shopper@example.com", Password: "wrong-pass"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = svc.Login(context.Background(), LoginRequest{Email: "nobody@example.com", Password: "testpass123"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestRefreshRotatesSession(t *testing.T) {
	svc, sessions := newTestService(t)
	registered, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	oldClaims, err := pkgAuth.ParseAccessToken(testJWT, registered.Tokens.AccessToken)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().UTC().Add(time.Minute) }
	tokens, err := svc.Refresh(context.Background(), registered.Tokens.AccessToken, registered.Tokens.RefreshToken)
	require.NoError(t, err)

	newClaims, err := pkgAuth.ParseAccessToken(testJWT, tokens.AccessToken)
	require.NoError(t, err)
	assert.NotEqual(t, oldClaims.ID, newClaims.ID)
	assert.Equal(t, oldClaims.UserID, newClaims.UserID)
	assert.False(t, sessions.has(oldClaims.ID))
	assert.True(t, sessions.has(newClaims.ID))

	_, err = svc.Refresh(context.Background(), registered.Tokens.AccessToken, registered.Tokens.RefreshToken)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestRefreshAcceptsExpiredAccessToken(t *testing.T) {
	svc, _ := newTestService(t)
	svc.now = func() time.Time { return time.Now().UTC().Add(-time.Hour) }
	registered, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	_, err = pkgAuth.ParseAccessToken(testJWT, registered.Tokens.AccessToken)
	require.Error(t, err)

	svc.now = func() time.Time { return time.Now().UTC() }
	_, err = svc.Refresh(context.Background(), registered.Tokens.AccessToken, registered.Tokens.RefreshToken)
	require.NoError(t, err)
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, sessions := newTestService(t)
	registered, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	claims, err := pkgAuth.ParseAccessToken(testJWT, registered.Tokens.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), registered.Tokens.AccessToken))
	assert.False(t, sessions.has(claims.ID))

	err = svc.Logout(context.Background(), "garbage")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}
