package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/saed-edu/saed-api/internal/models"
	"github.com/saed-edu/saed-api/internal/repository"
	appErrors "github.com/saed-edu/saed-api/pkg/errors"
)

type mockAuthRepo struct {
	user          *models.User
	refreshTokens map[string]*models.RefreshToken
	auditLogs     []*models.AuditLog
	createErr     error
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.user == nil || m.user.Email != email {
		return nil, sql.ErrNoRows
	}
	copied := *m.user
	return &copied, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.user == nil || m.user.ID != id {
		return nil, sql.ErrNoRows
	}
	copied := *m.user
	return &copied, nil
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.user = user
	return nil
}

func (m *mockAuthRepo) Update(ctx context.Context, user *models.User) error {
	m.user = user
	return nil
}

func (m *mockAuthRepo) RecordFailedLogin(ctx context.Context, id string, attempts int, ts time.Time) error {
	if m.user != nil && m.user.ID == id {
		m.user.FailedLoginAttempts = attempts
		stamped := ts
		m.user.LastFailedLogin = &stamped
	}
	return nil
}

func (m *mockAuthRepo) RecordSuccessfulLogin(ctx context.Context, id string, ts time.Time) error {
	if m.user != nil && m.user.ID == id {
		m.user.FailedLoginAttempts = 0
		m.user.LastFailedLogin = nil
		stamped := ts
		m.user.LastLogin = &stamped
	}
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.user != nil && m.user.ID == id {
		m.user.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	for _, token := range m.refreshTokens {
		if token.UserID == userID {
			token.Revoked = true
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			stamped := revokedAt
			token.RevokedAt = &stamped
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func newTestAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), nil, AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "saed-api",
		MaxFailedLogins:    5,
		LockoutWindow:      15 * time.Minute,
	})
}

func activeUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:           "user-1",
		Email:        "user@example.com",
		PasswordHash: string(hash),
		FullName:     "User One",
		Role:         models.RoleStaff,
		Active:       true,
	}
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo := &mockAuthRepo{user: activeUser(t, "password")}
	svc := newTestAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "user-1", res.User.ID)
	require.NotNil(t, repo.user.LastLogin)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := &mockAuthRepo{user: activeUser(t, "password")}
	svc := newTestAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "nope"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
	assert.Equal(t, 1, repo.user.FailedLoginAttempts)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := newTestAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginDisabledAccount(t *testing.T) {
	user := activeUser(t, "password")
	user.Active = false
	repo := &mockAuthRepo{user: user}
	svc := newTestAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
	// No failure is counted for a disabled account.
	assert.Zero(t, repo.user.FailedLoginAttempts)
}

func TestAuthServiceLoginLockoutAfterRepeatedFailures(t *testing.T) {
	repo := &mockAuthRepo{user: activeUser(t, "password")}
	svc := newTestAuthService(repo)

	for i := 0; i < 5; i++ {
		_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "nope"})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
	}
	assert.Equal(t, 5, repo.user.FailedLoginAttempts)

	// Even the correct password is rejected while the account is locked.
	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAccountLocked.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginLockoutExpires(t *testing.T) {
	repo := &mockAuthRepo{user: activeUser(t, "password")}
	svc := newTestAuthService(repo)

	for i := 0; i < 5; i++ {
		_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "nope"})
		require.Error(t, err)
	}

	// Move the clock past the lockout window.
	svc.now = func() time.Time { return time.Now().UTC().Add(16 * time.Minute) }

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Zero(t, repo.user.FailedLoginAttempts)
}

func TestAuthServiceLoginFailureCounterResetsAfterWindow(t *testing.T) {
	repo := &mockAuthRepo{user: activeUser(t, "password")}
	svc := newTestAuthService(repo)

	for i := 0; i < 4; i++ {
		_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "nope"})
		require.Error(t, err)
	}
	assert.Equal(t, 4, repo.user.FailedLoginAttempts)

	// A stale window means the next failure starts a fresh count.
	svc.now = func() time.Time { return time.Now().UTC().Add(16 * time.Minute) }
	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "nope"})
	require.Error(t, err)
	assert.Equal(t, 1, repo.user.FailedLoginAttempts)
}

func TestAuthServiceSuccessfulLoginResetsCounter(t *testing.T) {
	repo := &mockAuthRepo{user: activeUser(t, "password")}
	svc := newTestAuthService(repo)

	for i := 0; i < 3; i++ {
		_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "nope"})
		require.Error(t, err)
	}

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)
	assert.Zero(t, repo.user.FailedLoginAttempts)
	assert.Nil(t, repo.user.LastFailedLogin)
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	repo := &mockAuthRepo{user: activeUser(t, "password")}
	svc := newTestAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: res.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, res.RefreshToken, refreshed.RefreshToken)

	// The used token is revoked; replaying it fails.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: res.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateToken(t *testing.T) {
	repo := &mockAuthRepo{user: activeUser(t, "password")}
	svc := newTestAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleStaff, claims.Role)

	_, err = svc.ValidateToken("not-a-token")
	require.Error(t, err)
}

func TestAuthServiceChangePasswordRequiresCurrent(t *testing.T) {
	repo := &mockAuthRepo{user: activeUser(t, "password")}
	svc := newTestAuthService(repo)

	_, err := svc.ChangePassword(context.Background(), "user-1", models.ChangePasswordRequest{
		CurrentPassword: "wrong",
		NewPassword:     "brand-new",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceChangePasswordRevokesSessions(t *testing.T) {
	repo := &mockAuthRepo{user: activeUser(t, "password")}
	svc := newTestAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)

	tokens, err := svc.ChangePassword(context.Background(), "user-1", models.ChangePasswordRequest{
		CurrentPassword: "password",
		NewPassword:     "brand-new",
	})
	require.NoError(t, err)

	assert.True(t, repo.refreshTokens[res.RefreshToken].Revoked)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.user.PasswordHash), []byte("brand-new")))

	// The caller keeps a live session: a fresh pair is issued after the
	// old tokens are revoked.
	require.NotNil(t, tokens)
	assert.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)
	fresh, ok := repo.refreshTokens[tokens.RefreshToken]
	require.True(t, ok)
	assert.False(t, fresh.Revoked)

	claims, err := svc.ValidateToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo := &mockAuthRepo{createErr: repository.ErrDuplicate}
	svc := newTestAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "user@example.com",
		Password: "password",
		FullName: "User One",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}
