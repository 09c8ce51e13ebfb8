package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/codequest-edu/codequest-api/internal/models"
	appErrors "github.com/codequest-edu/codequest-api/pkg/errors"
)

type stubUserRepo struct {
	users         map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
	revoked       []string
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{
		users:         map[string]*models.User{},
		refreshTokens: map[string]*models.RefreshToken{},
	}
}

func (s *stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (s *stubUserRepo) Create(ctx context.Context, user *models.User) error {
	s.users[user.ID] = user
	return nil
}

func (s *stubUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (s *stubUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	s.users[id].PasswordHash = passwordHash
	return nil
}

func (s *stubUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	s.revoked = append(s.revoked, userID)
	return nil
}

func (s *stubUserRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	s.refreshTokens[token.Token] = token
	return nil
}

func (s *stubUserRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	stored, ok := s.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return stored, nil
}

func (s *stubUserRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range s.refreshTokens {
		if token.ID == id {
			token.Revoked = true
		}
	}
	return nil
}

func (s *stubUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	users := make([]models.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, *user)
	}
	return users, len(users), nil
}

func (s *stubUserRepo) Deactivate(ctx context.Context, id string) error {
	if user, ok := s.users[id]; ok {
		user.Active = false
	}
	return nil
}

type stubSeeder struct {
	seeded []string
}

func (s *stubSeeder) InitCatalog(ctx context.Context, userID string) error {
	s.seeded = append(s.seeded, userID)
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "codequest-test",
	}
}

func seedUser(t *testing.T, repo *stubUserRepo, email, password string, active bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		ID:           "u-" + email,
		Email:        email,
		PasswordHash: string(hash),
		FullName:     "Test User",
		Role:         models.RoleStudent,
		Active:       active,
	}
	repo.users[user.ID] = user
	return user
}

func TestRegisterCreatesStudentAndSeedsCatalog(t *testing.T) {
	repo := newStubUserRepo()
	seeder := &stubSeeder{}
	svc := NewAuthService(repo, seeder, nil, zap.NewNop(), testAuthConfig())

	info, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "new@example.com",
		Password: "secret1",
		FullName: "New Student",
	})
	require.NoError(t, err)

	assert.Equal(t, models.RoleStudent, info.Role)
	assert.Equal(t, "new@example.com", info.Email)
	require.Len(t, repo.users, 1)
	assert.Equal(t, []string{info.ID}, seeder.seeded)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	repo := newStubUserRepo()
	seedUser(t, repo, "taken@example.com", "secret1", true)
	svc := NewAuthService(repo, nil, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "taken@example.com",
		Password: "secret1",
		FullName: "Dup",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRegisterValidatesPasswordLength(t *testing.T) {
	svc := NewAuthService(newStubUserRepo(), nil, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "short@example.com",
		Password: "abc",
		FullName: "Short",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLoginIssuesTokenPair(t *testing.T) {
	repo := newStubUserRepo()
	seedUser(t, repo, "alice@example.com", "secret1", true)
	svc := NewAuthService(repo, nil, nil, zap.NewNop(), testAuthConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	repo := newStubUserRepo()
	seedUser(t, repo, "alice@example.com", "secret1", true)
	svc := NewAuthService(repo, nil, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "alice@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	repo := newStubUserRepo()
	seedUser(t, repo, "gone@example.com", "secret1", false)
	svc := NewAuthService(repo, nil, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "gone@example.com", Password: "secret1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestRefreshTokenRotates(t *testing.T) {
	repo := newStubUserRepo()
	seedUser(t, repo, "alice@example.com", "secret1", true)
	svc := NewAuthService(repo, nil, nil, zap.NewNop(), testAuthConfig())

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// the used token is revoked and cannot be replayed
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	repo := newStubUserRepo()
	user := seedUser(t, repo, "alice@example.com", "secret1", true)
	svc := NewAuthService(repo, nil, nil, zap.NewNop(), testAuthConfig())

	err := svc.ChangePassword(context.Background(), user.ID, models.ChangePasswordRequest{
		OldPassword: "secret1",
		NewPassword: "secret2",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{user.ID}, repo.revoked)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "alice@example.com", Password: "secret2"})
	require.NoError(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := NewAuthService(newStubUserRepo(), nil, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
