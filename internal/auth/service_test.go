package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gpuforge/gpuforge-backend/internal/users"
	pkgAuth "github.com/gpuforge/gpuforge-backend/pkg/auth"
	"github.com/gpuforge/gpuforge-backend/pkg/config"
	"github.com/gpuforge/gpuforge-backend/pkg/enums"
	pkgerrors "github.com/gpuforge/gpuforge-backend/pkg/errors"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func setupAuthTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:auth_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'customer',
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	svc, err := NewService(ServiceParams{
		DB:       gormTxRunner{db: db},
		UserRepo: users.NewRepository(db),
		JWTConfig: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "gpuforge",
			ExpirationMinutes: 30,
		},
	})
	require.NoError(t, err)
	return svc
}

func TestRegisterCreatesCustomer(t *testing.T) {
	db := setupAuthTestDB(t)
	svc := newTestService(t, db)

	dto, err := svc.Register(context.Background(), RegisterRequest{
		Username: "gpubuyer",
		Email:    "Buyer@Example.com",
		Password: "correct-horse-battery",
	})
	require.NoError(t, err)
	assert.Equal(t, "gpubuyer", dto.Username)
	assert.Equal(t, "buyer@example.com", dto.Email)
	assert.Equal(t, string(enums.UserRoleCustomer), dto.Role)
	assert.NotEqual(t, uuid.Nil, dto.ID)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	db := setupAuthTestDB(t)
	svc := newTestService(t, db)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Username: "first",
		Email:    "dup@example.com",
		Password: "password-one",
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterRequest{
		Username: "second",
		Email:    "dup@example.com",
		Password: "password-two",
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	db := setupAuthTestDB(t)
	svc := newTestService(t, db)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Username: "sameuser",
		Email:    "one@example.com",
		Password: "password-one",
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterRequest{
		Username: "sameuser",
		Email:    "two@example.com",
		Password: "password-two",
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
}

func TestLoginReturnsSignedToken(t *testing.T) {
	db := setupAuthTestDB(t)
	svc := newTestService(t, db)

	registered, err := svc.Register(context.Background(), RegisterRequest{
		Username: "tokenuser",
		Email:    "token@example.com",
		Password: "open-sesame-123",
	})
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    "token@example.com",
		Password: "open-sesame-123",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, registered.ID, resp.User.ID)

	cfg := config.JWTConfig{Secret: "secret", Issuer: "gpuforge", ExpirationMinutes: 30}
	claims, err := pkgAuth.ParseAccessToken(cfg, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, claims.UserID)
	assert.Equal(t, enums.UserRoleCustomer, claims.Role)
	assert.Equal(t, "tokenuser", claims.Username)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	db := setupAuthTestDB(t)
	svc := newTestService(t, db)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Username: "wrongpass",
		Email:    "wrongpass@example.com",
		Password: "the-real-password",
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    "wrongpass@example.com",
		Password: "not-the-password",
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
}

func TestLoginRejectsUnknownEmail(t *testing.T) {
	db := setupAuthTestDB(t)
	svc := newTestService(t, db)

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "ghost@example.com",
		Password: "whatever",
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
}

func TestProfileReturnsAccount(t *testing.T) {
	db := setupAuthTestDB(t)
	svc := newTestService(t, db)

	registered, err := svc.Register(context.Background(), RegisterRequest{
		Username: "profileuser",
		Email:    "profile@example.com",
		Password: "profile-password",
	})
	require.NoError(t, err)

	dto, err := svc.Profile(context.Background(), registered.ID)
	require.NoError(t, err)
	assert.Equal(t, registered.Email, dto.Email)

	_, err = svc.Profile(context.Background(), uuid.New())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}
