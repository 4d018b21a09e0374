package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/gpuforge/gpuforge-backend/api/middleware"
	authsvc "github.com/gpuforge/gpuforge-backend/internal/auth"
	usersvc "github.com/gpuforge/gpuforge-backend/internal/users"
	pkgerrors "github.com/gpuforge/gpuforge-backend/pkg/errors"
)

type stubAuthService struct {
	user     *usersvc.UserDTO
	login    *authsvc.LoginResponse
	loginErr error
}

func (s *stubAuthService) Register(_ context.Context, _ authsvc.RegisterRequest) (*usersvc.UserDTO, error) {
	return s.user, nil
}

func (s *stubAuthService) Login(_ context.Context, _ authsvc.LoginRequest) (*authsvc.LoginResponse, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return s.login, nil
}

func (s *stubAuthService) Profile(_ context.Context, _ uuid.UUID) (*usersvc.UserDTO, error) {
	if s.user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return s.user, nil
}

func TestRegister(t *testing.T) {
	logg := testLogger()

	t.Run("invalid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader(`{"username":"ab"}`))
		rec := httptest.NewRecorder()
		Register(&stubAuthService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for short username, got %d", rec.Code)
		}
	})

	t.Run("success returns 201", func(t *testing.T) {
		stub := &stubAuthService{user: &usersvc.UserDTO{ID: uuid.New(), Username: "gpubuyer", Email: "buyer@example.com", Role: "customer"}}
		body := `{"username":"gpubuyer","email":"buyer@example.com","password":"correct-horse-battery"}`
		req := httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader(body))
		rec := httptest.NewRecorder()
		Register(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), "gpubuyer") {
			t.Fatalf("expected username in response, got %s", rec.Body.String())
		}
	})
}

func TestLogin(t *testing.T) {
	logg := testLogger()
	body := `{"email":"buyer@example.com","password":"correct-horse-battery"}`

	t.Run("bad credentials map to 401", func(t *testing.T) {
		stub := &stubAuthService{loginErr: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")}
		req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(body))
		rec := httptest.NewRecorder()
		Login(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		stub := &stubAuthService{login: &authsvc.LoginResponse{AccessToken: "token"}}
		req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(body))
		rec := httptest.NewRecorder()
		Login(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "token") {
			t.Fatalf("expected access token in response, got %s", rec.Body.String())
		}
	})
}

func TestProfileRequiresUserContext(t *testing.T) {
	logg := testLogger()

	req := httptest.NewRequest(http.MethodGet, "/api/user/profile", nil)
	rec := httptest.NewRecorder()
	Profile(&stubAuthService{}, logg).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without user context, got %d", rec.Code)
	}

	ctx := middleware.WithUserID(context.Background(), uuid.NewString())
	stub := &stubAuthService{user: &usersvc.UserDTO{ID: uuid.New(), Username: "gpubuyer"}}
	req = httptest.NewRequest(http.MethodGet, "/api/user/profile", nil).WithContext(ctx)
	rec = httptest.NewRecorder()
	Profile(stub, logg).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
