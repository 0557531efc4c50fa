package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"payout-service/internal/domain"
	"payout-service/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, username, password string) (*usecase.AuthResponse, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.AuthResponse), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, username, password string) (*usecase.AuthResponse, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.AuthResponse), args.Error(1)
}

func credentials(t *testing.T, username, password string) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestHandleRegister(t *testing.T) {
	auth := new(MockAuthService)
	h := NewAuthHandler(auth, zap.NewNop())

	auth.On("Register", mock.Anything, "alice", "password123").Return(&usecase.AuthResponse{
		AccessToken: "token",
		ExpiresIn:   900,
		Username:    "alice",
		UserID:      "1000",
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", credentials(t, "alice", "password123"))
	rec := httptest.NewRecorder()
	h.HandleRegister(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp usecase.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "token", resp.AccessToken)
	assert.Equal(t, "alice", resp.Username)
}

func TestHandleRegister_ShortPassword(t *testing.T) {
	auth := new(MockAuthService)
	h := NewAuthHandler(auth, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", credentials(t, "alice", "short"))
	rec := httptest.NewRecorder()
	h.HandleRegister(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	auth.AssertNotCalled(t, "Register", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleRegister_UsernameTaken(t *testing.T) {
	auth := new(MockAuthService)
	h := NewAuthHandler(auth, zap.NewNop())

	auth.On("Register", mock.Anything, "alice", "password123").Return(nil, domain.ErrUserExists)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", credentials(t, "alice", "password123"))
	rec := httptest.NewRecorder()
	h.HandleRegister(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Username already exists")
}

func TestHandleLogin(t *testing.T) {
	auth := new(MockAuthService)
	h := NewAuthHandler(auth, zap.NewNop())

	auth.On("Login", mock.Anything, "alice", "password123").Return(&usecase.AuthResponse{
		AccessToken: "token",
		Username:    "alice",
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", credentials(t, "alice", "password123"))
	rec := httptest.NewRecorder()
	h.HandleLogin(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	auth := new(MockAuthService)
	h := NewAuthHandler(auth, zap.NewNop())

	auth.On("Login", mock.Anything, "alice", "wrong-password").Return(nil, domain.ErrInvalidCredentials)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", credentials(t, "alice", "wrong-password"))
	rec := httptest.NewRecorder()
	h.HandleLogin(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
}
