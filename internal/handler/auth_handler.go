package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"payout-service/internal/domain"
	"payout-service/internal/usecase"

	"go.uber.org/zap"
)

type authService interface {
	Register(ctx context.Context, username, password string) (*usecase.AuthResponse, error)
	Login(ctx context.Context, username, password string) (*usecase.AuthResponse, error)
}

type AuthHandler struct {
	auth   authService
	logger *zap.Logger
}

func NewAuthHandler(auth authService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r *credentialsRequest) validate() error {
	if r.Username == "" {
		return errors.New("username is required")
	}
	if len(r.Password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		h.sendError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	resp, err := h.auth.Register(r.Context(), req.Username, req.Password)
	if errors.Is(err, domain.ErrUserExists) {
		h.sendError(w, http.StatusBadRequest, "BAD_REQUEST", "Username already exists")
		return
	}
	if err != nil {
		h.logger.Error("registration failed", zap.String("username", req.Username), zap.Error(err))
		h.sendError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An unexpected error occurred")
		return
	}

	h.sendJSON(w, http.StatusCreated, resp)
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}

	resp, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, domain.ErrInvalidCredentials) {
		h.sendError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials")
		return
	}
	if err != nil {
		h.logger.Error("login failed", zap.String("username", req.Username), zap.Error(err))
		h.sendError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An unexpected error occurred")
		return
	}

	h.sendJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) sendJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func (h *AuthHandler) sendError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    code,
		"message": message,
	})
}
