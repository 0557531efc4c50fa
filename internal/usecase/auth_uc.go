package usecase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"payout-service/config"
	"payout-service/internal/domain"
	"payout-service/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthResponse carries an issued access token.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	Username    string `json:"username"`
	UserID      string `json:"user_id"`
}

// AuthUsecase registers users and issues HS256 access tokens.
type AuthUsecase struct {
	userRepo repository.UserRepository
	cfg      config.AuthConfig
	logger   *zap.Logger
}

func NewAuthUsecase(userRepo repository.UserRepository, cfg config.AuthConfig, logger *zap.Logger) *AuthUsecase {
	return &AuthUsecase{
		userRepo: userRepo,
		cfg:      cfg,
		logger:   logger,
	}
}

func (uc *AuthUsecase) Register(ctx context.Context, username, password string) (*AuthResponse, error) {
	uc.logger.Info("registering new user", zap.String("username", username))

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
	}

	if err := uc.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	uc.logger.Info("user registered", zap.String("username", username), zap.Int64("user_id", user.ID))
	return uc.issueToken(user)
}

func (uc *AuthUsecase) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	uc.logger.Info("login attempt", zap.String("username", username))

	user, err := uc.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		uc.logger.Warn("failed login", zap.String("username", username))
		return nil, domain.ErrInvalidCredentials
	}

	return uc.issueToken(user)
}

func (uc *AuthUsecase) issueToken(user *domain.User) (*AuthResponse, error) {
	now := time.Now()

	claims := jwt.MapClaims{
		"sub":      strconv.FormatInt(user.ID, 10),
		"username": user.Username,
		"role":     user.Role,
		"iat":      now.Unix(),
		"exp":      now.Add(uc.cfg.TokenTTL).Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(uc.cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &AuthResponse{
		AccessToken: token,
		ExpiresIn:   int64(uc.cfg.TokenTTL.Seconds()),
		Username:    user.Username,
		UserID:      strconv.FormatInt(user.ID, 10),
	}, nil
}
