package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmynk/dailyexpenses/internal/apperr"
	"github.com/mmynk/dailyexpenses/internal/auth"
	"github.com/mmynk/dailyexpenses/internal/models"
	"github.com/mmynk/dailyexpenses/internal/storage"
)

// Session is the result of a successful register or login.
type Session struct {
	User        *models.User
	AccessToken string
	ExpiresIn   time.Duration
}

// AuthService handles account registration, login and self-service account management.
type AuthService struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	store         storage.Store
	logger        *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(authenticator auth.Authenticator, jwtManager *auth.JWTManager, store storage.Store, logger *slog.Logger) *AuthService {
	return &AuthService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		store:         store,
		logger:        logger,
	}
}

// Register creates a new user account and issues an access token for it.
func (s *AuthService) Register(ctx context.Context, username, password string) (*Session, error) {
	s.logger.Info("Register request", "username", username)

	if strings.TrimSpace(username) == "" {
		return nil, apperr.Invalid("username", "is required")
	}
	if password == "" {
		return nil, apperr.Invalid("password", "is required")
	}

	user, err := s.authenticator.Register(ctx, username, password)
	if err != nil {
		s.logger.Warn("Registration failed", "username", username, "error", err)
		switch {
		case errors.Is(err, auth.ErrUsernameTaken):
			return nil, apperr.Conflict("username %q is already registered", models.NormalizeUsername(username))
		case errors.Is(err, auth.ErrWeakPassword):
			return nil, apperr.Invalid("password", "%v", err)
		}
		return nil, err
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User registered successfully", "user_id", user.ID, "username", user.Username)
	return session, nil
}

// Login authenticates a user and returns a fresh access token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*Session, error) {
	s.logger.Info("Login request", "username", username)

	if strings.TrimSpace(username) == "" || password == "" {
		return nil, apperr.Invalid("credentials", "username and password are required")
	}

	user, err := s.authenticator.Authenticate(ctx, username, password)
	if err != nil {
		s.logger.Warn("Login failed", "username", username, "error", err)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return nil, apperr.Unauthorized(err)
		}
		return nil, err
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User logged in successfully", "user_id", user.ID)
	return session, nil
}

func (s *AuthService) issue(user *models.User) (*Session, error) {
	token, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Session{User: user, AccessToken: token, ExpiresIn: s.jwtManager.TokenDuration()}, nil
}

// GetUser returns the caller's own profile.
func (s *AuthService) GetUser(ctx context.Context, callerID, userID string) (*models.User, error) {
	if callerID != userID {
		return nil, apperr.Forbidden("cannot access another user's account")
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user", userID)
	}
	return user, nil
}

// DeleteUser removes the caller's account together with all of their expenses.
func (s *AuthService) DeleteUser(ctx context.Context, callerID, userID string) error {
	if callerID != userID {
		return apperr.Forbidden("cannot delete another user's account")
	}
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return notFound(err, "user", userID)
	}
	s.logger.Info("User deleted", "user_id", userID)
	return nil
}
