// Package auth handles dashboard authentication and internal credentials.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/crypto"
	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/domain"
	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/repository"
	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/token"
)

// ErrInvalidCredentials is returned for any login failure. The cause (unknown
// email vs wrong password) is deliberately not distinguishable by the caller.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Config carries the signing parameters the service needs.
type Config struct {
	JWTSecret      string
	AccessTokenTTL time.Duration
	SystemTokenTTL time.Duration
}

// Service handles authentication workflows.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
	cfg    Config
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger, cfg Config) Service {
	if logger != nil {
		logger = logger.With("component", "auth")
	}
	return Service{users: users, logger: logger, cfg: cfg}
}

// Session is the result of a successful login.
type Session struct {
	User        *domain.User
	AccessToken string
	ExpiresIn   time.Duration
}

// Login authenticates a user and returns a session token carrying the role.
func (s Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	access, err := token.GenerateUserToken(user.ID, user.Role, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return Session{}, err
	}
	if s.logger != nil {
		s.logger.Info("user logged in", "user_id", user.ID)
	}
	return Session{User: user, AccessToken: access, ExpiresIn: s.cfg.AccessTokenTTL}, nil
}

// Authorize validates a bearer token and returns the associated user.
func (s Service) Authorize(ctx context.Context, bearer string) (*domain.User, *token.UserClaims, error) {
	trimmed := strings.TrimSpace(bearer)
	if trimmed == "" {
		return nil, nil, errors.New("token required")
	}
	claims, err := token.ParseUserToken(trimmed, s.cfg.JWTSecret)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, nil, err
	}
	return user, claims, nil
}

// SystemToken issues a short-lived internal credential for the given purpose.
func (s Service) SystemToken(purpose string) (string, error) {
	return token.GenerateSystemToken(purpose, s.cfg.JWTSecret, s.cfg.SystemTokenTTL)
}

// VerifySystemToken checks an internal credential for the given purpose.
func (s Service) VerifySystemToken(bearer, purpose string) error {
	_, err := token.VerifySystemToken(strings.TrimSpace(bearer), purpose, s.cfg.JWTSecret)
	return err
}

// EnsureAdmin creates the dashboard admin account when it does not exist yet.
// It is safe to call on every boot.
func (s Service) EnsureAdmin(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return err
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrInvalidArgument) {
			// Lost a race with a concurrent boot, the account exists.
			return nil
		}
		return err
	}
	if s.logger != nil {
		s.logger.Info("admin account created", "user_id", user.ID, "email", email)
	}
	return nil
}
