// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/bookpro/internal/config"
	"github.com/tomtom215/bookpro/internal/database"
	"github.com/tomtom215/bookpro/internal/logging"
	"github.com/tomtom215/bookpro/internal/metrics"
	"github.com/tomtom215/bookpro/internal/models"
	"github.com/tomtom215/bookpro/internal/validation"
)

var (
	// ErrInvalidCredentials hides whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailTaken is returned when registering an existing email.
	ErrEmailTaken = errors.New("email already registered")

	// ErrWeakPassword wraps the password policy violations.
	ErrWeakPassword = errors.New("password does not meet the policy")

	// ErrRateLimited is returned when an IP exceeds the login budget.
	ErrRateLimited = errors.New("too many login attempts")

	// ErrTokenRevoked is returned for tokens invalidated by logout.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid auth input")
)

// UserStore is the account persistence the service needs.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUserPassword(ctx context.Context, id, hash string) error
}

// Config holds service settings.
type Config struct {
	// BcryptCost defaults to 12.
	BcryptCost int

	// LoginPerMinute is the per-IP login budget. Zero disables the limit.
	LoginPerMinute int
}

// Service implements account registration and sessions.
type Service struct {
	users     UserStore
	tokens    *JWTManager
	revoked   RevocationStore
	limiter   *RateLimiter
	cost      int
	dummyHash []byte
}

// NewService wires the service.
func NewService(users UserStore, tokens *JWTManager, revoked RevocationStore, cfg Config) (*Service, error) {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	// Compared against when the email is unknown so both paths cost one bcrypt.
	dummy, err := bcrypt.GenerateFromPassword([]byte("bookpro-timing-equalizer"), cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare password hashing: %w", err)
	}
	s := &Service{users: users, tokens: tokens, revoked: revoked, cost: cfg.BcryptCost, dummyHash: dummy}
	if cfg.LoginPerMinute > 0 {
		s.limiter = NewLoginLimiter(cfg.LoginPerMinute)
	}
	return s, nil
}

// RegisterInput is a self-service signup.
type RegisterInput struct {
	Email    string      `json:"email" validate:"required,email,max=254"`
	Name     string      `json:"name" validate:"required,min=1,max=120"`
	Password string      `json:"password" validate:"required,max=128"`
	Role     models.Role `json:"role" validate:"omitempty,oneof=client owner"`
}

// Session is an issued access token.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Register creates a client or owner account. Owners get the stricter policy.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := validation.Err(&in); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if in.Role == "" {
		in.Role = models.RoleClient
	}
	return s.createUser(ctx, in.Email, in.Name, in.Password, in.Role)
}

// CreateAdmin creates an admin account, or resets the password of an existing
// admin with that email.
func (s *Service) CreateAdmin(ctx context.Context, email, name, password string) (*models.User, error) {
	existing, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil && existing.Role == models.RoleAdmin:
		if err := config.StaffPasswordPolicy().Check(password, email); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrWeakPassword, err)
		}
		hash, err := s.hash(password)
		if err != nil {
			return nil, err
		}
		if err := s.users.UpdateUserPassword(ctx, existing.ID, hash); err != nil {
			return nil, err
		}
		logging.LogSecurityEvent(logging.SecurityPasswordReset, existing.ID, "", "admin password reset")
		return existing, nil
	case err == nil:
		return nil, ErrEmailTaken
	case !errors.Is(err, database.ErrNotFound):
		return nil, err
	}
	if name == "" {
		name = "Administrator"
	}
	return s.createUser(ctx, email, name, password, models.RoleAdmin)
}

func (s *Service) createUser(ctx context.Context, email, name, password string, role models.Role) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	policy := config.ClientPasswordPolicy()
	if role != models.RoleClient {
		policy = config.StaffPasswordPolicy()
	}
	if err := policy.Check(password, email); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWeakPassword, err)
	}

	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	logging.Ctx(ctx).Info().Str("user_id", user.ID).Str("role", string(role)).Msg("Account created")
	return user, nil
}

func (s *Service) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Login checks credentials and issues a token.
func (s *Service) Login(ctx context.Context, email, password, ip string) (*Session, error) {
	if s.limiter != nil && !s.limiter.Allow(ip) {
		metrics.AuthAttempts.WithLabelValues("rate_limited").Inc()
		logging.LogLoginFailure(email, ip, "rate_limited")
		return nil, ErrRateLimited
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	if user == nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		metrics.AuthAttempts.WithLabelValues("invalid_credentials").Inc()
		logging.LogLoginFailure(email, ip, "unknown_email")
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		metrics.AuthAttempts.WithLabelValues("invalid_credentials").Inc()
		logging.LogLoginFailure(email, ip, "bad_password")
		return nil, ErrInvalidCredentials
	}

	session, err := s.IssueSession(user)
	if err != nil {
		return nil, err
	}
	metrics.AuthAttempts.WithLabelValues("success").Inc()
	logging.LogLoginSuccess(user.ID, user.Email, ip)
	return session, nil
}

// IssueSession signs a token for user without checking credentials.
func (s *Service) IssueSession(user *models.User) (*Session, error) {
	token, claims, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user}, nil
}

// Authenticate implements Authenticator.
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Logout revokes the token until it would have expired.
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	if claims.ExpiresAt == nil {
		return fmt.Errorf("%w: token without expiry", ErrInvalidToken)
	}
	if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return err
	}
	metrics.TokensRevoked.Inc()
	logging.Ctx(ctx).Info().
		Str("event_type", logging.SecurityLogout).
		Str("user_id", claims.Subject).
		Msg("Token revoked")
	return nil
}

// User loads the account behind claims.
func (s *Service) User(ctx context.Context, claims *Claims) (*models.User, error) {
	return s.users.GetUser(ctx, claims.Subject)
}
