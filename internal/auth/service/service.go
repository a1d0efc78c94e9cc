package service

import (
	"context"
	"errors"
	"time"

	"outreach_backend/internal/auth/domain"
	"outreach_backend/internal/auth/repository"
	"outreach_backend/internal/auth/transport"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Store is the persistence boundary the service needs. The concrete
// implementation is repository.Repository.
type Store interface {
	Create(ctx context.Context, username, email, passwordHash string) (domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.User, error)
	GetByUsername(ctx context.Context, username string) (domain.User, error)
}

// Service provides account registration and token issuance.
type Service struct {
	repo Store
	cfg  config.AuthServiceConfig
	log  *logger.Logger
}

// New creates a new auth service.
func New(repo Store, cfg config.AuthServiceConfig, log *logger.Logger) *Service {
	return &Service{repo: repo, cfg: cfg, log: log}
}

// Register creates an operator account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, req transport.RegisterRequest) (transport.UserResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return transport.UserResponse{}, err
	}

	u, err := s.repo.Create(ctx, req.Username, req.Email, string(hash))
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.log.AuthEvent("register", req.Username, false, "duplicate")
			return transport.UserResponse{}, apperr.Conflict("username or email already exists")
		}
		return transport.UserResponse{}, err
	}

	s.log.AuthEvent("register", u.Username, true, "")
	return toUserResponse(u), nil
}

// Login verifies credentials and issues a signed access token.
func (s *Service) Login(ctx context.Context, req transport.LoginRequest) (transport.TokenResponse, error) {
	u, err := s.repo.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.AuthEvent("login", req.Username, false, "unknown user")
			return transport.TokenResponse{}, apperr.Unauthorized("invalid credentials")
		}
		return transport.TokenResponse{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		s.log.AuthEvent("login", req.Username, false, "wrong password")
		return transport.TokenResponse{}, apperr.Unauthorized("invalid credentials")
	}

	ttl := s.cfg.GetAccessTokenTTL()
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	token, err := s.signAccessToken(u, ttl)
	if err != nil {
		return transport.TokenResponse{}, err
	}

	s.log.AuthEvent("login", u.Username, true, "")
	return transport.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
		User:        toUserResponse(u),
	}, nil
}

// Me returns the account behind an authenticated request.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (transport.UserResponse, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.UserResponse{}, apperr.NotFound("user not found")
		}
		return transport.UserResponse{}, err
	}
	return toUserResponse(u), nil
}

func (s *Service) signAccessToken(u domain.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      u.ID.String(),
		"username": u.Username,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.GetJWTAccessSecret()))
}

func toUserResponse(u domain.User) transport.UserResponse {
	return transport.UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}
