package service

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/AmrMohamed27/threadit-server-sub001/auth"
	"github.com/AmrMohamed27/threadit-server-sub001/errors"
	"github.com/AmrMohamed27/threadit-server-sub001/storage"
)

const minPasswordLength = 8

// UserService handles account registration and credential checks. Session
// cookie issuance lives in the gateway, which owns the response writer.
type UserService struct {
	backend storage.UserBackend
	logger  *slog.Logger
}

// NewUserService creates a UserService.
func NewUserService(backend storage.UserBackend, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		backend: backend,
		logger:  logger.With("component", "userservice"),
	}
}

// Register creates an account with a bcrypt password hash.
func (s *UserService) Register(ctx context.Context, username, email, password string) *UserResponse {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if username == "" {
		return &UserResponse{Errors: fieldErr("username", "username is required")}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return &UserResponse{Errors: fieldErr("email", "invalid email address")}
	}
	if len(password) < minPasswordLength {
		return &UserResponse{Errors: fieldErr("password", "password must be at least 8 characters")}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		return &UserResponse{Errors: internalErr()}
	}

	user, err := s.backend.CreateUser(ctx, username, email, string(hash))
	if err != nil {
		if errors.Is(err, errors.ErrAlreadyExists) {
			return &UserResponse{Errors: fieldErr("username", "username or email already taken")}
		}
		s.logger.Error("failed to create user", "username", username, "error", err)
		return &UserResponse{Errors: internalErr()}
	}

	return &UserResponse{User: user}
}

// Login verifies credentials. The identifier may be a username or an
// email address.
func (s *UserService) Login(ctx context.Context, identifier, password string) *UserResponse {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return &UserResponse{Errors: fieldErr("credentials", "username and password are required")}
	}

	user, err := s.backend.GetUserByUsername(ctx, identifier)
	if errors.Is(err, errors.ErrNotFound) {
		user, err = s.backend.GetUserByEmail(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return &UserResponse{Errors: fieldErr("credentials", "invalid username or password")}
		}
		s.logger.Error("failed to look up user", "error", err)
		return &UserResponse{Errors: internalErr()}
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return &UserResponse{Errors: fieldErr("credentials", "invalid username or password")}
	}

	return &UserResponse{User: user}
}

// Me returns the account of the calling principal.
func (s *UserService) Me(ctx context.Context) *UserResponse {
	p := auth.PrincipalFromContext(ctx)
	if !p.Authenticated {
		return &UserResponse{Errors: fieldErr("root", "not authenticated")}
	}

	user, err := s.backend.GetUserByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return &UserResponse{Errors: fieldErr("root", "account no longer exists")}
		}
		s.logger.Error("failed to load user", "userID", p.UserID, "error", err)
		return &UserResponse{Errors: internalErr()}
	}

	return &UserResponse{User: user}
}
