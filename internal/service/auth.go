package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Skotchmaster/sessionauth/internal/events"
	"github.com/Skotchmaster/sessionauth/internal/hash"
	"github.com/Skotchmaster/sessionauth/internal/logging"
	"github.com/Skotchmaster/sessionauth/internal/models"
	"github.com/Skotchmaster/sessionauth/internal/roles"
	"github.com/Skotchmaster/sessionauth/internal/session"
	"github.com/Skotchmaster/sessionauth/internal/transport"
)

type AuthService struct {
	Users    *UserService
	Sessions *session.Manager
}

func (s *AuthService) Register(ctx context.Context, req transport.RegisterRequest) (*models.User, *session.Issued, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	u, err := s.Users.CreateUser(ctx, transport.CreateUserRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     roles.User,
	})
	if err != nil {
		return nil, nil, err
	}

	iss, err := s.Sessions.Generate(ctx, u.ID)
	if err != nil {
		l.Error("register_error", "reason", "cannot create session", "error", err)
		return nil, nil, err
	}

	s.Users.publish(ctx, events.UserRegistered, u)
	return u, iss, nil
}

func (s *AuthService) Login(ctx context.Context, req transport.LoginRequest) (*models.User, *session.Issued, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	if err := validateStruct(req); err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	password := strings.TrimSpace(req.Password)

	u, err := s.Users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// unknown emails cost one bcrypt compare, same as a wrong password
			hash.CheckPassword(dummyHash(), password)
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if !hash.CheckPassword(u.PasswordHash, password) {
		l.Warn("login_failed", "reason", "password mismatch", "uid", u.UID)
		return nil, nil, ErrInvalidCredentials
	}

	iss, err := s.Sessions.Generate(ctx, u.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("login: %w", err)
	}

	s.Users.publish(ctx, events.UserLoggedIn, u)
	return u, iss, nil
}

func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	return s.Sessions.Logout(ctx, accessToken)
}

// Refresh rotates the session and drops it again when its owner no longer exists.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*session.Issued, error) {
	iss, err := s.Sessions.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	if _, err := s.Users.GetUserByID(ctx, iss.UserID); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		logging.FromContext(ctx).Warn("refresh_error", "reason", "session owner gone", "user_id", iss.UserID)
		if err := s.Sessions.DeleteUser(ctx, iss.UserID); err != nil {
			return nil, err
		}
		return nil, session.ErrUnauthorized
	}
	return iss, nil
}

var dummyHash = sync.OnceValue(func() string {
	h, _ := hash.HashPassword(uuid.NewString())
	return h
})
