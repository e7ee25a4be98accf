package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Skotchmaster/sessionauth/internal/logging"
	"github.com/Skotchmaster/sessionauth/internal/models"
)

const (
	DefaultAccessTTL  = 60 * time.Minute
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

var (
	// ErrUnauthorized covers unknown, expired and already consumed tokens alike.
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("session not found")
)

// Store is the persistence contract for sessions. Tokens reach the store already hashed.
// Lookups return ErrNotFound when nothing matches.
type Store interface {
	Create(ctx context.Context, s *models.Session) error
	FindByAccess(ctx context.Context, accessHash string) (*models.Session, error)
	FindByRefresh(ctx context.Context, refreshHash string, issuedAfter time.Time) (*models.Session, error)
	// Delete reports whether this call removed the record; a concurrent caller that lost
	// the race gets false.
	Delete(ctx context.Context, s *models.Session) (bool, error)
	DeleteByUser(ctx context.Context, userID uint) (int64, error)
	DeleteExpired(ctx context.Context, issuedBefore time.Time) (int64, error)
}

type Issued struct {
	Session        *models.Session
	UserID         uint
	AccessToken    string
	RefreshToken   string
	AccessExpires  time.Time
	RefreshExpires time.Time
}

type Manager struct {
	Store      Store
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

func NewManager(store Store, accessTTL, refreshTTL time.Duration) *Manager {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &Manager{
		Store:      store,
		AccessTTL:  accessTTL,
		RefreshTTL: refreshTTL,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}

func (m *Manager) Generate(ctx context.Context, userID uint) (*Issued, error) {
	now := m.now()
	access, refresh := NewToken(), NewToken()

	s := &models.Session{
		UserID:             userID,
		AccessToken:        HashToken(access),
		RefreshToken:       HashToken(refresh),
		AccessTokenExpires: now.Add(m.AccessTTL),
		RefreshTokenDate:   now,
	}
	if err := m.Store.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &Issued{
		Session:        s,
		UserID:         userID,
		AccessToken:    access,
		RefreshToken:   refresh,
		AccessExpires:  s.AccessTokenExpires,
		RefreshExpires: now.Add(m.RefreshTTL),
	}, nil
}

func (m *Manager) CheckAccess(ctx context.Context, accessToken string) (*models.Session, error) {
	if accessToken == "" {
		return nil, ErrUnauthorized
	}
	s, err := m.Store.FindByAccess(ctx, HashToken(accessToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	if !s.AccessTokenExpires.After(m.now()) {
		return nil, ErrUnauthorized
	}
	return s, nil
}

// Refresh consumes refreshToken and issues a new session for the same user.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*Issued, error) {
	l := logging.FromContext(ctx).With("svc", "session.refresh")
	if refreshToken == "" {
		return nil, ErrUnauthorized
	}

	s, err := m.Store.FindByRefresh(ctx, HashToken(refreshToken), m.now().Add(-m.RefreshTTL))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("find session: %w", err)
	}

	removed, err := m.Store.Delete(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("delete session: %w", err)
	}
	if !removed {
		l.Warn("refresh_race_lost", "user_id", s.UserID)
		return nil, ErrUnauthorized
	}

	return m.Generate(ctx, s.UserID)
}

func (m *Manager) Logout(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return ErrNotFound
	}
	s, err := m.Store.FindByAccess(ctx, HashToken(accessToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("find session: %w", err)
	}

	removed, err := m.Store.Delete(ctx, s)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if !removed {
		return ErrNotFound
	}
	return nil
}

func (m *Manager) DeleteUser(ctx context.Context, userID uint) error {
	if _, err := m.Store.DeleteByUser(ctx, userID); err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}
