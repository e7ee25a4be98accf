package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/sessionauth/internal/events"
	"github.com/Skotchmaster/sessionauth/internal/logging"
	"github.com/Skotchmaster/sessionauth/internal/models"
	"github.com/Skotchmaster/sessionauth/internal/repo"
	"github.com/Skotchmaster/sessionauth/internal/roles"
	"github.com/Skotchmaster/sessionauth/internal/session"
	"github.com/Skotchmaster/sessionauth/internal/transport"
	"github.com/Skotchmaster/sessionauth/internal/util"
)

// Directory is the optional full-text mirror of the user table.
type Directory interface {
	Put(ctx context.Context, u *models.User) error
	Remove(ctx context.Context, uid string) error
	Search(ctx context.Context, query string, from, size int) (int64, []string, error)
}

type UserService struct {
	Repo      *repo.GormRepo
	Sessions  *session.Manager
	Roles     roles.Table
	Events    events.Publisher
	Directory Directory
}

type UserQuery struct {
	Name   string
	Role   string
	SortBy string
	Limit  int
	Page   int
}

var sortable = map[string]string{
	"name":      "name",
	"email":     "email",
	"role":      "role",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

func (s *UserService) CreateUser(ctx context.Context, req transport.CreateUserRequest) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "users.create")

	if err := validateStruct(req); err != nil {
		return nil, err
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	name, err := normalizeName(req.Name)
	if err != nil {
		return nil, err
	}
	role := req.Role
	if role == "" {
		role = roles.User
	}
	if !s.Roles.Has(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	taken, err := s.Repo.EmailTaken(ctx, email, 0)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, ErrEmailTaken
	}

	pwHash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	u := &models.User{
		UID:          uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: pwHash,
		Role:         role,
	}
	if err := s.Repo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		l.Error("create_user_failed", "error", err)
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.mirror(ctx, u)
	s.publish(ctx, events.UserCreated, u)
	return u, nil
}

func (s *UserService) QueryUsers(ctx context.Context, q UserQuery) (*util.Page[models.User], error) {
	offset, limit := util.Calculate(q.Page, q.Limit)
	page := offset/limit + 1
	sort := util.ParseSortBy(q.SortBy, sortable, util.SortField{Column: "created_at"})

	total, items, err := s.Repo.ListUsers(ctx, repo.UserFilter{Name: q.Name, Role: q.Role}, sort, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return &util.Page[models.User]{
		Results:      items,
		Page:         page,
		Limit:        limit,
		TotalPages:   util.TotalPages(total, limit),
		TotalResults: total,
	}, nil
}

func (s *UserService) SearchUsers(ctx context.Context, text string, page, size int) (*util.Page[models.User], error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: query is required", ErrValidation)
	}
	offset, limit := util.Calculate(page, size)

	var (
		total int64
		items []models.User
		err   error
	)
	if s.Directory != nil {
		var uids []string
		total, uids, err = s.Directory.Search(ctx, text, offset, limit)
		if err == nil {
			items, err = s.Repo.GetUsersByUIDs(ctx, uids)
		}
	} else {
		total, items, err = s.Repo.SearchUsers(ctx, text, offset, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}

	return &util.Page[models.User]{
		Results:      items,
		Page:         offset/limit + 1,
		Limit:        limit,
		TotalPages:   util.TotalPages(total, limit),
		TotalResults: total,
	}, nil
}

func (s *UserService) GetUser(ctx context.Context, uid string) (*models.User, error) {
	u, err := s.Repo.GetUserByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	u, err := s.Repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := s.Repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// UpdateUser applies the non-nil fields. An email change is re-checked for uniqueness and a
// password change is re-hashed.
func (s *UserService) UpdateUser(ctx context.Context, uid string, req transport.UpdateUserRequest) (*models.User, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	u, err := s.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}

	if req.Email != nil {
		email, err := normalizeEmail(*req.Email)
		if err != nil {
			return nil, err
		}
		if email != u.Email {
			taken, err := s.Repo.EmailTaken(ctx, email, u.ID)
			if err != nil {
				return nil, fmt.Errorf("check email: %w", err)
			}
			if taken {
				return nil, ErrEmailTaken
			}
			u.Email = email
			u.IsEmailVerified = false
		}
	}
	if req.Name != nil {
		name, err := normalizeName(*req.Name)
		if err != nil {
			return nil, err
		}
		u.Name = name
	}
	if req.Role != nil {
		if !s.Roles.Has(*req.Role) {
			return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, *req.Role)
		}
		u.Role = *req.Role
	}
	if req.Password != nil {
		pwHash, err := hashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = pwHash
	}

	if err := s.Repo.SaveUser(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("save user: %w", err)
	}

	s.mirror(ctx, u)
	s.publish(ctx, events.UserUpdated, u)
	return u, nil
}

// DeleteUser removes the user and every session the user owns.
func (s *UserService) DeleteUser(ctx context.Context, uid string) error {
	u, err := s.GetUser(ctx, uid)
	if err != nil {
		return err
	}

	// user row first; sessions a racing login opens are dropped by AuthService.Refresh
	if err := s.Repo.DeleteUser(ctx, u.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	if err := s.Sessions.DeleteUser(ctx, u.ID); err != nil {
		return err
	}

	if s.Directory != nil {
		if err := s.Directory.Remove(ctx, u.UID); err != nil {
			logging.FromContext(ctx).Warn("directory_remove_failed", "uid", u.UID, "error", err)
		}
	}
	s.publish(ctx, events.UserDeleted, u)
	return nil
}

func (s *UserService) mirror(ctx context.Context, u *models.User) {
	if s.Directory == nil {
		return
	}
	if err := s.Directory.Put(ctx, u); err != nil {
		logging.FromContext(ctx).Warn("directory_put_failed", "uid", u.UID, "error", err)
	}
}

func (s *UserService) publish(ctx context.Context, typ string, u *models.User) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, events.Event{Type: typ, UserUID: u.UID, Email: u.Email}); err != nil {
		logging.FromContext(ctx).Error("publish_event_failed", "type", typ, "uid", u.UID, "error", err)
	}
}

// EnsureAdmin creates an admin account for email unless a user with that email exists.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	_, err := s.GetUserByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	name, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(email)), "@")
	if _, err := s.CreateUser(ctx, transport.CreateUserRequest{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     roles.Admin,
	}); err != nil {
		return false, err
	}
	return true, nil
}
