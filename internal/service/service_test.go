package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/sessionauth/internal/events"
	"github.com/Skotchmaster/sessionauth/internal/hash"
	"github.com/Skotchmaster/sessionauth/internal/models"
	"github.com/Skotchmaster/sessionauth/internal/repo"
	"github.com/Skotchmaster/sessionauth/internal/roles"
	"github.com/Skotchmaster/sessionauth/internal/session"
	"github.com/Skotchmaster/sessionauth/internal/transport"
	"github.com/Skotchmaster/sessionauth/pkg/db"
)

type testEnv struct {
	repo   *repo.GormRepo
	users  *UserService
	auth   *AuthService
	events *events.Recorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gdb, err := db.Open(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb, models.All()...))

	r := repo.NewGormRepo(gdb)
	sessions := session.NewManager(r, time.Hour, 24*time.Hour)
	rec := &events.Recorder{}
	users := &UserService{Repo: r, Sessions: sessions, Roles: roles.Default(), Events: rec}
	return &testEnv{
		repo:   r,
		users:  users,
		auth:   &AuthService{Users: users, Sessions: sessions},
		events: rec,
	}
}

var fixtureHash = func() string {
	h, err := hash.HashPassword("password1")
	if err != nil {
		panic(err)
	}
	return h
}()

// seed inserts users directly so list tests skip per-user bcrypt.
func (e *testEnv) seed(t *testing.T, name, email, role string) *models.User {
	t.Helper()
	u := &models.User{UID: uuid.NewString(), Name: name, Email: email, Role: role, PasswordHash: fixtureHash}
	require.NoError(t, e.repo.CreateUser(context.Background(), u))
	return u
}

func TestCreateUser(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	u, err := env.users.CreateUser(ctx, transport.CreateUserRequest{
		Name:     "  Ann ",
		Email:    " Ann@Example.COM ",
		Password: "password1",
	})
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", u.Email)
	assert.Equal(t, "Ann", u.Name)
	assert.Equal(t, roles.User, u.Role)
	assert.False(t, u.IsEmailVerified)
	assert.NotEqual(t, "password1", u.PasswordHash)
	assert.True(t, hash.CheckPassword(u.PasswordHash, "password1"))
	_, err = uuid.Parse(u.UID)
	assert.NoError(t, err)
	assert.Equal(t, []string{events.UserCreated}, env.events.Types())

	_, err = env.users.CreateUser(ctx, transport.CreateUserRequest{Name: "Other", Email: "ANN@example.com", Password: "password2"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestCreateUser_Validation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  transport.CreateUserRequest
	}{
		{name: "bad email", req: transport.CreateUserRequest{Name: "A", Email: "not-an-email", Password: "password1"}},
		{name: "short password", req: transport.CreateUserRequest{Name: "A", Email: "a@x.io", Password: "pass1"}},
		{name: "password without digit", req: transport.CreateUserRequest{Name: "A", Email: "a@x.io", Password: "password"}},
		{name: "password without letter", req: transport.CreateUserRequest{Name: "A", Email: "a@x.io", Password: "12345678"}},
		{name: "blank name", req: transport.CreateUserRequest{Name: "   ", Email: "a@x.io", Password: "password1"}},
		{name: "missing name", req: transport.CreateUserRequest{Email: "a@x.io", Password: "password1"}},
		{name: "unknown role", req: transport.CreateUserRequest{Name: "A", Email: "a@x.io", Password: "password1", Role: "root"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.users.CreateUser(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestQueryUsers(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	for i, n := range []string{"carl", "ann", "bob", "dana", "eve"} {
		role := roles.User
		if i%2 == 0 {
			role = roles.Admin
		}
		env.seed(t, n, n+"@x.io", role)
	}

	page, err := env.users.QueryUsers(ctx, UserQuery{SortBy: "name:desc", Limit: 2, Page: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 5, page.TotalResults)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.Limit)
	require.Len(t, page.Results, 2)
	assert.Equal(t, "eve", page.Results[0].Name)
	assert.Equal(t, "dana", page.Results[1].Name)

	page, err = env.users.QueryUsers(ctx, UserQuery{SortBy: "name:asc", Limit: 2, Page: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Page)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "eve", page.Results[0].Name)

	page, err = env.users.QueryUsers(ctx, UserQuery{Role: roles.Admin, SortBy: "name:asc"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.TotalResults)
	assert.Equal(t, 10, page.Limit)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, "bob", page.Results[0].Name)

	page, err = env.users.QueryUsers(ctx, UserQuery{Name: "ann"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.TotalResults)
}

func TestGetUser(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	u := env.seed(t, "ann", "ann@x.io", roles.User)
	got, err := env.users.GetUser(ctx, u.UID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = env.users.GetUser(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.users.GetUserByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateUser(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	ann := env.seed(t, "ann", "ann@x.io", roles.User)
	env.seed(t, "bob", "bob@x.io", roles.User)

	taken := "BOB@x.io"
	_, err := env.users.UpdateUser(ctx, ann.UID, transport.UpdateUserRequest{Email: &taken})
	assert.ErrorIs(t, err, ErrEmailTaken)

	same := "ann@x.io"
	name := "Ann B"
	pw := "newpassword2"
	admin := roles.Admin
	u, err := env.users.UpdateUser(ctx, ann.UID, transport.UpdateUserRequest{Email: &same, Name: &name, Password: &pw, Role: &admin})
	require.NoError(t, err)
	assert.Equal(t, "Ann B", u.Name)
	assert.Equal(t, roles.Admin, u.Role)
	assert.True(t, hash.CheckPassword(u.PasswordHash, "newpassword2"))

	fresh := "ann.b@x.io"
	u, err = env.users.UpdateUser(ctx, ann.UID, transport.UpdateUserRequest{Email: &fresh})
	require.NoError(t, err)
	assert.Equal(t, fresh, u.Email)

	weak := "short"
	_, err = env.users.UpdateUser(ctx, ann.UID, transport.UpdateUserRequest{Password: &weak})
	assert.ErrorIs(t, err, ErrValidation)

	ghost := "ghost"
	_, err = env.users.UpdateUser(ctx, ann.UID, transport.UpdateUserRequest{Role: &ghost})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.users.UpdateUser(ctx, uuid.NewString(), transport.UpdateUserRequest{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteUser_CascadesSessions(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	u := env.seed(t, "ann", "ann@x.io", roles.User)
	iss, err := env.auth.Sessions.Generate(ctx, u.ID)
	require.NoError(t, err)
	_, err = env.auth.Sessions.Generate(ctx, u.ID)
	require.NoError(t, err)

	require.NoError(t, env.users.DeleteUser(ctx, u.UID))

	n, err := env.repo.CountSessions(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = env.auth.Sessions.CheckAccess(ctx, iss.AccessToken)
	assert.ErrorIs(t, err, session.ErrUnauthorized)

	assert.ErrorIs(t, env.users.DeleteUser(ctx, u.UID), ErrNotFound)
	assert.Contains(t, env.events.Types(), events.UserDeleted)
}

type fakeDirectory struct {
	put     []string
	removed []string
	hits    []string
}

func (f *fakeDirectory) Put(_ context.Context, u *models.User) error {
	f.put = append(f.put, u.UID)
	return nil
}

func (f *fakeDirectory) Remove(_ context.Context, uid string) error {
	f.removed = append(f.removed, uid)
	return nil
}

func (f *fakeDirectory) Search(_ context.Context, _ string, _, _ int) (int64, []string, error) {
	return int64(len(f.hits)), f.hits, nil
}

func TestSearchUsers_SQLFallback(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	env.seed(t, "Annabel", "annabel@x.io", roles.User)
	env.seed(t, "Bob", "bob@annex.io", roles.User)
	env.seed(t, "Carl", "carl@x.io", roles.User)

	page, err := env.users.SearchUsers(ctx, "ANN", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.TotalResults)
	require.Len(t, page.Results, 2)
	assert.Equal(t, "Annabel", page.Results[0].Name)

	_, err = env.users.SearchUsers(ctx, "  ", 1, 10)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSearchUsers_Directory(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.seed(t, "ann", "ann@x.io", roles.User)
	b := env.seed(t, "bob", "bob@x.io", roles.User)
	dir := &fakeDirectory{hits: []string{b.UID, "stale-uid", a.UID}}
	env.users.Directory = dir

	page, err := env.users.SearchUsers(ctx, "whatever", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Results, 2)
	assert.Equal(t, b.UID, page.Results[0].UID)
	assert.Equal(t, a.UID, page.Results[1].UID)

	u, err := env.users.CreateUser(ctx, transport.CreateUserRequest{Name: "Cy", Email: "cy@x.io", Password: "password1"})
	require.NoError(t, err)
	require.NoError(t, env.users.DeleteUser(ctx, u.UID))
	assert.Equal(t, []string{u.UID}, dir.put)
	assert.Equal(t, []string{u.UID}, dir.removed)
}

func TestAuth_RegisterLoginRefreshLogout(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	u, iss, err := env.auth.Register(ctx, transport.RegisterRequest{Name: "Ann", Email: "Ann@x.io", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, iss.UserID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), iss.AccessExpires, 5*time.Second)

	_, _, err = env.auth.Register(ctx, transport.RegisterRequest{Name: "Ann", Email: "ann@x.io", Password: "password1"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	u2, iss2, err := env.auth.Login(ctx, transport.LoginRequest{Email: " ANN@x.io", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, u.UID, u2.UID)
	assert.NotEqual(t, iss.AccessToken, iss2.AccessToken)

	iss3, err := env.auth.Refresh(ctx, iss2.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, iss3.UserID)

	require.NoError(t, env.auth.Logout(ctx, iss3.AccessToken))
	assert.ErrorIs(t, env.auth.Logout(ctx, iss3.AccessToken), session.ErrNotFound)

	assert.Equal(t, []string{events.UserCreated, events.UserRegistered, events.UserLoggedIn}, env.events.Types())
}

func TestAuth_LoginFailures(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	env.seed(t, "ann", "ann@x.io", roles.User)

	tests := []transport.LoginRequest{
		{Email: "ann@x.io", Password: "password2"},
		{Email: "nobody@x.io", Password: "password1"},
		{Email: "", Password: "password1"},
		{Email: "ann@x.io", Password: ""},
	}
	for i, req := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			_, _, err := env.auth.Login(ctx, req)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestEnsureAdmin(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.users.EnsureAdmin(ctx, "Root@x.io", "password1")
	require.NoError(t, err)
	assert.True(t, created)

	u, err := env.users.GetUserByEmail(ctx, "root@x.io")
	require.NoError(t, err)
	assert.Equal(t, roles.Admin, u.Role)
	assert.Equal(t, "root", u.Name)

	created, err = env.users.EnsureAdmin(ctx, "root@x.io", "password1")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestAuth_RefreshDropsOrphanSession(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	u := env.seed(t, "ann", "ann@x.io", roles.User)
	require.NoError(t, env.repo.DeleteUser(ctx, u.ID))
	// session opened by a login that raced the delete
	iss, err := env.auth.Sessions.Generate(ctx, u.ID)
	require.NoError(t, err)

	_, err = env.auth.Refresh(ctx, iss.RefreshToken)
	assert.ErrorIs(t, err, session.ErrUnauthorized)

	n, err := env.repo.CountSessions(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateUser_PasswordTooLong(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	_, err := env.users.CreateUser(context.Background(), transport.CreateUserRequest{
		Name:     "Ann",
		Email:    "ann@x.io",
		Password: strings.Repeat("a1", 40),
	})
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, hash.ErrPasswordTooLong)
}
