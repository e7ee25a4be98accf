package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/sessionauth/internal/logging"
	"github.com/Skotchmaster/sessionauth/internal/models"
	"github.com/Skotchmaster/sessionauth/internal/roles"
	"github.com/Skotchmaster/sessionauth/internal/service"
	"github.com/Skotchmaster/sessionauth/internal/session"
)

const (
	CtxUser        = "user"
	CtxUserID      = "userId"
	CtxAccessToken = "accessToken"
)

type Authenticator struct {
	Sessions *session.Manager
	Users    *service.UserService
	Roles    roles.Table
}

// Require authenticates the caller and checks it holds every right in required.
func (a *Authenticator) Require(required ...roles.Right) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			l := logging.FromContext(ctx).With("mw", "auth")

			token := accessTokenFrom(c)
			if token == "" {
				l.Warn("auth_failed", "status", 401, "reason", "missing token")
				return echo.NewHTTPError(http.StatusUnauthorized, "Please authenticate")
			}

			s, err := a.Sessions.CheckAccess(ctx, token)
			if err != nil {
				if errors.Is(err, session.ErrUnauthorized) {
					l.Warn("auth_failed", "status", 401, "reason", "invalid session")
					return echo.NewHTTPError(http.StatusUnauthorized, "Please authenticate")
				}
				l.Error("auth_failed", "status", 500, "error", err)
				return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
			}

			u, err := a.Users.GetUserByID(ctx, s.UserID)
			if err != nil {
				if errors.Is(err, service.ErrNotFound) {
					l.Warn("auth_failed", "status", 401, "reason", "session owner gone")
					return echo.NewHTTPError(http.StatusUnauthorized, "Please authenticate")
				}
				l.Error("auth_failed", "status", 500, "error", err)
				return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
			}

			if err := a.Roles.Verify(u.Role, required...); err != nil {
				l.Warn("auth_failed", "status", 403, "uid", u.UID, "error", err)
				return echo.NewHTTPError(http.StatusForbidden, "Forbidden")
			}

			c.Set(CtxUser, u)
			c.Set(CtxUserID, u.ID)
			c.Set(CtxAccessToken, token)
			return next(c)
		}
	}
}

// accessTokenFrom prefers the accessToken cookie over an Authorization bearer header.
func accessTokenFrom(c echo.Context) string {
	if ck, err := c.Cookie(accessCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	scheme, token, ok := strings.Cut(c.Request().Header.Get(echo.HeaderAuthorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func CurrentUser(c echo.Context) (*models.User, bool) {
	u, ok := c.Get(CtxUser).(*models.User)
	return u, ok
}
