package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/sessionauth/internal/logging"
	"github.com/Skotchmaster/sessionauth/internal/service"
	"github.com/Skotchmaster/sessionauth/internal/session"
	"github.com/Skotchmaster/sessionauth/internal/transport"
)

type AuthHTTP struct {
	Svc           *service.AuthService
	SecureCookies bool
}

func (h *AuthHTTP) setTokenCookies(c echo.Context, iss *session.Issued) {
	c.SetCookie(createCookie(accessCookie, iss.AccessToken, iss.AccessExpires, h.SecureCookies))
	c.SetCookie(createCookie(refreshCookie, iss.RefreshToken, iss.RefreshExpires, h.SecureCookies))
}

func (h *AuthHTTP) clearTokenCookies(c echo.Context) {
	c.SetCookie(deleteCookie(accessCookie, h.SecureCookies))
	c.SetCookie(deleteCookie(refreshCookie, h.SecureCookies))
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.register")

	var req transport.RegisterRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	u, iss, err := h.Svc.Register(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			l.Warn("register_error", "status", 400, "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, validationMessage(err))
		case errors.Is(err, service.ErrEmailTaken):
			l.Warn("register_error", "status", 400, "reason", "email taken")
			return echo.NewHTTPError(http.StatusBadRequest, "Email already taken")
		}
		l.Error("register_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot register user").SetInternal(err)
	}

	h.setTokenCookies(c, iss)
	l.Info("register_success", "uid", u.UID)
	return c.JSON(http.StatusCreated, transport.AuthResponse{User: transport.User(u), Tokens: transport.Tokens(iss)})
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	u, iss, err := h.Svc.Login(ctx, req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			l.Warn("login_failed", "status", 401)
			return echo.NewHTTPError(http.StatusUnauthorized, "Incorrect email or password")
		}
		l.Error("login_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot log in").SetInternal(err)
	}

	h.setTokenCookies(c, iss)
	l.Info("login_success", "uid", u.UID)
	return c.JSON(http.StatusOK, transport.AuthResponse{User: transport.User(u), Tokens: transport.Tokens(iss)})
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.logout")

	var req transport.LogoutRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("logout_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	token := req.AccessToken
	if token == "" {
		if ck, err := c.Cookie(accessCookie); err == nil {
			token = ck.Value
		}
	}
	if token == "" {
		l.Warn("logout_error", "status", 400, "reason", "missing access token")
		return echo.NewHTTPError(http.StatusBadRequest, "accessToken is required")
	}

	if err := h.Svc.Logout(ctx, token); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			l.Warn("logout_error", "status", 404, "reason", "session not found")
			return echo.NewHTTPError(http.StatusNotFound, "Not found")
		}
		l.Error("logout_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot log out").SetInternal(err)
	}

	h.clearTokenCookies(c)
	l.Info("logout_success")
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.refresh")

	var req transport.RefreshRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("refresh_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	token := req.RefreshToken
	if token == "" {
		if ck, err := c.Cookie(refreshCookie); err == nil {
			token = ck.Value
		}
	}
	if token == "" {
		l.Warn("refresh_error", "status", 400, "reason", "missing refresh token")
		return echo.NewHTTPError(http.StatusBadRequest, "refreshToken is required")
	}

	iss, err := h.Svc.Refresh(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrUnauthorized) {
			h.clearTokenCookies(c)
			l.Warn("refresh_error", "status", 401)
			return echo.NewHTTPError(http.StatusUnauthorized, "Please authenticate")
		}
		l.Error("refresh_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot refresh session").SetInternal(err)
	}

	h.setTokenCookies(c, iss)
	l.Info("refresh_success")
	return c.JSON(http.StatusOK, transport.TokensResponse{Tokens: transport.Tokens(iss)})
}

func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, service.ErrValidation.Error()+": "); i >= 0 {
		return msg[i+len(service.ErrValidation.Error())+2:]
	}
	return msg
}
