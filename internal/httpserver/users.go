package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/sessionauth/internal/logging"
	"github.com/Skotchmaster/sessionauth/internal/service"
	"github.com/Skotchmaster/sessionauth/internal/transport"
	"github.com/Skotchmaster/sessionauth/internal/util"
)

type UsersHTTP struct {
	Svc *service.UserService
}

func (h *UsersHTTP) GetUsers(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users.get_users")

	page, err := h.Svc.QueryUsers(ctx, service.UserQuery{
		Name:   c.QueryParam("name"),
		Role:   c.QueryParam("role"),
		SortBy: c.QueryParam("sortBy"),
		Limit:  util.ParseIntDefault(c.QueryParam("limit"), util.DefaultPageSize),
		Page:   util.ParseIntDefault(c.QueryParam("page"), 1),
	})
	if err != nil {
		l.Error("get_users_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list users").SetInternal(err)
	}

	return c.JSON(http.StatusOK, transport.UserPage(page))
}

func (h *UsersHTTP) SearchUsers(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users.search_users")

	page, err := h.Svc.SearchUsers(ctx,
		c.QueryParam("q"),
		util.ParseIntDefault(c.QueryParam("page"), 1),
		util.ParseIntDefault(c.QueryParam("limit"), util.DefaultPageSize),
	)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			l.Warn("search_users_error", "status", 400, "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, validationMessage(err))
		}
		l.Error("search_users_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot search users").SetInternal(err)
	}

	return c.JSON(http.StatusOK, transport.UserPage(page))
}

func (h *UsersHTTP) CreateUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users.create_user")

	var req transport.CreateUserRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_user_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	u, err := h.Svc.CreateUser(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			l.Warn("create_user_error", "status", 400, "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, validationMessage(err))
		case errors.Is(err, service.ErrEmailTaken):
			l.Warn("create_user_error", "status", 400, "reason", "email taken")
			return echo.NewHTTPError(http.StatusBadRequest, "Email already taken")
		}
		l.Error("create_user_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create user").SetInternal(err)
	}

	l.Info("create_user_success", "uid", u.UID)
	return c.JSON(http.StatusCreated, echo.Map{"user": transport.User(u)})
}

func (h *UsersHTTP) GetUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users.get_user")

	u, err := h.Svc.GetUser(ctx, c.Param("uid"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			l.Warn("get_user_error", "status", 404, "uid", c.Param("uid"))
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		l.Error("get_user_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot get user").SetInternal(err)
	}

	return c.JSON(http.StatusOK, transport.User(u))
}

func (h *UsersHTTP) UpdateUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users.update_user")

	var req transport.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_user_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Empty() {
		l.Warn("update_user_error", "status", 400, "reason", "empty body")
		return echo.NewHTTPError(http.StatusBadRequest, "at least one field is required")
	}

	u, err := h.Svc.UpdateUser(ctx, c.Param("uid"), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			l.Warn("update_user_error", "status", 404, "uid", c.Param("uid"))
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		case errors.Is(err, service.ErrValidation):
			l.Warn("update_user_error", "status", 400, "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, validationMessage(err))
		case errors.Is(err, service.ErrEmailTaken):
			l.Warn("update_user_error", "status", 400, "reason", "email taken")
			return echo.NewHTTPError(http.StatusBadRequest, "Email already taken")
		}
		l.Error("update_user_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot update user").SetInternal(err)
	}

	l.Info("update_user_success", "uid", u.UID)
	return c.JSON(http.StatusOK, transport.User(u))
}

func (h *UsersHTTP) DeleteUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users.delete_user")

	if err := h.Svc.DeleteUser(ctx, c.Param("uid")); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			l.Warn("delete_user_error", "status", 404, "uid", c.Param("uid"))
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		l.Error("delete_user_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot delete user").SetInternal(err)
	}

	l.Info("delete_user_success", "uid", c.Param("uid"))
	return c.NoContent(http.StatusNoContent)
}
