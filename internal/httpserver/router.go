package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/sessionauth/internal/roles"
)

type Deps struct {
	Auth  *AuthHTTP
	Users *UsersHTTP
	Authn *Authenticator
	// AuthLimiter guards /auth when set.
	AuthLimiter *FailureLimiter
	Ready       func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/", Index("sessionauth"))
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready").SetInternal(err)
			}
		}
		return c.NoContent(http.StatusOK)
	})

	auth := e.Group("/auth")
	if d.AuthLimiter != nil {
		auth.Use(d.AuthLimiter.Middleware())
	}
	auth.POST("/register", d.Auth.Register)
	auth.POST("/login", d.Auth.Login)
	auth.POST("/logout", d.Auth.Logout)
	auth.POST("/refresh-tokens", d.Auth.Refresh)

	users := e.Group("/users")
	users.GET("", d.Users.GetUsers, d.Authn.Require(roles.GetUsers))
	users.GET("/search", d.Users.SearchUsers, d.Authn.Require(roles.GetUsers))
	users.POST("", d.Users.CreateUser, d.Authn.Require(roles.ManageUsers))
	users.GET("/:uid", d.Users.GetUser, d.Authn.Require(roles.GetUsers))
	users.PATCH("/:uid", d.Users.UpdateUser, d.Authn.Require(roles.ManageUsers))
	users.DELETE("/:uid", d.Users.DeleteUser, d.Authn.Require(roles.ManageUsers))

	e.RouteNotFound("/*", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	})
}
