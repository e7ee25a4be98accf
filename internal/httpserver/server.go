package httpserver

import (
	"log/slog"
	"slices"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	loggingmw "github.com/Skotchmaster/sessionauth/pkg/middleware/logging"
)

// NewEcho returns an echo instance with the common middleware chain and error handler.
func NewEcho(env string, base *slog.Logger, corsOrigins []string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler(env)

	cors := echomw.CORSConfig{AllowOrigins: corsOrigins}
	if len(corsOrigins) > 0 && !slices.Contains(corsOrigins, "*") {
		cors.AllowCredentials = true
	}

	e.Use(
		echomw.Recover(),
		echomw.RequestID(),
		loggingmw.RequestLogger(base),
		echomw.Secure(),
		echomw.CORSWithConfig(cors),
		echomw.Gzip(),
		echomw.BodyLimit("1M"),
	)
	return e
}
