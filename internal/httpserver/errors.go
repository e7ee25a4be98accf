package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/sessionauth/internal/logging"
)

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// ErrorHandler renders every error as {code, message}. Production hides 5xx details;
// development adds the underlying error text.
func ErrorHandler(env string) echo.HTTPErrorHandler {
	production := env == "production"
	development := env == "development"

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := http.StatusText(code)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg = fmt.Sprint(he.Message)
		}
		if production && code >= http.StatusInternalServerError {
			msg = http.StatusText(http.StatusInternalServerError)
		}

		body := errorBody{Code: code, Message: msg}
		if development {
			body.Stack = err.Error()
			logging.FromContext(c.Request().Context()).Debug("error_response", "status", code, "error", err)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.JSON(code, body)
		}
		if werr != nil {
			logging.FromContext(c.Request().Context()).Error("write_error_response", "error", werr)
		}
	}
}
