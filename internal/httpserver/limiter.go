package httpserver

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/Skotchmaster/sessionauth/internal/logging"
)

const maxTrackedClients = 10000

// FailureLimiter throttles clients by their failed requests only: a response with
// status >= 400 spends a token, successful ones are free.
type FailureLimiter struct {
	mu      sync.Mutex
	clients map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

func NewFailureLimiter(maxFailures int, window time.Duration) *FailureLimiter {
	return &FailureLimiter{
		clients: make(map[string]*rate.Limiter),
		limit:   rate.Every(window / time.Duration(maxFailures)),
		burst:   maxFailures,
	}
}

func (f *FailureLimiter) limiter(key string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	lim, ok := f.clients[key]
	if ok {
		return lim
	}
	if len(f.clients) >= maxTrackedClients {
		for k, l := range f.clients {
			if l.Tokens() >= float64(f.burst) {
				delete(f.clients, k)
			}
		}
	}
	lim = rate.NewLimiter(f.limit, f.burst)
	f.clients[key] = lim
	return lim
}

func (f *FailureLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			lim := f.limiter(c.RealIP())
			if lim.Tokens() < 1 {
				logging.FromContext(c.Request().Context()).Warn("rate_limited", "status", 429)
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests, please try again later")
			}

			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = http.StatusInternalServerError
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				}
			}
			if status >= http.StatusBadRequest {
				lim.Allow()
			}
			return err
		}
	}
}
