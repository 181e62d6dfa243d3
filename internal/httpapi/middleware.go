package httpapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BetselotB/idea-plate/internal/apperr"
	"github.com/BetselotB/idea-plate/internal/identity"
	"github.com/BetselotB/idea-plate/internal/logging"
	"github.com/BetselotB/idea-plate/internal/metrics"
)

// observe logs every request and records its duration. Errors are rendered
// here so the logged status is the one sent.
func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		reqID := c.Response().Header().Get(echo.HeaderXRequestID)
		req := c.Request()
		c.SetRequest(req.WithContext(logging.WithLogger(req.Context(),
			s.logger.With(zap.String("request_id", reqID)))))

		if err := next(c); err != nil {
			c.Error(err)
		}

		duration := time.Since(start)
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		status := c.Response().Status
		metrics.HTTPRequestDuration.
			WithLabelValues(req.Method, route, strconv.Itoa(status)).
			Observe(duration.Seconds())

		s.logger.Info("http request",
			zap.String("method", req.Method),
			zap.String("uri", req.RequestURI),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("request_id", reqID),
		)
		return nil
	}
}

// authenticate resolves a bearer token to a caller. Requests without an
// Authorization header proceed anonymously; a bad token is rejected.
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if header == "" {
			return next(c)
		}
		token, ok := identity.ParseBearer(header)
		if !ok {
			return apperr.Auth("malformed authorization header")
		}
		ctx := c.Request().Context()
		caller, err := s.svc.Auth.Authenticate(ctx, token)
		if err != nil {
			return err
		}
		c.SetRequest(c.Request().WithContext(identity.WithCaller(ctx, caller)))
		return next(c)
	}
}

// rateLimitWrites throttles mutating requests per caller, or per client IP
// when anonymous.
func (s *Server) rateLimitWrites(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.limiters == nil {
			return next(c)
		}
		switch c.Request().Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			return next(c)
		}
		key := "ip:" + c.RealIP()
		if caller := identity.FromContext(c.Request().Context()); caller != nil {
			key = "uid:" + caller.UID
		}
		if !s.limiters.get(key).Allow() {
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		}
		return next(c)
	}
}

// limiterSet keeps one token bucket per key. The set is reset hourly so
// idle keys do not accumulate.
type limiterSet struct {
	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	limit       rate.Limit
	burst       int
	lastCleanup time.Time
}

// newLimiterSet returns nil when limiting is disabled.
func newLimiterSet(perSecond float64, burst int) *limiterSet {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &limiterSet{
		limiters:    make(map[string]*rate.Limiter),
		limit:       rate.Limit(perSecond),
		burst:       burst,
		lastCleanup: time.Now(),
	}
}

func (l *limiterSet) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastCleanup) > time.Hour {
		l.limiters = make(map[string]*rate.Limiter)
		l.lastCleanup = time.Now()
	}
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = limiter
	}
	return limiter
}
