// Package httpapi serves the REST API over echo.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BetselotB/idea-plate/internal/collab"
	"github.com/BetselotB/idea-plate/internal/config"
	"github.com/BetselotB/idea-plate/internal/engagement"
	"github.com/BetselotB/idea-plate/internal/ideas"
	"github.com/BetselotB/idea-plate/internal/identity"
	"github.com/BetselotB/idea-plate/internal/logging"
	"github.com/BetselotB/idea-plate/internal/profiles"
)

// DefaultHeartbeat is the SSE keep-alive interval.
const DefaultHeartbeat = 30 * time.Second

// Services are the components the API exposes.
type Services struct {
	Ideas      *ideas.Service
	Engagement *engagement.Service
	Collab     *collab.Service
	Profiles   *profiles.Service
	// GitHub is optional; without it the linking routes are not mounted.
	GitHub *profiles.GitHubLinker
	Auth   identity.Authenticator
	// Checks are run by /health, keyed by component name.
	Checks map[string]func(context.Context) error
}

// Server provides the HTTP endpoints.
type Server struct {
	echo      *echo.Echo
	svc       Services
	logger    *zap.Logger
	config    config.HTTPConfig
	limiters  *limiterSet
	heartbeat time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithHeartbeat sets the SSE keep-alive interval.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// NewServer builds the echo instance and registers every route.
func NewServer(svc Services, logger *zap.Logger, cfg config.HTTPConfig, opts ...Option) (*Server, error) {
	if svc.Ideas == nil || svc.Engagement == nil || svc.Collab == nil || svc.Profiles == nil {
		return nil, errors.New("ideas, engagement, collab and profiles services are required")
	}
	if svc.Auth == nil {
		return nil, errors.New("authenticator is required")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		svc:       svc,
		logger:    logging.OrNop(logger),
		config:    cfg,
		limiters:  newLimiterSet(cfg.RateLimit, cfg.RateBurst),
		heartbeat: DefaultHeartbeat,
	}
	for _, opt := range opts {
		opt(s)
	}

	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.observe)
	e.Use(s.authenticate)

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1", s.rateLimitWrites)

	v1.GET("/ideas", s.listIdeas)
	v1.POST("/ideas", s.createIdea)
	v1.GET("/ideas/:id", s.getIdea)
	v1.PATCH("/ideas/:id", s.updateIdea)
	v1.DELETE("/ideas/:id", s.deleteIdea)
	v1.GET("/users/:uid/ideas", s.listAuthorIdeas)

	v1.GET("/ideas/:id/likes", s.getLikes)
	v1.PUT("/ideas/:id/likes", s.like)
	v1.DELETE("/ideas/:id/likes", s.unlike)
	v1.GET("/ideas/:id/likes/stream", s.streamLikes)
	v1.GET("/ideas/:id/comments", s.listComments)
	v1.POST("/ideas/:id/comments", s.addComment)
	v1.DELETE("/ideas/:id/comments/:commentId", s.deleteComment)
	v1.GET("/ideas/:id/comments/stream", s.streamComments)

	v1.POST("/ideas/:id/collab-requests", s.submitCollabRequest)
	v1.GET("/collab-requests", s.listCollabRequests)
	v1.POST("/collab-requests/:id/accept", s.acceptCollabRequest)
	v1.POST("/collab-requests/:id/reject", s.rejectCollabRequest)

	v1.GET("/users/:uid/profile", s.getProfile)
	v1.GET("/me", s.me)
	v1.PUT("/me/profile", s.updateProfile)
	v1.POST("/me/profile/resync", s.resyncProfile)

	if s.svc.GitHub != nil {
		v1.GET("/me/github/link", s.githubLinkURL)
		v1.DELETE("/me/github", s.githubUnlink)
		v1.GET("/github/callback", s.githubCallback)
	}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok"}
	status := http.StatusOK
	if len(s.svc.Checks) > 0 {
		resp.Checks = make(map[string]string, len(s.svc.Checks))
	}
	for name, check := range s.svc.Checks {
		if err := check(c.Request().Context()); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	return c.JSON(status, resp)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	addr := s.config.Addr()
	s.logger.Info("starting http server", zap.String("addr", addr))
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
