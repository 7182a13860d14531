// Package api exposes the user and post repositories over a JSON REST API.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/vietddude/docsite/internal/repository"
)

// Options configures optional server behaviour.
type Options struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Limiter enables rate limiting when set.
	Limiter Limiter

	// Health is mounted on /health, /health/detailed and /metrics when set.
	Health http.Handler

	Logger *slog.Logger
}

// Server provides the REST endpoints.
type Server struct {
	echo   *echo.Echo
	users  *repository.Users
	posts  *repository.Posts
	logger *slog.Logger
	addr   string
}

// NewServer builds the router with all routes and middleware registered.
func NewServer(users *repository.Users, posts *repository.Posts, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = opts.ReadTimeout
	e.Server.WriteTimeout = opts.WriteTimeout

	s := &Server{
		echo:   e,
		users:  users,
		posts:  posts,
		logger: logger,
		addr:   fmt.Sprintf(":%d", opts.Port),
	}
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(requestLogger(logger))
	e.Use(requestMetrics())
	e.Use(middleware.Recover())

	if opts.Health != nil {
		h := echo.WrapHandler(opts.Health)
		e.GET("/health", h)
		e.GET("/health/detailed", h)
		e.GET("/metrics", h)
	}

	var api []echo.MiddlewareFunc
	if opts.Limiter != nil {
		api = append(api, rateLimit(opts.Limiter, logger))
	}

	u := e.Group("/users", api...)
	u.GET("", s.listUsers)
	u.POST("", s.createUser)
	u.GET("/:id", s.getUser)
	u.PATCH("/:id", s.updateUser)
	u.DELETE("/:id", s.deleteUser)
	u.GET("/:id/posts", s.listUserPosts)

	p := e.Group("/posts", api...)
	p.GET("", s.listPosts)
	p.POST("", s.createPost)
	p.GET("/:id", s.getPost)
	p.PATCH("/:id", s.updatePost)
	p.DELETE("/:id", s.deletePost)
	p.POST("/:id/publish", s.publishPost)

	return s
}

// Handler returns the router for use with httptest or a custom server.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on the configured port. It returns http.ErrServerClosed after Stop.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.addr)
	return s.echo.Start(s.addr)
}

// Stop gracefully drains in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
