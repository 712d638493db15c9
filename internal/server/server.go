// Package server wires the HTTP surface: the WebSocket endpoint for live
// quotes, the historical REST lookup, health and metrics endpoints, and
// static file serving for the bundled client page.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/tickerpulse/internal/broadcast"
	"github.com/pscheid92/tickerpulse/internal/config"
	apperrors "github.com/pscheid92/tickerpulse/internal/errors"
	"github.com/pscheid92/tickerpulse/internal/history"
	"github.com/pscheid92/tickerpulse/internal/subscription"
)

type Server struct {
	echo        *echo.Echo
	config      *config.Config
	broadcaster *broadcast.Broadcaster
	state       *subscription.State
	history     *history.Service
	redisClient *goredis.Client
	startTime   time.Time
}

// NewServer builds the echo instance and registers all routes. redisClient
// may be nil when the history cache is disabled.
func NewServer(cfg *config.Config, broadcaster *broadcast.Broadcaster, state *subscription.State, historySvc *history.Service, redisClient *goredis.Client) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	// Browser clients connect from arbitrary origins.
	e.Use(middleware.CORS())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:        e,
		config:      cfg,
		broadcaster: broadcaster,
		state:       state,
		history:     historySvc,
		redisClient: redisClient,
		startTime:   time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
