package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/version", s.handleVersion)

	// Historical lookup (rate limited, stateless)
	s.echo.GET("/history", s.handleHistory, newRateLimiter(s.config.HistoryRatePerSecond, s.config.HistoryRateBurst))

	// Live quote stream
	s.echo.GET("/ws", s.handleWebSocket)

	// Client page; explicit routes above take precedence
	s.echo.Static("/", s.config.StaticDir)
}
