package server

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/tickerpulse/internal/metrics"
)

const (
	defaultHistorySymbol   = "^GSPC"
	defaultHistoryPeriod   = "1y"
	defaultHistoryInterval = "1m"
)

func (s *Server) handleHistory(c echo.Context) error {
	symbol := c.QueryParam("symbol")
	if symbol == "" {
		symbol = defaultHistorySymbol
	}
	period := c.QueryParam("period")
	if period == "" {
		period = defaultHistoryPeriod
	}
	interval := c.QueryParam("interval")
	if interval == "" {
		interval = defaultHistoryInterval
	}

	start := time.Now()
	result, err := s.history.Lookup(c.Request().Context(), symbol, period, interval)
	if err != nil {
		metrics.HistoryRequestDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return err
	}
	metrics.HistoryRequestDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())

	return c.JSON(200, result)
}
