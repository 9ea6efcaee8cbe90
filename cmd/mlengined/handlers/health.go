package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type EngineHealth interface {
	Available(ctx context.Context) bool
}

type Health struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Engine   string `json:"engine"`
}

const (
	healthy     = "healthy"
	degraded    = "degraded"
	unhealthy   = "unhealthy"
	connected   = "connected"
	unreachable = "unreachable"
)

// HealthHandler reports health of the database and the ML engine.
//
// Without the database the service is unhealthy (503).
// Without the engine it is degraded, but still 200.
func HealthHandler(db Pinger, eng EngineHealth) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		h := Health{Status: healthy, Database: connected, Engine: connected}

		if !eng.Available(ctx) {
			h.Status = degraded
			h.Engine = unreachable
		}
		if err := db.Ping(ctx); err != nil {
			c.Logger().Warnf("database is not reachable: %s", err)
			h.Status = unhealthy
			h.Database = unreachable
			return c.JSON(http.StatusServiceUnavailable, h)
		}
		return c.JSON(http.StatusOK, h)
	}
}
