package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
		Healthy:         stat.TotalConns() > 0,
	}
}

// Check is a named dependency probe used by the readiness endpoint.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthHandler reports database pool health plus any extra dependency
// checks (draft store, event broker). Failure details stay in the server
// log; the response only names the failing dependency.
func HealthHandler(pool *pgxpool.Pool, extra ...Check) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		body := map[string]interface{}{}
		healthy := true

		if pool != nil {
			stats := GetPoolStats(pool)
			if err := pool.Ping(ctx); err != nil {
				stats.Healthy = false
				healthy = false
				c.Logger().Errorf("health: database: %v", err)
			}
			body["pool"] = stats
		}

		deps := map[string]string{}
		for _, check := range extra {
			if check.Ping == nil {
				continue
			}
			if err := check.Ping(ctx); err != nil {
				deps[check.Name] = "unreachable"
				healthy = false
				c.Logger().Errorf("health: %s: %v", check.Name, err)
				continue
			}
			deps[check.Name] = "ok"
		}
		if len(deps) > 0 {
			body["dependencies"] = deps
		}

		if !healthy {
			body["status"] = "unhealthy"
			return c.JSON(http.StatusServiceUnavailable, body)
		}
		body["status"] = "healthy"
		return c.JSON(http.StatusOK, body)
	}
}
