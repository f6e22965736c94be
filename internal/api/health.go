package api

import (
	"context"
	"time"

	genapi "github.com/USSTM/asset-backend/api"
	"github.com/USSTM/asset-backend/internal/middleware"
)

func (s *Server) HealthCheck(ctx context.Context, request genapi.HealthCheckRequestObject) (genapi.HealthCheckResponseObject, error) {
	middleware.GetLoggerFromContext(ctx).Debug("Health check requested")

	return genapi.HealthCheck200JSONResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
	}, nil
}

// Returns 200 if ready, 503 if not ready.
func (s *Server) ReadinessCheck(ctx context.Context, request genapi.ReadinessCheckRequestObject) (genapi.ReadinessCheckResponseObject, error) {
	logger := middleware.GetLoggerFromContext(ctx)
	logger.Debug("Readiness check requested")

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	checks := make(map[string]string)
	ready := true

	if err := s.db.Pool().Ping(ctx); err != nil {
		logger.Warn("Database health check failed", "error", err)
		checks["database"] = "failed: " + err.Error()
		ready = false
	} else {
		checks["database"] = "ok"
	}

	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis health check failed", "error", err)
			checks["redis"] = "failed: " + err.Error()
			ready = false
		} else {
			checks["redis"] = "ok"
		}
	}

	if !ready {
		return genapi.ReadinessCheck503JSONResponse{
			Status:    "not_ready",
			Timestamp: time.Now().UTC(),
			Checks:    &checks,
		}, nil
	}

	return genapi.ReadinessCheck200JSONResponse{
		Status:    "ready",
		Timestamp: time.Now().UTC(),
		Checks:    &checks,
	}, nil
}
