package controllers

import (
	"context"
	"net/http"

	"github.com/gpuforge/gpuforge-backend/api/responses"
	"github.com/gpuforge/gpuforge-backend/pkg/logger"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthLive is the bare liveness probe.
func HealthLive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}

// HealthReady reports readiness of the backing stores.
func HealthReady(database Pinger, cache Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{}
		healthy := true

		if database != nil {
			if err := database.Ping(r.Context()); err != nil {
				checks["database"] = "down"
				healthy = false
				logg.Error(r.Context(), "health check database failed", err)
			} else {
				checks["database"] = "up"
			}
		}
		if cache != nil {
			if err := cache.Ping(r.Context()); err != nil {
				checks["redis"] = "down"
				healthy = false
				logg.Error(r.Context(), "health check redis failed", err)
			} else {
				checks["redis"] = "up"
			}
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		responses.WriteSuccessStatus(w, status, checks)
	}
}
