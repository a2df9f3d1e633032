package controllers

import (
	"net/http"

	"github.com/nextcoretech/procurement-backend/api/responses"
	"github.com/nextcoretech/procurement-backend/pkg/config"
	"github.com/nextcoretech/procurement-backend/pkg/db"
	pkgerrors "github.com/nextcoretech/procurement-backend/pkg/errors"
	"github.com/nextcoretech/procurement-backend/pkg/logger"
	"github.com/nextcoretech/procurement-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Procure-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the hard dependencies. Redis is optional; a missing cache
// never fails readiness.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, cache redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Procure-Env", cfg.App.Env)

		checks := map[string]string{"db": "ok"}
		if dbP == nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "database not wired"))
			return
		}
		if err := dbP.Ping(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unreachable"))
			return
		}

		if cache != nil {
			if err := cache.Ping(r.Context()); err != nil {
				checks["redis"] = "unreachable"
				if logg != nil {
					logg.Warn(r.Context(), "redis ping failed, availability cache degraded")
				}
			} else {
				checks["redis"] = "ok"
			}
		}

		checks["status"] = "ready"
		responses.WriteSuccess(w, checks)
	}
}
