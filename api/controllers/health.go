package controllers

import (
	"net/http"

	"github.com/davidortega/channelsync-backend/api/responses"
	"github.com/davidortega/channelsync-backend/internal/health"
	"github.com/davidortega/channelsync-backend/pkg/config"
	"github.com/davidortega/channelsync-backend/pkg/db"
	pkgerrors "github.com/davidortega/channelsync-backend/pkg/errors"
	"github.com/davidortega/channelsync-backend/pkg/logger"
	"github.com/davidortega/channelsync-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ChannelSync-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports readiness only when every backing store answers.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ChannelSync-Env", cfg.App.Env)

		checks := map[string]string{}
		healthy := true

		if dbP != nil {
			if err := dbP.Ping(r.Context()); err != nil {
				checks["postgres"] = err.Error()
				healthy = false
			} else {
				checks["postgres"] = "ok"
			}
		}
		if redisP != nil {
			if err := redisP.Ping(r.Context()); err != nil {
				checks["redis"] = err.Error()
				healthy = false
			} else {
				checks["redis"] = "ok"
			}
		}

		if !healthy {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}

// ChannelHealth exposes the delivery health snapshot for every channel.
func ChannelHealth(monitor *health.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, monitor.Snapshot())
	}
}

// ChannelHealthReset clears a channel's rolling window after an operator
// has confirmed the OTA recovered.
func ChannelHealthReset(monitor *health.Monitor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channel, err := parseChannelParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := monitor.Reset(channel); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"channel": string(channel), "status": "reset"})
	}
}
