package controllers

import (
	"context"
	"net/http"

	"github.com/aktionfilm/aktionfilm-backend/api/responses"
	"github.com/aktionfilm/aktionfilm-backend/pkg/config"
	pkgerrors "github.com/aktionfilm/aktionfilm-backend/pkg/errors"
	"github.com/aktionfilm/aktionfilm-backend/pkg/logger"
)

// Pinger is any backing dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-AktionFilm-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady verifies the backing stores before reporting ready.
func HealthReady(cfg *config.Config, deps []Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-AktionFilm-Env", cfg.App.Env)
		for _, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dependency not ready"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
