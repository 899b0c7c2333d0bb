package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aktionfilm/aktionfilm-backend/api/responses"
	"github.com/aktionfilm/aktionfilm-backend/api/validators"
	"github.com/aktionfilm/aktionfilm-backend/internal/jobs"
	pkgerrors "github.com/aktionfilm/aktionfilm-backend/pkg/errors"
	"github.com/aktionfilm/aktionfilm-backend/pkg/logger"
)

type visibilityRequest struct {
	IsPublic *bool `json:"is_public" validate:"required"`
}

// JobsList lists every generation job the caller owns.
func JobsList(svc jobs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "jobs service unavailable"))
			return
		}
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		owned, err := svc.ListForUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]*jobDTO, 0, len(owned))
		for i := range owned {
			items = append(items, toJobDTO(&owned[i]))
		}
		responses.WriteSuccess(w, map[string]any{"jobs": items})
	}
}

// JobsSetVisibility publishes or unpublishes an owned job's result.
func JobsSetVisibility(svc jobs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "jobs service unavailable"))
			return
		}
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid job id"))
			return
		}

		var body visibilityRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetVisibility(r.Context(), userID, jobID, *body.IsPublic); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"is_public": *body.IsPublic})
	}
}
