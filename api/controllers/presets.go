package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aktionfilm/aktionfilm-backend/api/responses"
	"github.com/aktionfilm/aktionfilm-backend/api/validators"
	"github.com/aktionfilm/aktionfilm-backend/internal/presets"
	"github.com/aktionfilm/aktionfilm-backend/pkg/enums"
	pkgerrors "github.com/aktionfilm/aktionfilm-backend/pkg/errors"
	"github.com/aktionfilm/aktionfilm-backend/pkg/logger"
)

type presetGenerateRequest struct {
	Vendor string         `json:"vendor" validate:"omitempty,oneof=fal replicate"`
	Model  string         `json:"model" validate:"required,max=200"`
	Input  map[string]any `json:"input" validate:"required"`
}

// PresetGenerate starts a preset generation on FAL or Replicate.
func PresetGenerate(svc presets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "preset service unavailable"))
			return
		}
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body presetGenerateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Generate(r.Context(), presets.GenerateParams{
			UserID: userID,
			Vendor: enums.JobVendor(body.Vendor),
			Model:  body.Model,
			Input:  body.Input,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]any{
			"job":           toJobDTO(result.Job),
			"credits_spent": result.CreditsSpent,
		})
	}
}

// PresetStatus reports the live vendor status of an owned generation.
func PresetStatus(svc presets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "preset service unavailable"))
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

		status, err := svc.Status(r.Context(), userID, jobID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"job":           toJobDTO(status.Job),
			"vendor_status": status.VendorStatus,
			"output":        status.Output,
		})
	}
}
