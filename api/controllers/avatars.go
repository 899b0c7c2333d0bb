package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aktionfilm/aktionfilm-backend/api/middleware"
	"github.com/aktionfilm/aktionfilm-backend/api/responses"
	"github.com/aktionfilm/aktionfilm-backend/api/validators"
	"github.com/aktionfilm/aktionfilm-backend/internal/avatars"
	"github.com/aktionfilm/aktionfilm-backend/pkg/db/models"
	pkgerrors "github.com/aktionfilm/aktionfilm-backend/pkg/errors"
	"github.com/aktionfilm/aktionfilm-backend/pkg/logger"
)

type trainVideoRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Gender   string `json:"gender" validate:"omitempty,oneof=male female"`
	VideoURL string `json:"video_url" validate:"required,url"`
}

type trainImageRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Gender   string `json:"gender" validate:"omitempty,oneof=male female"`
	ImageURL string `json:"image_url" validate:"required,url"`
}

type jobDTO struct {
	ID         string    `json:"id"`
	Vendor     string    `json:"vendor"`
	ExternalID string    `json:"external_id"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	ResultURL  *string   `json:"result_url,omitempty"`
	IsPublic   bool      `json:"is_public"`
	CreatedAt  time.Time `json:"created_at"`
}

func toJobDTO(job *models.GenerationJob) *jobDTO {
	if job == nil {
		return nil
	}
	return &jobDTO{
		ID:         job.ID.String(),
		Vendor:     string(job.Vendor),
		ExternalID: job.ExternalID,
		Kind:       string(job.Kind),
		Status:     job.Status,
		ResultURL:  job.ResultURL,
		IsPublic:   job.IsPublic,
		CreatedAt:  job.CreatedAt,
	}
}

func callerID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

// AvatarTrainVideo starts avatar training from a source video.
func AvatarTrainVideo(svc avatars.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "avatar service unavailable"))
			return
		}
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body trainVideoRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.TrainVideo(r.Context(), avatars.TrainVideoParams{
			UserID:   userID,
			Name:     body.Name,
			Gender:   body.Gender,
			VideoURL: body.VideoURL,
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

// AvatarTrainImage starts avatar training from a source image.
func AvatarTrainImage(svc avatars.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "avatar service unavailable"))
			return
		}
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body trainImageRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.TrainImage(r.Context(), avatars.TrainImageParams{
			UserID:   userID,
			Name:     body.Name,
			Gender:   body.Gender,
			ImageURL: body.ImageURL,
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

// AvatarStatus reports the live vendor status of an owned training job.
func AvatarStatus(svc avatars.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "avatar service unavailable"))
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
			"result_url":    status.ResultURL,
		})
	}
}
