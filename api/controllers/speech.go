package controllers

import (
	"net/http"
	"strconv"

	"github.com/aktionfilm/aktionfilm-backend/api/responses"
	"github.com/aktionfilm/aktionfilm-backend/api/validators"
	"github.com/aktionfilm/aktionfilm-backend/internal/speech"
	pkgerrors "github.com/aktionfilm/aktionfilm-backend/pkg/errors"
	"github.com/aktionfilm/aktionfilm-backend/pkg/logger"
)

type synthesizeRequest struct {
	Input string `json:"input" validate:"required,max=4096"`
	Voice string `json:"voice" validate:"omitempty,max=40"`
	Model string `json:"model" validate:"omitempty,max=80"`
}

// SpeechSynthesize renders a voice line and streams the audio back.
func SpeechSynthesize(svc speech.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "speech service unavailable"))
			return
		}
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body synthesizeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Synthesize(r.Context(), speech.SynthesizeParams{
			UserID: userID,
			Input:  body.Input,
			Voice:  body.Voice,
			Model:  body.Model,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("X-Credits-Spent", strconv.FormatInt(result.CreditsSpent, 10))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Audio)
	}
}
