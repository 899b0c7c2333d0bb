package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aktionfilm/aktionfilm-backend/internal/ledger"
	"github.com/aktionfilm/aktionfilm-backend/pkg/enums"
	pkgerrors "github.com/aktionfilm/aktionfilm-backend/pkg/errors"
	"github.com/aktionfilm/aktionfilm-backend/pkg/logger"
	"github.com/aktionfilm/aktionfilm-backend/pkg/metrics"
	"github.com/aktionfilm/aktionfilm-backend/pkg/vendors/tts"
)

const maxInputLength = 4096

type ttsClient interface {
	Synthesize(ctx context.Context, req tts.SynthesizeRequest) ([]byte, error)
}

// SynthesizeParams renders a voice line for the given user.
type SynthesizeParams struct {
	UserID uuid.UUID
	Input  string
	Voice  string
	Model  string
}

// SynthesizeResult carries the rendered audio and what it cost.
type SynthesizeResult struct {
	Audio        []byte
	CreditsSpent int64
}

// Service gates speech synthesis behind the credit ledger. Synthesis is
// synchronous, so there is no job row: the audio either comes back with the
// response or the credits come back to the account.
type Service interface {
	Synthesize(ctx context.Context, params SynthesizeParams) (*SynthesizeResult, error)
}

// ServiceParams wires the speech service dependencies.
type ServiceParams struct {
	Ledger  ledger.Service
	Client  ttsClient
	Logger  *logger.Logger
	Metrics *metrics.LedgerMetrics
}

type service struct {
	ledger  ledger.Service
	client  ttsClient
	logg    *logger.Logger
	metrics *metrics.LedgerMetrics
}

// NewService wires a speech service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Client == nil {
		return nil, fmt.Errorf("tts client required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		ledger:  params.Ledger,
		client:  params.Client,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

func (s *service) Synthesize(ctx context.Context, params SynthesizeParams) (*SynthesizeResult, error) {
	if params.Input == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "input text is required")
	}
	if len(params.Input) > maxInputLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("input text exceeds %d characters", maxInputLength)).
			WithDetails(map[string]any{"max_length": maxInputLength, "length": len(params.Input)})
	}
	ctx = s.logg.WithVendor(ctx, string(enums.JobVendorOpenAI))

	metadata, _ := json.Marshal(map[string]any{"voice": params.Voice, "chars": len(params.Input)})
	reservation, err := s.ledger.CheckAndReserve(ctx, params.UserID, enums.ActionKindSpeech, metadata)
	if err != nil {
		return nil, err
	}

	began := time.Now()
	audio, err := s.client.Synthesize(ctx, tts.SynthesizeRequest{
		Model: params.Model,
		Input: params.Input,
		Voice: params.Voice,
	})
	s.metrics.ObserveVendorLatency(string(enums.JobVendorOpenAI), time.Since(began))
	if err != nil {
		s.metrics.IncVendorCall(string(enums.JobVendorOpenAI), "error")
		refundErr := s.ledger.Refund(ctx, reservation)
		if refundErr != nil {
			s.logg.Error(ctx, "refund reservation", refundErr)
		}
		return nil, ledger.AttachRefundFailure(
			pkgerrors.Wrap(pkgerrors.CodeDependency, err, "speech synthesis failed"), refundErr)
	}
	s.metrics.IncVendorCall(string(enums.JobVendorOpenAI), "ok")

	if err := s.ledger.Commit(ctx, reservation); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("commit reservation: %v", err))
	}

	return &SynthesizeResult{Audio: audio, CreditsSpent: reservation.Cost}, nil
}
