package presets

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aktionfilm/aktionfilm-backend/internal/jobs"
	"github.com/aktionfilm/aktionfilm-backend/internal/ledger"
	"github.com/aktionfilm/aktionfilm-backend/pkg/db/models"
	"github.com/aktionfilm/aktionfilm-backend/pkg/enums"
	pkgerrors "github.com/aktionfilm/aktionfilm-backend/pkg/errors"
	"github.com/aktionfilm/aktionfilm-backend/pkg/logger"
	"github.com/aktionfilm/aktionfilm-backend/pkg/metrics"
	"github.com/aktionfilm/aktionfilm-backend/pkg/vendors/fal"
	"github.com/aktionfilm/aktionfilm-backend/pkg/vendors/replicate"
)

type falClient interface {
	Submit(ctx context.Context, model string, input any) (*fal.SubmitResult, error)
	Status(ctx context.Context, model, requestID string) (*fal.QueueStatus, error)
	Fetch(ctx context.Context, model, requestID string) (*fal.Result, error)
}

type replicateClient interface {
	CreatePrediction(ctx context.Context, req replicate.CreateRequest) (*replicate.Prediction, error)
	GetPrediction(ctx context.Context, id string) (*replicate.Prediction, error)
}

// GenerateParams starts a preset generation on one of the supported engines.
// Model is a FAL queue model path or a Replicate version id depending on the
// chosen vendor.
type GenerateParams struct {
	UserID uuid.UUID
	Vendor enums.JobVendor
	Model  string
	Input  map[string]any
}

// GenerateResult reports the recorded job and what the generation cost.
type GenerateResult struct {
	Job          *models.GenerationJob
	CreditsSpent int64
}

// StatusResult combines the stored job with the vendor's live state.
type StatusResult struct {
	Job          *models.GenerationJob
	VendorStatus string
	Output       json.RawMessage
}

// Service orchestrates preset generations against the credit ledger.
type Service interface {
	Generate(ctx context.Context, params GenerateParams) (*GenerateResult, error)
	Status(ctx context.Context, userID, jobID uuid.UUID) (*StatusResult, error)
}

// ServiceParams wires the preset service dependencies.
type ServiceParams struct {
	Ledger    ledger.Service
	Jobs      jobs.Service
	FAL       falClient
	Replicate replicateClient
	Logger    *logger.Logger
	Metrics   *metrics.LedgerMetrics
}

type service struct {
	ledger    ledger.Service
	jobs      jobs.Service
	fal       falClient
	replicate replicateClient
	logg      *logger.Logger
	metrics   *metrics.LedgerMetrics
}

// NewService wires a preset service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Jobs == nil {
		return nil, fmt.Errorf("jobs service required")
	}
	if params.FAL == nil {
		return nil, fmt.Errorf("fal client required")
	}
	if params.Replicate == nil {
		return nil, fmt.Errorf("replicate client required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		ledger:    params.Ledger,
		jobs:      params.Jobs,
		fal:       params.FAL,
		replicate: params.Replicate,
		logg:      params.Logger,
		metrics:   params.Metrics,
	}, nil
}

func (s *service) Generate(ctx context.Context, params GenerateParams) (*GenerateResult, error) {
	if params.Vendor == "" {
		params.Vendor = enums.JobVendorFAL
	}
	if params.Vendor != enums.JobVendorFAL && params.Vendor != enums.JobVendorReplicate {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unsupported preset vendor %q", params.Vendor))
	}
	if params.Model == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "model is required")
	}
	ctx = s.logg.WithVendor(ctx, string(params.Vendor))

	metadata, _ := json.Marshal(map[string]string{"model": params.Model})
	reservation, err := s.ledger.CheckAndReserve(ctx, params.UserID, enums.ActionKindPreset, metadata)
	if err != nil {
		return nil, err
	}

	began := time.Now()
	externalID, status, err := s.submit(ctx, params)
	s.metrics.ObserveVendorLatency(string(params.Vendor), time.Since(began))
	if err != nil {
		s.metrics.IncVendorCall(string(params.Vendor), "error")
		refundErr := s.ledger.Refund(ctx, reservation)
		if refundErr != nil {
			s.logg.Error(ctx, "refund reservation", refundErr)
		}
		return nil, ledger.AttachRefundFailure(
			pkgerrors.Wrap(pkgerrors.CodeDependency, err, "preset generation failed"), refundErr)
	}
	s.metrics.IncVendorCall(string(params.Vendor), "ok")

	job, err := s.jobs.Record(ctx, jobs.RecordParams{
		Vendor:        params.Vendor,
		ExternalID:    externalID,
		Kind:          enums.ActionKindPreset,
		Model:         &params.Model,
		UserID:        params.UserID,
		Status:        status,
		ReservationID: reservationPtr(reservation),
	})
	if err != nil {
		s.logg.Error(s.logg.WithJobID(ctx, externalID), "record preset job ownership", err)
		job = nil
	}

	if err := s.ledger.Commit(ctx, reservation); err != nil {
		s.logg.Warn(s.logg.WithJobID(ctx, externalID), fmt.Sprintf("commit reservation: %v", err))
	}

	return &GenerateResult{Job: job, CreditsSpent: reservation.Cost}, nil
}

func (s *service) submit(ctx context.Context, params GenerateParams) (externalID, status string, err error) {
	switch params.Vendor {
	case enums.JobVendorReplicate:
		prediction, err := s.replicate.CreatePrediction(ctx, replicate.CreateRequest{
			Version: params.Model,
			Input:   params.Input,
		})
		if err != nil {
			return "", "", err
		}
		return prediction.ID, prediction.Status, nil
	default:
		result, err := s.fal.Submit(ctx, params.Model, params.Input)
		if err != nil {
			return "", "", err
		}
		return result.RequestID, "queued", nil
	}
}

func (s *service) Status(ctx context.Context, userID, jobID uuid.UUID) (*StatusResult, error) {
	job, err := s.jobs.GetOwned(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithVendor(ctx, string(job.Vendor))

	var vendorStatus string
	var output json.RawMessage
	began := time.Now()
	switch job.Vendor {
	case enums.JobVendorReplicate:
		prediction, err := s.replicate.GetPrediction(ctx, job.ExternalID)
		if err != nil {
			s.metrics.IncVendorCall(string(job.Vendor), "error")
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch prediction status")
		}
		vendorStatus = prediction.Status
		output = prediction.Output
	case enums.JobVendorFAL:
		if job.Model == nil || *job.Model == "" {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "job is missing its model path")
		}
		model := *job.Model
		queue, err := s.fal.Status(ctx, model, job.ExternalID)
		if err != nil {
			s.metrics.IncVendorCall(string(job.Vendor), "error")
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch queue status")
		}
		vendorStatus = queue.Status
		if queue.Status == "COMPLETED" {
			result, err := s.fal.Fetch(ctx, model, job.ExternalID)
			if err != nil {
				s.metrics.IncVendorCall(string(job.Vendor), "error")
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch queue result")
			}
			output = result.Output
		}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("job belongs to vendor %q, not a preset engine", job.Vendor))
	}
	s.metrics.ObserveVendorLatency(string(job.Vendor), time.Since(began))
	s.metrics.IncVendorCall(string(job.Vendor), "ok")

	if vendorStatus != "" && vendorStatus != job.Status {
		if err := s.jobs.RefreshStatus(ctx, job.ID, vendorStatus, nil); err != nil {
			s.logg.Warn(ctx, fmt.Sprintf("refresh job status: %v", err))
		} else {
			job.Status = vendorStatus
		}
	}

	return &StatusResult{Job: job, VendorStatus: vendorStatus, Output: output}, nil
}

func reservationPtr(reservation *ledger.Reservation) *uuid.UUID {
	if reservation == nil || reservation.ID == uuid.Nil {
		return nil
	}
	id := reservation.ID
	return &id
}
