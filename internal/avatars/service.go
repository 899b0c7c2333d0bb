package avatars

import (
	"context"
	"encoding/json"
	"errors"
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
	"github.com/aktionfilm/aktionfilm-backend/pkg/vendors/a2e"
)

// trainingClient is the slice of the A2E API that avatar training needs.
type trainingClient interface {
	StartVideoTraining(ctx context.Context, req a2e.TrainVideoRequest) (*a2e.TrainResult, error)
	StartImageTraining(ctx context.Context, req a2e.TrainImageRequest) (*a2e.TrainResult, error)
	GetTraining(ctx context.Context, externalID string) (*a2e.TrainingStatus, error)
}

type mediaProber interface {
	Check(ctx context.Context, url string) error
}

// TrainVideoParams starts avatar training from a source video.
type TrainVideoParams struct {
	UserID   uuid.UUID
	Name     string
	Gender   string
	VideoURL string
}

// TrainImageParams starts avatar training from a source image.
type TrainImageParams struct {
	UserID   uuid.UUID
	Name     string
	Gender   string
	ImageURL string
}

// TrainResult reports the recorded job and what the training cost.
type TrainResult struct {
	Job          *models.GenerationJob
	CreditsSpent int64
}

// JobStatus combines the stored ownership row with the vendor's live state.
type JobStatus struct {
	Job          *models.GenerationJob
	VendorStatus string
	ResultURL    *string
}

// Service orchestrates avatar training against the credit ledger and A2E.
type Service interface {
	TrainVideo(ctx context.Context, params TrainVideoParams) (*TrainResult, error)
	TrainImage(ctx context.Context, params TrainImageParams) (*TrainResult, error)
	Status(ctx context.Context, userID, jobID uuid.UUID) (*JobStatus, error)
}

// ServiceParams wires the avatar service dependencies.
type ServiceParams struct {
	Ledger  ledger.Service
	Jobs    jobs.Service
	Client  trainingClient
	Prober  mediaProber
	Logger  *logger.Logger
	Metrics *metrics.LedgerMetrics
}

type service struct {
	ledger  ledger.Service
	jobs    jobs.Service
	client  trainingClient
	prober  mediaProber
	logg    *logger.Logger
	metrics *metrics.LedgerMetrics
}

// NewService wires an avatar service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Jobs == nil {
		return nil, fmt.Errorf("jobs service required")
	}
	if params.Client == nil {
		return nil, fmt.Errorf("a2e client required")
	}
	if params.Prober == nil {
		return nil, fmt.Errorf("media prober required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		ledger:  params.Ledger,
		jobs:    params.Jobs,
		client:  params.Client,
		prober:  params.Prober,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

func (s *service) TrainVideo(ctx context.Context, params TrainVideoParams) (*TrainResult, error) {
	start := func(ctx context.Context) (*a2e.TrainResult, error) {
		return s.client.StartVideoTraining(ctx, a2e.TrainVideoRequest{
			Name:     params.Name,
			Gender:   params.Gender,
			VideoURL: params.VideoURL,
		})
	}
	return s.train(ctx, params.UserID, enums.ActionKindAvatarVideo, params.VideoURL, start)
}

func (s *service) TrainImage(ctx context.Context, params TrainImageParams) (*TrainResult, error) {
	start := func(ctx context.Context) (*a2e.TrainResult, error) {
		return s.client.StartImageTraining(ctx, a2e.TrainImageRequest{
			Name:     params.Name,
			Gender:   params.Gender,
			ImageURL: params.ImageURL,
		})
	}
	return s.train(ctx, params.UserID, enums.ActionKindAvatarImage, params.ImageURL, start)
}

// train runs the reserve -> probe -> vendor -> record -> commit pipeline.
// Credits come back whenever the vendor call does not stick, and the refund is
// tied to the reservation so a retried failure cannot restore them twice.
func (s *service) train(
	ctx context.Context,
	userID uuid.UUID,
	kind enums.ActionKind,
	mediaURL string,
	start func(ctx context.Context) (*a2e.TrainResult, error),
) (*TrainResult, error) {
	ctx = s.logg.WithVendor(ctx, string(enums.JobVendorA2E))

	metadata, _ := json.Marshal(map[string]string{"media_url": mediaURL})
	reservation, err := s.ledger.CheckAndReserve(ctx, userID, kind, metadata)
	if err != nil {
		return nil, err
	}

	if err := s.prober.Check(ctx, mediaURL); err != nil {
		surfaced := pkgerrors.Wrap(pkgerrors.CodeValidation, err, "media url unreachable").
			WithDetails(map[string]any{"media_url": mediaURL})
		return nil, ledger.AttachRefundFailure(surfaced, s.refund(ctx, reservation))
	}

	began := time.Now()
	result, err := start(ctx)
	s.metrics.ObserveVendorLatency(string(enums.JobVendorA2E), time.Since(began))
	if err != nil {
		s.metrics.IncVendorCall(string(enums.JobVendorA2E), "error")
		return nil, ledger.AttachRefundFailure(
			vendorError(err, "avatar training failed"), s.refund(ctx, reservation))
	}
	if result.ID == "" {
		s.metrics.IncVendorCall(string(enums.JobVendorA2E), "error")
		return nil, ledger.AttachRefundFailure(
			pkgerrors.New(pkgerrors.CodeDependency, "a2e response missing training id"),
			s.refund(ctx, reservation))
	}
	s.metrics.IncVendorCall(string(enums.JobVendorA2E), "ok")

	job, err := s.jobs.Record(ctx, jobs.RecordParams{
		Vendor:        enums.JobVendorA2E,
		ExternalID:    result.ID,
		Kind:          kind,
		UserID:        userID,
		Status:        result.Status,
		ReservationID: reservationID(reservation),
	})
	if err != nil {
		// The vendor accepted the job, so the user keeps what they paid for.
		// Losing the ownership row is recoverable from vendor-side state.
		s.logg.Error(s.logg.WithJobID(ctx, result.ID), "record training job ownership", err)
		job = nil
	}

	if err := s.ledger.Commit(ctx, reservation); err != nil {
		s.logg.Warn(s.logg.WithJobID(ctx, result.ID), fmt.Sprintf("commit reservation: %v", err))
	}

	return &TrainResult{Job: job, CreditsSpent: reservation.Cost}, nil
}

// Status returns the stored job plus the vendor's live view, refreshing the
// stored status best effort.
func (s *service) Status(ctx context.Context, userID, jobID uuid.UUID) (*JobStatus, error) {
	job, err := s.jobs.GetOwned(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithVendor(ctx, string(job.Vendor))
	began := time.Now()
	vendorStatus, err := s.client.GetTraining(ctx, job.ExternalID)
	s.metrics.ObserveVendorLatency(string(job.Vendor), time.Since(began))
	if err != nil {
		s.metrics.IncVendorCall(string(job.Vendor), "error")
		return nil, vendorError(err, "fetch training status")
	}
	s.metrics.IncVendorCall(string(job.Vendor), "ok")

	if vendorStatus.Status != "" && vendorStatus.Status != job.Status {
		if err := s.jobs.RefreshStatus(ctx, job.ID, vendorStatus.Status, vendorStatus.ResultURL); err != nil {
			s.logg.Warn(ctx, fmt.Sprintf("refresh job status: %v", err))
		} else {
			job.Status = vendorStatus.Status
			if vendorStatus.ResultURL != nil {
				job.ResultURL = vendorStatus.ResultURL
			}
		}
	}

	return &JobStatus{
		Job:          job,
		VendorStatus: vendorStatus.Status,
		ResultURL:    vendorStatus.ResultURL,
	}, nil
}

// refund restores the reserved credits and reports a failure to the caller so
// it can be surfaced alongside the original error.
func (s *service) refund(ctx context.Context, reservation *ledger.Reservation) error {
	err := s.ledger.Refund(ctx, reservation)
	if err != nil {
		s.logg.Error(ctx, "refund reservation", err)
	}
	return err
}

func reservationID(reservation *ledger.Reservation) *uuid.UUID {
	if reservation == nil || reservation.ID == uuid.Nil {
		return nil
	}
	id := reservation.ID
	return &id
}

// vendorError maps a vendor failure to a dependency error, surfacing A2E's
// application-level code when one was returned inside an HTTP 200.
func vendorError(err error, message string) error {
	var vendorErr *a2e.VendorError
	if errors.As(err, &vendorErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message).
			WithDetails(map[string]any{
				"vendor_code":    vendorErr.Code,
				"vendor_message": vendorErr.Message,
			})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
