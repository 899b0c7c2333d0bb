package jobs

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/aktionfilm/aktionfilm-backend/pkg/db/models"
	"github.com/aktionfilm/aktionfilm-backend/pkg/enums"
	pkgerrors "github.com/aktionfilm/aktionfilm-backend/pkg/errors"
)

// RecordParams captures everything needed to claim ownership of a vendor job.
type RecordParams struct {
	Vendor        enums.JobVendor
	ExternalID    string
	Kind          enums.ActionKind
	Model         *string
	UserID        uuid.UUID
	Status        string
	ResultURL     *string
	ReservationID *uuid.UUID
}

// Service tracks which user owns each vendor-side generation job.
type Service interface {
	Record(ctx context.Context, params RecordParams) (*models.GenerationJob, error)
	GetOwned(ctx context.Context, userID, jobID uuid.UUID) (*models.GenerationJob, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.GenerationJob, error)
	RefreshStatus(ctx context.Context, jobID uuid.UUID, status string, resultURL *string) error
	SetVisibility(ctx context.Context, userID, jobID uuid.UUID, isPublic bool) error
}

// ServiceParams wires the jobs service dependencies.
type ServiceParams struct {
	Repo Repository
}

type service struct {
	repo Repository
}

// NewService wires a jobs service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "jobs repository required")
	}
	return &service{repo: params.Repo}, nil
}

// Record upserts the ownership row keyed by the vendor's external id. New jobs
// always start private; a replayed external id only refreshes status fields.
func (s *service) Record(ctx context.Context, params RecordParams) (*models.GenerationJob, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !params.Vendor.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid job vendor")
	}
	if strings.TrimSpace(params.ExternalID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "external job id is required")
	}
	if !params.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid action kind")
	}

	job := &models.GenerationJob{
		ID:            uuid.New(),
		Vendor:        params.Vendor,
		ExternalID:    strings.TrimSpace(params.ExternalID),
		Kind:          params.Kind,
		Model:         params.Model,
		UserID:        params.UserID,
		Status:        params.Status,
		ResultURL:     params.ResultURL,
		IsPublic:      false,
		ReservationID: params.ReservationID,
	}
	if job.Status == "" {
		job.Status = "pending"
	}
	if err := s.repo.Upsert(ctx, job); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record generation job")
	}
	return job, nil
}

// GetOwned loads a job and enforces that the caller owns it. Non-owners of a
// private job get the same not-found as a missing row.
func (s *service) GetOwned(ctx context.Context, userID, jobID uuid.UUID) (*models.GenerationJob, error) {
	if userID == uuid.Nil || jobID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and job id are required")
	}
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load generation job")
	}
	if job == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "generation job not found")
	}
	if job.UserID != userID && !job.IsPublic {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "generation job not found")
	}
	return job, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.GenerationJob, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	jobs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list generation jobs")
	}
	return jobs, nil
}

func (s *service) RefreshStatus(ctx context.Context, jobID uuid.UUID, status string, resultURL *string) error {
	if jobID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "job id is required")
	}
	if status == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "status is required")
	}
	if err := s.repo.UpdateStatus(ctx, jobID, status, resultURL); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update job status")
	}
	return nil
}

// SetVisibility lets the owner publish or unpublish a job's result.
func (s *service) SetVisibility(ctx context.Context, userID, jobID uuid.UUID, isPublic bool) error {
	if userID == uuid.Nil || jobID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id and job id are required")
	}
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load generation job")
	}
	if job == nil || job.UserID != userID {
		return pkgerrors.New(pkgerrors.CodeNotFound, "generation job not found")
	}
	changed, err := s.repo.SetVisibility(ctx, jobID, isPublic)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update job visibility")
	}
	if !changed {
		return pkgerrors.New(pkgerrors.CodeNotFound, "generation job not found")
	}
	return nil
}
