// Package extractions manages the LLM extraction job lifecycle: the API side
// creates jobs and publishes request events; the worker side consumes them,
// runs the model, and stores the results.
package extractions

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/contract"
	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/extraction"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

// Publisher is the event-publishing surface the service needs; satisfied by
// the Kafka producer.
type Publisher interface {
	PublishExtractionRequested(ctx context.Context, payload kafka.ExtractionRequestedPayload) error
	PublishExtractionCompleted(ctx context.Context, payload kafka.ExtractionCompletedPayload) error
}

// CreateRequest asks for a new extraction job.  Provider and ModelName are
// optional; the registry's first active model is used when absent.
type CreateRequest struct {
	ContractID string `json:"contract_id"`
	Provider   string `json:"model_provider,omitempty"`
	ModelName  string `json:"model_name,omitempty"`
}

// Service is the extraction job application service.
type Service struct {
	jobs      extraction.Repository
	models    extraction.ModelRepository
	contracts contract.Repository
	publisher Publisher
	logger    logging.Logger
	now       func() time.Time
}

// NewService builds the extraction service.
func NewService(jobs extraction.Repository, models extraction.ModelRepository, contracts contract.Repository, publisher Publisher, log logging.Logger) *Service {
	return &Service{
		jobs:      jobs,
		models:    models,
		contracts: contracts,
		publisher: publisher,
		logger:    log,
		now:       time.Now,
	}
}

// Create validates the request, persists a pending job, and publishes the
// request event for the worker.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*extraction.Extraction, error) {
	if req.ContractID == "" {
		return nil, errors.NewValidationError("contract_id is required")
	}

	c, err := s.contracts.FindByID(ctx, req.ContractID)
	if err != nil {
		return nil, err
	}
	if !c.HasText() {
		return nil, errors.New(errors.ErrCodeContractTextUnavailable,
			"contract "+c.ID+" has no parsed text; upload the text before extracting")
	}

	model, err := s.resolveModel(ctx, req.Provider, req.ModelName)
	if err != nil {
		return nil, err
	}

	if err := s.rejectActiveJob(ctx, c.ID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	job := &extraction.Extraction{
		ID:         uuid.NewString(),
		ContractID: c.ID,
		Provider:   model.Provider,
		ModelName:  model.ModelName,
		Status:     extraction.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.jobs.Save(ctx, job); err != nil {
		return nil, err
	}

	err = s.publisher.PublishExtractionRequested(ctx, kafka.ExtractionRequestedPayload{
		ExtractionID: job.ID,
		ContractID:   job.ContractID,
		Provider:     job.Provider,
		ModelName:    job.ModelName,
		RequestedAt:  now,
	})
	if err != nil {
		// The job row exists; the worker's pending sweep will still pick it
		// up even though the event was lost.
		s.logger.Error("Failed to publish extraction request",
			logging.String("extraction_id", job.ID), logging.Err(err))
	}

	s.logger.Info("Extraction job created",
		logging.String("extraction_id", job.ID),
		logging.String("contract_id", job.ContractID),
		logging.String("provider", job.Provider),
		logging.String("model", job.ModelName),
	)
	return job, nil
}

// Get returns one job.
func (s *Service) Get(ctx context.Context, id string) (*extraction.Extraction, error) {
	return s.jobs.FindByID(ctx, id)
}

// List returns jobs filtered by status and contract.
func (s *Service) List(ctx context.Context, opts ...extraction.QueryOption) ([]*extraction.Extraction, int64, error) {
	return s.jobs.List(ctx, opts...)
}

// ListByContract returns all jobs for one contract, newest first.
func (s *Service) ListByContract(ctx context.Context, contractID string) ([]*extraction.Extraction, error) {
	return s.jobs.FindByContract(ctx, contractID)
}

// LatestCompleted returns the most recent completed job for a contract.
func (s *Service) LatestCompleted(ctx context.Context, contractID string) (*extraction.Extraction, error) {
	return s.jobs.FindLatestCompleted(ctx, contractID)
}

// Delete removes a job record.  Running jobs cannot be deleted.
func (s *Service) Delete(ctx context.Context, id string) error {
	job, err := s.jobs.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if job.Status == extraction.StatusProcessing {
		return errors.New(errors.ErrCodeExtractionAlreadyRunning,
			"extraction "+id+" is still processing")
	}
	return s.jobs.Delete(ctx, id)
}

// ListModels returns the active model registry for selection UIs.
func (s *Service) ListModels(ctx context.Context) ([]*extraction.Model, error) {
	return s.models.ListActive(ctx)
}

// resolveModel maps the optional provider/model pair onto a registry row.
func (s *Service) resolveModel(ctx context.Context, provider, modelName string) (*extraction.Model, error) {
	if provider != "" && modelName != "" {
		return s.models.FindByName(ctx, provider, modelName)
	}

	active, err := s.models.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range active {
		if provider == "" || m.Provider == provider {
			return m, nil
		}
	}
	return nil, errors.New(errors.ErrCodeModelNotFound, "no active extraction model available")
}

// rejectActiveJob refuses a second concurrent job for the same contract.
func (s *Service) rejectActiveJob(ctx context.Context, contractID string) error {
	existing, err := s.jobs.FindByContract(ctx, contractID)
	if err != nil {
		return err
	}
	for _, job := range existing {
		if !job.Status.Terminal() {
			return errors.New(errors.ErrCodeExtractionAlreadyRunning,
				"extraction "+job.ID+" is already in progress for contract "+contractID)
		}
	}
	return nil
}
