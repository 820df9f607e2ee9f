package extractions

import (
	"context"
	"time"

	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/extraction"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/CoverIQ-Intelligence/internal/intelligence/extractor"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

// ContractExtractor is the engine surface the worker needs; satisfied by
// *extractor.Engine.
type ContractExtractor interface {
	ExtractContract(ctx context.Context, documentText string, opts extractor.RunOptions) (*extractor.ContractResult, error)
}

// Worker executes extraction jobs.  It is driven by the Kafka consumer and,
// as a fallback, by a periodic sweep that recovers pending rows whose events
// were lost and processing rows stranded by a dead worker.
type Worker struct {
	service *Service
	engine  ContractExtractor
	metrics *prometheus.AppMetrics
	logger  logging.Logger
	now     func() time.Time
}

// NewWorker builds the extraction worker.
func NewWorker(service *Service, engine ContractExtractor, metrics *prometheus.AppMetrics, log logging.Logger) *Worker {
	return &Worker{
		service: service,
		engine:  engine,
		metrics: metrics,
		logger:  log,
		now:     time.Now,
	}
}

// HandleEnvelope adapts the Kafka envelope to Process; wired as the consumer
// handler.
func (w *Worker) HandleEnvelope(ctx context.Context, envelope *kafka.EventEnvelope) error {
	var payload kafka.ExtractionRequestedPayload
	if err := envelope.DecodePayload(&payload); err != nil {
		return err
	}
	return w.Process(ctx, payload.ExtractionID)
}

// Process runs one extraction job end to end.  Redelivered events for jobs
// that already reached a terminal state are acknowledged without rerunning.
func (w *Worker) Process(ctx context.Context, extractionID string) error {
	job, err := w.service.jobs.FindByID(ctx, extractionID)
	if err != nil {
		if errors.IsNotFound(err) {
			// The job row was deleted after the event was published; nothing
			// to rerun.
			w.logger.Warn("Extraction event for unknown job",
				logging.String("extraction_id", extractionID))
			return nil
		}
		return err
	}
	if job.Status.Terminal() {
		w.logger.Debug("Skipping redelivered event for finished job",
			logging.String("extraction_id", job.ID),
			logging.String("status", string(job.Status)),
		)
		return nil
	}

	started := w.now().UTC()
	job.MarkProcessing(started)
	if err := w.service.jobs.Update(ctx, job); err != nil {
		return err
	}

	result, runErr := w.run(ctx, job)
	completed := w.now().UTC()

	if runErr != nil {
		job.MarkFailed(completed, runErr.Error())
	} else {
		job.MarkCompleted(completed, result.ExtractedData, nil)
		job.FieldsExtracted = result.FieldsExtracted
		job.FieldsTotal = result.FieldsTotal
	}
	if err := w.service.jobs.Update(ctx, job); err != nil {
		return err
	}

	prometheus.RecordExtractionJob(w.metrics, job.Provider, string(job.Status), completed.Sub(started))
	w.publishCompleted(ctx, job, completed)

	if runErr != nil {
		w.logger.Error("Extraction job failed",
			logging.String("extraction_id", job.ID),
			logging.String("contract_id", job.ContractID),
			logging.Err(runErr),
		)
	} else {
		w.logger.Info("Extraction job completed",
			logging.String("extraction_id", job.ID),
			logging.Int("fields_extracted", job.FieldsExtracted),
			logging.Int("fields_total", job.FieldsTotal),
		)
	}

	// The failure is recorded on the job row; the event must not be
	// redelivered for another attempt.
	return nil
}

// SweepPending claims pending jobs directly from the database and runs them.
// This catches jobs whose request events were lost before reaching the
// broker.  When staleAfter is positive it also re-claims processing jobs
// whose run started more than staleAfter ago, recovering work stranded by a
// worker that died between claiming a job and storing its result; staleAfter
// must exceed the longest legitimate job runtime.
func (w *Worker) SweepPending(ctx context.Context, limit int, staleAfter time.Duration) (int, error) {
	jobs, err := w.service.jobs.ClaimPending(ctx, limit)
	if err != nil {
		return 0, err
	}

	if staleAfter > 0 {
		stale, err := w.service.jobs.ReclaimStale(ctx, staleAfter, limit)
		if err != nil {
			// Pending jobs were already claimed; run them and let the next
			// sweep retry the reclaim.
			w.logger.Error("Failed to reclaim stale jobs", logging.Err(err))
		} else {
			jobs = append(jobs, stale...)
		}
	}

	processed := 0
	for _, job := range jobs {
		started := w.now().UTC()
		result, runErr := w.run(ctx, job)
		completed := w.now().UTC()

		if runErr != nil {
			job.MarkFailed(completed, runErr.Error())
		} else {
			job.MarkCompleted(completed, result.ExtractedData, nil)
			job.FieldsExtracted = result.FieldsExtracted
			job.FieldsTotal = result.FieldsTotal
		}
		if err := w.service.jobs.Update(ctx, job); err != nil {
			w.logger.Error("Failed to store swept job result",
				logging.String("extraction_id", job.ID), logging.Err(err))
			continue
		}
		prometheus.RecordExtractionJob(w.metrics, job.Provider, string(job.Status), completed.Sub(started))
		w.publishCompleted(ctx, job, completed)
		processed++
	}
	return processed, nil
}

// run loads the document text and executes the model.
func (w *Worker) run(ctx context.Context, job *extraction.Extraction) (*extractor.ContractResult, error) {
	c, err := w.service.contracts.FindByID(ctx, job.ContractID)
	if err != nil {
		return nil, err
	}
	if !c.HasText() {
		return nil, errors.New(errors.ErrCodeContractTextUnavailable,
			"contract "+c.ID+" has no parsed text")
	}

	opts := extractor.RunOptions{
		Provider: job.Provider,
		Model:    job.ModelName,
	}
	if model, err := w.service.models.FindByName(ctx, job.Provider, job.ModelName); err == nil {
		opts.JSONMode = model.SupportsJSONMode
	}

	return w.engine.ExtractContract(ctx, c.ExtractedText, opts)
}

func (w *Worker) publishCompleted(ctx context.Context, job *extraction.Extraction, completedAt time.Time) {
	err := w.service.publisher.PublishExtractionCompleted(ctx, kafka.ExtractionCompletedPayload{
		ExtractionID: job.ID,
		ContractID:   job.ContractID,
		Status:       string(job.Status),
		ErrorMessage: job.ErrorMessage,
		CompletedAt:  completedAt,
	})
	if err != nil {
		w.logger.Error("Failed to publish extraction completion",
			logging.String("extraction_id", job.ID), logging.Err(err))
	}
}
