package extractions

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/contract"
	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/extraction"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/internal/intelligence/extractor"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

type memoryJobRepo struct {
	mu   sync.Mutex
	rows map[string]*extraction.Extraction
}

func newMemoryJobRepo() *memoryJobRepo {
	return &memoryJobRepo{rows: map[string]*extraction.Extraction{}}
}

func (r *memoryJobRepo) Save(_ context.Context, e *extraction.Extraction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.rows[e.ID] = &cp
	return nil
}

func (r *memoryJobRepo) FindByID(_ context.Context, id string) (*extraction.Extraction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeExtractionNotFound, "extraction not found: "+id)
	}
	cp := *e
	return &cp, nil
}

func (r *memoryJobRepo) FindByContract(_ context.Context, contractID string) ([]*extraction.Extraction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*extraction.Extraction
	for _, e := range r.rows {
		if e.ContractID == contractID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryJobRepo) FindLatestCompleted(_ context.Context, contractID string) (*extraction.Extraction, error) {
	jobs, _ := r.FindByContract(context.Background(), contractID)
	for _, e := range jobs {
		if e.Status == extraction.StatusCompleted {
			return e, nil
		}
	}
	return nil, errors.New(errors.ErrCodeExtractionNotFound, "no completed extraction")
}

func (r *memoryJobRepo) List(context.Context, ...extraction.QueryOption) ([]*extraction.Extraction, int64, error) {
	return nil, 0, nil
}

func (r *memoryJobRepo) Update(_ context.Context, e *extraction.Extraction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[e.ID]; !ok {
		return errors.New(errors.ErrCodeExtractionNotFound, "extraction not found: "+e.ID)
	}
	cp := *e
	r.rows[e.ID] = &cp
	return nil
}

func (r *memoryJobRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

func (r *memoryJobRepo) ClaimPending(_ context.Context, limit int) ([]*extraction.Extraction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*extraction.Extraction
	for _, e := range r.rows {
		if e.Status == extraction.StatusPending && len(out) < limit {
			e.Status = extraction.StatusProcessing
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memoryJobRepo) ReclaimStale(_ context.Context, olderThan time.Duration, limit int) ([]*extraction.Extraction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var out []*extraction.Extraction
	for _, e := range r.rows {
		if e.Status == extraction.StatusProcessing && e.StartedAt != nil && e.StartedAt.Before(cutoff) && len(out) < limit {
			now := time.Now()
			e.StartedAt = &now
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memoryModelRepo struct {
	models []*extraction.Model
}

func (r *memoryModelRepo) ListActive(context.Context) ([]*extraction.Model, error) {
	var out []*extraction.Model
	for _, m := range r.models {
		if m.IsActive {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryModelRepo) FindByName(_ context.Context, provider, modelName string) (*extraction.Model, error) {
	for _, m := range r.models {
		if m.Provider == provider && m.ModelName == modelName {
			return m, nil
		}
	}
	return nil, errors.New(errors.ErrCodeModelNotFound, "model not found: "+modelName)
}

func (r *memoryModelRepo) Save(context.Context, *extraction.Model) error { return nil }

type stubContractRepo struct {
	contracts map[string]*contract.Contract
}

func (r *stubContractRepo) Save(context.Context, *contract.Contract) error { return nil }

func (r *stubContractRepo) FindByID(_ context.Context, id string) (*contract.Contract, error) {
	c, ok := r.contracts[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeContractNotFound, "contract not found: "+id)
	}
	return c, nil
}

func (r *stubContractRepo) FindByHash(context.Context, string) (*contract.Contract, error) {
	return nil, errors.New(errors.ErrCodeContractNotFound, "not found")
}

func (r *stubContractRepo) List(context.Context, ...contract.QueryOption) ([]*contract.Contract, int64, error) {
	return nil, 0, nil
}

func (r *stubContractRepo) UpdateText(context.Context, string, string, int) error { return nil }
func (r *stubContractRepo) SoftDelete(context.Context, string) error              { return nil }
func (r *stubContractRepo) SaveVersion(context.Context, *contract.Version) error  { return nil }
func (r *stubContractRepo) FindVersions(context.Context, string) ([]*contract.Version, error) {
	return nil, nil
}

type capturingPublisher struct {
	mu        sync.Mutex
	requested []kafka.ExtractionRequestedPayload
	completed []kafka.ExtractionCompletedPayload
}

func (p *capturingPublisher) PublishExtractionRequested(_ context.Context, payload kafka.ExtractionRequestedPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requested = append(p.requested, payload)
	return nil
}

func (p *capturingPublisher) PublishExtractionCompleted(_ context.Context, payload kafka.ExtractionCompletedPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, payload)
	return nil
}

type stubEngine struct {
	result  *extractor.ContractResult
	err     error
	lastOpt extractor.RunOptions
}

func (e *stubEngine) ExtractContract(_ context.Context, _ string, opts extractor.RunOptions) (*extractor.ContractResult, error) {
	e.lastOpt = opts
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func fixture() (*Service, *memoryJobRepo, *capturingPublisher) {
	jobs := newMemoryJobRepo()
	models := &memoryModelRepo{models: []*extraction.Model{
		{Provider: "openai", ModelName: "gpt-4o", IsActive: true, SupportsJSONMode: true, SortOrder: 1},
		{Provider: "gemini", ModelName: "gemini-2.0-flash", IsActive: true, SortOrder: 2},
		{Provider: "openai", ModelName: "gpt-3.5-turbo", IsActive: false},
	}}
	contracts := &stubContractRepo{contracts: map[string]*contract.Contract{
		"con-1": {ID: "con-1", ExtractedText: "Guidelines text."},
		"con-2": {ID: "con-2"},
	}}
	publisher := &capturingPublisher{}
	svc := NewService(jobs, models, contracts, publisher, logging.NewNopLogger())
	return svc, jobs, publisher
}

func TestCreatePublishesRequestEvent(t *testing.T) {
	svc, jobs, publisher := fixture()

	job, err := svc.Create(context.Background(), CreateRequest{
		ContractID: "con-1",
		Provider:   "openai",
		ModelName:  "gpt-4o",
	})
	require.NoError(t, err)
	assert.Equal(t, extraction.StatusPending, job.Status)

	stored, err := jobs.FindByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", stored.ModelName)

	require.Len(t, publisher.requested, 1)
	assert.Equal(t, job.ID, publisher.requested[0].ExtractionID)
	assert.Equal(t, "con-1", publisher.requested[0].ContractID)
}

func TestCreateDefaultsToFirstActiveModel(t *testing.T) {
	svc, _, _ := fixture()

	job, err := svc.Create(context.Background(), CreateRequest{ContractID: "con-1"})
	require.NoError(t, err)
	assert.Equal(t, "openai", job.Provider)
	assert.Equal(t, "gpt-4o", job.ModelName)
}

func TestCreateRejections(t *testing.T) {
	svc, _, _ := fixture()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{})
	assert.True(t, errors.IsValidation(err))

	_, err = svc.Create(ctx, CreateRequest{ContractID: "ghost"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeContractNotFound))

	_, err = svc.Create(ctx, CreateRequest{ContractID: "con-2"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeContractTextUnavailable))

	_, err = svc.Create(ctx, CreateRequest{ContractID: "con-1", Provider: "openai", ModelName: "gpt-nope"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelNotFound))
}

func TestCreateRejectsConcurrentJob(t *testing.T) {
	svc, _, _ := fixture()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{ContractID: "con-1"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateRequest{ContractID: "con-1"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeExtractionAlreadyRunning))
}

func TestWorkerProcessCompletes(t *testing.T) {
	svc, jobs, publisher := fixture()
	ctx := context.Background()

	job, err := svc.Create(ctx, CreateRequest{ContractID: "con-1"})
	require.NoError(t, err)

	engine := &stubEngine{result: &extractor.ContractResult{
		ExtractedData:   map[string]interface{}{"member_name": "Acme", "citations": map[string]interface{}{}},
		FieldsExtracted: 1,
		FieldsTotal:     1,
	}}
	worker := NewWorker(svc, engine, nil, logging.NewNopLogger())

	require.NoError(t, worker.Process(ctx, job.ID))

	stored, err := jobs.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, extraction.StatusCompleted, stored.Status)
	assert.Equal(t, 1, stored.FieldsExtracted)
	assert.NotNil(t, stored.CompletedAt)
	assert.True(t, engine.lastOpt.JSONMode, "registry json-mode flag forwarded")

	require.Len(t, publisher.completed, 1)
	assert.Equal(t, string(extraction.StatusCompleted), publisher.completed[0].Status)
}

func TestWorkerProcessRecordsFailure(t *testing.T) {
	svc, jobs, publisher := fixture()
	ctx := context.Background()

	job, err := svc.Create(ctx, CreateRequest{ContractID: "con-1"})
	require.NoError(t, err)

	engine := &stubEngine{err: errors.New(errors.ErrCodeExternalService, "model upstream down")}
	worker := NewWorker(svc, engine, nil, logging.NewNopLogger())

	// Process records the failure on the row instead of returning an error,
	// so the event is not redelivered.
	require.NoError(t, worker.Process(ctx, job.ID))

	stored, err := jobs.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, extraction.StatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "model upstream down")

	require.Len(t, publisher.completed, 1)
	assert.Equal(t, string(extraction.StatusFailed), publisher.completed[0].Status)
}

func TestWorkerSkipsFinishedJobAndUnknownJob(t *testing.T) {
	svc, jobs, _ := fixture()
	ctx := context.Background()

	job, err := svc.Create(ctx, CreateRequest{ContractID: "con-1"})
	require.NoError(t, err)

	done, err := jobs.FindByID(ctx, job.ID)
	require.NoError(t, err)
	done.MarkCompleted(time.Now().UTC(), map[string]interface{}{"a": "b"}, nil)
	require.NoError(t, jobs.Update(ctx, done))

	engine := &stubEngine{err: errors.New(errors.ErrCodeInternal, "must not run")}
	worker := NewWorker(svc, engine, nil, logging.NewNopLogger())

	require.NoError(t, worker.Process(ctx, job.ID))
	require.NoError(t, worker.Process(ctx, "ghost-job"))

	stored, err := jobs.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, extraction.StatusCompleted, stored.Status, "finished job untouched")
}

func TestWorkerSweepPending(t *testing.T) {
	svc, jobs, publisher := fixture()
	ctx := context.Background()

	job, err := svc.Create(ctx, CreateRequest{ContractID: "con-1"})
	require.NoError(t, err)

	engine := &stubEngine{result: &extractor.ContractResult{
		ExtractedData: map[string]interface{}{"member_name": "Acme"},
	}}
	worker := NewWorker(svc, engine, nil, logging.NewNopLogger())

	processed, err := worker.SweepPending(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	stored, err := jobs.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, extraction.StatusCompleted, stored.Status)
	assert.Len(t, publisher.completed, 1)
}

func TestWorkerSweepReclaimsStaleProcessingJob(t *testing.T) {
	svc, jobs, publisher := fixture()
	ctx := context.Background()

	job, err := svc.Create(ctx, CreateRequest{ContractID: "con-1"})
	require.NoError(t, err)

	// Simulate a worker that died an hour into the run.
	stranded, err := jobs.FindByID(ctx, job.ID)
	require.NoError(t, err)
	stranded.MarkProcessing(time.Now().Add(-time.Hour))
	require.NoError(t, jobs.Update(ctx, stranded))

	engine := &stubEngine{result: &extractor.ContractResult{
		ExtractedData: map[string]interface{}{"member_name": "Acme"},
	}}
	worker := NewWorker(svc, engine, nil, logging.NewNopLogger())

	// A fresh processing job stays untouched, a stale one is re-run.
	processed, err := worker.SweepPending(ctx, 10, 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, processed)

	processed, err = worker.SweepPending(ctx, 10, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	stored, err := jobs.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, extraction.StatusCompleted, stored.Status)
	assert.Len(t, publisher.completed, 1)
}

func TestDeleteRefusesProcessingJob(t *testing.T) {
	svc, jobs, _ := fixture()
	ctx := context.Background()

	job, err := svc.Create(ctx, CreateRequest{ContractID: "con-1"})
	require.NoError(t, err)

	running, err := jobs.FindByID(ctx, job.ID)
	require.NoError(t, err)
	running.MarkProcessing(time.Now().UTC())
	require.NoError(t, jobs.Update(ctx, running))

	err = svc.Delete(ctx, job.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeExtractionAlreadyRunning))
}
