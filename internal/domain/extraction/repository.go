package extraction

import (
	"context"
	"time"
)

// Repository defines persistence operations for extraction jobs and the
// extraction model registry.
type Repository interface {
	Save(ctx context.Context, e *Extraction) error
	FindByID(ctx context.Context, id string) (*Extraction, error)

	// FindByContract returns all jobs for a contract, newest first.
	FindByContract(ctx context.Context, contractID string) ([]*Extraction, error)

	// FindLatestCompleted returns the most recent completed job for a
	// contract, or a not-found error when none exists.
	FindLatestCompleted(ctx context.Context, contractID string) (*Extraction, error)
	List(ctx context.Context, opts ...QueryOption) ([]*Extraction, int64, error)

	// Update persists a status transition together with its result or error
	// fields.
	Update(ctx context.Context, e *Extraction) error
	Delete(ctx context.Context, id string) error

	// ClaimPending atomically moves up to limit pending jobs to processing
	// and returns them; used by the worker poll loop as a fallback when the
	// queue is drained out of band.
	ClaimPending(ctx context.Context, limit int) ([]*Extraction, error)

	// ReclaimStale re-claims processing jobs whose run started more than
	// olderThan ago, refreshing their claim time.  Recovers jobs stranded
	// by a worker that died mid-run; olderThan must exceed the longest
	// legitimate job runtime.
	ReclaimStale(ctx context.Context, olderThan time.Duration, limit int) ([]*Extraction, error)
}

// ModelRepository defines persistence for the extraction model registry.
type ModelRepository interface {
	ListActive(ctx context.Context) ([]*Model, error)
	FindByName(ctx context.Context, provider, modelName string) (*Model, error)
	Save(ctx context.Context, m *Model) error
}

// QueryOptions encapsulates job-list parameters.
type QueryOptions struct {
	Offset     int
	Limit      int
	Status     Status
	ContractID string
}

// QueryOption is a functional option for QueryOptions.
type QueryOption func(*QueryOptions)

// WithPagination sets pagination bounds.  Limits are clamped to [1, 500].
func WithPagination(offset, limit int) QueryOption {
	return func(o *QueryOptions) {
		if offset < 0 {
			offset = 0
		}
		if limit < 1 {
			limit = 50
		}
		if limit > 500 {
			limit = 500
		}
		o.Offset = offset
		o.Limit = limit
	}
}

// WithStatus filters jobs by lifecycle status.
func WithStatus(s Status) QueryOption {
	return func(o *QueryOptions) { o.Status = s }
}

// WithContract filters jobs by contract.
func WithContract(contractID string) QueryOption {
	return func(o *QueryOptions) { o.ContractID = contractID }
}

// ApplyOptions folds the functional options into a QueryOptions value.
func ApplyOptions(opts ...QueryOption) QueryOptions {
	o := QueryOptions{Limit: 50}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
