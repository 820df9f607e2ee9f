package contract

import "context"

// Repository defines persistence operations for contract metadata.  Deletes
// are soft: the row stays, flagged, and disappears from listings.
type Repository interface {
	Save(ctx context.Context, c *Contract) error
	FindByID(ctx context.Context, id string) (*Contract, error)

	// FindByHash looks up a non-deleted contract by its SHA-256 content hash;
	// used for duplicate-upload detection.
	FindByHash(ctx context.Context, hash string) (*Contract, error)
	List(ctx context.Context, opts ...QueryOption) ([]*Contract, int64, error)

	// UpdateText stores the parsed document text and page count.
	UpdateText(ctx context.Context, id, text string, pageCount int) error
	SoftDelete(ctx context.Context, id string) error

	SaveVersion(ctx context.Context, v *Version) error
	FindVersions(ctx context.Context, contractID string) ([]*Version, error)
}

// QueryOptions encapsulates list parameters.
type QueryOptions struct {
	Offset        int
	Limit         int
	SearchKeyword string
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

// WithSearch filters contracts whose original filename contains the keyword,
// case-insensitively.
func WithSearch(keyword string) QueryOption {
	return func(o *QueryOptions) { o.SearchKeyword = keyword }
}

// ApplyOptions folds the functional options into a QueryOptions value.
func ApplyOptions(opts ...QueryOption) QueryOptions {
	o := QueryOptions{Limit: 50}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
