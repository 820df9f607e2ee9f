package portfolio

import "context"

// Repository defines the persistence operations for portfolios and their
// items.
type Repository interface {
	Save(ctx context.Context, p *Portfolio) error
	FindByID(ctx context.Context, id string) (*Portfolio, error)
	List(ctx context.Context, opts ...QueryOption) ([]*Portfolio, int64, error)
	Update(ctx context.Context, p *Portfolio) error
	Delete(ctx context.Context, id string) error

	// UpdateCachedSummary persists the cacheable metric columns only.
	UpdateCachedSummary(ctx context.Context, p *Portfolio) error

	ItemCount(ctx context.Context, portfolioID string) (int64, error)
	FindItems(ctx context.Context, portfolioID string) ([]*Item, error)
	FindItem(ctx context.Context, portfolioID, itemID string) (*Item, error)
	FindItemByAuthority(ctx context.Context, portfolioID, authorityID string) (*Item, error)
	AddItem(ctx context.Context, item *Item) error
	UpdateItem(ctx context.Context, item *Item) error
	RemoveItem(ctx context.Context, portfolioID, itemID string) error

	// ReplaceItems deletes all existing items and inserts the given set in one
	// transaction.
	ReplaceItems(ctx context.Context, portfolioID string, items []*Item) error
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
			limit = 100
		}
		if limit > 500 {
			limit = 500
		}
		o.Offset = offset
		o.Limit = limit
	}
}

// WithSearch filters portfolios whose name contains the keyword,
// case-insensitively.
func WithSearch(keyword string) QueryOption {
	return func(o *QueryOptions) { o.SearchKeyword = keyword }
}

// ApplyOptions folds the functional options into a QueryOptions value.
func ApplyOptions(opts ...QueryOption) QueryOptions {
	o := QueryOptions{Limit: 100}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
