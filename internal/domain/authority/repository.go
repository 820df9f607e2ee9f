package authority

import "context"

// Repository defines the persistence operations for authorities.
type Repository interface {
	Save(ctx context.Context, a *Authority) error
	FindByID(ctx context.Context, id string) (*Authority, error)
	FindByProductExtractionID(ctx context.Context, extractionID string) (*Authority, error)
	List(ctx context.Context, opts ...QueryOption) ([]*Authority, int64, error)

	// UpdateExtractedData replaces the snapshot's field map and, when
	// analysisSummary is non-nil, the analysis summary.
	UpdateExtractedData(ctx context.Context, id string, data ExtractedData, analysisSummary *string) error
	Delete(ctx context.Context, id string) error

	// GWPLinkFor returns the premium figures of the GWP fact row the authority
	// points at, or nil when no row is linked.
	GWPLinkFor(ctx context.Context, a *Authority) (*GWPLink, error)

	// DistinctLOBNames and DistinctCOBNames feed the product-list filter
	// options; empty names are excluded and results are sorted.
	DistinctLOBNames(ctx context.Context) ([]string, error)
	DistinctCOBNames(ctx context.Context) ([]string, error)
}

// QueryOptions encapsulates list parameters.
type QueryOptions struct {
	Offset        int
	Limit         int
	SearchKeyword string
	MemberID      string
	LOBName       string
	COBName       string
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

// WithSearch filters across contract and dimension names, case-insensitively.
func WithSearch(keyword string) QueryOption {
	return func(o *QueryOptions) { o.SearchKeyword = keyword }
}

// WithMemberID restricts results to one member.
func WithMemberID(memberID string) QueryOption {
	return func(o *QueryOptions) { o.MemberID = memberID }
}

// WithLOBName filters on the exact line-of-business name.
func WithLOBName(name string) QueryOption {
	return func(o *QueryOptions) { o.LOBName = name }
}

// WithCOBName filters on the exact class-of-business name.
func WithCOBName(name string) QueryOption {
	return func(o *QueryOptions) { o.COBName = name }
}

// ApplyOptions folds the functional options into a QueryOptions value.
func ApplyOptions(opts ...QueryOption) QueryOptions {
	o := QueryOptions{Limit: 50}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
