package gwp

import (
	"context"

	"github.com/shopspring/decimal"
)

// MemberListRow is one row of the member listing: the member joined with its
// premium total and fact-row count.
type MemberListRow struct {
	Member
	TotalGWP       decimal.Decimal `json:"total_gwp"`
	BreakdownCount int64           `json:"breakdown_count"`
}

// MemberRepository defines persistence operations for members and their
// denormalized fact rows.
type MemberRepository interface {
	Save(ctx context.Context, m *Member) error
	FindByID(ctx context.Context, id string) (*Member, error)

	// FindByMemberID looks up by the PTY-XXXXXX business key.
	FindByMemberID(ctx context.Context, memberID string) (*Member, error)
	List(ctx context.Context, opts ...QueryOption) ([]*MemberListRow, int64, error)
	Delete(ctx context.Context, id string) error

	// FactRows returns the member's GWP breakdowns joined with all five
	// dimension codes and names, in stable creation order.  This is the tree
	// builder's input.
	FactRows(ctx context.Context, memberUUID string) ([]FactRow, error)
}

// DimensionRepository defines get-or-create persistence for the five
// dimension tables.
type DimensionRepository interface {
	// GetOrCreate returns the UUID of the dimension row with the given code,
	// inserting it with the given name when absent.  An existing row's name is
	// never overwritten.
	GetOrCreate(ctx context.Context, dim Dimension, code, name string) (string, error)
}

// BreakdownRepository defines persistence for GWP fact rows.
type BreakdownRepository interface {
	// Upsert inserts the breakdown or, when a row with the same
	// (member, lob, cob, product, sub_product, mpp) 6-tuple exists, updates
	// its premium figures in place.  Returns true when a new row was created.
	Upsert(ctx context.Context, b *Breakdown) (bool, error)
	FindByID(ctx context.Context, id string) (*Breakdown, error)
	FindByMember(ctx context.Context, memberUUID string) ([]*Breakdown, error)
}

// QueryOptions encapsulates member-list parameters.
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

// WithSearch filters members whose name or business key contains the keyword,
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
