// Package portfolio defines the portfolio aggregate and the allocation
// aggregator that rolls a weighted set of authorities up into summary
// metrics.  All monetary and ratio arithmetic uses fixed-point decimals;
// floats never touch money.
package portfolio

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/authority"
)

// Portfolio is a user-created combination of insurance products, each held at
// an allocation percentage.  The four cached metric columns mirror the last
// computed summary so list views never recompute; detail views always do.
type Portfolio struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Cached summary metrics, refreshed on every item mutation.
	TotalPremium     decimal.Decimal  `json:"total_premium"`
	MaxAnnualPremium decimal.Decimal  `json:"max_annual_premium"`
	AvgLossRatio     *decimal.Decimal `json:"avg_loss_ratio,omitempty"`
	AvgLimit         *decimal.Decimal `json:"avg_limit,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Item is one authority held in a portfolio at an allocation percentage.
// A given authority appears at most once per portfolio.
type Item struct {
	ID            string          `json:"id"`
	PortfolioID   string          `json:"portfolio_id"`
	AuthorityID   string          `json:"authority_id"`
	AllocationPct decimal.Decimal `json:"allocation_pct"`
	CreatedAt     time.Time       `json:"created_at"`
}

// AllocationItem is one row of aggregator input: the item's allocation
// percentage joined with the authority snapshot and its GWP fact figures.
// A nil Authority contributes only its allocation to the total; a nil GWP
// contributes no premium or loss-ratio weight.
type AllocationItem struct {
	AllocationPct decimal.Decimal
	Authority     *authority.Authority
	GWP           *authority.GWPLink
}

// ApplyCachedSummary copies the cacheable metrics of s onto the portfolio row.
func (p *Portfolio) ApplyCachedSummary(s Summary) {
	p.TotalPremium = s.TotalPremium
	p.MaxAnnualPremium = s.MaxAnnualPremium
	p.AvgLossRatio = s.AvgLossRatio
	p.AvgLimit = s.AvgLimit
}
