// Package portfolios orchestrates portfolio CRUD, item management, and the
// summary lifecycle: every item mutation recomputes the allocation summary,
// persists the cacheable columns, and refreshes the Redis copy.
package portfolios

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/authority"
	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/portfolio"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

const summaryCacheTTL = 15 * time.Minute

var oneHundred = decimal.NewFromInt(100)

// ItemInput is one requested portfolio holding.
type ItemInput struct {
	AuthorityID   string          `json:"authority_id"`
	AllocationPct decimal.Decimal `json:"allocation_pct"`
}

// CreateRequest carries the parameters for creating a portfolio.
type CreateRequest struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Items       []ItemInput `json:"items,omitempty"`
}

// UpdateRequest carries the parameters for updating a portfolio.  Nil fields
// are left untouched; a non-nil Items slice replaces the whole item set.
type UpdateRequest struct {
	Name        *string      `json:"name,omitempty"`
	Description *string      `json:"description,omitempty"`
	Items       *[]ItemInput `json:"items,omitempty"`
}

// ItemDetail is one portfolio item joined with its authority snapshot and
// GWP figures for the detail view.
type ItemDetail struct {
	portfolio.Item
	Authority *authority.Authority `json:"authority,omitempty"`
	GWP       *authority.GWPLink   `json:"gwp,omitempty"`
}

// Detail is the full portfolio view: row, items, and a freshly recomputed
// summary.  The cached columns on the row are never trusted here.
type Detail struct {
	Portfolio *portfolio.Portfolio `json:"portfolio"`
	Items     []ItemDetail         `json:"items"`
	Summary   portfolio.Summary    `json:"summary"`
}

// Service is the portfolio application service.
type Service struct {
	portfolios  portfolio.Repository
	authorities authority.Repository
	cache       redis.Cache
	logger      logging.Logger
	now         func() time.Time
}

// NewService builds the portfolio service.  cache may be nil; summary
// caching then degrades to recomputation only.
func NewService(portfolios portfolio.Repository, authorities authority.Repository, cache redis.Cache, log logging.Logger) *Service {
	return &Service{
		portfolios:  portfolios,
		authorities: authorities,
		cache:       cache,
		logger:      log,
		now:         time.Now,
	}
}

// Create creates a portfolio with an optional initial item set.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Detail, error) {
	if req.Name == "" {
		return nil, errors.NewValidationError("portfolio name is required")
	}
	items, err := buildItems(req.Items)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p := &portfolio.Portfolio{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.portfolios.Save(ctx, p); err != nil {
		return nil, err
	}

	for _, item := range items {
		item.PortfolioID = p.ID
		item.CreatedAt = now
		if err := s.portfolios.AddItem(ctx, item); err != nil {
			return nil, err
		}
	}

	detail, err := s.refreshSummary(ctx, p)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Portfolio created",
		logging.String("portfolio_id", p.ID),
		logging.Int("items", len(items)),
	)
	return detail, nil
}

// Get returns the portfolio detail with a live-recomputed summary.
func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	p, err := s.portfolios.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(ctx, p)
}

// List returns portfolios with their cached summary columns.  No
// recomputation happens on the list path.
func (s *Service) List(ctx context.Context, opts ...portfolio.QueryOption) ([]*portfolio.Portfolio, int64, error) {
	return s.portfolios.List(ctx, opts...)
}

// Update modifies the portfolio row and, when Items is set, replaces the
// whole item set before recomputing the summary.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Detail, error) {
	p, err := s.portfolios.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, errors.NewValidationError("portfolio name is required")
		}
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.portfolios.Update(ctx, p); err != nil {
		return nil, err
	}

	if req.Items != nil {
		items, err := buildItems(*req.Items)
		if err != nil {
			return nil, err
		}
		now := s.now().UTC()
		for _, item := range items {
			item.PortfolioID = p.ID
			item.CreatedAt = now
		}
		if err := s.portfolios.ReplaceItems(ctx, p.ID, items); err != nil {
			return nil, err
		}
	}

	return s.refreshSummary(ctx, p)
}

// Delete removes the portfolio and drops its cached summary.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.portfolios.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.portfolios.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateCache(ctx, id)
	s.logger.Info("Portfolio deleted", logging.String("portfolio_id", id))
	return nil
}

// AddItem adds one authority holding.  The same authority cannot appear
// twice in a portfolio.
func (s *Service) AddItem(ctx context.Context, portfolioID string, input ItemInput) (*Detail, error) {
	p, err := s.portfolios.FindByID(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if err := validateItem(input); err != nil {
		return nil, err
	}
	if _, err := s.authorities.FindByID(ctx, input.AuthorityID); err != nil {
		return nil, err
	}

	item := &portfolio.Item{
		ID:            uuid.NewString(),
		PortfolioID:   p.ID,
		AuthorityID:   input.AuthorityID,
		AllocationPct: input.AllocationPct,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.portfolios.AddItem(ctx, item); err != nil {
		return nil, err
	}
	return s.refreshSummary(ctx, p)
}

// UpdateItem changes one item's allocation percentage.
func (s *Service) UpdateItem(ctx context.Context, portfolioID, itemID string, allocationPct decimal.Decimal) (*Detail, error) {
	p, err := s.portfolios.FindByID(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if err := validateAllocation(allocationPct); err != nil {
		return nil, err
	}

	item, err := s.portfolios.FindItem(ctx, portfolioID, itemID)
	if err != nil {
		return nil, err
	}
	item.AllocationPct = allocationPct
	if err := s.portfolios.UpdateItem(ctx, item); err != nil {
		return nil, err
	}
	return s.refreshSummary(ctx, p)
}

// RemoveItem removes one item from the portfolio.
func (s *Service) RemoveItem(ctx context.Context, portfolioID, itemID string) (*Detail, error) {
	p, err := s.portfolios.FindByID(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if _, err := s.portfolios.FindItem(ctx, portfolioID, itemID); err != nil {
		return nil, err
	}
	if err := s.portfolios.RemoveItem(ctx, portfolioID, itemID); err != nil {
		return nil, err
	}
	return s.refreshSummary(ctx, p)
}

// buildDetail loads the item set, resolves authorities and GWP links, and
// recomputes the summary.
func (s *Service) buildDetail(ctx context.Context, p *portfolio.Portfolio) (*Detail, error) {
	items, err := s.portfolios.FindItems(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	details := make([]ItemDetail, 0, len(items))
	allocations := make([]portfolio.AllocationItem, 0, len(items))
	for _, item := range items {
		detail := ItemDetail{Item: *item}

		auth, err := s.authorities.FindByID(ctx, item.AuthorityID)
		switch {
		case err == nil:
			detail.Authority = auth
			link, err := s.authorities.GWPLinkFor(ctx, auth)
			if err != nil {
				return nil, err
			}
			detail.GWP = link
		case errors.IsNotFound(err):
			// The authority was deleted after the item was added; the item
			// still contributes its allocation weight.
		default:
			return nil, err
		}

		details = append(details, detail)
		allocations = append(allocations, portfolio.AllocationItem{
			AllocationPct: item.AllocationPct,
			Authority:     detail.Authority,
			GWP:           detail.GWP,
		})
	}

	return &Detail{
		Portfolio: p,
		Items:     details,
		Summary:   portfolio.ComputeSummary(allocations),
	}, nil
}

// refreshSummary recomputes the summary, writes the cache columns, and
// refreshes the Redis copy.
func (s *Service) refreshSummary(ctx context.Context, p *portfolio.Portfolio) (*Detail, error) {
	detail, err := s.buildDetail(ctx, p)
	if err != nil {
		return nil, err
	}

	p.ApplyCachedSummary(detail.Summary)
	p.UpdatedAt = s.now().UTC()
	if err := s.portfolios.UpdateCachedSummary(ctx, p); err != nil {
		return nil, err
	}

	s.invalidateCache(ctx, p.ID)
	if s.cache != nil {
		if err := s.cache.Set(ctx, summaryCacheKey(p.ID), detail.Summary, summaryCacheTTL); err != nil {
			s.logger.Warn("Failed to cache portfolio summary",
				logging.String("portfolio_id", p.ID), logging.Err(err))
		}
	}
	return detail, nil
}

func (s *Service) invalidateCache(ctx context.Context, portfolioID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, summaryCacheKey(portfolioID)); err != nil {
		s.logger.Warn("Failed to invalidate portfolio summary cache",
			logging.String("portfolio_id", portfolioID), logging.Err(err))
	}
}

func summaryCacheKey(portfolioID string) string {
	return "portfolio:summary:" + portfolioID
}

func buildItems(inputs []ItemInput) ([]*portfolio.Item, error) {
	seen := make(map[string]bool, len(inputs))
	items := make([]*portfolio.Item, 0, len(inputs))
	for _, input := range inputs {
		if err := validateItem(input); err != nil {
			return nil, err
		}
		if seen[input.AuthorityID] {
			return nil, errors.New(errors.ErrCodePortfolioItemDuplicate,
				"authority "+input.AuthorityID+" listed more than once")
		}
		seen[input.AuthorityID] = true
		items = append(items, &portfolio.Item{
			ID:            uuid.NewString(),
			AuthorityID:   input.AuthorityID,
			AllocationPct: input.AllocationPct,
		})
	}
	return items, nil
}

func validateItem(input ItemInput) error {
	if input.AuthorityID == "" {
		return errors.NewValidationError("authority_id is required")
	}
	return validateAllocation(input.AllocationPct)
}

// validateAllocation bounds a single item's percentage.  The portfolio total
// is deliberately unconstrained; partial and over-allocated portfolios are
// legal.
func validateAllocation(pct decimal.Decimal) error {
	if pct.IsNegative() || pct.IsZero() || pct.GreaterThan(oneHundred) {
		return errors.New(errors.ErrCodeAllocationInvalid,
			"allocation_pct must be greater than 0 and at most 100")
	}
	return nil
}
