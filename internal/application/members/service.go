// Package members orchestrates the member star schema: listing, detail,
// the rolled-up GWP tree, and the Excel import that feeds the schema.
package members

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/gwp"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
)

// Detail is the member detail view: the member row plus its denormalized
// fact rows and premium total.
type Detail struct {
	Member     *gwp.Member     `json:"member"`
	Breakdowns []gwp.FactRow   `json:"breakdowns"`
	TotalGWP   decimal.Decimal `json:"total_gwp"`
}

// Service is the member application service.
type Service struct {
	members    gwp.MemberRepository
	dimensions gwp.DimensionRepository
	breakdowns gwp.BreakdownRepository
	logger     logging.Logger
}

// NewService builds the member service.
func NewService(members gwp.MemberRepository, dimensions gwp.DimensionRepository, breakdowns gwp.BreakdownRepository, log logging.Logger) *Service {
	return &Service{
		members:    members,
		dimensions: dimensions,
		breakdowns: breakdowns,
		logger:     log,
	}
}

// List returns members with their premium totals and fact-row counts.
func (s *Service) List(ctx context.Context, opts ...gwp.QueryOption) ([]*gwp.MemberListRow, int64, error) {
	return s.members.List(ctx, opts...)
}

// Get returns the member detail with its fact rows.
func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	m, err := s.members.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	facts, err := s.members.FactRows(ctx, m.ID)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, f := range facts {
		total = total.Add(f.TotalGWP)
	}
	return &Detail{Member: m, Breakdowns: facts, TotalGWP: total}, nil
}

// Tree returns the member's GWP rolled up into the five-level product
// hierarchy.
func (s *Service) Tree(ctx context.Context, id string) (*gwp.MemberTree, error) {
	m, err := s.members.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	facts, err := s.members.FactRows(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	return gwp.NewMemberTree(m, facts), nil
}

// Delete removes a member and, via cascade, its fact rows.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.members.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Member deleted", logging.String("member_uuid", id))
	return nil
}
