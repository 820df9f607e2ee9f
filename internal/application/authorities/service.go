// Package authorities manages authority snapshots: the editable extracted
// field sets linking one member, one product combination, and one contract.
// Creation runs the product analysis prompt over a completed extraction so
// each snapshot carries per-product citations and relevance scores.
package authorities

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/authority"
	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/contract"
	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/extraction"
	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/gwp"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/internal/intelligence/extractor"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

// AnalysisEngine is the engine surface the service needs; satisfied by
// *extractor.Engine.
type AnalysisEngine interface {
	AnalyzeProductLink(ctx context.Context, fields map[string]interface{}, productPath string, opts extractor.RunOptions) (*extractor.ProductAnalysis, error)
}

// CreateRequest links a completed extraction to one member GWP fact row and
// asks for a product-scoped authority snapshot.
type CreateRequest struct {
	ExtractionID string `json:"extraction_id"`
	MemberUUID   string `json:"member_uuid"`
	BreakdownID  string `json:"gwp_breakdown_id"`

	// Provider and ModelName default to the extraction job's own model.
	Provider  string `json:"model_provider,omitempty"`
	ModelName string `json:"model_name,omitempty"`
}

// Detail is one authority joined with its GWP premium figures.
type Detail struct {
	Authority *authority.Authority `json:"authority"`
	GWP       *authority.GWPLink   `json:"gwp,omitempty"`
}

// FilterOptions carries the distinct dimension names the product list screen
// filters on.
type FilterOptions struct {
	LOBNames []string `json:"lob_names"`
	COBNames []string `json:"cob_names"`
}

// Service is the authority application service.
type Service struct {
	authorities authority.Repository
	members     gwp.MemberRepository
	extractions extraction.Repository
	contracts   contract.Repository
	engine      AnalysisEngine
	logger      logging.Logger
	now         func() time.Time
}

// NewService builds the authority service.
func NewService(
	authorities authority.Repository,
	members gwp.MemberRepository,
	extractions extraction.Repository,
	contracts contract.Repository,
	engine AnalysisEngine,
	log logging.Logger,
) *Service {
	return &Service{
		authorities: authorities,
		members:     members,
		extractions: extractions,
		contracts:   contracts,
		engine:      engine,
		logger:      log,
		now:         time.Now,
	}
}

// Create runs the product analysis over a completed extraction and stores the
// resulting snapshot with dimension names denormalized from the fact row.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Detail, error) {
	if req.ExtractionID == "" || req.MemberUUID == "" || req.BreakdownID == "" {
		return nil, errors.NewValidationError("extraction_id, member_uuid, and gwp_breakdown_id are required")
	}

	job, err := s.extractions.FindByID(ctx, req.ExtractionID)
	if err != nil {
		return nil, err
	}
	if job.Status != extraction.StatusCompleted || len(job.ExtractedData) == 0 {
		return nil, errors.New(errors.ErrCodeValidation,
			"extraction "+job.ID+" has no completed results to analyze")
	}

	member, err := s.members.FindByID(ctx, req.MemberUUID)
	if err != nil {
		return nil, err
	}
	fact, err := s.factRow(ctx, member.ID, req.BreakdownID)
	if err != nil {
		return nil, err
	}

	contractName := ""
	c, err := s.contracts.FindByID(ctx, job.ContractID)
	if err == nil {
		contractName = c.OriginalFilename
	} else if !errors.IsNotFound(err) {
		return nil, err
	}

	a := &authority.Authority{
		ID:                  uuid.NewString(),
		ProductExtractionID: job.ID,
		MemberID:            member.ID,
		GWPBreakdownID:      fact.ID,
		ContractID:          job.ContractID,
		ContractName:        contractName,
		LOBName:             fact.LOBName,
		COBName:             fact.COBName,
		ProductName:         fact.ProductName,
		SubProductName:      fact.SubProductName,
		MPPName:             fact.MPPName,
	}

	opts := extractor.RunOptions{Provider: job.Provider, Model: job.ModelName}
	if req.Provider != "" {
		opts.Provider = req.Provider
	}
	if req.ModelName != "" {
		opts.Model = req.ModelName
	}

	analysis, err := s.engine.AnalyzeProductLink(ctx, job.ExtractedData, a.FullProductName(), opts)
	if err != nil {
		return nil, err
	}
	data, err := toExtractedData(analysis.ExtractedData)
	if err != nil {
		return nil, err
	}
	a.ExtractedData = data
	a.AnalysisSummary = analysis.AnalysisSummary

	now := s.now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if err := s.authorities.Save(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info("Authority created",
		logging.String("authority_id", a.ID),
		logging.String("extraction_id", job.ID),
		logging.String("product", a.FullProductName()),
		logging.Int("fields", a.FieldCount()),
	)
	return s.detail(ctx, a)
}

// Get returns one authority with its GWP link.
func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	a, err := s.authorities.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, a)
}

// List returns the product listing used for portfolio selection.
func (s *Service) List(ctx context.Context, opts ...authority.QueryOption) ([]*authority.Authority, int64, error) {
	return s.authorities.List(ctx, opts...)
}

// Options returns the distinct LOB and COB names available as list filters.
func (s *Service) Options(ctx context.Context) (*FilterOptions, error) {
	lobs, err := s.authorities.DistinctLOBNames(ctx)
	if err != nil {
		return nil, err
	}
	cobs, err := s.authorities.DistinctCOBNames(ctx)
	if err != nil {
		return nil, err
	}
	return &FilterOptions{LOBNames: lobs, COBNames: cobs}, nil
}

// UpdateData replaces the whole extracted field map and, when summary is
// non-nil, the analysis summary.
func (s *Service) UpdateData(ctx context.Context, id string, data authority.ExtractedData, summary *string) (*Detail, error) {
	if len(data) == 0 {
		return nil, errors.NewValidationError("extracted_data must not be empty")
	}
	a, err := s.authorities.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorities.UpdateExtractedData(ctx, a.ID, data, summary); err != nil {
		return nil, err
	}

	a.ExtractedData = data
	if summary != nil {
		a.AnalysisSummary = *summary
	}
	s.logger.Info("Authority data replaced",
		logging.String("authority_id", a.ID),
		logging.Int("fields", len(data)),
	)
	return s.detail(ctx, a)
}

// PatchField updates the value of one existing field, keeping its citation
// and score annotations intact.
func (s *Service) PatchField(ctx context.Context, id, fieldName string, value interface{}) (*Detail, error) {
	if fieldName == "" {
		return nil, errors.NewValidationError("field name is required")
	}
	a, err := s.authorities.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	field, ok := a.ExtractedData.Field(fieldName)
	if !ok {
		return nil, errors.New(errors.ErrCodeFieldNotFound,
			"field "+fieldName+" not present on authority "+id)
	}

	field.Value = value
	a.ExtractedData[fieldName] = field
	if err := s.authorities.UpdateExtractedData(ctx, a.ID, a.ExtractedData, nil); err != nil {
		return nil, err
	}

	s.logger.Info("Authority field patched",
		logging.String("authority_id", a.ID),
		logging.String("field", fieldName),
	)
	return s.detail(ctx, a)
}

// Delete removes an authority snapshot.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.authorities.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.authorities.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Authority deleted", logging.String("authority_id", id))
	return nil
}

func (s *Service) detail(ctx context.Context, a *authority.Authority) (*Detail, error) {
	link, err := s.authorities.GWPLinkFor(ctx, a)
	if err != nil {
		return nil, err
	}
	return &Detail{Authority: a, GWP: link}, nil
}

// factRow finds the member's denormalized fact row for one breakdown id.
func (s *Service) factRow(ctx context.Context, memberUUID, breakdownID string) (*gwp.FactRow, error) {
	facts, err := s.members.FactRows(ctx, memberUUID)
	if err != nil {
		return nil, err
	}
	for i := range facts {
		if facts[i].ID == breakdownID {
			return &facts[i], nil
		}
	}
	return nil, errors.New(errors.ErrCodeGWPRowNotFound,
		"breakdown "+breakdownID+" does not belong to member "+memberUUID)
}

// toExtractedData converts the engine's raw field map into the typed snapshot
// form, preserving scalar-or-annotated shapes.
func toExtractedData(raw map[string]interface{}) (authority.ExtractedData, error) {
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode analyzed fields")
	}
	var data authority.ExtractedData
	if err := json.Unmarshal(buf, &data); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode analyzed fields")
	}
	return data, nil
}
