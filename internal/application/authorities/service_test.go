package authorities

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/authority"
	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/contract"
	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/extraction"
	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/gwp"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/internal/intelligence/extractor"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

type memoryAuthorityRepo struct {
	mu   sync.Mutex
	rows map[string]*authority.Authority
	gwp  map[string]*authority.GWPLink
}

func newMemoryAuthorityRepo() *memoryAuthorityRepo {
	return &memoryAuthorityRepo{
		rows: map[string]*authority.Authority{},
		gwp:  map[string]*authority.GWPLink{},
	}
}

func (r *memoryAuthorityRepo) Save(_ context.Context, a *authority.Authority) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.rows[a.ID] = &cp
	return nil
}

func (r *memoryAuthorityRepo) FindByID(_ context.Context, id string) (*authority.Authority, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeAuthorityNotFound, "authority not found: "+id)
	}
	cp := *a
	return &cp, nil
}

func (r *memoryAuthorityRepo) FindByProductExtractionID(_ context.Context, extractionID string) (*authority.Authority, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.rows {
		if a.ProductExtractionID == extractionID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, errors.New(errors.ErrCodeAuthorityNotFound, "authority not found")
}

func (r *memoryAuthorityRepo) List(_ context.Context, opts ...authority.QueryOption) ([]*authority.Authority, int64, error) {
	o := authority.ApplyOptions(opts...)
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*authority.Authority
	for _, a := range r.rows {
		if o.LOBName != "" && a.LOBName != o.LOBName {
			continue
		}
		if o.COBName != "" && a.COBName != o.COBName {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, int64(len(out)), nil
}

func (r *memoryAuthorityRepo) UpdateExtractedData(_ context.Context, id string, data authority.ExtractedData, summary *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok {
		return errors.New(errors.ErrCodeAuthorityNotFound, "authority not found: "+id)
	}
	a.ExtractedData = data
	if summary != nil {
		a.AnalysisSummary = *summary
	}
	return nil
}

func (r *memoryAuthorityRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

func (r *memoryAuthorityRepo) GWPLinkFor(_ context.Context, a *authority.Authority) (*authority.GWPLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gwp[a.GWPBreakdownID], nil
}

func (r *memoryAuthorityRepo) DistinctLOBNames(context.Context) ([]string, error) {
	return []string{"Marine", "Property"}, nil
}

func (r *memoryAuthorityRepo) DistinctCOBNames(context.Context) ([]string, error) {
	return []string{"Cargo"}, nil
}

type stubMemberRepo struct {
	member *gwp.Member
	facts  []gwp.FactRow
}

func (r *stubMemberRepo) Save(context.Context, *gwp.Member) error { return nil }

func (r *stubMemberRepo) FindByID(_ context.Context, id string) (*gwp.Member, error) {
	if r.member == nil || r.member.ID != id {
		return nil, errors.New(errors.ErrCodeMemberNotFound, "member not found: "+id)
	}
	return r.member, nil
}

func (r *stubMemberRepo) FindByMemberID(context.Context, string) (*gwp.Member, error) {
	return nil, errors.New(errors.ErrCodeMemberNotFound, "not found")
}

func (r *stubMemberRepo) List(context.Context, ...gwp.QueryOption) ([]*gwp.MemberListRow, int64, error) {
	return nil, 0, nil
}

func (r *stubMemberRepo) Delete(context.Context, string) error { return nil }

func (r *stubMemberRepo) FactRows(context.Context, string) ([]gwp.FactRow, error) {
	return r.facts, nil
}

type stubExtractionRepo struct {
	jobs map[string]*extraction.Extraction
}

func (r *stubExtractionRepo) Save(context.Context, *extraction.Extraction) error { return nil }

func (r *stubExtractionRepo) FindByID(_ context.Context, id string) (*extraction.Extraction, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeExtractionNotFound, "extraction not found: "+id)
	}
	return job, nil
}

func (r *stubExtractionRepo) FindByContract(context.Context, string) ([]*extraction.Extraction, error) {
	return nil, nil
}

func (r *stubExtractionRepo) FindLatestCompleted(context.Context, string) (*extraction.Extraction, error) {
	return nil, errors.New(errors.ErrCodeExtractionNotFound, "none")
}

func (r *stubExtractionRepo) List(context.Context, ...extraction.QueryOption) ([]*extraction.Extraction, int64, error) {
	return nil, 0, nil
}

func (r *stubExtractionRepo) Update(context.Context, *extraction.Extraction) error { return nil }
func (r *stubExtractionRepo) Delete(context.Context, string) error                 { return nil }
func (r *stubExtractionRepo) ReclaimStale(context.Context, time.Duration, int) ([]*extraction.Extraction, error) {
	return nil, nil
}

func (r *stubExtractionRepo) ClaimPending(context.Context, int) ([]*extraction.Extraction, error) {
	return nil, nil
}

type stubContractRepo struct{ c *contract.Contract }

func (r *stubContractRepo) Save(context.Context, *contract.Contract) error { return nil }

func (r *stubContractRepo) FindByID(_ context.Context, id string) (*contract.Contract, error) {
	if r.c == nil || r.c.ID != id {
		return nil, errors.New(errors.ErrCodeContractNotFound, "contract not found: "+id)
	}
	return r.c, nil
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

type stubAnalyzer struct {
	analysis    *extractor.ProductAnalysis
	err         error
	lastProduct string
	lastOpts    extractor.RunOptions
}

func (a *stubAnalyzer) AnalyzeProductLink(_ context.Context, _ map[string]interface{}, productPath string, opts extractor.RunOptions) (*extractor.ProductAnalysis, error) {
	a.lastProduct = productPath
	a.lastOpts = opts
	if a.err != nil {
		return nil, a.err
	}
	return a.analysis, nil
}

func fixture() (*Service, *memoryAuthorityRepo, *stubAnalyzer) {
	repo := newMemoryAuthorityRepo()
	lossRatio := decimal.NewFromFloat(0.6)
	repo.gwp["bd-1"] = &authority.GWPLink{
		BreakdownID: "bd-1",
		TotalGWP:    decimal.NewFromInt(1000000),
		LossRatio:   &lossRatio,
	}

	completedAt := time.Now().UTC()
	extractions := &stubExtractionRepo{jobs: map[string]*extraction.Extraction{
		"ext-1": {
			ID:         "ext-1",
			ContractID: "con-1",
			Provider:   "openai",
			ModelName:  "gpt-4o",
			Status:     extraction.StatusCompleted,
			ExtractedData: map[string]interface{}{
				"max_annual_premium": "$1,500,000",
				"territory":          "Worldwide",
			},
			CompletedAt: &completedAt,
		},
		"ext-pending": {ID: "ext-pending", Status: extraction.StatusPending},
	}}

	members := &stubMemberRepo{
		member: &gwp.Member{ID: "uuid-1", MemberID: "PTY-000001", Name: "Acme"},
		facts: []gwp.FactRow{{
			ID:             "bd-1",
			LOBName:        "Marine",
			COBName:        "Cargo",
			ProductName:    "Ocean Cargo",
			SubProductName: "Containerized",
			MPPName:        "Cargo Program",
		}},
	}

	score := 0.92
	analyzer := &stubAnalyzer{analysis: &extractor.ProductAnalysis{
		ExtractedData: map[string]interface{}{
			"max_annual_premium": map[string]interface{}{
				"value":           "$1,500,000",
				"citation":        "Section 4.2",
				"relevance_score": score,
			},
			"territory": "Worldwide",
		},
		AnalysisSummary: "Cargo terms apply in full.",
		ConfidenceScore: &score,
	}}

	contracts := &stubContractRepo{c: &contract.Contract{ID: "con-1", OriginalFilename: "marine_2026.pdf"}}
	svc := NewService(repo, members, extractions, contracts, analyzer, logging.NewNopLogger())
	return svc, repo, analyzer
}

func TestCreateRunsProductAnalysis(t *testing.T) {
	svc, repo, analyzer := fixture()

	detail, err := svc.Create(context.Background(), CreateRequest{
		ExtractionID: "ext-1",
		MemberUUID:   "uuid-1",
		BreakdownID:  "bd-1",
	})
	require.NoError(t, err)

	a := detail.Authority
	assert.Equal(t, "Marine", a.LOBName)
	assert.Equal(t, "Ocean Cargo - Containerized - Cargo Program", a.FullProductName())
	assert.Equal(t, "marine_2026.pdf", a.ContractName)
	assert.Equal(t, "Cargo terms apply in full.", a.AnalysisSummary)
	assert.Equal(t, "Ocean Cargo - Containerized - Cargo Program", analyzer.lastProduct)
	assert.Equal(t, "openai", analyzer.lastOpts.Provider, "defaults to the job's model")

	premium, ok := a.ExtractedData.DecimalField("max_annual_premium")
	require.True(t, ok)
	assert.True(t, premium.Equal(decimal.NewFromInt(1500000)))
	field, _ := a.ExtractedData.Field("max_annual_premium")
	assert.True(t, field.Annotated)
	assert.Equal(t, "Section 4.2", field.Citation)

	require.NotNil(t, detail.GWP)
	assert.True(t, detail.GWP.TotalGWP.Equal(decimal.NewFromInt(1000000)))

	stored, err := repo.FindByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, "ext-1", stored.ProductExtractionID)
}

func TestCreateRejections(t *testing.T) {
	svc, _, _ := fixture()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{})
	assert.True(t, errors.IsValidation(err))

	_, err = svc.Create(ctx, CreateRequest{ExtractionID: "ghost", MemberUUID: "uuid-1", BreakdownID: "bd-1"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeExtractionNotFound))

	_, err = svc.Create(ctx, CreateRequest{ExtractionID: "ext-pending", MemberUUID: "uuid-1", BreakdownID: "bd-1"})
	assert.True(t, errors.IsValidation(err))

	_, err = svc.Create(ctx, CreateRequest{ExtractionID: "ext-1", MemberUUID: "uuid-1", BreakdownID: "bd-other"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeGWPRowNotFound))
}

func TestCreatePropagatesAnalyzerFailure(t *testing.T) {
	svc, _, analyzer := fixture()
	analyzer.err = errors.New(errors.ErrCodeLLMResponseInvalid, "dropped fields: territory")

	_, err := svc.Create(context.Background(), CreateRequest{
		ExtractionID: "ext-1", MemberUUID: "uuid-1", BreakdownID: "bd-1",
	})
	assert.True(t, errors.IsCode(err, errors.ErrCodeLLMResponseInvalid))
}

func TestPatchField(t *testing.T) {
	svc, _, _ := fixture()
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateRequest{
		ExtractionID: "ext-1", MemberUUID: "uuid-1", BreakdownID: "bd-1",
	})
	require.NoError(t, err)
	id := created.Authority.ID

	patched, err := svc.PatchField(ctx, id, "max_annual_premium", "$2,000,000")
	require.NoError(t, err)

	field, ok := patched.Authority.ExtractedData.Field("max_annual_premium")
	require.True(t, ok)
	assert.Equal(t, "$2,000,000", field.Value)
	assert.Equal(t, "Section 4.2", field.Citation, "annotations survive the patch")

	_, err = svc.PatchField(ctx, id, "nonexistent", "x")
	assert.True(t, errors.IsCode(err, errors.ErrCodeFieldNotFound))

	_, err = svc.PatchField(ctx, id, "", "x")
	assert.True(t, errors.IsValidation(err))
}

func TestUpdateDataReplacesSnapshot(t *testing.T) {
	svc, repo, _ := fixture()
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateRequest{
		ExtractionID: "ext-1", MemberUUID: "uuid-1", BreakdownID: "bd-1",
	})
	require.NoError(t, err)
	id := created.Authority.ID

	summary := "manually corrected"
	replacement := authority.ExtractedData{
		"max_annual_premium": {Value: "$900,000"},
	}
	detail, err := svc.UpdateData(ctx, id, replacement, &summary)
	require.NoError(t, err)
	assert.Equal(t, "manually corrected", detail.Authority.AnalysisSummary)
	assert.Len(t, detail.Authority.ExtractedData, 1)

	stored, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Len(t, stored.ExtractedData, 1)

	_, err = svc.UpdateData(ctx, id, authority.ExtractedData{}, nil)
	assert.True(t, errors.IsValidation(err))
}

func TestOptionsAndDelete(t *testing.T) {
	svc, repo, _ := fixture()
	ctx := context.Background()

	opts, err := svc.Options(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Marine", "Property"}, opts.LOBNames)
	assert.Equal(t, []string{"Cargo"}, opts.COBNames)

	created, err := svc.Create(ctx, CreateRequest{
		ExtractionID: "ext-1", MemberUUID: "uuid-1", BreakdownID: "bd-1",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.Authority.ID))
	_, ok := repo.rows[created.Authority.ID]
	assert.False(t, ok)

	err = svc.Delete(ctx, "ghost")
	assert.True(t, errors.IsCode(err, errors.ErrCodeAuthorityNotFound))
}
