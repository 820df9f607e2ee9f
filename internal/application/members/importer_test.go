package members

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/gwp"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

type memoryMemberRepo struct {
	mu     sync.Mutex
	byUUID map[string]*gwp.Member
	byKey  map[string]*gwp.Member
	facts  map[string][]gwp.FactRow
}

func newMemoryMemberRepo() *memoryMemberRepo {
	return &memoryMemberRepo{
		byUUID: map[string]*gwp.Member{},
		byKey:  map[string]*gwp.Member{},
		facts:  map[string][]gwp.FactRow{},
	}
}

func (r *memoryMemberRepo) Save(_ context.Context, m *gwp.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	cp := *m
	r.byUUID[m.ID] = &cp
	r.byKey[m.MemberID] = &cp
	return nil
}

func (r *memoryMemberRepo) FindByID(_ context.Context, id string) (*gwp.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byUUID[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeMemberNotFound, "member not found: "+id)
	}
	cp := *m
	return &cp, nil
}

func (r *memoryMemberRepo) FindByMemberID(_ context.Context, memberID string) (*gwp.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byKey[memberID]
	if !ok {
		return nil, errors.New(errors.ErrCodeMemberNotFound, "member not found: "+memberID)
	}
	cp := *m
	return &cp, nil
}

func (r *memoryMemberRepo) List(context.Context, ...gwp.QueryOption) ([]*gwp.MemberListRow, int64, error) {
	return nil, 0, nil
}

func (r *memoryMemberRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byUUID[id]
	if !ok {
		return errors.New(errors.ErrCodeMemberNotFound, "member not found: "+id)
	}
	delete(r.byKey, m.MemberID)
	delete(r.byUUID, id)
	return nil
}

func (r *memoryMemberRepo) FactRows(_ context.Context, memberUUID string) ([]gwp.FactRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.facts[memberUUID], nil
}

type memoryDimensionRepo struct {
	mu   sync.Mutex
	rows map[string]string // dimension+code -> uuid
}

func newMemoryDimensionRepo() *memoryDimensionRepo {
	return &memoryDimensionRepo{rows: map[string]string{}}
}

func (r *memoryDimensionRepo) GetOrCreate(_ context.Context, dim gwp.Dimension, code, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := string(dim) + ":" + code
	if id, ok := r.rows[key]; ok {
		return id, nil
	}
	id := uuid.NewString()
	r.rows[key] = id
	return id, nil
}

type memoryBreakdownRepo struct {
	mu   sync.Mutex
	rows map[string]*gwp.Breakdown // 6-tuple key
}

func newMemoryBreakdownRepo() *memoryBreakdownRepo {
	return &memoryBreakdownRepo{rows: map[string]*gwp.Breakdown{}}
}

func breakdownKey(b *gwp.Breakdown) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		b.MemberUUID, b.LOBUUID, b.COBUUID, b.ProductUUID, b.SubProdUUID, b.MPPUUID)
}

func (r *memoryBreakdownRepo) Upsert(_ context.Context, b *gwp.Breakdown) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := breakdownKey(b)
	if existing, ok := r.rows[key]; ok {
		existing.TotalGWP = b.TotalGWP
		b.ID = existing.ID
		return false, nil
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	cp := *b
	r.rows[key] = &cp
	return true, nil
}

func (r *memoryBreakdownRepo) FindByID(_ context.Context, id string) (*gwp.Breakdown, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.rows {
		if b.ID == id {
			cp := *b
			return &cp, nil
		}
	}
	return nil, errors.New(errors.ErrCodeGWPRowNotFound, "gwp breakdown not found: "+id)
}

func (r *memoryBreakdownRepo) FindByMember(_ context.Context, memberUUID string) ([]*gwp.Breakdown, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*gwp.Breakdown
	for _, b := range r.rows {
		if b.MemberUUID == memberUUID {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func buildWorkbook(t *testing.T, memberRows [][]interface{}, gwpRows [][]interface{}) *bytes.Reader {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	_, err := f.NewSheet(SheetMemberMaster)
	require.NoError(t, err)
	header := []interface{}{colMemberID, colMemberName}
	require.NoError(t, f.SetSheetRow(SheetMemberMaster, "A1", &header))
	for i, row := range memberRows {
		require.NoError(t, f.SetSheetRow(SheetMemberMaster, fmt.Sprintf("A%d", i+2), &row))
	}

	_, err = f.NewSheet(SheetGWPBreakdown)
	require.NoError(t, err)
	gwpHeader := []interface{}{
		colMemberID, colLOBID, colLOBName, colCOBID, colCOBName,
		colProdID, colProdName, colSubID, colSubName, colMPPID, colMPPName, colTotalGWP,
	}
	require.NoError(t, f.SetSheetRow(SheetGWPBreakdown, "A1", &gwpHeader))
	for i, row := range gwpRows {
		require.NoError(t, f.SetSheetRow(SheetGWPBreakdown, fmt.Sprintf("A%d", i+2), &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return bytes.NewReader(buf.Bytes())
}

func gwpRow(memberID, lob, cob, product, sub, mpp string, total interface{}) []interface{} {
	return []interface{}{
		memberID,
		lob, lob + " Name", cob, cob + " Name",
		product, product + " Name", sub, sub + " Name", mpp, mpp + " Name",
		total,
	}
}

func newImportService() (*Service, *memoryMemberRepo, *memoryBreakdownRepo) {
	memberRepo := newMemoryMemberRepo()
	breakdownRepo := newMemoryBreakdownRepo()
	svc := NewService(memberRepo, newMemoryDimensionRepo(), breakdownRepo, logging.NewNopLogger())
	return svc, memberRepo, breakdownRepo
}

func TestImportExcel(t *testing.T) {
	svc, memberRepo, breakdownRepo := newImportService()

	wb := buildWorkbook(t,
		[][]interface{}{
			{"PTY-000001", "Acme MGA"},
			{"PTY-000002", "Beta Underwriters"},
		},
		[][]interface{}{
			gwpRow("PTY-000001", "LOB-1", "COB-1", "PRO-1", "SUP-1", "MPP-1", 1500000.50),
			gwpRow("PTY-000001", "LOB-1", "COB-1", "PRO-1", "SUP-1", "MPP-2", 250000),
			gwpRow("PTY-000002", "LOB-2", "COB-2", "PRO-2", "SUP-2", "MPP-3", ""),
			gwpRow("PTY-999999", "LOB-1", "COB-1", "PRO-1", "SUP-1", "MPP-1", 100),
		},
	)

	stats, err := svc.ImportExcel(context.Background(), wb)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.MembersImported)
	assert.Equal(t, 3, stats.GWPRowsImported)
	assert.Equal(t, 1, stats.RowsSkipped, "row for unknown member skipped")
	assert.Equal(t, 2, stats.DimensionCounts["line_of_business"])
	assert.Equal(t, 3, stats.DimensionCounts["member_product_programs"])
	assert.Contains(t, stats.Message, "2 members")

	acme, err := memberRepo.FindByMemberID(context.Background(), "PTY-000001")
	require.NoError(t, err)
	rows, err := breakdownRepo.FindByMember(context.Background(), acme.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	// Blank TOTAL_GWP imports as zero.
	beta, err := memberRepo.FindByMemberID(context.Background(), "PTY-000002")
	require.NoError(t, err)
	betaRows, err := breakdownRepo.FindByMember(context.Background(), beta.ID)
	require.NoError(t, err)
	require.Len(t, betaRows, 1)
	assert.True(t, betaRows[0].TotalGWP.IsZero())
}

func TestImportExcelIdempotent(t *testing.T) {
	svc, _, _ := newImportService()

	build := func() *bytes.Reader {
		return buildWorkbook(t,
			[][]interface{}{{"PTY-000001", "Acme MGA"}},
			[][]interface{}{gwpRow("PTY-000001", "LOB-1", "COB-1", "PRO-1", "SUP-1", "MPP-1", 100)},
		)
	}

	first, err := svc.ImportExcel(context.Background(), build())
	require.NoError(t, err)
	assert.Equal(t, 1, first.MembersImported)
	assert.Equal(t, 1, first.GWPRowsImported)

	second, err := svc.ImportExcel(context.Background(), build())
	require.NoError(t, err)
	assert.Equal(t, 0, second.MembersImported, "existing member reused")
	assert.Equal(t, 0, second.GWPRowsImported, "existing fact updated, not created")
}

func TestImportExcelMissingSheet(t *testing.T) {
	svc, _, _ := newImportService()

	f := excelize.NewFile()
	defer f.Close()
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	_, err := svc.ImportExcel(context.Background(), bytes.NewReader(buf.Bytes()))
	assert.True(t, errors.IsCode(err, errors.ErrCodeImportSheetMissing))
}

func TestImportExcelMissingColumn(t *testing.T) {
	svc, _, _ := newImportService()

	f := excelize.NewFile()
	defer f.Close()
	_, err := f.NewSheet(SheetMemberMaster)
	require.NoError(t, err)
	header := []interface{}{colMemberID} // name column missing
	require.NoError(t, f.SetSheetRow(SheetMemberMaster, "A1", &header))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	_, err = svc.ImportExcel(context.Background(), bytes.NewReader(buf.Bytes()))
	assert.True(t, errors.IsCode(err, errors.ErrCodeImportRowInvalid))
}

func TestImportExcelRejectsGarbage(t *testing.T) {
	svc, _, _ := newImportService()
	_, err := svc.ImportExcel(context.Background(), bytes.NewReader([]byte("not a workbook")))
	assert.True(t, errors.IsValidation(err))
}

func TestTreeAndDetail(t *testing.T) {
	svc, memberRepo, _ := newImportService()

	m := &gwp.Member{MemberID: "PTY-000001", Name: "Acme MGA"}
	require.NoError(t, memberRepo.Save(context.Background(), m))
	memberRepo.facts[m.ID] = []gwp.FactRow{
		{
			ID:      "b-1",
			LOBCode: "LOB-1", LOBName: "Property",
			COBCode: "COB-1", COBName: "Commercial",
			ProductCode: "PRO-1", ProductName: "All Risk",
			SubProductCode: "SUP-1", SubProductName: "Standard",
			MPPCode: "MPP-1", MPPName: "Program A",
			TotalGWP: decimal.NewFromInt(100),
		},
		{
			ID:      "b-2",
			LOBCode: "LOB-1", LOBName: "Property",
			COBCode: "COB-1", COBName: "Commercial",
			ProductCode: "PRO-1", ProductName: "All Risk",
			SubProductCode: "SUP-1", SubProductName: "Standard",
			MPPCode: "MPP-2", MPPName: "Program B",
			TotalGWP: decimal.NewFromInt(50),
		},
	}

	tree, err := svc.Tree(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, "PTY-000001", tree.MemberID)
	assert.True(t, tree.TotalGWP.Equal(decimal.NewFromInt(150)))
	require.Len(t, tree.Tree, 1)
	assert.True(t, tree.Tree[0].TotalGWP.Equal(decimal.NewFromInt(150)))

	detail, err := svc.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Breakdowns, 2)
	assert.True(t, detail.TotalGWP.Equal(decimal.NewFromInt(150)))

	_, err = svc.Tree(context.Background(), "ghost")
	assert.True(t, errors.IsCode(err, errors.ErrCodeMemberNotFound))
}
