package members

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/gwp"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

// Workbook sheet names the importer expects.
const (
	SheetMemberMaster = "Member master"
	SheetGWPBreakdown = "GWP Breakdown"
)

// Member-master column headers.
const (
	colMemberID   = "MEMBER_ID"
	colMemberName = "MEMBER_MASTER_NAME"
)

// GWP-breakdown column headers, one (id, name) pair per dimension.
const (
	colLOBID    = "LINE_OF_BUSINESS_ID"
	colLOBName  = "LINE_OF_BUSINESS_MASTER_NAME"
	colCOBID    = "CLASS_OF_BUSINESS_ID"
	colCOBName  = "CLASS_OF_BUSINESS_MASTER_NAME"
	colProdID   = "PRODUCT_ID"
	colProdName = "PRODUCT_MASTER_NAME"
	colSubID    = "SUB_PRODUCT_ID"
	colSubName  = "SUB_PRODUCT_MASTER_NAME"
	colMPPID    = "MEMBER_PRODUCTS_PROGRAM_ID"
	colMPPName  = "MEMBER_PRODUCTS_PROGRAM_MASTER_NAME"
	colTotalGWP = "TOTAL_GWP"
)

// ImportStats summarizes one Excel import run.
type ImportStats struct {
	MembersImported int            `json:"members_imported"`
	GWPRowsImported int            `json:"gwp_rows_imported"`
	RowsSkipped     int            `json:"rows_skipped"`
	DimensionCounts map[string]int `json:"dimension_counts"`
	Message         string         `json:"message"`
}

// ImportExcel loads a member/GWP workbook.  Members already present are
// reused without touching their names; breakdown rows upsert on the
// dimension 6-tuple, so re-importing the same workbook is idempotent.
func (s *Service) ImportExcel(ctx context.Context, r io.Reader) (*ImportStats, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "failed to open workbook")
	}
	defer f.Close()

	memberUUIDs, membersImported, err := s.importMembers(ctx, f)
	if err != nil {
		return nil, err
	}

	stats, err := s.importBreakdowns(ctx, f, memberUUIDs)
	if err != nil {
		return nil, err
	}
	stats.MembersImported = membersImported
	stats.Message = fmt.Sprintf("Import completed: %d members, %d GWP rows",
		stats.MembersImported, stats.GWPRowsImported)

	s.logger.Info("Excel import completed",
		logging.Int("members_imported", stats.MembersImported),
		logging.Int("gwp_rows_imported", stats.GWPRowsImported),
		logging.Int("rows_skipped", stats.RowsSkipped),
	)
	return stats, nil
}

// importMembers reads the member master sheet and returns the business-key to
// UUID map for the breakdown pass.
func (s *Service) importMembers(ctx context.Context, f *excelize.File) (map[string]string, int, error) {
	rows, err := sheetRows(f, SheetMemberMaster)
	if err != nil {
		return nil, 0, err
	}
	header, err := headerIndex(rows, SheetMemberMaster, colMemberID, colMemberName)
	if err != nil {
		return nil, 0, err
	}

	uuids := make(map[string]string)
	imported := 0
	for i, row := range rows[1:] {
		memberID := cell(row, header[colMemberID])
		name := cell(row, header[colMemberName])
		if memberID == "" {
			continue
		}
		if name == "" {
			return nil, 0, errors.Newf(errors.ErrCodeImportRowInvalid,
				"sheet %q row %d: %s is empty", SheetMemberMaster, i+2, colMemberName)
		}

		existing, err := s.members.FindByMemberID(ctx, memberID)
		switch {
		case err == nil:
			uuids[memberID] = existing.ID
		case errors.IsNotFound(err):
			m := &gwp.Member{MemberID: memberID, Name: name}
			if err := s.members.Save(ctx, m); err != nil {
				return nil, 0, err
			}
			uuids[memberID] = m.ID
			imported++
		default:
			return nil, 0, err
		}
	}
	return uuids, imported, nil
}

func (s *Service) importBreakdowns(ctx context.Context, f *excelize.File, memberUUIDs map[string]string) (*ImportStats, error) {
	rows, err := sheetRows(f, SheetGWPBreakdown)
	if err != nil {
		return nil, err
	}
	header, err := headerIndex(rows, SheetGWPBreakdown,
		colMemberID, colLOBID, colLOBName, colCOBID, colCOBName,
		colProdID, colProdName, colSubID, colSubName, colMPPID, colMPPName, colTotalGWP)
	if err != nil {
		return nil, err
	}

	seen := map[gwp.Dimension]map[string]bool{
		gwp.DimensionLOB:        {},
		gwp.DimensionCOB:        {},
		gwp.DimensionProduct:    {},
		gwp.DimensionSubProduct: {},
		gwp.DimensionMPP:        {},
	}
	stats := &ImportStats{DimensionCounts: map[string]int{}}

	for i, row := range rows[1:] {
		memberID := cell(row, header[colMemberID])
		if memberID == "" {
			continue
		}
		memberUUID, ok := memberUUIDs[memberID]
		if !ok {
			// A breakdown row for a member absent from the master sheet is
			// skipped, matching the source behavior.
			stats.RowsSkipped++
			continue
		}

		dims := [5]struct {
			dim  gwp.Dimension
			code string
			name string
		}{
			{gwp.DimensionLOB, cell(row, header[colLOBID]), cell(row, header[colLOBName])},
			{gwp.DimensionCOB, cell(row, header[colCOBID]), cell(row, header[colCOBName])},
			{gwp.DimensionProduct, cell(row, header[colProdID]), cell(row, header[colProdName])},
			{gwp.DimensionSubProduct, cell(row, header[colSubID]), cell(row, header[colSubName])},
			{gwp.DimensionMPP, cell(row, header[colMPPID]), cell(row, header[colMPPName])},
		}

		var uuids [5]string
		for j, d := range dims {
			if d.code == "" {
				return nil, errors.Newf(errors.ErrCodeImportRowInvalid,
					"sheet %q row %d: %s is empty", SheetGWPBreakdown, i+2, string(d.dim))
			}
			id, err := s.dimensions.GetOrCreate(ctx, d.dim, d.code, d.name)
			if err != nil {
				return nil, err
			}
			uuids[j] = id
			seen[d.dim][d.code] = true
		}

		totalGWP, err := parseGWP(cell(row, header[colTotalGWP]))
		if err != nil {
			return nil, errors.Newf(errors.ErrCodeImportRowInvalid,
				"sheet %q row %d: unparseable %s", SheetGWPBreakdown, i+2, colTotalGWP)
		}

		created, err := s.breakdowns.Upsert(ctx, &gwp.Breakdown{
			MemberUUID:  memberUUID,
			LOBUUID:     uuids[0],
			COBUUID:     uuids[1],
			ProductUUID: uuids[2],
			SubProdUUID: uuids[3],
			MPPUUID:     uuids[4],
			TotalGWP:    totalGWP,
		})
		if err != nil {
			return nil, err
		}
		if created {
			stats.GWPRowsImported++
		}
	}

	stats.DimensionCounts["line_of_business"] = len(seen[gwp.DimensionLOB])
	stats.DimensionCounts["class_of_business"] = len(seen[gwp.DimensionCOB])
	stats.DimensionCounts["products"] = len(seen[gwp.DimensionProduct])
	stats.DimensionCounts["sub_products"] = len(seen[gwp.DimensionSubProduct])
	stats.DimensionCounts["member_product_programs"] = len(seen[gwp.DimensionMPP])
	return stats, nil
}

func sheetRows(f *excelize.File, sheet string) ([][]string, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.New(errors.ErrCodeImportSheetMissing, "worksheet not found: "+sheet)
	}
	if len(rows) == 0 {
		return nil, errors.New(errors.ErrCodeImportSheetMissing, "worksheet is empty: "+sheet)
	}
	return rows, nil
}

// headerIndex maps required column headers to their positions in the first
// row.
func headerIndex(rows [][]string, sheet string, required ...string) (map[string]int, error) {
	index := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		index[strings.TrimSpace(name)] = i
	}
	for _, name := range required {
		if _, ok := index[name]; !ok {
			return nil, errors.Newf(errors.ErrCodeImportRowInvalid,
				"sheet %q is missing column %s", sheet, name)
		}
	}
	return index, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseGWP treats blank cells as zero, matching the source importer.
func parseGWP(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	cleaned := strings.NewReplacer(",", "", "$", "").Replace(raw)
	return decimal.NewFromString(cleaned)
}
