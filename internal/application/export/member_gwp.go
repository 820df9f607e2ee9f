package export

import (
	"context"

	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/gwp"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
)

// Sheet and column names mirror the import workbook layout exactly, so an
// exported file round-trips through the importer unchanged.
const (
	sheetMemberMaster = "Member master"
	sheetGWPBreakdown = "GWP Breakdown"
)

var memberMasterHeaders = []string{"MEMBER_ID", "MEMBER_MASTER_NAME"}

var gwpBreakdownHeaders = []string{
	"MEMBER_ID",
	"LINE_OF_BUSINESS_ID", "LINE_OF_BUSINESS_MASTER_NAME",
	"CLASS_OF_BUSINESS_ID", "CLASS_OF_BUSINESS_MASTER_NAME",
	"PRODUCT_ID", "PRODUCT_MASTER_NAME",
	"SUB_PRODUCT_ID", "SUB_PRODUCT_MASTER_NAME",
	"MEMBER_PRODUCTS_PROGRAM_ID", "MEMBER_PRODUCTS_PROGRAM_MASTER_NAME",
	"TOTAL_GWP",
}

// memberPageSize bounds each member-list page during the export walk.
const memberPageSize = 500

// MemberGWP renders the whole member star schema as an Excel workbook in the
// import layout: a member master sheet plus a flat GWP breakdown sheet.
func (s *Service) MemberGWP(ctx context.Context) (*Result, error) {
	var (
		masterRows    [][]string
		breakdownRows [][]string
	)

	offset := 0
	for {
		page, total, err := s.members.List(ctx, gwp.WithPagination(offset, memberPageSize))
		if err != nil {
			return nil, err
		}

		for _, row := range page {
			masterRows = append(masterRows, []string{row.MemberID, row.Name})

			detail, err := s.members.Get(ctx, row.ID)
			if err != nil {
				return nil, err
			}
			for _, fact := range detail.Breakdowns {
				breakdownRows = append(breakdownRows, []string{
					row.MemberID,
					fact.LOBCode, fact.LOBName,
					fact.COBCode, fact.COBName,
					fact.ProductCode, fact.ProductName,
					fact.SubProductCode, fact.SubProductName,
					fact.MPPCode, fact.MPPName,
					money(fact.TotalGWP),
				})
			}
		}

		offset += len(page)
		if len(page) == 0 || int64(offset) >= total {
			break
		}
	}

	w := newWorkbook()
	if err := w.addSheet(sheetMemberMaster, [][]string{memberMasterHeaders}, masterRows); err != nil {
		return nil, err
	}
	if err := w.addSheet(sheetGWPBreakdown, [][]string{gwpBreakdownHeaders}, breakdownRows); err != nil {
		return nil, err
	}

	data, err := w.bytes()
	if err != nil {
		return nil, err
	}

	s.logger.Info("Member GWP exported",
		logging.Int("members", len(masterRows)),
		logging.Int("gwp_rows", len(breakdownRows)),
	)
	return &Result{
		Filename:    "member_gwp_" + s.now().UTC().Format("20060102") + ".xlsx",
		ContentType: contentTypeXLSX,
		Data:        data,
	}, nil
}
