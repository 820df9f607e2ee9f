// Package authority defines the authority aggregate: the editable snapshot of
// contract fields extracted for one member / product-combination / contract
// link.  Authorities are what portfolio items point at; their extracted data
// feeds the allocation aggregator.
package authority

import (
	"time"

	"github.com/shopspring/decimal"
)

// Authority is one editable extraction snapshot.  Dimension names are
// denormalized from the GWP fact row the authority was created from so that
// product listings never need a five-way join.
type Authority struct {
	ID                  string        `json:"id"`
	ProductExtractionID string        `json:"product_extraction_id,omitempty"`
	MemberID            string        `json:"member_id"`
	GWPBreakdownID      string        `json:"gwp_breakdown_id,omitempty"`
	ContractID          string        `json:"contract_id,omitempty"`
	ContractName        string        `json:"contract_name"`
	LOBName             string        `json:"lob_name"`
	COBName             string        `json:"cob_name"`
	ProductName         string        `json:"product_name"`
	SubProductName      string        `json:"sub_product_name"`
	MPPName             string        `json:"mpp_name"`
	ExtractedData       ExtractedData `json:"extracted_data"`
	AnalysisSummary     string        `json:"analysis_summary,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// FieldCount returns the number of extracted fields on the snapshot.
func (a *Authority) FieldCount() int {
	return len(a.ExtractedData)
}

// FullProductName joins the product hierarchy names that are set, in order,
// with " - ".  Falls back to "Unknown Product" when none are set.
func (a *Authority) FullProductName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.ProductName, a.SubProductName, a.MPPName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "Unknown Product"
	}
	name := parts[0]
	for _, p := range parts[1:] {
		name += " - " + p
	}
	return name
}

// GWPLink carries the premium figures from the GWP fact row an authority is
// linked to.  Nil pointers mean the figure is unknown, not zero.
type GWPLink struct {
	BreakdownID string           `json:"breakdown_id"`
	TotalGWP    decimal.Decimal  `json:"total_gwp"`
	LossRatio   *decimal.Decimal `json:"loss_ratio,omitempty"`
}
