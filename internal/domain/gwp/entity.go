// Package gwp defines the member / premium star schema and the dimensional
// tree builder that rolls flat GWP fact rows up into the five-level product
// hierarchy.
package gwp

import (
	"time"

	"github.com/shopspring/decimal"
)

// Member is an insurance member; the owning side of the GWP fact table.
type Member struct {
	ID        string    `json:"id"`
	MemberID  string    `json:"member_id"` // business key, PTY-XXXXXX
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Dimension names the five product-hierarchy dimensions.
type Dimension string

const (
	DimensionLOB        Dimension = "line_of_business"
	DimensionCOB        Dimension = "class_of_business"
	DimensionProduct    Dimension = "product"
	DimensionSubProduct Dimension = "sub_product"
	DimensionMPP        Dimension = "member_product_program"
)

// DimensionValue is one row of a dimension table: a business code plus a
// display name.
type DimensionValue struct {
	ID   string `json:"id"`
	Code string `json:"code"` // LOB-XXXXXX, COB-XXXXXX, PRO-XXXXXX, SUP-XXXXXX, MPP-XXXXXX
	Name string `json:"name"`
}

// Breakdown is one persisted GWP fact row keyed by the 6-tuple of member plus
// the five dimension UUIDs.  LossRatio is nullable; nil means unknown.
type Breakdown struct {
	ID          string           `json:"id"`
	MemberUUID  string           `json:"member_uuid"`
	LOBUUID     string           `json:"lob_uuid"`
	COBUUID     string           `json:"cob_uuid"`
	ProductUUID string           `json:"product_uuid"`
	SubProdUUID string           `json:"sub_product_uuid"`
	MPPUUID     string           `json:"mpp_uuid"`
	TotalGWP    decimal.Decimal  `json:"total_gwp"`
	LossRatio   *decimal.Decimal `json:"loss_ratio,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// FactRow is one denormalized GWP fact: the breakdown row joined with the
// codes and names of all five dimensions.  This is the tree builder's input.
type FactRow struct {
	ID string `json:"id"`

	LOBCode        string `json:"lob_code"`
	LOBName        string `json:"lob_name"`
	COBCode        string `json:"cob_code"`
	COBName        string `json:"cob_name"`
	ProductCode    string `json:"product_code"`
	ProductName    string `json:"product_name"`
	SubProductCode string `json:"sub_product_code"`
	SubProductName string `json:"sub_product_name"`
	MPPCode        string `json:"mpp_code"`
	MPPName        string `json:"mpp_name"`

	TotalGWP  decimal.Decimal  `json:"total_gwp"`
	LossRatio *decimal.Decimal `json:"loss_ratio,omitempty"`
}
