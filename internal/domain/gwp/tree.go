package gwp

import (
	"github.com/shopspring/decimal"
)

// Level identifies one of the five fixed hierarchy levels.  The hierarchy
// depth never varies; there is no generalized N-level support.
type Level string

const (
	LevelLOB        Level = "lob"
	LevelCOB        Level = "cob"
	LevelProduct    Level = "product"
	LevelSubProduct Level = "sub_product"
	LevelMPP        Level = "mpp"
)

// TreeNode is one node of the rolled-up GWP hierarchy.  TotalGWP at every
// non-leaf node equals the sum of its children; BreakdownIDs is populated
// only at the mpp leaf level, listing the originating fact rows in encounter
// order.
type TreeNode struct {
	ID           string          `json:"id"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Level        Level           `json:"level"`
	TotalGWP     decimal.Decimal `json:"total_gwp"`
	Children     []*TreeNode     `json:"children"`
	BreakdownIDs []string        `json:"gwp_breakdown_ids,omitempty"`
}

// pathKey separates level codes inside the node index; it cannot occur in a
// dimension code.
const pathKey = "\x00"

// BuildTree folds flat fact rows into the five-level LOB > COB > Product >
// SubProduct > MPP forest and returns it with the grand total.
//
// Nodes are keyed by dimension code; when two rows carry the same code with
// different names, the first-seen name is retained deterministically.  Each
// fact row's premium is accumulated into all five of its ancestor nodes in a
// single pass, so every row is counted exactly once at every level.  Sibling
// order is first-encountered insertion order, stable across repeated calls
// with the same input.  Empty input yields (nil, 0).
func BuildTree(facts []FactRow) ([]*TreeNode, decimal.Decimal) {
	total := decimal.Zero
	var roots []*TreeNode
	index := make(map[string]*TreeNode)

	for _, f := range facts {
		total = total.Add(f.TotalGWP)

		levels := [5]struct {
			code  string
			name  string
			level Level
		}{
			{f.LOBCode, f.LOBName, LevelLOB},
			{f.COBCode, f.COBName, LevelCOB},
			{f.ProductCode, f.ProductName, LevelProduct},
			{f.SubProductCode, f.SubProductName, LevelSubProduct},
			{f.MPPCode, f.MPPName, LevelMPP},
		}

		path := ""
		var parent *TreeNode
		for i, lv := range levels {
			path += pathKey + lv.code
			node, ok := index[path]
			if !ok {
				node = &TreeNode{
					ID:       lv.code,
					Code:     lv.code,
					Name:     lv.name,
					Level:    lv.level,
					TotalGWP: decimal.Zero,
					Children: []*TreeNode{},
				}
				index[path] = node
				if parent == nil {
					roots = append(roots, node)
				} else {
					parent.Children = append(parent.Children, node)
				}
			}
			node.TotalGWP = node.TotalGWP.Add(f.TotalGWP)
			if i == len(levels)-1 {
				node.BreakdownIDs = append(node.BreakdownIDs, f.ID)
			}
			parent = node
		}
	}

	return roots, total
}

// MemberTree is the member-scoped tree response: the forest plus the member
// identity and grand total.
type MemberTree struct {
	MemberID   string          `json:"member_id"`
	MemberName string          `json:"member_name"`
	TotalGWP   decimal.Decimal `json:"total_gwp"`
	Tree       []*TreeNode     `json:"tree"`
}

// NewMemberTree builds the member-scoped response from the member's fact rows.
// A member with no facts gets an empty (non-nil) tree.
func NewMemberTree(m *Member, facts []FactRow) *MemberTree {
	roots, total := BuildTree(facts)
	if roots == nil {
		roots = []*TreeNode{}
	}
	return &MemberTree{
		MemberID:   m.MemberID,
		MemberName: m.Name,
		TotalGWP:   total,
		Tree:       roots,
	}
}
