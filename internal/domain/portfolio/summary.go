package portfolio

import (
	"github.com/shopspring/decimal"
)

// Extracted-data field names the aggregator reads from authority snapshots.
const (
	FieldMaxAnnualPremium     = "max_annual_premium"
	FieldMaxLimitsOfLiability = "max_limits_of_liability"
)

var hundred = decimal.NewFromInt(100)

// Summary holds the aggregate metrics of one portfolio.  Pointer fields are
// nil when no item carried usable input for that metric; zero would be a
// misleading substitute for "unknown".
type Summary struct {
	// TotalPremium is the sum of each linked GWP total weighted by the item's
	// allocation fraction (pct / 100).
	TotalPremium decimal.Decimal `json:"total_premium"`

	// MaxAnnualPremium is the allocation-fraction-weighted sum of the
	// max_annual_premium extracted field across items.
	MaxAnnualPremium decimal.Decimal `json:"max_annual_premium"`

	// AvgLossRatio is the allocation-weighted average of linked loss ratios,
	// using raw percentage weights.
	AvgLossRatio *decimal.Decimal `json:"avg_loss_ratio,omitempty"`

	// AvgLimit is the allocation-weighted average of the
	// max_limits_of_liability extracted field, using raw percentage weights.
	AvgLimit *decimal.Decimal `json:"avg_limit,omitempty"`

	// GrowthPotentialPct is (MaxAnnualPremium - TotalPremium) /
	// MaxAnnualPremium * 100 when MaxAnnualPremium is positive.  Negative
	// values are legal: the portfolio already writes more premium than the
	// extracted maximums suggest.
	GrowthPotentialPct *decimal.Decimal `json:"growth_potential_pct,omitempty"`

	// TotalAllocation is the raw, unclamped sum of allocation percentages.
	// Partial (< 100) and over-allocated (> 100) portfolios are legal; the
	// figure is surfaced so callers can flag them.
	TotalAllocation decimal.Decimal `json:"total_allocation"`
}

// ComputeSummary rolls the allocation items up into a Summary.  It is a pure
// function: no I/O, no mutation of its input.  Persisting the result onto the
// portfolio's cache columns is the caller's job.
//
// Unparseable or absent monetary fields are skipped silently, dropping both
// the value and its weight for that metric on that item only; the remaining
// metrics of the item still aggregate.  Empty input yields a zero Summary.
func ComputeSummary(items []AllocationItem) Summary {
	if len(items) == 0 {
		return Summary{}
	}

	var (
		totalPremium     = decimal.Zero
		maxAnnualPremium = decimal.Zero
		totalAllocation  = decimal.Zero

		weightedLossRatioSum = decimal.Zero
		weightedLimitSum     = decimal.Zero
		lossRatioWeight      = decimal.Zero
		limitWeight          = decimal.Zero
	)

	for _, item := range items {
		allocation := item.AllocationPct
		totalAllocation = totalAllocation.Add(allocation)

		if item.Authority == nil {
			continue
		}

		if gwp := item.GWP; gwp != nil {
			totalPremium = totalPremium.Add(gwp.TotalGWP.Mul(allocation).Div(hundred))

			if gwp.LossRatio != nil {
				weightedLossRatioSum = weightedLossRatioSum.Add(gwp.LossRatio.Mul(allocation))
				lossRatioWeight = lossRatioWeight.Add(allocation)
			}
		}

		extracted := item.Authority.ExtractedData

		if maxPremium, ok := extracted.DecimalField(FieldMaxAnnualPremium); ok {
			maxAnnualPremium = maxAnnualPremium.Add(maxPremium.Mul(allocation).Div(hundred))
		}

		if maxLimit, ok := extracted.DecimalField(FieldMaxLimitsOfLiability); ok {
			weightedLimitSum = weightedLimitSum.Add(maxLimit.Mul(allocation))
			limitWeight = limitWeight.Add(allocation)
		}
	}

	summary := Summary{
		TotalPremium:     totalPremium,
		MaxAnnualPremium: maxAnnualPremium,
		TotalAllocation:  totalAllocation,
	}

	if lossRatioWeight.IsPositive() {
		avg := weightedLossRatioSum.Div(lossRatioWeight)
		summary.AvgLossRatio = &avg
	}
	if limitWeight.IsPositive() {
		avg := weightedLimitSum.Div(limitWeight)
		summary.AvgLimit = &avg
	}
	if maxAnnualPremium.IsPositive() {
		growth := maxAnnualPremium.Sub(totalPremium).Div(maxAnnualPremium).Mul(hundred)
		summary.GrowthPotentialPct = &growth
	}

	return summary
}
