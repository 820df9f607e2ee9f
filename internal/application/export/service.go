// Package export renders portfolios and the member GWP schema into
// downloadable files: Excel workbooks via excelize, CSV, and JSON.  All
// decimal values are rendered as fixed-point strings.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/turtacn/CoverIQ-Intelligence/internal/application/members"
	"github.com/turtacn/CoverIQ-Intelligence/internal/application/portfolios"
	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/gwp"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

// Format enumerates the portfolio export formats.
type Format string

const (
	FormatExcel Format = "xlsx"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

// ParseFormat maps a user-supplied format string to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatExcel, FormatCSV, FormatJSON:
		return Format(s), nil
	default:
		return "", errors.Newf(errors.ErrCodeExportFormatUnsupported,
			"unsupported export format %q; expected xlsx, csv, or json", s)
	}
}

// Content types per format.
const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV  = "text/csv"
	contentTypeJSON = "application/json"
)

// Result is one generated export file.
type Result struct {
	Filename    string
	ContentType string
	Data        []byte
}

// PortfolioReader is the portfolio surface the exporter needs; satisfied by
// the portfolio application service.
type PortfolioReader interface {
	Get(ctx context.Context, id string) (*portfolios.Detail, error)
}

// MemberReader is the member surface the exporter needs; satisfied by the
// member application service.
type MemberReader interface {
	List(ctx context.Context, opts ...gwp.QueryOption) ([]*gwp.MemberListRow, int64, error)
	Get(ctx context.Context, id string) (*members.Detail, error)
}

// Service generates export files.
type Service struct {
	portfolios PortfolioReader
	members    MemberReader
	logger     logging.Logger
	now        func() time.Time
}

// NewService builds the export service.
func NewService(portfolios PortfolioReader, members MemberReader, log logging.Logger) *Service {
	return &Service{
		portfolios: portfolios,
		members:    members,
		logger:     log,
		now:        time.Now,
	}
}

// Portfolio renders one portfolio, with a freshly recomputed summary, in the
// requested format.
func (s *Service) Portfolio(ctx context.Context, id string, format Format) (*Result, error) {
	detail, err := s.portfolios.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var result *Result
	switch format {
	case FormatExcel:
		result, err = s.portfolioExcel(detail)
	case FormatCSV:
		result, err = s.portfolioCSV(detail)
	case FormatJSON:
		result, err = s.portfolioJSON(detail)
	default:
		return nil, errors.Newf(errors.ErrCodeExportFormatUnsupported,
			"unsupported export format %q", string(format))
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Portfolio exported",
		logging.String("portfolio_id", id),
		logging.String("format", string(format)),
		logging.Int("bytes", len(result.Data)),
	)
	return result, nil
}

// itemHeaders are the portfolio item columns shared by the Excel and CSV
// renditions.
var itemHeaders = []string{
	"AUTHORITY_ID", "CONTRACT_NAME", "MEMBER_ID", "PRODUCT",
	"ALLOCATION_PCT", "TOTAL_GWP", "LOSS_RATIO",
}

// itemRow renders one item detail as strings.  Missing authority snapshots
// and GWP links render as empty cells, never as zeros.
func itemRow(item portfolios.ItemDetail) []string {
	row := []string{item.AuthorityID, "", "", "", money(item.AllocationPct), "", ""}
	if item.Authority != nil {
		row[1] = item.Authority.ContractName
		row[2] = item.Authority.MemberID
		row[3] = item.Authority.FullProductName()
	}
	if item.GWP != nil {
		row[5] = money(item.GWP.TotalGWP)
		row[6] = ratio(item.GWP.LossRatio)
	}
	return row
}

// summaryRows renders the summary metrics as (label, value) pairs.
func summaryRows(d *portfolios.Detail) [][]string {
	return [][]string{
		{"Portfolio", d.Portfolio.Name},
		{"Description", d.Portfolio.Description},
		{"Total premium", money(d.Summary.TotalPremium)},
		{"Max annual premium", money(d.Summary.MaxAnnualPremium)},
		{"Avg loss ratio", ratio(d.Summary.AvgLossRatio)},
		{"Avg limit", optMoney(d.Summary.AvgLimit)},
		{"Growth potential %", optMoney(d.Summary.GrowthPotentialPct)},
		{"Total allocation %", money(d.Summary.TotalAllocation)},
		{"Items", fmt.Sprintf("%d", len(d.Items))},
	}
}

func (s *Service) portfolioExcel(d *portfolios.Detail) (*Result, error) {
	w := newWorkbook()

	if err := w.addSheet("Summary", [][]string{{"Metric", "Value"}}, summaryRows(d)); err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(d.Items))
	for _, item := range d.Items {
		rows = append(rows, itemRow(item))
	}
	if err := w.addSheet("Items", [][]string{itemHeaders}, rows); err != nil {
		return nil, err
	}

	data, err := w.bytes()
	if err != nil {
		return nil, err
	}
	return &Result{
		Filename:    exportFilename("portfolio", d.Portfolio.ID, "xlsx"),
		ContentType: contentTypeXLSX,
		Data:        data,
	}, nil
}

// portfolioCSV renders the item table only; the summary metrics live in the
// Excel and JSON renditions.
func (s *Service) portfolioCSV(d *portfolios.Detail) (*Result, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(itemHeaders); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExportFailed, "failed to write csv header")
	}
	for _, item := range d.Items {
		if err := w.Write(itemRow(item)); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeExportFailed, "failed to write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExportFailed, "failed to flush csv")
	}

	return &Result{
		Filename:    exportFilename("portfolio", d.Portfolio.ID, "csv"),
		ContentType: contentTypeCSV,
		Data:        buf.Bytes(),
	}, nil
}

// portfolioJSONDoc is the JSON export shape; every decimal is a fixed-point
// string.
type portfolioJSONDoc struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Summary     map[string]string `json:"summary"`
	Items       []itemJSONDoc     `json:"items"`
	ExportedAt  time.Time         `json:"exported_at"`
}

type itemJSONDoc struct {
	AuthorityID   string `json:"authority_id"`
	ContractName  string `json:"contract_name,omitempty"`
	MemberID      string `json:"member_id,omitempty"`
	Product       string `json:"product,omitempty"`
	AllocationPct string `json:"allocation_pct"`
	TotalGWP      string `json:"total_gwp,omitempty"`
	LossRatio     string `json:"loss_ratio,omitempty"`
}

func (s *Service) portfolioJSON(d *portfolios.Detail) (*Result, error) {
	doc := portfolioJSONDoc{
		ID:          d.Portfolio.ID,
		Name:        d.Portfolio.Name,
		Description: d.Portfolio.Description,
		Summary: map[string]string{
			"total_premium":      money(d.Summary.TotalPremium),
			"max_annual_premium": money(d.Summary.MaxAnnualPremium),
			"total_allocation":   money(d.Summary.TotalAllocation),
		},
		ExportedAt: s.now().UTC(),
	}
	if d.Summary.AvgLossRatio != nil {
		doc.Summary["avg_loss_ratio"] = ratio(d.Summary.AvgLossRatio)
	}
	if d.Summary.AvgLimit != nil {
		doc.Summary["avg_limit"] = money(*d.Summary.AvgLimit)
	}
	if d.Summary.GrowthPotentialPct != nil {
		doc.Summary["growth_potential_pct"] = money(*d.Summary.GrowthPotentialPct)
	}

	for _, item := range d.Items {
		row := itemRow(item)
		doc.Items = append(doc.Items, itemJSONDoc{
			AuthorityID:   row[0],
			ContractName:  row[1],
			MemberID:      row[2],
			Product:       row[3],
			AllocationPct: row[4],
			TotalGWP:      row[5],
			LossRatio:     row[6],
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExportFailed, "failed to marshal portfolio export")
	}
	return &Result{
		Filename:    exportFilename("portfolio", d.Portfolio.ID, "json"),
		ContentType: contentTypeJSON,
		Data:        data,
	}, nil
}

func exportFilename(kind, id, ext string) string {
	return fmt.Sprintf("%s_%s.%s", kind, id, ext)
}

// money renders a decimal with two fixed fraction digits.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// optMoney renders a nullable decimal, empty when nil.
func optMoney(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return money(*d)
}

// ratio renders a nullable loss ratio with four fraction digits.
func ratio(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.StringFixed(4)
}
