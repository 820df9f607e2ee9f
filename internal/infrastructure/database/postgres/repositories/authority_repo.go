package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/authority"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

type postgresAuthorityRepo struct {
	conn *postgres.Connection
	tx   *sql.Tx
	log  logging.Logger
}

// NewAuthorityRepo builds the PostgreSQL authority repository.
func NewAuthorityRepo(conn *postgres.Connection, log logging.Logger) authority.Repository {
	return &postgresAuthorityRepo{conn: conn, log: log}
}

func (r *postgresAuthorityRepo) executor() queryExecutor {
	if r.tx != nil {
		return r.tx
	}
	return r.conn.DB()
}

const authorityColumns = `
	id, product_extraction_id, member_id, gwp_breakdown_id, contract_id, contract_name,
	lob_name, cob_name, product_name, sub_product_name, mpp_name,
	extracted_data, analysis_summary, created_at, updated_at
`

func (r *postgresAuthorityRepo) Save(ctx context.Context, a *authority.Authority) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	data, err := json.Marshal(a.ExtractedData)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode extracted data")
	}
	query := `
		INSERT INTO authorities (
			id, product_extraction_id, member_id, gwp_breakdown_id, contract_id, contract_name,
			lob_name, cob_name, product_name, sub_product_name, mpp_name,
			extracted_data, analysis_summary
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`
	err = r.executor().QueryRowContext(ctx, query,
		a.ID, nullString(a.ProductExtractionID), a.MemberID, nullString(a.GWPBreakdownID),
		nullString(a.ContractID), a.ContractName,
		nullString(a.LOBName), nullString(a.COBName), nullString(a.ProductName),
		nullString(a.SubProductName), nullString(a.MPPName),
		data, nullString(a.AnalysisSummary),
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create authority")
	}
	return nil
}

func (r *postgresAuthorityRepo) FindByID(ctx context.Context, id string) (*authority.Authority, error) {
	query := `SELECT ` + authorityColumns + ` FROM authorities WHERE id = $1`
	a, err := scanAuthority(r.executor().QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeAuthorityNotFound, "authority not found: "+id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load authority")
	}
	return a, nil
}

func (r *postgresAuthorityRepo) FindByProductExtractionID(ctx context.Context, extractionID string) (*authority.Authority, error) {
	query := `SELECT ` + authorityColumns + ` FROM authorities WHERE product_extraction_id = $1`
	a, err := scanAuthority(r.executor().QueryRowContext(ctx, query, extractionID))
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeAuthorityNotFound, "authority not found for extraction: "+extractionID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load authority")
	}
	return a, nil
}

func (r *postgresAuthorityRepo) List(ctx context.Context, opts ...authority.QueryOption) ([]*authority.Authority, int64, error) {
	o := authority.ApplyOptions(opts...)

	baseQuery := `FROM authorities WHERE 1=1`
	args := []interface{}{}
	if o.MemberID != "" {
		args = append(args, o.MemberID)
		baseQuery += fmt.Sprintf(` AND member_id = $%d`, len(args))
	}
	if o.LOBName != "" {
		args = append(args, o.LOBName)
		baseQuery += fmt.Sprintf(` AND lob_name = $%d`, len(args))
	}
	if o.COBName != "" {
		args = append(args, o.COBName)
		baseQuery += fmt.Sprintf(` AND cob_name = $%d`, len(args))
	}
	if o.SearchKeyword != "" {
		args = append(args, "%"+o.SearchKeyword+"%")
		n := len(args)
		baseQuery += fmt.Sprintf(
			` AND (contract_name ILIKE $%d OR product_name ILIKE $%d OR sub_product_name ILIKE $%d OR mpp_name ILIKE $%d)`,
			n, n, n, n)
	}

	var total int64
	if err := r.executor().QueryRowContext(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to count authorities")
	}

	dataQuery := fmt.Sprintf(`SELECT %s %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		authorityColumns, baseQuery, len(args)+1, len(args)+2)
	args = append(args, o.Limit, o.Offset)

	rows, err := r.executor().QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list authorities")
	}
	defer rows.Close()

	var out []*authority.Authority
	for rows.Next() {
		a, err := scanAuthority(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan authority")
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func (r *postgresAuthorityRepo) UpdateExtractedData(ctx context.Context, id string, data authority.ExtractedData, analysisSummary *string) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode extracted data")
	}

	var res sql.Result
	if analysisSummary != nil {
		res, err = r.executor().ExecContext(ctx,
			`UPDATE authorities SET extracted_data = $1, analysis_summary = $2, updated_at = NOW() WHERE id = $3`,
			payload, *analysisSummary, id)
	} else {
		res, err = r.executor().ExecContext(ctx,
			`UPDATE authorities SET extracted_data = $1, updated_at = NOW() WHERE id = $2`,
			payload, id)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to update authority data")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodeAuthorityNotFound, "authority not found: "+id)
	}
	return nil
}

func (r *postgresAuthorityRepo) Delete(ctx context.Context, id string) error {
	res, err := r.executor().ExecContext(ctx, `DELETE FROM authorities WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to delete authority")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodeAuthorityNotFound, "authority not found: "+id)
	}
	return nil
}

func (r *postgresAuthorityRepo) GWPLinkFor(ctx context.Context, a *authority.Authority) (*authority.GWPLink, error) {
	if a.GWPBreakdownID == "" {
		return nil, nil
	}
	query := `SELECT id, total_gwp, loss_ratio FROM gwp_breakdowns WHERE id = $1`
	var (
		link      authority.GWPLink
		lossRatio sql.NullString
	)
	err := r.executor().QueryRowContext(ctx, query, a.GWPBreakdownID).Scan(&link.BreakdownID, &link.TotalGWP, &lossRatio)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load gwp link")
	}
	if link.LossRatio, err = decimalFromNull(lossRatio); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to parse loss ratio")
	}
	return &link, nil
}

func (r *postgresAuthorityRepo) DistinctLOBNames(ctx context.Context) ([]string, error) {
	return r.distinctNames(ctx, "lob_name")
}

func (r *postgresAuthorityRepo) DistinctCOBNames(ctx context.Context) ([]string, error) {
	return r.distinctNames(ctx, "cob_name")
}

func (r *postgresAuthorityRepo) distinctNames(ctx context.Context, column string) ([]string, error) {
	query := fmt.Sprintf(
		`SELECT DISTINCT %s FROM authorities WHERE %s IS NOT NULL AND %s <> '' ORDER BY %s`,
		column, column, column, column)
	rows, err := r.executor().QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list distinct names")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan name")
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func scanAuthority(s scanner) (*authority.Authority, error) {
	var (
		a                 authority.Authority
		extractionID      sql.NullString
		breakdownID       sql.NullString
		contractID        sql.NullString
		lob, cob          sql.NullString
		product, sub, mpp sql.NullString
		analysis          sql.NullString
		data              []byte
	)
	err := s.Scan(&a.ID, &extractionID, &a.MemberID, &breakdownID, &contractID, &a.ContractName,
		&lob, &cob, &product, &sub, &mpp, &data, &analysis, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.ProductExtractionID = fromNullString(extractionID)
	a.GWPBreakdownID = fromNullString(breakdownID)
	a.ContractID = fromNullString(contractID)
	a.LOBName = fromNullString(lob)
	a.COBName = fromNullString(cob)
	a.ProductName = fromNullString(product)
	a.SubProductName = fromNullString(sub)
	a.MPPName = fromNullString(mpp)
	a.AnalysisSummary = fromNullString(analysis)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &a.ExtractedData); err != nil {
			return nil, err
		}
	}
	return &a, nil
}
