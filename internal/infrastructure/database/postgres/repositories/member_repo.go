package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/gwp"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

type postgresMemberRepo struct {
	conn *postgres.Connection
	tx   *sql.Tx
	log  logging.Logger
}

// NewMemberRepo builds the PostgreSQL member repository.
func NewMemberRepo(conn *postgres.Connection, log logging.Logger) gwp.MemberRepository {
	return &postgresMemberRepo{conn: conn, log: log}
}

func (r *postgresMemberRepo) executor() queryExecutor {
	if r.tx != nil {
		return r.tx
	}
	return r.conn.DB()
}

func (r *postgresMemberRepo) Save(ctx context.Context, m *gwp.Member) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	query := `
		INSERT INTO members (id, member_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (member_id) DO UPDATE SET name = EXCLUDED.name, updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	err := r.executor().QueryRowContext(ctx, query, m.ID, m.MemberID, m.Name).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to save member")
	}
	return nil
}

func (r *postgresMemberRepo) FindByID(ctx context.Context, id string) (*gwp.Member, error) {
	query := `SELECT id, member_id, name, created_at, updated_at FROM members WHERE id = $1`
	return r.findOne(ctx, query, id)
}

func (r *postgresMemberRepo) FindByMemberID(ctx context.Context, memberID string) (*gwp.Member, error) {
	query := `SELECT id, member_id, name, created_at, updated_at FROM members WHERE member_id = $1`
	return r.findOne(ctx, query, memberID)
}

func (r *postgresMemberRepo) findOne(ctx context.Context, query string, arg interface{}) (*gwp.Member, error) {
	var m gwp.Member
	err := r.executor().QueryRowContext(ctx, query, arg).
		Scan(&m.ID, &m.MemberID, &m.Name, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeMemberNotFound, fmt.Sprintf("member not found: %v", arg))
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load member")
	}
	return &m, nil
}

func (r *postgresMemberRepo) List(ctx context.Context, opts ...gwp.QueryOption) ([]*gwp.MemberListRow, int64, error) {
	o := gwp.ApplyOptions(opts...)

	baseQuery := `FROM members m WHERE 1=1`
	args := []interface{}{}
	if o.SearchKeyword != "" {
		args = append(args, "%"+o.SearchKeyword+"%")
		n := len(args)
		baseQuery += fmt.Sprintf(` AND (m.name ILIKE $%d OR m.member_id ILIKE $%d)`, n, n)
	}

	var total int64
	if err := r.executor().QueryRowContext(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to count members")
	}

	dataQuery := fmt.Sprintf(`
		SELECT m.id, m.member_id, m.name, m.created_at, m.updated_at,
		       COALESCE(SUM(b.total_gwp), 0) AS total_gwp,
		       COUNT(b.id) AS breakdown_count
		%s
		LEFT JOIN gwp_breakdowns b ON b.member_uuid = m.id
		GROUP BY m.id
		ORDER BY m.name ASC LIMIT $%d OFFSET $%d`,
		baseQuery, len(args)+1, len(args)+2)
	args = append(args, o.Limit, o.Offset)

	rows, err := r.executor().QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list members")
	}
	defer rows.Close()

	var out []*gwp.MemberListRow
	for rows.Next() {
		var row gwp.MemberListRow
		err := rows.Scan(&row.ID, &row.MemberID, &row.Name, &row.CreatedAt, &row.UpdatedAt,
			&row.TotalGWP, &row.BreakdownCount)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan member row")
		}
		out = append(out, &row)
	}
	return out, total, rows.Err()
}

func (r *postgresMemberRepo) Delete(ctx context.Context, id string) error {
	res, err := r.executor().ExecContext(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to delete member")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodeMemberNotFound, "member not found: "+id)
	}
	return nil
}

func (r *postgresMemberRepo) FactRows(ctx context.Context, memberUUID string) ([]gwp.FactRow, error) {
	query := `
		SELECT b.id,
		       lob.code, lob.name,
		       cob.code, cob.name,
		       pro.code, pro.name,
		       sup.code, sup.name,
		       mpp.code, mpp.name,
		       b.total_gwp, b.loss_ratio
		FROM gwp_breakdowns b
		JOIN lines_of_business lob ON lob.id = b.lob_uuid
		JOIN classes_of_business cob ON cob.id = b.cob_uuid
		JOIN products pro ON pro.id = b.product_uuid
		JOIN sub_products sup ON sup.id = b.sub_product_uuid
		JOIN member_product_programs mpp ON mpp.id = b.mpp_uuid
		WHERE b.member_uuid = $1
		ORDER BY b.created_at ASC, b.id ASC
	`
	rows, err := r.executor().QueryContext(ctx, query, memberUUID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load fact rows")
	}
	defer rows.Close()

	var facts []gwp.FactRow
	for rows.Next() {
		var (
			f         gwp.FactRow
			lossRatio sql.NullString
		)
		err := rows.Scan(&f.ID,
			&f.LOBCode, &f.LOBName,
			&f.COBCode, &f.COBName,
			&f.ProductCode, &f.ProductName,
			&f.SubProductCode, &f.SubProductName,
			&f.MPPCode, &f.MPPName,
			&f.TotalGWP, &lossRatio)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan fact row")
		}
		if f.LossRatio, err = decimalFromNull(lossRatio); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to parse loss ratio")
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// dimensionTables maps each dimension to its table name.
var dimensionTables = map[gwp.Dimension]string{
	gwp.DimensionLOB:        "lines_of_business",
	gwp.DimensionCOB:        "classes_of_business",
	gwp.DimensionProduct:    "products",
	gwp.DimensionSubProduct: "sub_products",
	gwp.DimensionMPP:        "member_product_programs",
}

type postgresDimensionRepo struct {
	conn *postgres.Connection
	log  logging.Logger
}

// NewDimensionRepo builds the PostgreSQL dimension repository.
func NewDimensionRepo(conn *postgres.Connection, log logging.Logger) gwp.DimensionRepository {
	return &postgresDimensionRepo{conn: conn, log: log}
}

func (r *postgresDimensionRepo) GetOrCreate(ctx context.Context, dim gwp.Dimension, code, name string) (string, error) {
	table, ok := dimensionTables[dim]
	if !ok {
		return "", errors.New(errors.ErrCodeInternal, "unknown dimension: "+string(dim))
	}

	// Insert-or-fetch in one round trip; the no-op update makes RETURNING
	// yield the existing row's id without touching its name.
	query := fmt.Sprintf(`
		INSERT INTO %s (id, code, name) VALUES ($1, $2, $3)
		ON CONFLICT (code) DO UPDATE SET code = EXCLUDED.code
		RETURNING id`, table)

	var id string
	err := r.conn.DB().QueryRowContext(ctx, query, uuid.NewString(), code, name).Scan(&id)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to get or create dimension value")
	}
	return id, nil
}

type postgresBreakdownRepo struct {
	conn *postgres.Connection
	tx   *sql.Tx
	log  logging.Logger
}

// NewBreakdownRepo builds the PostgreSQL GWP breakdown repository.
func NewBreakdownRepo(conn *postgres.Connection, log logging.Logger) gwp.BreakdownRepository {
	return &postgresBreakdownRepo{conn: conn, log: log}
}

func (r *postgresBreakdownRepo) executor() queryExecutor {
	if r.tx != nil {
		return r.tx
	}
	return r.conn.DB()
}

func (r *postgresBreakdownRepo) Upsert(ctx context.Context, b *gwp.Breakdown) (bool, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	query := `
		INSERT INTO gwp_breakdowns (
			id, member_uuid, lob_uuid, cob_uuid, product_uuid, sub_product_uuid, mpp_uuid,
			total_gwp, loss_ratio
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (member_uuid, lob_uuid, cob_uuid, product_uuid, sub_product_uuid, mpp_uuid)
		DO UPDATE SET total_gwp = EXCLUDED.total_gwp, loss_ratio = EXCLUDED.loss_ratio, updated_at = NOW()
		RETURNING id, created_at, updated_at, (xmax = 0) AS inserted
	`
	var inserted bool
	err := r.executor().QueryRowContext(ctx, query,
		b.ID, b.MemberUUID, b.LOBUUID, b.COBUUID, b.ProductUUID, b.SubProdUUID, b.MPPUUID,
		b.TotalGWP, decimalPtrArg(b.LossRatio),
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt, &inserted)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to upsert gwp breakdown")
	}
	return inserted, nil
}

const breakdownColumns = `
	id, member_uuid, lob_uuid, cob_uuid, product_uuid, sub_product_uuid, mpp_uuid,
	total_gwp, loss_ratio, created_at, updated_at
`

func (r *postgresBreakdownRepo) FindByID(ctx context.Context, id string) (*gwp.Breakdown, error) {
	query := `SELECT ` + breakdownColumns + ` FROM gwp_breakdowns WHERE id = $1`
	b, err := scanBreakdown(r.executor().QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeGWPRowNotFound, "gwp breakdown not found: "+id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load gwp breakdown")
	}
	return b, nil
}

func (r *postgresBreakdownRepo) FindByMember(ctx context.Context, memberUUID string) ([]*gwp.Breakdown, error) {
	query := `SELECT ` + breakdownColumns + ` FROM gwp_breakdowns WHERE member_uuid = $1 ORDER BY created_at ASC`
	rows, err := r.executor().QueryContext(ctx, query, memberUUID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list gwp breakdowns")
	}
	defer rows.Close()

	var out []*gwp.Breakdown
	for rows.Next() {
		b, err := scanBreakdown(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan gwp breakdown")
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBreakdown(s scanner) (*gwp.Breakdown, error) {
	var (
		b         gwp.Breakdown
		lossRatio sql.NullString
	)
	err := s.Scan(&b.ID, &b.MemberUUID, &b.LOBUUID, &b.COBUUID, &b.ProductUUID,
		&b.SubProdUUID, &b.MPPUUID, &b.TotalGWP, &lossRatio, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if b.LossRatio, err = decimalFromNull(lossRatio); err != nil {
		return nil, err
	}
	return &b, nil
}
