package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/portfolio"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

type postgresPortfolioRepo struct {
	conn *postgres.Connection
	tx   *sql.Tx
	log  logging.Logger
}

// NewPortfolioRepo builds the PostgreSQL portfolio repository.
func NewPortfolioRepo(conn *postgres.Connection, log logging.Logger) portfolio.Repository {
	return &postgresPortfolioRepo{conn: conn, log: log}
}

func (r *postgresPortfolioRepo) executor() queryExecutor {
	if r.tx != nil {
		return r.tx
	}
	return r.conn.DB()
}

func (r *postgresPortfolioRepo) Save(ctx context.Context, p *portfolio.Portfolio) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	query := `
		INSERT INTO portfolios (id, name, description, total_premium, max_annual_premium, avg_loss_ratio, avg_limit)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := r.executor().QueryRowContext(ctx, query,
		p.ID, p.Name, nullString(p.Description),
		p.TotalPremium, p.MaxAnnualPremium, decimalPtrArg(p.AvgLossRatio), decimalPtrArg(p.AvgLimit),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create portfolio")
	}
	return nil
}

func (r *postgresPortfolioRepo) FindByID(ctx context.Context, id string) (*portfolio.Portfolio, error) {
	query := `
		SELECT id, name, description, total_premium, max_annual_premium, avg_loss_ratio, avg_limit, created_at, updated_at
		FROM portfolios WHERE id = $1
	`
	p, err := scanPortfolio(r.executor().QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodePortfolioNotFound, "portfolio not found: "+id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load portfolio")
	}
	return p, nil
}

func (r *postgresPortfolioRepo) List(ctx context.Context, opts ...portfolio.QueryOption) ([]*portfolio.Portfolio, int64, error) {
	o := portfolio.ApplyOptions(opts...)

	baseQuery := `FROM portfolios WHERE 1=1`
	args := []interface{}{}
	if o.SearchKeyword != "" {
		args = append(args, "%"+o.SearchKeyword+"%")
		baseQuery += fmt.Sprintf(` AND name ILIKE $%d`, len(args))
	}

	var total int64
	if err := r.executor().QueryRowContext(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to count portfolios")
	}

	dataQuery := fmt.Sprintf(
		`SELECT id, name, description, total_premium, max_annual_premium, avg_loss_ratio, avg_limit, created_at, updated_at %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		baseQuery, len(args)+1, len(args)+2)
	args = append(args, o.Limit, o.Offset)

	rows, err := r.executor().QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list portfolios")
	}
	defer rows.Close()

	var out []*portfolio.Portfolio
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan portfolio")
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *postgresPortfolioRepo) Update(ctx context.Context, p *portfolio.Portfolio) error {
	query := `
		UPDATE portfolios SET name = $1, description = $2, updated_at = NOW()
		WHERE id = $3
	`
	res, err := r.executor().ExecContext(ctx, query, p.Name, nullString(p.Description), p.ID)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to update portfolio")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodePortfolioNotFound, "portfolio not found: "+p.ID)
	}
	return nil
}

func (r *postgresPortfolioRepo) Delete(ctx context.Context, id string) error {
	res, err := r.executor().ExecContext(ctx, `DELETE FROM portfolios WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to delete portfolio")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodePortfolioNotFound, "portfolio not found: "+id)
	}
	return nil
}

func (r *postgresPortfolioRepo) UpdateCachedSummary(ctx context.Context, p *portfolio.Portfolio) error {
	query := `
		UPDATE portfolios
		SET total_premium = $1, max_annual_premium = $2, avg_loss_ratio = $3, avg_limit = $4, updated_at = NOW()
		WHERE id = $5
	`
	_, err := r.executor().ExecContext(ctx, query,
		p.TotalPremium, p.MaxAnnualPremium, decimalPtrArg(p.AvgLossRatio), decimalPtrArg(p.AvgLimit), p.ID)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to update cached summary")
	}
	return nil
}

func (r *postgresPortfolioRepo) ItemCount(ctx context.Context, portfolioID string) (int64, error) {
	var n int64
	err := r.executor().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM portfolio_items WHERE portfolio_id = $1`, portfolioID).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to count portfolio items")
	}
	return n, nil
}

func (r *postgresPortfolioRepo) FindItems(ctx context.Context, portfolioID string) ([]*portfolio.Item, error) {
	query := `
		SELECT id, portfolio_id, authority_id, allocation_pct, created_at
		FROM portfolio_items WHERE portfolio_id = $1 ORDER BY created_at ASC
	`
	rows, err := r.executor().QueryContext(ctx, query, portfolioID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list portfolio items")
	}
	defer rows.Close()

	var items []*portfolio.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan portfolio item")
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *postgresPortfolioRepo) FindItem(ctx context.Context, portfolioID, itemID string) (*portfolio.Item, error) {
	query := `
		SELECT id, portfolio_id, authority_id, allocation_pct, created_at
		FROM portfolio_items WHERE portfolio_id = $1 AND id = $2
	`
	item, err := scanItem(r.executor().QueryRowContext(ctx, query, portfolioID, itemID))
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodePortfolioItemNotFound, "portfolio item not found: "+itemID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load portfolio item")
	}
	return item, nil
}

func (r *postgresPortfolioRepo) FindItemByAuthority(ctx context.Context, portfolioID, authorityID string) (*portfolio.Item, error) {
	query := `
		SELECT id, portfolio_id, authority_id, allocation_pct, created_at
		FROM portfolio_items WHERE portfolio_id = $1 AND authority_id = $2
	`
	item, err := scanItem(r.executor().QueryRowContext(ctx, query, portfolioID, authorityID))
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodePortfolioItemNotFound, "authority not held in portfolio")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load portfolio item")
	}
	return item, nil
}

func (r *postgresPortfolioRepo) AddItem(ctx context.Context, item *portfolio.Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	query := `
		INSERT INTO portfolio_items (id, portfolio_id, authority_id, allocation_pct)
		VALUES ($1, $2, $3, $4) RETURNING created_at
	`
	err := r.executor().QueryRowContext(ctx, query,
		item.ID, item.PortfolioID, item.AuthorityID, item.AllocationPct).Scan(&item.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.New(errors.ErrCodePortfolioItemDuplicate, "authority already in portfolio")
		}
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to add portfolio item")
	}
	return nil
}

func (r *postgresPortfolioRepo) UpdateItem(ctx context.Context, item *portfolio.Item) error {
	res, err := r.executor().ExecContext(ctx,
		`UPDATE portfolio_items SET allocation_pct = $1 WHERE id = $2 AND portfolio_id = $3`,
		item.AllocationPct, item.ID, item.PortfolioID)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to update portfolio item")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodePortfolioItemNotFound, "portfolio item not found: "+item.ID)
	}
	return nil
}

func (r *postgresPortfolioRepo) RemoveItem(ctx context.Context, portfolioID, itemID string) error {
	res, err := r.executor().ExecContext(ctx,
		`DELETE FROM portfolio_items WHERE portfolio_id = $1 AND id = $2`, portfolioID, itemID)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to remove portfolio item")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodePortfolioItemNotFound, "portfolio item not found: "+itemID)
	}
	return nil
}

func (r *postgresPortfolioRepo) ReplaceItems(ctx context.Context, portfolioID string, items []*portfolio.Item) error {
	tx, err := r.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM portfolio_items WHERE portfolio_id = $1`, portfolioID); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to clear portfolio items")
	}
	for _, item := range items {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		err := tx.QueryRowContext(ctx,
			`INSERT INTO portfolio_items (id, portfolio_id, authority_id, allocation_pct)
			 VALUES ($1, $2, $3, $4) RETURNING created_at`,
			item.ID, portfolioID, item.AuthorityID, item.AllocationPct).Scan(&item.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return errors.New(errors.ErrCodePortfolioItemDuplicate, "authority listed twice: "+item.AuthorityID)
			}
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert portfolio item")
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to commit item replacement")
	}
	return nil
}

func scanPortfolio(s scanner) (*portfolio.Portfolio, error) {
	var (
		p           portfolio.Portfolio
		description sql.NullString
		lossRatio   sql.NullString
		limit       sql.NullString
	)
	err := s.Scan(&p.ID, &p.Name, &description, &p.TotalPremium, &p.MaxAnnualPremium,
		&lossRatio, &limit, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Description = fromNullString(description)
	if p.AvgLossRatio, err = decimalFromNull(lossRatio); err != nil {
		return nil, err
	}
	if p.AvgLimit, err = decimalFromNull(limit); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanItem(s scanner) (*portfolio.Item, error) {
	var item portfolio.Item
	err := s.Scan(&item.ID, &item.PortfolioID, &item.AuthorityID, &item.AllocationPct, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// decimalPtrArg converts an optional decimal to a driver argument, keeping
// NULL distinct from zero.
func decimalPtrArg(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return *d
}

// decimalFromNull parses a nullable numeric column into an optional decimal.
func decimalFromNull(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
