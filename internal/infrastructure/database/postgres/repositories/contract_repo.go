package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/contract"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

type postgresContractRepo struct {
	conn *postgres.Connection
	tx   *sql.Tx
	log  logging.Logger
}

// NewContractRepo builds the PostgreSQL contract repository.
func NewContractRepo(conn *postgres.Connection, log logging.Logger) contract.Repository {
	return &postgresContractRepo{conn: conn, log: log}
}

func (r *postgresContractRepo) executor() queryExecutor {
	if r.tx != nil {
		return r.tx
	}
	return r.conn.DB()
}

const contractColumns = `
	id, filename, original_filename, object_key, file_type, file_size_bytes, file_hash,
	page_count, extracted_text, document_metadata, uploaded_at, updated_at
`

func (r *postgresContractRepo) Save(ctx context.Context, c *contract.Contract) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	meta, err := json.Marshal(c.DocumentMetadata)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode document metadata")
	}
	query := `
		INSERT INTO contracts (
			id, filename, original_filename, object_key, file_type, file_size_bytes, file_hash,
			page_count, extracted_text, document_metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING uploaded_at, updated_at
	`
	err = r.executor().QueryRowContext(ctx, query,
		c.ID, c.Filename, c.OriginalFilename, c.ObjectKey, string(c.FileType),
		c.FileSizeBytes, c.FileHash, c.PageCount, nullString(c.ExtractedText), meta,
	).Scan(&c.UploadedAt, &c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.New(errors.ErrCodeContractAlreadyExists, "contract with same content already uploaded")
		}
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create contract")
	}
	return nil
}

func (r *postgresContractRepo) FindByID(ctx context.Context, id string) (*contract.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1 AND is_deleted = FALSE`
	c, err := scanContract(r.executor().QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeContractNotFound, "contract not found: "+id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load contract")
	}
	return c, nil
}

func (r *postgresContractRepo) FindByHash(ctx context.Context, hash string) (*contract.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE file_hash = $1 AND is_deleted = FALSE`
	c, err := scanContract(r.executor().QueryRowContext(ctx, query, hash))
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeContractNotFound, "no contract with hash "+hash)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load contract by hash")
	}
	return c, nil
}

func (r *postgresContractRepo) List(ctx context.Context, opts ...contract.QueryOption) ([]*contract.Contract, int64, error) {
	o := contract.ApplyOptions(opts...)

	baseQuery := `FROM contracts WHERE is_deleted = FALSE`
	args := []interface{}{}
	if o.SearchKeyword != "" {
		args = append(args, "%"+o.SearchKeyword+"%")
		baseQuery += fmt.Sprintf(` AND original_filename ILIKE $%d`, len(args))
	}

	var total int64
	if err := r.executor().QueryRowContext(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to count contracts")
	}

	dataQuery := fmt.Sprintf(`SELECT %s %s ORDER BY uploaded_at DESC LIMIT $%d OFFSET $%d`,
		contractColumns, baseQuery, len(args)+1, len(args)+2)
	args = append(args, o.Limit, o.Offset)

	rows, err := r.executor().QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list contracts")
	}
	defer rows.Close()

	var out []*contract.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan contract")
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *postgresContractRepo) UpdateText(ctx context.Context, id, text string, pageCount int) error {
	res, err := r.executor().ExecContext(ctx,
		`UPDATE contracts SET extracted_text = $1, page_count = $2, updated_at = NOW() WHERE id = $3 AND is_deleted = FALSE`,
		text, pageCount, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to update contract text")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodeContractNotFound, "contract not found: "+id)
	}
	return nil
}

func (r *postgresContractRepo) SoftDelete(ctx context.Context, id string) error {
	res, err := r.executor().ExecContext(ctx,
		`UPDATE contracts SET is_deleted = TRUE, deleted_at = NOW() WHERE id = $1 AND is_deleted = FALSE`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to delete contract")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodeContractNotFound, "contract not found: "+id)
	}
	return nil
}

func (r *postgresContractRepo) SaveVersion(ctx context.Context, v *contract.Version) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	query := `
		INSERT INTO contract_versions (id, contract_id, version_number, parent_version_id, object_key, file_hash, change_description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := r.executor().QueryRowContext(ctx, query,
		v.ID, v.ContractID, v.VersionNumber, nullString(v.ParentVersionID),
		v.ObjectKey, v.FileHash, nullString(v.ChangeDescription),
	).Scan(&v.CreatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to save contract version")
	}
	return nil
}

func (r *postgresContractRepo) FindVersions(ctx context.Context, contractID string) ([]*contract.Version, error) {
	query := `
		SELECT id, contract_id, version_number, parent_version_id, object_key, file_hash, change_description, created_at
		FROM contract_versions WHERE contract_id = $1 ORDER BY version_number ASC
	`
	rows, err := r.executor().QueryContext(ctx, query, contractID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list contract versions")
	}
	defer rows.Close()

	var out []*contract.Version
	for rows.Next() {
		var (
			v      contract.Version
			parent sql.NullString
			change sql.NullString
		)
		err := rows.Scan(&v.ID, &v.ContractID, &v.VersionNumber, &parent, &v.ObjectKey,
			&v.FileHash, &change, &v.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan contract version")
		}
		v.ParentVersionID = fromNullString(parent)
		v.ChangeDescription = fromNullString(change)
		out = append(out, &v)
	}
	return out, rows.Err()
}

func scanContract(s scanner) (*contract.Contract, error) {
	var (
		c        contract.Contract
		fileType string
		text     sql.NullString
		page     sql.NullInt64
		meta     []byte
	)
	err := s.Scan(&c.ID, &c.Filename, &c.OriginalFilename, &c.ObjectKey, &fileType,
		&c.FileSizeBytes, &c.FileHash, &page, &text, &meta, &c.UploadedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.FileType = contract.FileType(fileType)
	c.ExtractedText = fromNullString(text)
	if page.Valid {
		c.PageCount = int(page.Int64)
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &c.DocumentMetadata); err != nil {
			return nil, err
		}
	}
	return &c, nil
}
