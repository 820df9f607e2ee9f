package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/extraction"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

type postgresExtractionRepo struct {
	conn *postgres.Connection
	tx   *sql.Tx
	log  logging.Logger
}

// NewExtractionRepo builds the PostgreSQL extraction repository.
func NewExtractionRepo(conn *postgres.Connection, log logging.Logger) extraction.Repository {
	return &postgresExtractionRepo{conn: conn, log: log}
}

func (r *postgresExtractionRepo) executor() queryExecutor {
	if r.tx != nil {
		return r.tx
	}
	return r.conn.DB()
}

const extractionColumns = `
	id, contract_id, version_id, model_provider, model_name, status,
	started_at, completed_at, error_message, extracted_data, confidence_score,
	fields_extracted, fields_total, extraction_notes, created_at, updated_at
`

func (r *postgresExtractionRepo) Save(ctx context.Context, e *extraction.Extraction) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = extraction.StatusPending
	}
	data, notes, err := encodeExtractionPayloads(e)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO extractions (
			id, contract_id, version_id, model_provider, model_name, status,
			extracted_data, confidence_score, fields_extracted, fields_total, extraction_notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	err = r.executor().QueryRowContext(ctx, query,
		e.ID, e.ContractID, nullString(e.VersionID), e.Provider, e.ModelName, string(e.Status),
		data, e.ConfidenceScore, e.FieldsExtracted, e.FieldsTotal, notes,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create extraction")
	}
	return nil
}

func (r *postgresExtractionRepo) FindByID(ctx context.Context, id string) (*extraction.Extraction, error) {
	query := `SELECT ` + extractionColumns + ` FROM extractions WHERE id = $1`
	e, err := scanExtraction(r.executor().QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeExtractionNotFound, "extraction not found: "+id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load extraction")
	}
	return e, nil
}

func (r *postgresExtractionRepo) FindByContract(ctx context.Context, contractID string) ([]*extraction.Extraction, error) {
	query := `SELECT ` + extractionColumns + ` FROM extractions WHERE contract_id = $1 ORDER BY created_at DESC`
	return r.queryMany(ctx, query, contractID)
}

func (r *postgresExtractionRepo) FindLatestCompleted(ctx context.Context, contractID string) (*extraction.Extraction, error) {
	query := `
		SELECT ` + extractionColumns + `
		FROM extractions
		WHERE contract_id = $1 AND status = $2
		ORDER BY completed_at DESC LIMIT 1
	`
	e, err := scanExtraction(r.executor().QueryRowContext(ctx, query, contractID, string(extraction.StatusCompleted)))
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeExtractionNotFound, "no completed extraction for contract: "+contractID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load extraction")
	}
	return e, nil
}

func (r *postgresExtractionRepo) List(ctx context.Context, opts ...extraction.QueryOption) ([]*extraction.Extraction, int64, error) {
	o := extraction.ApplyOptions(opts...)

	baseQuery := `FROM extractions WHERE 1=1`
	args := []interface{}{}
	if o.Status != "" {
		args = append(args, string(o.Status))
		baseQuery += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if o.ContractID != "" {
		args = append(args, o.ContractID)
		baseQuery += fmt.Sprintf(` AND contract_id = $%d`, len(args))
	}

	var total int64
	if err := r.executor().QueryRowContext(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to count extractions")
	}

	dataQuery := fmt.Sprintf(`SELECT %s %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		extractionColumns, baseQuery, len(args)+1, len(args)+2)
	args = append(args, o.Limit, o.Offset)

	rows, err := r.executor().QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list extractions")
	}
	defer rows.Close()

	var out []*extraction.Extraction
	for rows.Next() {
		e, err := scanExtraction(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan extraction")
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (r *postgresExtractionRepo) Update(ctx context.Context, e *extraction.Extraction) error {
	data, notes, err := encodeExtractionPayloads(e)
	if err != nil {
		return err
	}
	query := `
		UPDATE extractions
		SET status = $1, started_at = $2, completed_at = $3, error_message = $4,
		    extracted_data = $5, confidence_score = $6, fields_extracted = $7,
		    fields_total = $8, extraction_notes = $9, updated_at = NOW()
		WHERE id = $10
	`
	res, err := r.executor().ExecContext(ctx, query,
		string(e.Status), e.StartedAt, e.CompletedAt, nullString(e.ErrorMessage),
		data, e.ConfidenceScore, e.FieldsExtracted, e.FieldsTotal, notes, e.ID)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to update extraction")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodeExtractionNotFound, "extraction not found: "+e.ID)
	}
	return nil
}

func (r *postgresExtractionRepo) Delete(ctx context.Context, id string) error {
	res, err := r.executor().ExecContext(ctx, `DELETE FROM extractions WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to delete extraction")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodeExtractionNotFound, "extraction not found: "+id)
	}
	return nil
}

func (r *postgresExtractionRepo) ClaimPending(ctx context.Context, limit int) ([]*extraction.Extraction, error) {
	// SKIP LOCKED lets concurrent workers claim disjoint job sets.
	query := `
		UPDATE extractions
		SET status = $1, started_at = NOW(), updated_at = NOW()
		WHERE id IN (
			SELECT id FROM extractions
			WHERE status = $2
			ORDER BY created_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + extractionColumns
	rows, err := r.executor().QueryContext(ctx, query,
		string(extraction.StatusProcessing), string(extraction.StatusPending), limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to claim pending extractions")
	}
	defer rows.Close()

	var out []*extraction.Extraction
	for rows.Next() {
		e, err := scanExtraction(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan claimed extraction")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *postgresExtractionRepo) ReclaimStale(ctx context.Context, olderThan time.Duration, limit int) ([]*extraction.Extraction, error) {
	// Refreshing started_at keeps a reclaimed job out of the next sweep
	// while it is rerun.
	query := `
		UPDATE extractions
		SET started_at = NOW(), updated_at = NOW()
		WHERE id IN (
			SELECT id FROM extractions
			WHERE status = $1 AND started_at < NOW() - make_interval(secs => $2)
			ORDER BY started_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + extractionColumns
	rows, err := r.executor().QueryContext(ctx, query,
		string(extraction.StatusProcessing), olderThan.Seconds(), limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to reclaim stale extractions")
	}
	defer rows.Close()

	var out []*extraction.Extraction
	for rows.Next() {
		e, err := scanExtraction(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan reclaimed extraction")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *postgresExtractionRepo) queryMany(ctx context.Context, query string, args ...interface{}) ([]*extraction.Extraction, error) {
	rows, err := r.executor().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query extractions")
	}
	defer rows.Close()

	var out []*extraction.Extraction
	for rows.Next() {
		e, err := scanExtraction(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan extraction")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func encodeExtractionPayloads(e *extraction.Extraction) ([]byte, []byte, error) {
	data, err := json.Marshal(e.ExtractedData)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to encode extracted data")
	}
	notes, err := json.Marshal(e.ExtractionNotes)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to encode extraction notes")
	}
	return data, notes, nil
}

func scanExtraction(s scanner) (*extraction.Extraction, error) {
	var (
		e          extraction.Extraction
		versionID  sql.NullString
		status     string
		errMsg     sql.NullString
		data       []byte
		notes      []byte
		confidence sql.NullFloat64
	)
	err := s.Scan(&e.ID, &e.ContractID, &versionID, &e.Provider, &e.ModelName, &status,
		&e.StartedAt, &e.CompletedAt, &errMsg, &data, &confidence,
		&e.FieldsExtracted, &e.FieldsTotal, &notes, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.VersionID = fromNullString(versionID)
	e.Status = extraction.Status(status)
	e.ErrorMessage = fromNullString(errMsg)
	if confidence.Valid {
		e.ConfidenceScore = &confidence.Float64
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &e.ExtractedData); err != nil {
			return nil, err
		}
	}
	if len(notes) > 0 {
		if err := json.Unmarshal(notes, &e.ExtractionNotes); err != nil {
			return nil, err
		}
	}
	return &e, nil
}

type postgresModelRepo struct {
	conn *postgres.Connection
	log  logging.Logger
}

// NewModelRepo builds the PostgreSQL extraction model registry repository.
func NewModelRepo(conn *postgres.Connection, log logging.Logger) extraction.ModelRepository {
	return &postgresModelRepo{conn: conn, log: log}
}

func (r *postgresModelRepo) ListActive(ctx context.Context) ([]*extraction.Model, error) {
	query := `
		SELECT id, provider, model_name, display_name, description, is_active,
		       max_tokens, supports_json_mode, sort_order, created_at
		FROM extraction_models WHERE is_active = TRUE ORDER BY sort_order ASC, display_name ASC
	`
	rows, err := r.conn.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list extraction models")
	}
	defer rows.Close()

	var out []*extraction.Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan extraction model")
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *postgresModelRepo) FindByName(ctx context.Context, provider, modelName string) (*extraction.Model, error) {
	query := `
		SELECT id, provider, model_name, display_name, description, is_active,
		       max_tokens, supports_json_mode, sort_order, created_at
		FROM extraction_models WHERE provider = $1 AND model_name = $2
	`
	m, err := scanModel(r.conn.DB().QueryRowContext(ctx, query, provider, modelName))
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeModelNotFound,
			fmt.Sprintf("extraction model not found: %s/%s", provider, modelName))
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load extraction model")
	}
	return m, nil
}

func (r *postgresModelRepo) Save(ctx context.Context, m *extraction.Model) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	query := `
		INSERT INTO extraction_models (id, provider, model_name, display_name, description, is_active, max_tokens, supports_json_mode, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (provider, model_name) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			description = EXCLUDED.description,
			is_active = EXCLUDED.is_active,
			max_tokens = EXCLUDED.max_tokens,
			supports_json_mode = EXCLUDED.supports_json_mode,
			sort_order = EXCLUDED.sort_order
		RETURNING id, created_at
	`
	err := r.conn.DB().QueryRowContext(ctx, query,
		m.ID, m.Provider, m.ModelName, m.DisplayName, nullString(m.Description),
		m.IsActive, m.MaxTokens, m.SupportsJSONMode, m.SortOrder,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to save extraction model")
	}
	return nil
}

func scanModel(s scanner) (*extraction.Model, error) {
	var (
		m    extraction.Model
		desc sql.NullString
	)
	err := s.Scan(&m.ID, &m.Provider, &m.ModelName, &m.DisplayName, &desc, &m.IsActive,
		&m.MaxTokens, &m.SupportsJSONMode, &m.SortOrder, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.Description = fromNullString(desc)
	return &m, nil
}
