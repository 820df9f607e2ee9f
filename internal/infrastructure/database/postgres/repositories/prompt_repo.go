package repositories

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/prompt"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

type postgresPromptRepo struct {
	conn *postgres.Connection
	log  logging.Logger
}

// NewPromptRepo builds the PostgreSQL prompt override repository.
func NewPromptRepo(conn *postgres.Connection, log logging.Logger) prompt.OverrideRepository {
	return &postgresPromptRepo{conn: conn, log: log}
}

func (r *postgresPromptRepo) FindByKey(ctx context.Context, key string) (*prompt.Override, error) {
	query := `
		SELECT id, prompt_key, display_name, description, prompt_content, created_at, updated_at
		FROM system_prompts WHERE prompt_key = $1
	`
	o, err := scanOverride(r.conn.DB().QueryRowContext(ctx, query, key))
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodePromptNotFound, "no override for prompt: "+key)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load prompt override")
	}
	return o, nil
}

func (r *postgresPromptRepo) FindAll(ctx context.Context) ([]*prompt.Override, error) {
	query := `
		SELECT id, prompt_key, display_name, description, prompt_content, created_at, updated_at
		FROM system_prompts ORDER BY prompt_key ASC
	`
	rows, err := r.conn.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list prompt overrides")
	}
	defer rows.Close()

	var out []*prompt.Override
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan prompt override")
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *postgresPromptRepo) Save(ctx context.Context, o *prompt.Override) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	query := `
		INSERT INTO system_prompts (id, prompt_key, display_name, description, prompt_content)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (prompt_key) DO UPDATE SET
			prompt_content = EXCLUDED.prompt_content,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	err := r.conn.DB().QueryRowContext(ctx, query,
		o.ID, o.Key, nullString(o.DisplayName), nullString(o.Description), o.Content,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to save prompt override")
	}
	return nil
}

func (r *postgresPromptRepo) DeleteByKey(ctx context.Context, key string) error {
	_, err := r.conn.DB().ExecContext(ctx, `DELETE FROM system_prompts WHERE prompt_key = $1`, key)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to delete prompt override")
	}
	return nil
}

func scanOverride(s scanner) (*prompt.Override, error) {
	var (
		o           prompt.Override
		displayName sql.NullString
		description sql.NullString
		updatedAt   sql.NullTime
	)
	err := s.Scan(&o.ID, &o.Key, &displayName, &description, &o.Content, &o.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	o.DisplayName = fromNullString(displayName)
	o.Description = fromNullString(description)
	if updatedAt.Valid {
		o.UpdatedAt = &updatedAt.Time
	}
	return &o, nil
}
