package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"horse.fit/polyglot/internal/globaltime"
)

// CreateAPIKey stores a freshly minted key and returns the persisted row.
func (p *Pool) CreateAPIKey(ctx context.Context, key, description, createdBy string) (*APIKey, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("api key value is required")
	}

	now := globaltime.UTC()

	const q = `
INSERT INTO api_keys (key, description, created_by, is_active, created_at)
VALUES ($1, $2, $3, TRUE, $4)
RETURNING id
`

	var id int64
	if err := p.QueryRow(ctx, q, key, description, createdBy, now).Scan(&id); err != nil {
		return nil, fmt.Errorf("insert api key: %w", err)
	}

	return &APIKey{
		ID:          id,
		Key:         key,
		Description: description,
		CreatedBy:   createdBy,
		IsActive:    true,
		CreatedAt:   now,
	}, nil
}

// GetActiveAPIKey resolves a presented key to its stored row. Inactive and
// unknown keys both surface as ErrKeyNotFound.
func (p *Pool) GetActiveAPIKey(ctx context.Context, key string) (*APIKey, error) {
	const q = `
SELECT id, key, description, created_by, is_active, created_at
FROM api_keys
WHERE key = $1
  AND is_active = TRUE
LIMIT 1
`

	var row APIKey
	err := p.QueryRow(ctx, q, strings.TrimSpace(key)).Scan(
		&row.ID,
		&row.Key,
		&row.Description,
		&row.CreatedBy,
		&row.IsActive,
		&row.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("query api key: %w", err)
	}
	return &row, nil
}

// ListAPIKeys returns every key, active or not, newest first.
func (p *Pool) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	const q = `
SELECT id, key, description, created_by, is_active, created_at
FROM api_keys
ORDER BY created_at DESC, id DESC
`

	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query api keys: %w", err)
	}
	defer rows.Close()

	items := make([]APIKey, 0, 16)
	for rows.Next() {
		var row APIKey
		if err := rows.Scan(
			&row.ID,
			&row.Key,
			&row.Description,
			&row.CreatedBy,
			&row.IsActive,
			&row.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan api key row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api keys: %w", err)
	}

	return items, nil
}

// DeactivateAPIKey flips a key inactive. Deactivation is idempotent for an
// already-inactive key but unknown keys return ErrKeyNotFound.
func (p *Pool) DeactivateAPIKey(ctx context.Context, key string) error {
	const q = `
UPDATE api_keys
SET is_active = FALSE
WHERE key = $1
`

	tag, err := p.Exec(ctx, q, strings.TrimSpace(key))
	if err != nil {
		return fmt.Errorf("deactivate api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrKeyNotFound
	}
	return nil
}
