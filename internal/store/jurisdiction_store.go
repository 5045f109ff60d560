package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jjenkins/civicwatch/internal/model"
	"github.com/lib/pq"
)

// JurisdictionStore handles database operations for the jurisdiction forest.
type JurisdictionStore struct {
	db *sql.DB
}

// NewJurisdictionStore creates a new JurisdictionStore.
func NewJurisdictionStore(db *sql.DB) *JurisdictionStore {
	return &JurisdictionStore{db: db}
}

// GetAll retrieves the full jurisdiction forest.
func (s *JurisdictionStore) GetAll(ctx context.Context) ([]model.Jurisdiction, error) {
	query := `
		SELECT id, slug, name, type, parent_id, created_at
		FROM jurisdictions
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get jurisdictions: %w", err)
	}
	defer rows.Close()

	var jurisdictions []model.Jurisdiction
	for rows.Next() {
		var j model.Jurisdiction
		err := rows.Scan(
			&j.ID,
			&j.Slug,
			&j.Name,
			&j.Type,
			&j.ParentID,
			&j.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan jurisdiction: %w", err)
		}
		jurisdictions = append(jurisdictions, j)
	}

	return jurisdictions, rows.Err()
}

// GetBySlug retrieves a jurisdiction by its slug.
func (s *JurisdictionStore) GetBySlug(ctx context.Context, slug string) (*model.Jurisdiction, error) {
	query := `
		SELECT id, slug, name, type, parent_id, created_at
		FROM jurisdictions
		WHERE slug = $1
	`

	var j model.Jurisdiction
	err := s.db.QueryRowContext(ctx, query, slug).Scan(
		&j.ID,
		&j.Slug,
		&j.Name,
		&j.Type,
		&j.ParentID,
		&j.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get jurisdiction %s: %w", slug, err)
	}

	return &j, nil
}

// GetIDsBySlugs resolves slugs to jurisdiction IDs by direct lookup.
// Unknown slugs are silently skipped.
func (s *JurisdictionStore) GetIDsBySlugs(ctx context.Context, slugs []string) ([]int64, error) {
	if len(slugs) == 0 {
		return nil, nil
	}

	query := `SELECT id FROM jurisdictions WHERE slug = ANY($1)`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(slugs))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve jurisdiction slugs: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan jurisdiction id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// UpsertJurisdiction inserts or updates a jurisdiction, returning its ID.
// Used by the seed command only; the forest is read-only at runtime.
func (s *JurisdictionStore) UpsertJurisdiction(ctx context.Context, j *model.Jurisdiction) error {
	query := `
		INSERT INTO jurisdictions (slug, name, type, parent_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (slug) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			parent_id = EXCLUDED.parent_id
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		j.Slug,
		j.Name,
		j.Type,
		j.ParentID,
	).Scan(&j.ID)

	if err != nil {
		return fmt.Errorf("failed to upsert jurisdiction %s: %w", j.Slug, err)
	}

	return nil
}
