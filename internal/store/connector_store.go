package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jjenkins/civicwatch/internal/model"
	"github.com/lib/pq"
)

// ConnectorStore handles database operations for connectors and their sources.
type ConnectorStore struct {
	db *sql.DB
}

// NewConnectorStore creates a new ConnectorStore.
func NewConnectorStore(db *sql.DB) *ConnectorStore {
	return &ConnectorStore{db: db}
}

const connectorColumns = `id, key, jurisdiction_slug, kind, parser_key, source_url,
       enabled, source_id, last_run_at, last_status, created_at`

func scanConnector(row interface{ Scan(...any) error }) (*model.Connector, error) {
	var c model.Connector
	err := row.Scan(
		&c.ID,
		&c.Key,
		&c.JurisdictionSlug,
		&c.Kind,
		&c.ParserKey,
		&c.SourceURL,
		&c.Enabled,
		&c.SourceID,
		&c.LastRunAt,
		&c.LastStatus,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByID retrieves a connector by its ID.
func (s *ConnectorStore) GetByID(ctx context.Context, id int64) (*model.Connector, error) {
	query := `SELECT ` + connectorColumns + ` FROM connectors WHERE id = $1`

	c, err := scanConnector(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connector %d: %w", id, err)
	}

	return c, nil
}

// ListEnabled retrieves enabled connectors, optionally restricted by kind and
// jurisdiction slug. Slug matching is containment, not equality: a connector's
// jurisdiction_slug may encode a compound key, so a connector matches when its
// slug references any of the requested slugs.
func (s *ConnectorStore) ListEnabled(ctx context.Context, kinds []string, jurisdictionSlugs []string) ([]model.Connector, error) {
	query := `SELECT ` + connectorColumns + ` FROM connectors WHERE enabled = true`
	args := []any{}

	if len(kinds) > 0 {
		query += ` AND kind = ANY($1)`
		args = append(args, pq.Array(kinds))
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list connectors: %w", err)
	}
	defer rows.Close()

	var connectors []model.Connector
	for rows.Next() {
		c, err := scanConnector(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connector: %w", err)
		}
		if matchesAnySlug(c.JurisdictionSlug, jurisdictionSlugs) {
			connectors = append(connectors, *c)
		}
	}

	return connectors, rows.Err()
}

// matchesAnySlug reports whether the connector slug references any requested
// slug. An empty request list means no restriction.
func matchesAnySlug(connectorSlug string, requested []string) bool {
	if len(requested) == 0 {
		return true
	}
	for _, slug := range requested {
		if slug != "" && strings.Contains(connectorSlug, slug) {
			return true
		}
	}
	return false
}

// UpdateOutcome records the outcome of one run on the connector row.
// Called exactly once per invocation, success or not. Overlapping runs of the
// same connector race here with last-write-wins semantics.
func (s *ConnectorStore) UpdateOutcome(ctx context.Context, id int64, runAt time.Time, status string) error {
	query := `UPDATE connectors SET last_run_at = $2, last_status = $3 WHERE id = $1`

	_, err := s.db.ExecContext(ctx, query, id, runAt, status)
	if err != nil {
		return fmt.Errorf("failed to update connector %d outcome: %w", id, err)
	}

	return nil
}

// GetOrCreateSource resolves the connector's storage handle, creating it on
// first run. The insert is an atomic upsert so concurrent first-runs of the
// same connector cannot create duplicate sources.
func (s *ConnectorStore) GetOrCreateSource(ctx context.Context, connectorID int64, name string) (*model.Source, error) {
	insert := `
		INSERT INTO sources (connector_id, name)
		VALUES ($1, $2)
		ON CONFLICT (connector_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, insert, connectorID, name); err != nil {
		return nil, fmt.Errorf("failed to create source for connector %d: %w", connectorID, err)
	}

	query := `
		SELECT id, connector_id, name, created_at
		FROM sources
		WHERE connector_id = $1
	`

	var src model.Source
	err := s.db.QueryRowContext(ctx, query, connectorID).Scan(
		&src.ID,
		&src.ConnectorID,
		&src.Name,
		&src.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get source for connector %d: %w", connectorID, err)
	}

	update := `UPDATE connectors SET source_id = $2 WHERE id = $1 AND source_id IS NULL`
	if _, err := s.db.ExecContext(ctx, update, connectorID, src.ID); err != nil {
		return nil, fmt.Errorf("failed to link source to connector %d: %w", connectorID, err)
	}

	return &src, nil
}

// UpsertConnector inserts or updates a connector by key. Seed command only.
func (s *ConnectorStore) UpsertConnector(ctx context.Context, c *model.Connector) error {
	query := `
		INSERT INTO connectors (key, jurisdiction_slug, kind, parser_key, source_url, enabled)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (key) DO UPDATE SET
			jurisdiction_slug = EXCLUDED.jurisdiction_slug,
			kind = EXCLUDED.kind,
			parser_key = EXCLUDED.parser_key,
			source_url = EXCLUDED.source_url,
			enabled = EXCLUDED.enabled
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		c.Key,
		c.JurisdictionSlug,
		c.Kind,
		c.ParserKey,
		c.SourceURL,
		c.Enabled,
	).Scan(&c.ID)

	if err != nil {
		return fmt.Errorf("failed to upsert connector %s: %w", c.Key, err)
	}

	return nil
}
