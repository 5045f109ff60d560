package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jjenkins/civicwatch/internal/model"
	"github.com/lib/pq"
)

// Tables the freshness evaluator counts rows in.
var trackedTables = []string{"meetings", "elections", "ordinances"}

// CivicStore handles database operations for the ingested civic rows
// (meetings, elections, ordinances).
type CivicStore struct {
	db *sql.DB
}

// NewCivicStore creates a new CivicStore.
func NewCivicStore(db *sql.DB) *CivicStore {
	return &CivicStore{db: db}
}

// UpsertMeeting inserts or updates a meeting by its external ID.
func (s *CivicStore) UpsertMeeting(ctx context.Context, m *model.Meeting) (created bool, err error) {
	query := `
		INSERT INTO meetings (source_id, jurisdiction_id, external_id, title, body,
		                      meeting_date, agenda_url, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (source_id, external_id) DO UPDATE SET
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			meeting_date = EXCLUDED.meeting_date,
			agenda_url = EXCLUDED.agenda_url,
			fetched_at = EXCLUDED.fetched_at
		RETURNING id, (xmax = 0)
	`

	err = s.db.QueryRowContext(ctx, query,
		m.SourceID,
		m.JurisdictionID,
		m.ExternalID,
		m.Title,
		m.Body,
		m.MeetingDate,
		m.AgendaURL,
		time.Now(),
	).Scan(&m.ID, &created)

	if err != nil {
		return false, fmt.Errorf("failed to upsert meeting %s: %w", m.ExternalID, err)
	}

	return created, nil
}

// UpsertElection inserts or updates an election by its external ID.
func (s *CivicStore) UpsertElection(ctx context.Context, e *model.Election) (created bool, err error) {
	query := `
		INSERT INTO elections (source_id, jurisdiction_id, external_id, name,
		                       election_date, election_type, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (source_id, external_id) DO UPDATE SET
			name = EXCLUDED.name,
			election_date = EXCLUDED.election_date,
			election_type = EXCLUDED.election_type,
			fetched_at = EXCLUDED.fetched_at
		RETURNING id, (xmax = 0)
	`

	err = s.db.QueryRowContext(ctx, query,
		e.SourceID,
		e.JurisdictionID,
		e.ExternalID,
		e.Name,
		e.ElectionDate,
		e.ElectionType,
		time.Now(),
	).Scan(&e.ID, &created)

	if err != nil {
		return false, fmt.Errorf("failed to upsert election %s: %w", e.ExternalID, err)
	}

	return created, nil
}

// UpsertOrdinance inserts or updates an ordinance by its external ID.
func (s *CivicStore) UpsertOrdinance(ctx context.Context, o *model.Ordinance) (created bool, err error) {
	query := `
		INSERT INTO ordinances (source_id, jurisdiction_id, external_id, title, summary,
		                        adopted_date, document_url, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (source_id, external_id) DO UPDATE SET
			title = EXCLUDED.title,
			summary = EXCLUDED.summary,
			adopted_date = EXCLUDED.adopted_date,
			document_url = EXCLUDED.document_url,
			fetched_at = EXCLUDED.fetched_at
		RETURNING id, (xmax = 0)
	`

	err = s.db.QueryRowContext(ctx, query,
		o.SourceID,
		o.JurisdictionID,
		o.ExternalID,
		o.Title,
		o.Summary,
		o.AdoptedDate,
		o.DocumentURL,
		time.Now(),
	).Scan(&o.ID, &created)

	if err != nil {
		return false, fmt.Errorf("failed to upsert ordinance %s: %w", o.ExternalID, err)
	}

	return created, nil
}

// CountByJurisdictions counts rows per tracked table restricted to the given
// jurisdiction IDs. An empty ID list counts nothing.
func (s *CivicStore) CountByJurisdictions(ctx context.Context, jurisdictionIDs []int64) (map[string]int, error) {
	counts := make(map[string]int, len(trackedTables))

	for _, table := range trackedTables {
		if len(jurisdictionIDs) == 0 {
			counts[table] = 0
			continue
		}

		query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE jurisdiction_id = ANY($1)`, table)

		var count int
		if err := s.db.QueryRowContext(ctx, query, pq.Array(jurisdictionIDs)).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts[table] = count
	}

	return counts, nil
}
