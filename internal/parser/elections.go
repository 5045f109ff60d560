package parser

import (
	"context"
	"database/sql"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/jjenkins/civicwatch/internal/model"
)

func init() {
	Register("state-elections-xml", func(deps Deps) Parser {
		return &StateElectionsXML{sink: deps.Sink, client: deps.Client}
	})
}

// StateElectionsXML reads a state election authority XML feed and upserts one
// election row per entry.
type StateElectionsXML struct {
	sink   Sink
	client *Client
}

// electionsFeed is the feed document shape.
type electionsFeed struct {
	Elections []struct {
		ID   string `xml:"id"`
		Name string `xml:"name"`
		Date string `xml:"date"`
		Type string `xml:"type"`
	} `xml:"election"`
}

// Run fetches the feed and upserts its elections.
func (p *StateElectionsXML) Run(ctx context.Context, job *Job) error {
	body, err := p.client.Get(ctx, job.SourceURL)
	if err != nil {
		return fmt.Errorf("failed to fetch elections feed: %w", err)
	}

	var feed electionsFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return fmt.Errorf("failed to parse elections feed: %w", err)
	}

	for _, entry := range feed.Elections {
		if entry.ID == "" || entry.Name == "" {
			job.Stats.RecordError(fmt.Sprintf("election entry missing id or name: %q", entry.Name))
			continue
		}

		election := &model.Election{
			SourceID:       job.SourceID,
			JurisdictionID: job.JurisdictionID,
			ExternalID:     entry.ID,
			Name:           entry.Name,
			ElectionType:   sql.NullString{String: entry.Type, Valid: entry.Type != ""},
		}

		if t, err := time.Parse("2006-01-02", entry.Date); err == nil {
			election.ElectionDate = sql.NullTime{Time: t, Valid: true}
		}

		created, err := p.sink.UpsertElection(ctx, election)
		if err != nil {
			job.Stats.RecordError(fmt.Sprintf("election %s: %v", entry.ID, err))
			continue
		}
		if created {
			job.Stats.NewCount++
		} else {
			job.Stats.UpdatedCount++
		}
	}

	return nil
}
