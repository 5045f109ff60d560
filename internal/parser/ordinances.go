package parser

import (
	"context"
	"database/sql"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/jjenkins/civicwatch/internal/model"
)

func init() {
	Register("municode-ordinances-rss", func(deps Deps) Parser {
		return &MunicodeOrdinancesRSS{sink: deps.Sink, client: deps.Client}
	})
}

// MunicodeOrdinancesRSS reads an ordinance publication RSS feed and upserts
// one ordinance row per item.
type MunicodeOrdinancesRSS struct {
	sink   Sink
	client *Client
}

// rssFeed is the subset of RSS 2.0 the adapter reads.
type rssFeed struct {
	Channel struct {
		Items []struct {
			GUID        string `xml:"guid"`
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			Description string `xml:"description"`
			PubDate     string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

// Run fetches the feed and upserts its ordinances.
func (p *MunicodeOrdinancesRSS) Run(ctx context.Context, job *Job) error {
	body, err := p.client.Get(ctx, job.SourceURL)
	if err != nil {
		return fmt.Errorf("failed to fetch ordinances feed: %w", err)
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return fmt.Errorf("failed to parse ordinances feed: %w", err)
	}

	for _, item := range feed.Channel.Items {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			job.Stats.RecordError("ordinance item missing title")
			continue
		}

		guid := item.GUID
		if guid == "" {
			guid = item.Link
		}
		if guid == "" {
			guid = externalID(title, item.PubDate)
		}

		ordinance := &model.Ordinance{
			SourceID:       job.SourceID,
			JurisdictionID: job.JurisdictionID,
			ExternalID:     guid,
			Title:          title,
		}

		if desc := strings.TrimSpace(item.Description); desc != "" {
			ordinance.Summary = sql.NullString{String: desc, Valid: true}
		}
		if item.Link != "" {
			ordinance.DocumentURL = sql.NullString{String: item.Link, Valid: true}
		}
		if t, err := time.Parse(time.RFC1123Z, item.PubDate); err == nil {
			ordinance.AdoptedDate = sql.NullTime{Time: t, Valid: true}
		} else if t, err := time.Parse(time.RFC1123, item.PubDate); err == nil {
			ordinance.AdoptedDate = sql.NullTime{Time: t, Valid: true}
		}

		created, err := p.sink.UpsertOrdinance(ctx, ordinance)
		if err != nil {
			job.Stats.RecordError(fmt.Sprintf("ordinance %s: %v", guid, err))
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
