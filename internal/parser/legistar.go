package parser

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jjenkins/civicwatch/internal/model"
)

func init() {
	Register("legistar-meetings", func(deps Deps) Parser {
		return &LegistarMeetings{sink: deps.Sink, client: deps.Client}
	})
}

// LegistarMeetings scrapes a Legistar-style meeting calendar page and upserts
// one meeting row per calendar entry.
type LegistarMeetings struct {
	sink   Sink
	client *Client
}

// Run fetches the calendar page and upserts its meetings.
func (p *LegistarMeetings) Run(ctx context.Context, job *Job) error {
	body, err := p.client.Get(ctx, job.SourceURL)
	if err != nil {
		return fmt.Errorf("failed to fetch meetings page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to parse meetings page: %w", err)
	}

	doc.Find("table.meetings tr, table.rgMasterTable tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return // header or spacer row
		}

		title := strings.TrimSpace(cells.Eq(0).Text())
		dateText := strings.TrimSpace(cells.Eq(1).Text())
		if title == "" {
			return
		}

		meeting := &model.Meeting{
			SourceID:       job.SourceID,
			JurisdictionID: job.JurisdictionID,
			ExternalID:     externalID(title, dateText),
			Title:          title,
		}

		if t, err := parseMeetingDate(dateText); err == nil {
			meeting.MeetingDate = sql.NullTime{Time: t, Valid: true}
		}
		if cells.Length() > 2 {
			body := strings.TrimSpace(cells.Eq(2).Text())
			meeting.Body = sql.NullString{String: body, Valid: body != ""}
		}
		if href, ok := row.Find("a[href]").First().Attr("href"); ok {
			meeting.AgendaURL = sql.NullString{String: href, Valid: true}
		}

		created, err := p.sink.UpsertMeeting(ctx, meeting)
		if err != nil {
			job.Stats.RecordError(fmt.Sprintf("meeting %s: %v", meeting.ExternalID, err))
			return
		}
		if created {
			job.Stats.NewCount++
		} else {
			job.Stats.UpdatedCount++
		}
	})

	return nil
}

// meetingDateLayouts covers the date formats Legistar deployments emit.
var meetingDateLayouts = []string{
	"1/2/2006 3:04 PM",
	"1/2/2006",
	"January 2, 2006",
	"2006-01-02",
}

func parseMeetingDate(text string) (time.Time, error) {
	for _, layout := range meetingDateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date: %q", text)
}

// externalID derives a stable record key for sources that expose none.
func externalID(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		p = strings.ReplaceAll(p, " ", "-")
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return strings.Join(cleaned, "|")
}
