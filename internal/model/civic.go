package model

import (
	"database/sql"
	"time"
)

// Meeting represents one public meeting scraped from a government calendar.
type Meeting struct {
	ID             int64
	SourceID       int64
	JurisdictionID int64
	ExternalID     string
	Title          string
	Body           sql.NullString
	MeetingDate    sql.NullTime
	AgendaURL      sql.NullString
	FetchedAt      time.Time
}

// Election represents one upcoming or past election for a jurisdiction.
type Election struct {
	ID             int64
	SourceID       int64
	JurisdictionID int64
	ExternalID     string
	Name           string
	ElectionDate   sql.NullTime
	ElectionType   sql.NullString
	FetchedAt      time.Time
}

// Ordinance represents one ordinance or code change published by a jurisdiction.
type Ordinance struct {
	ID             int64
	SourceID       int64
	JurisdictionID int64
	ExternalID     string
	Title          string
	Summary        sql.NullString
	AdoptedDate    sql.NullTime
	DocumentURL    sql.NullString
	FetchedAt      time.Time
}
