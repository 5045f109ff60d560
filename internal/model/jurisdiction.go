package model

import (
	"database/sql"
	"time"
)

// Jurisdiction types, from broadest to narrowest.
const (
	JurisdictionState  = "state"
	JurisdictionCounty = "county"
	JurisdictionCity   = "city"
)

// Jurisdiction represents one level of the state/county/city hierarchy.
// The forest is seeded once and read-only afterwards.
type Jurisdiction struct {
	ID       int64
	Slug     string
	Name     string
	Type     string
	ParentID sql.NullInt64
	CreatedAt time.Time
}
