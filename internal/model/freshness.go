package model

import "time"

// Freshness modes and reason codes.
const (
	ModeLive = "live"
	ModeSeed = "seed"

	ReasonOK               = "ok"
	ReasonNoSuccessfulRuns = "no-successful-runs"
	ReasonTablesEmpty      = "tables-empty"
)

// FreshnessDiagnostics carries the intermediate counts behind a verdict.
type FreshnessDiagnostics struct {
	EnabledConnectors int `json:"enabledConnectors"`
	RecentRuns        int `json:"recentRuns"`
}

// FreshnessVerdict classifies the data behind a scope as live or seed. It is
// derived on every request and never persisted.
type FreshnessVerdict struct {
	Mode        string               `json:"mode"`
	Reason      string               `json:"reason"`
	LastRunAt   *time.Time           `json:"lastRunAt"`
	TableCounts map[string]int       `json:"tableCounts"`
	ScopeUsed   []string             `json:"scopeUsed"`
	Diagnostics FreshnessDiagnostics `json:"diagnostics"`
}
