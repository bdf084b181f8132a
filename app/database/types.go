package database

import (
	"time"
)

// PublishedEvent is the ledger record of one event pushed to the
// calendar. It backs the stats endpoint and survives cache resets.
type PublishedEvent struct {
	ID          int64
	Region      string
	Town        string
	GUID        string
	Title       string
	Location    string
	StartsAt    *time.Time
	EndsAt      *time.Time
	FullDay     bool
	PublishedAt time.Time
}

// IngestRun records one ingestion pass over a town's feed.
type IngestRun struct {
	ID             int64
	Region         string
	Town           string
	TotalItems     int
	NewItems       int
	PublishedItems int
	FailedItems    int
	Error          string
	StartedAt      time.Time
	FinishedAt     time.Time
}

// TownStats aggregates the ledger per town for reporting.
type TownStats struct {
	Region         string
	Town           string
	PublishedCount int
	LastPublished  *time.Time
}
