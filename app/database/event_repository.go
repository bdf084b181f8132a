package database

import (
	"database/sql"
	"fmt"
	"time"
)

type EventRepositoryImpl struct {
	db *DB
}

func NewEventRepository(db *DB) *EventRepositoryImpl {
	return &EventRepositoryImpl{db: db}
}

// RecordEvent inserts a published event into the ledger. Replays of an
// already recorded (town, guid) pair are ignored.
func (r *EventRepositoryImpl) RecordEvent(event PublishedEvent) error {
	_, err := r.db.Exec(`
		INSERT INTO published_events (region, town, guid, title, location, starts_at, ends_at, full_day, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (town, guid) DO NOTHING
	`, event.Region, event.Town, event.GUID, event.Title, event.Location,
		formatTimestampPtr(event.StartsAt), formatTimestampPtr(event.EndsAt),
		event.FullDay, formatTimestamp(event.PublishedAt))

	if err != nil {
		return fmt.Errorf("failed to record published event: %w", err)
	}

	return nil
}

func (r *EventRepositoryImpl) GetEventCount(town string) (int, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM published_events WHERE town = ?
	`, town).Scan(&count)

	if err != nil {
		return 0, fmt.Errorf("failed to count published events: %w", err)
	}

	return count, nil
}

func (r *EventRepositoryImpl) GetStats() ([]TownStats, error) {
	rows, err := r.db.Query(`
		SELECT region, town, COUNT(*), MAX(published_at)
		FROM published_events
		GROUP BY region, town
		ORDER BY region, town
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	var stats []TownStats
	for rows.Next() {
		var s TownStats
		// MAX() strips the column's declared type, SQLite hands the
		// timestamp back as text.
		var lastPublished sql.NullString
		if err := rows.Scan(&s.Region, &s.Town, &s.PublishedCount, &lastPublished); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		if lastPublished.Valid {
			if t, err := parseTimestamp(lastPublished.String); err == nil {
				s.LastPublished = &t
			}
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// formatTimestamp serializes a time for storage. Binding a time.Time
// directly would store Go's default String() form, which neither the
// driver nor parseTimestamp can read back. The layout matches the
// driver's first accepted timestamp format.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05.999999999-07:00")
}

func formatTimestampPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTimestamp(*t)
}

func parseTimestamp(value string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp: %q", value)
}
