package database

import (
	"path/filepath"
	"testing"
	"time"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

func TestRunMigrations(t *testing.T) {
	db, err := NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	defer db.Close()

	version, dirty, err := RunMigrations(db)
	if err != nil {
		t.Fatalf("Expected migrations to apply, got: %v", err)
	}
	if version == 0 {
		t.Error("Expected a non-zero migration version")
	}
	if dirty {
		t.Error("Expected a clean migration state")
	}

	// Re-running must be a no-op
	if _, _, err := RunMigrations(db); err != nil {
		t.Errorf("Expected re-run to succeed, got: %v", err)
	}
}

func TestEventRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEventRepository(db)

	starts := time.Date(2026, 9, 12, 19, 0, 0, 0, time.UTC)
	ends := starts.Add(2 * time.Hour)
	published := time.Now()

	event := PublishedEvent{
		Region:      "valles-oriental",
		Town:        "cardedeu",
		GUID:        "event-1",
		Title:       "Concert",
		Location:    "Plaça, Cardedeu, Vallès Oriental",
		StartsAt:    &starts,
		EndsAt:      &ends,
		PublishedAt: published,
	}

	if err := repo.RecordEvent(event); err != nil {
		t.Fatalf("Expected record to succeed, got: %v", err)
	}

	count, err := repo.GetEventCount("cardedeu")
	if err != nil {
		t.Fatalf("Expected count to succeed, got: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 event, got: %d", count)
	}

	// Same (town, guid) pair again is ignored
	if err := repo.RecordEvent(event); err != nil {
		t.Fatalf("Expected duplicate record to be a no-op, got: %v", err)
	}
	count, _ = repo.GetEventCount("cardedeu")
	if count != 1 {
		t.Errorf("Expected duplicate to be ignored, got count: %d", count)
	}

	event.GUID = "event-2"
	event.Town = "llinars"
	if err := repo.RecordEvent(event); err != nil {
		t.Fatalf("Expected second record to succeed, got: %v", err)
	}

	stats, err := repo.GetStats()
	if err != nil {
		t.Fatalf("Expected stats to succeed, got: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("Expected stats for 2 towns, got: %d", len(stats))
	}
	if stats[0].Town != "cardedeu" || stats[0].PublishedCount != 1 {
		t.Errorf("Expected cardedeu with 1 event, got: %+v", stats[0])
	}
	if stats[0].LastPublished == nil {
		t.Fatal("Expected a last published timestamp")
	}
	// Stored timestamps must round-trip through the text column
	if diff := stats[0].LastPublished.Sub(published); diff > time.Second || diff < -time.Second {
		t.Errorf("Expected last published near %v, got: %v", published, *stats[0].LastPublished)
	}
}

func TestRunRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRunRepository(db)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		run := IngestRun{
			Region:         "osona",
			Town:           "torello",
			TotalItems:     10,
			NewItems:       i,
			PublishedItems: i,
			StartedAt:      base.Add(time.Duration(i) * time.Minute),
			FinishedAt:     base.Add(time.Duration(i)*time.Minute + 30*time.Second),
		}
		if err := repo.RecordRun(run); err != nil {
			t.Fatalf("Expected record to succeed, got: %v", err)
		}
	}

	runs, err := repo.GetRecentRuns(2)
	if err != nil {
		t.Fatalf("Expected query to succeed, got: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs with limit 2, got: %d", len(runs))
	}

	// Most recent first
	if runs[0].NewItems != 2 || runs[1].NewItems != 1 {
		t.Errorf("Expected newest runs first, got: %d, %d", runs[0].NewItems, runs[1].NewItems)
	}
}
