package database

import (
	"fmt"
)

type RunRepositoryImpl struct {
	db *DB
}

func NewRunRepository(db *DB) *RunRepositoryImpl {
	return &RunRepositoryImpl{db: db}
}

func (r *RunRepositoryImpl) RecordRun(run IngestRun) error {
	_, err := r.db.Exec(`
		INSERT INTO ingest_runs (region, town, total_items, new_items, published_items, failed_items, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.Region, run.Town, run.TotalItems, run.NewItems, run.PublishedItems,
		run.FailedItems, run.Error, formatTimestamp(run.StartedAt), formatTimestamp(run.FinishedAt))

	if err != nil {
		return fmt.Errorf("failed to record ingest run: %w", err)
	}

	return nil
}

func (r *RunRepositoryImpl) GetRecentRuns(limit int) ([]IngestRun, error) {
	rows, err := r.db.Query(`
		SELECT id, region, town, total_items, new_items, published_items, failed_items, error, started_at, finished_at
		FROM ingest_runs
		ORDER BY finished_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingest runs: %w", err)
	}
	defer rows.Close()

	var runs []IngestRun
	for rows.Next() {
		var run IngestRun
		if err := rows.Scan(&run.ID, &run.Region, &run.Town, &run.TotalItems, &run.NewItems,
			&run.PublishedItems, &run.FailedItems, &run.Error, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ingest run row: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}
