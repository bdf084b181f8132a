package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/esdeveniments/agenda-comb/app/ingest"
)

type IngestSourceTask struct {
	Task
	Region string
	Town   string
	runner *ingest.Runner
}

func NewIngestSourceTask(region, town string, runner *ingest.Runner) *IngestSourceTask {
	return &IngestSourceTask{
		Task:   NewTask(TaskTypeIngestSource, fmt.Sprintf("%s/%s", region, town)),
		Region: region,
		Town:   town,
		runner: runner,
	}
}

func (t *IngestSourceTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	summary, err := t.runner.Run(ctx, t.Region, t.Town, true)
	if err != nil {
		return fmt.Errorf("failed to ingest %s: %w", t.GetSourceName(), err)
	}

	slog.Info("Task completed",
		"type", "IngestSource",
		"source", t.GetSourceName(),
		"duration", t.GetDuration(),
		"published", summary.ProcessedCount,
		"total", summary.TotalItems)

	return nil
}
