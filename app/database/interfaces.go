package database

type EventRepository interface {
	RecordEvent(event PublishedEvent) error
	GetEventCount(town string) (int, error)
	GetStats() ([]TownStats, error)
}

type RunRepository interface {
	RecordRun(run IngestRun) error
	GetRecentRuns(limit int) ([]IngestRun, error)
}
