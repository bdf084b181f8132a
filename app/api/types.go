package api

import (
	"github.com/esdeveniments/agenda-comb/app/database"
	"github.com/esdeveniments/agenda-comb/app/feed"
	"github.com/esdeveniments/agenda-comb/app/ingest"
	"github.com/esdeveniments/agenda-comb/app/scrape"
	"github.com/esdeveniments/agenda-comb/app/sources"
	"github.com/esdeveniments/agenda-comb/app/tasks"
)

type Handler struct {
	registry    *sources.Registry
	runner      *ingest.Runner
	fetcher     *feed.Fetcher
	parser      *feed.Parser
	townScraper *scrape.TownScraper
	generator   *scrape.Generator
	eventRepo   database.EventRepository
	runRepo     database.RunRepository
	scheduler   tasks.TaskSchedulerInterface
}
