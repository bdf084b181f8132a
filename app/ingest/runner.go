package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/esdeveniments/agenda-comb/app/cache"
	"github.com/esdeveniments/agenda-comb/app/calendar"
	"github.com/esdeveniments/agenda-comb/app/database"
	"github.com/esdeveniments/agenda-comb/app/dates"
	"github.com/esdeveniments/agenda-comb/app/feed"
	"github.com/esdeveniments/agenda-comb/app/scrape"
	"github.com/esdeveniments/agenda-comb/app/sources"
)

// Summary reports the outcome of one ingestion pass, in the shape the
// API returns to callers.
type Summary struct {
	Message        string `json:"message"`
	ProcessedCount int    `json:"processedCount"`
	TotalItems     int    `json:"totalItems"`
}

// Runner wires the full pipeline for one town: fetch, normalize,
// dedup, enrich, publish, persist.
type Runner struct {
	registry  *sources.Registry
	fetcher   *feed.Fetcher
	parser    *feed.Parser
	resolver  *dates.Resolver
	detail    *scrape.DetailScraper
	publisher *calendar.Publisher
	store     cache.Store
	eventRepo database.EventRepository
	runRepo   database.RunRepository
}

func NewRunner(registry *sources.Registry, fetcher *feed.Fetcher, parser *feed.Parser,
	resolver *dates.Resolver, detail *scrape.DetailScraper, publisher *calendar.Publisher,
	store cache.Store, eventRepo database.EventRepository, runRepo database.RunRepository) *Runner {
	return &Runner{
		registry:  registry,
		fetcher:   fetcher,
		parser:    parser,
		resolver:  resolver,
		detail:    detail,
		publisher: publisher,
		store:     store,
		eventRepo: eventRepo,
		runRepo:   runRepo,
	}
}

// Run ingests one town's feed. With useCache disabled nothing is read
// from or written to the dedup store, every item is treated as new.
func (r *Runner) Run(ctx context.Context, regionSlug, townSlug string, useCache bool) (*Summary, error) {
	town, region, err := r.registry.Town(regionSlug, townSlug)
	if err != nil {
		return nil, &feed.ValidationError{Msg: err.Error()}
	}

	if town.DisableInsertion {
		message := fmt.Sprintf("Event insertion is disabled for %s, skipping", townSlug)
		slog.Info(message)
		return &Summary{Message: message}, nil
	}

	if town.RSSFeed == "" {
		return nil, &feed.ValidationError{Msg: fmt.Sprintf("no feed URL configured for %s", townSlug)}
	}

	startedAt := time.Now()

	items, err := r.loadItems(ctx, town, useCache)
	if err != nil {
		r.recordRun(region, town, database.IngestRun{Error: err.Error(), StartedAt: startedAt})
		return nil, err
	}

	processed := map[string]int64{}
	if useCache {
		processed, err = r.store.GetProcessedItems(ctx, townSlug)
		if err != nil {
			slog.Warn("Failed to load processed items, continuing without dedup state", "town", townSlug, "error", err)
			processed = map[string]int64{}
		}

		if removed := cache.Prune(processed, time.Now()); removed > 0 {
			slog.Info("Pruned expired processed items", "town", townSlug, "removed", removed)
		}

		if err := r.store.SetProcessedItems(ctx, townSlug, processed); err != nil {
			slog.Warn("Failed to save pruned processed items", "town", townSlug, "error", err)
		}
	}

	newItems := items
	if useCache {
		newItems = cache.FilterNew(items, processed)
	}

	if len(newItems) == 0 {
		message := fmt.Sprintf("No new items found for %s", townSlug)
		slog.Info(message, "total", len(items))
		r.recordRun(region, town, database.IngestRun{TotalItems: len(items), StartedAt: startedAt})
		return &Summary{Message: message, TotalItems: len(items)}, nil
	}

	events, eventItems := r.buildEvents(ctx, newItems, town, region)

	results := r.publisher.Run(ctx, events)

	// Merge results into the dedup state sequentially. Publishing
	// runs concurrently, state mutation must not.
	publishedCount := 0
	failedCount := len(newItems) - len(events)
	for i, result := range results {
		if result.Err != nil {
			failedCount++
			continue
		}

		publishedCount++
		processed[eventItems[i].GUID] = result.PublishedAt.UnixMilli()
		r.recordEvent(region, town, events[i], eventItems[i])
	}

	if useCache && publishedCount > 0 {
		if err := r.store.SetProcessedItems(ctx, townSlug, processed); err != nil {
			slog.Warn("Failed to save processed items", "town", townSlug, "error", err)
		}
	}

	r.recordRun(region, town, database.IngestRun{
		TotalItems:     len(items),
		NewItems:       len(newItems),
		PublishedItems: publishedCount,
		FailedItems:    failedCount,
		StartedAt:      startedAt,
	})

	message := fmt.Sprintf("Finished processing %d items for %s", publishedCount, townSlug)
	slog.Info(message, "total", len(items), "new", len(newItems), "failed", failedCount)

	return &Summary{
		Message:        message,
		ProcessedCount: publishedCount,
		TotalItems:     len(newItems),
	}, nil
}

// loadItems returns the town's feed items, served from the feed cache
// when still valid.
func (r *Runner) loadItems(ctx context.Context, town *sources.Town, useCache bool) ([]feed.Item, error) {
	ttl := cache.FeedCacheTTL
	if town.IncreaseCacheTime {
		ttl = cache.ExtendedFeedCacheTTL
	}

	if useCache {
		cached, hit, err := r.store.GetCachedFeed(ctx, town.Slug, ttl)
		if err != nil {
			slog.Warn("Failed to read feed cache", "town", town.Slug, "error", err)
		} else if hit {
			slog.Debug("Serving feed from cache", "town", town.Slug, "items", len(cached))
			return cached, nil
		}
	}

	kind, data, err := r.fetcher.Run(ctx, town.RSSFeed)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed for %s: %w", town.Slug, err)
	}

	items, err := r.parser.Run(kind, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed for %s: %w", town.Slug, err)
	}

	if useCache {
		if err := r.store.SetCachedFeed(ctx, town.Slug, items); err != nil {
			slog.Warn("Failed to write feed cache", "town", town.Slug, "error", err)
		}
	}

	return items, nil
}

// buildEvents resolves dates and scrapes details for each new item.
// Items whose dates cannot be interpreted are dropped with a warning.
func (r *Runner) buildEvents(ctx context.Context, items []feed.Item, town *sources.Town, region *sources.Region) ([]*calendar.Event, []feed.Item) {
	events := make([]*calendar.Event, 0, len(items))
	eventItems := make([]feed.Item, 0, len(items))

	for _, item := range items {
		window, err := r.resolver.Resolve(&item)
		if err != nil {
			slog.Warn("Skipping item with unresolvable date", "town", town.Slug, "title", item.Title, "error", err)
			continue
		}

		detail := r.detail.Run(ctx, &item, town, window)

		location := fmt.Sprintf("%s, %s", town.Label, region.Label)
		if detail.Location != "" {
			location = fmt.Sprintf("%s, %s, %s", detail.Location, town.Label, region.Label)
		}

		events = append(events, &calendar.Event{
			GUID:        item.GUID,
			Summary:     item.Title,
			Description: detail.Description,
			Location:    location,
			Start:       window.Start,
			End:         window.End,
			FullDay:     window.FullDay,
		})
		eventItems = append(eventItems, item)
	}

	return events, eventItems
}

func (r *Runner) recordEvent(region *sources.Region, town *sources.Town, event *calendar.Event, item feed.Item) {
	if r.eventRepo == nil {
		return
	}

	err := r.eventRepo.RecordEvent(database.PublishedEvent{
		Region:      region.Slug,
		Town:        town.Slug,
		GUID:        item.GUID,
		Title:       event.Summary,
		Location:    event.Location,
		StartsAt:    &event.Start,
		EndsAt:      &event.End,
		FullDay:     event.FullDay,
		PublishedAt: time.Now(),
	})
	if err != nil {
		slog.Warn("Failed to record published event", "town", town.Slug, "guid", item.GUID, "error", err)
	}
}

func (r *Runner) recordRun(region *sources.Region, town *sources.Town, run database.IngestRun) {
	if r.runRepo == nil {
		return
	}

	run.Region = region.Slug
	run.Town = town.Slug
	run.FinishedAt = time.Now()

	if err := r.runRepo.RecordRun(run); err != nil {
		slog.Warn("Failed to record ingest run", "town", town.Slug, "error", err)
	}
}
