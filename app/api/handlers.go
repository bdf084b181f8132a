package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/esdeveniments/agenda-comb/app/cfg"
	"github.com/esdeveniments/agenda-comb/app/database"
	"github.com/esdeveniments/agenda-comb/app/feed"
	"github.com/esdeveniments/agenda-comb/app/ingest"
	"github.com/esdeveniments/agenda-comb/app/scrape"
	"github.com/esdeveniments/agenda-comb/app/sources"
	"github.com/esdeveniments/agenda-comb/app/tasks"
)

func NewHandler(registry *sources.Registry, runner *ingest.Runner, fetcher *feed.Fetcher,
	parser *feed.Parser, townScraper *scrape.TownScraper, eventRepo database.EventRepository,
	runRepo database.RunRepository, scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		registry:    registry,
		runner:      runner,
		fetcher:     fetcher,
		parser:      parser,
		townScraper: townScraper,
		generator:   scrape.NewGenerator(),
		eventRepo:   eventRepo,
		runRepo:     runRepo,
		scheduler:   scheduler,
	}
}

// FetchRSS runs one ingestion pass for a town. Dedup state can be
// bypassed with disableKvInsert=true outside production.
func (h *Handler) FetchRSS(c *gin.Context) {
	region := c.Query("region")
	town := c.Query("town")

	if region == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Region parameter is missing"})
		return
	}
	if town == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Town parameter is missing"})
		return
	}

	useCache := true
	if !cfg.Get().IsProduction() && c.Query("disableKvInsert") == "true" {
		useCache = false
	}

	summary, err := h.runner.Run(c.Request.Context(), region, town, useCache)
	if err != nil {
		status, message := classifyError(err)
		slog.Error("Ingestion failed", "region", region, "town", town, "status", status, "error", err)
		c.JSON(status, gin.H{"error": message})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetRSS proxies an arbitrary feed URL and returns its normalized
// items as JSON.
func (h *Handler) GetRSS(c *gin.Context) {
	rssFeed := c.Query("rssFeed")
	if rssFeed == "" {
		status, message := classifyError(&feed.ValidationError{Msg: "RSS feed URL is required"})
		c.JSON(status, gin.H{"error": message, "items": []feed.Item{}})
		return
	}

	kind, data, err := h.fetcher.Run(c.Request.Context(), rssFeed)
	if err != nil {
		status, message := classifyError(err)
		slog.Error("Feed proxy fetch failed", "url", rssFeed, "status", status, "error", err)
		c.JSON(status, gin.H{"error": message, "items": []feed.Item{}})
		return
	}

	items, err := h.parser.Run(kind, data)
	if err != nil {
		status, message := classifyError(err)
		slog.Error("Feed proxy parse failed", "url", rssFeed, "status", status, "error", err)
		c.JSON(status, gin.H{"error": message, "items": []feed.Item{}})
		return
	}

	for i := range items {
		if items[i].Link != "" {
			items[i].Link = feed.SanitizeURL(items[i].Link)
		}
	}

	if len(items) == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "No items found in the feed", "items": []feed.Item{}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// ScrapeEvents renders a city's scraped agenda as an RSS document.
func (h *Handler) ScrapeEvents(c *gin.Context) {
	citySlug := c.Query("city")
	if citySlug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "City parameter is missing"})
		return
	}

	city, err := h.registry.ScraperCity(citySlug)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid city"})
		return
	}

	events, err := h.townScraper.Run(c.Request.Context(), city)
	if err != nil {
		slog.Error("Agenda scrape failed", "city", citySlug, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create RSS feed"})
		return
	}

	rss := h.generator.Run(city.Slug, city.DefaultLocation, events)

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusOK, rss)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   cfg.Get().Version,
		"towns":     h.registry.TownCount(),
		"cities":    h.registry.CityCount(),
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.eventRepo.GetStats()
	if err != nil {
		slog.Error("Database error", "operation", "get_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	runs, err := h.runRepo.GetRecentRuns(20)
	if err != nil {
		slog.Error("Database error", "operation", "get_recent_runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"towns":       stats,
		"recent_runs": runs,
	})
}

// TriggerIngest enqueues a background ingestion for one town.
func (h *Handler) TriggerIngest(c *gin.Context) {
	region := c.Param("region")
	town := c.Param("town")

	if _, _, err := h.registry.Town(region, town); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	task := tasks.NewIngestSourceTask(region, town, h.runner)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Error enqueueing ingest task", "region", region, "town", town, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue ingest task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Ingestion task enqueued",
		"task": gin.H{
			"id":   task.ID,
			"type": task.Type,
		},
	})
}

// classifyError maps pipeline errors to HTTP statuses: bad input is
// 400, unusable upstream payloads are 422, upstream server failures
// are 502 and timeouts are 504.
func classifyError(err error) (int, string) {
	var validationErr *feed.ValidationError
	var httpErr *feed.HTTPError
	var parseErr *feed.ParseError

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, fmt.Sprintf("Invalid input: %s", validationErr.Msg)
	case errors.As(err, &httpErr):
		if httpErr.Status >= 500 {
			return http.StatusBadGateway, fmt.Sprintf("Feed server error (HTTP %d): the server is not responding correctly", httpErr.Status)
		}
		return http.StatusBadRequest, fmt.Sprintf("Feed access error (HTTP %d): the feed URL is invalid or inaccessible", httpErr.Status)
	case errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity, fmt.Sprintf("Feed parsing error: %s", parseErr.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Request timeout: the feed took too long to respond"
	default:
		return http.StatusInternalServerError, fmt.Sprintf("An error occurred: %s", err.Error())
	}
}
