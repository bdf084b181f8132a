package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/esdeveniments/agenda-comb/app/api"
	"github.com/esdeveniments/agenda-comb/app/cache"
	"github.com/esdeveniments/agenda-comb/app/calendar"
	"github.com/esdeveniments/agenda-comb/app/cfg"
	"github.com/esdeveniments/agenda-comb/app/database"
	"github.com/esdeveniments/agenda-comb/app/dates"
	"github.com/esdeveniments/agenda-comb/app/feed"
	"github.com/esdeveniments/agenda-comb/app/ingest"
	"github.com/esdeveniments/agenda-comb/app/scrape"
	"github.com/esdeveniments/agenda-comb/app/sources"
	"github.com/esdeveniments/agenda-comb/app/tasks"
)

func main() {
	// .env is optional, environment variables win either way
	_ = godotenv.Load()

	appCfg, err := cfg.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Agenda Comb server", "version", appCfg.Version, "env", appCfg.Env)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "migration_version", version, "dirty", dirty)

	registry, err := sources.NewRegistry(appCfg.SourcesDir)
	if err != nil {
		log.Fatalf("Failed to load source registry: %v", err)
	}
	slog.Info("Source registry loaded", "towns", registry.TownCount(), "cities", registry.CityCount())

	resolver, err := dates.NewResolver(appCfg.Timezone)
	if err != nil {
		log.Fatalf("Failed to initialize date resolver: %v", err)
	}

	redisClient := cache.NewClient(appCfg.RedisAddr, appCfg.RedisPassword, appCfg.RedisDB)
	defer redisClient.Close()
	store := cache.NewRedisStore(redisClient, appCfg.Env)

	httpClient := &http.Client{}

	var calendarClient calendar.Client
	if appCfg.CredentialsFile != "" {
		calendarClient, err = calendar.NewGoogleClient(context.Background(),
			appCfg.CredentialsFile, appCfg.CalendarID, appCfg.Timezone)
		if err != nil {
			log.Fatalf("Failed to initialize calendar client: %v", err)
		}
		slog.Info("Calendar publishing enabled", "calendar_id", appCfg.CalendarID)
	} else {
		calendarClient = calendar.NewDryRunClient()
		slog.Warn("No calendar credentials configured, publishing in dry-run mode")
	}

	fetcher := feed.NewFetcher(httpClient, appCfg.UserAgent)
	parser := feed.NewParser()
	detailScraper := scrape.NewDetailScraper(httpClient, appCfg.UserAgent)
	townScraper := scrape.NewTownScraper(httpClient, appCfg.UserAgent, resolver)
	publisher := calendar.NewPublisher(calendarClient)
	eventRepo := database.NewEventRepository(db)
	runRepo := database.NewRunRepository(db)

	runner := ingest.NewRunner(registry, fetcher, parser, resolver, detailScraper,
		publisher, store, eventRepo, runRepo)

	scheduler := tasks.NewScheduler(registry, runner)
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Background scheduler started", "workers", appCfg.WorkerCount, "interval_seconds", appCfg.SchedulerInterval)

	apiHandler := api.NewHandler(registry, runner, fetcher, parser, townScraper,
		eventRepo, runRepo, scheduler)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
