// Package main is the entry point for the BioPareto server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/biopareto/server/internal/api"
	"github.com/biopareto/server/internal/cache"
	"github.com/biopareto/server/internal/config"
	"github.com/biopareto/server/internal/enrich"
	"github.com/biopareto/server/internal/enrichstore"
	"github.com/biopareto/server/internal/metrics"
	"github.com/biopareto/server/internal/panel"
	"github.com/biopareto/server/internal/render"
	"github.com/biopareto/server/internal/session"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/server.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting BioPareto server on port %d", cfg.Server.Port)

	ctx := context.Background()

	// Initialize cache manager
	cacheManager, err := cache.NewManager(cache.Config{
		PlotCacheSizeMB: cfg.Cache.PlotSizeMB,
		PlotTTL:         time.Duration(cfg.Cache.PlotTTLMinutes) * time.Minute,
		QueryCacheSize:  cfg.Cache.QueryCacheSize,
	})
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	defer cacheManager.Close()

	// Initialize analysis session and interest panel
	sess, err := session.New(session.Options{
		Precision:      cfg.Session.CoordinatePrecision,
		IndexCacheSize: cfg.Session.IndexCacheSize,
	})
	if err != nil {
		log.Fatalf("Failed to initialize session: %v", err)
	}
	interest := panel.NewStore()
	interest.SetClock(sess.Now)

	m := metrics.New(true)

	registry := api.NewRegistry(api.RegistryOptions{
		Title:           cfg.Server.Title,
		DefaultOrganism: cfg.Enrichment.DefaultOrganism,
		MaxUploadMB:     cfg.Session.MaxUploadMB,
		Colormap:        cfg.Render.DefaultColormap,
	})
	registry.Session = sess
	registry.Panel = interest
	registry.Cache = cacheManager
	registry.Renderer = render.NewRenderer(render.Config{
		Width:       cfg.Render.Width,
		Height:      cfg.Render.Height,
		Colormap:    cfg.Render.DefaultColormap,
		FrontColors: cfg.Render.FrontColors,
	})
	registry.Metrics = m
	registry.Enrich = enrich.NewClient(enrich.Options{
		GProfilerURL:          cfg.Enrichment.GProfilerURL,
		GProfilerOrganismsURL: cfg.Enrichment.GProfilerOrganismsURL,
		ReactomeURL:           cfg.Enrichment.ReactomeURL,
		ReactomeSpeciesURL:    cfg.Enrichment.ReactomeSpeciesURL,
		Timeout:               cfg.Enrichment.Timeout(),
	})

	// Initialize job manager for enrichment jobs (SQLite persistence)
	jobManager, err := api.NewJobManager(api.JobManagerConfig{
		MaxConcurrent: cfg.Enrichment.MaxConcurrent,
		SQLitePath:    cfg.Enrichment.SQLitePath,
		RetentionDays: cfg.Enrichment.RetentionDays,
		CleanupPeriod: 1 * time.Hour,
	})
	if err != nil {
		log.Fatalf("Failed to initialize job manager: %v", err)
	}
	log.Printf("Enrichment job manager: max_concurrent=%d, retention_days=%d, sqlite=%s",
		cfg.Enrichment.MaxConcurrent, cfg.Enrichment.RetentionDays, cfg.Enrichment.SQLitePath)

	jobManager.Executor = api.ClientExecutor(registry.Enrich)
	jobManager.OnFinish = func(job *enrichstore.Job, status enrichstore.JobStatus) {
		m.EnrichmentJob(string(job.Provider), string(status))
	}
	registry.Jobs = jobManager

	jobManager.Start()
	defer jobManager.Stop()

	// Set up HTTP router
	router := api.NewRouter(api.RouterConfig{
		Registry:    registry,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	// Create HTTP server. The write timeout leaves room for synchronous
	// exports; enrichment runs in the background.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
