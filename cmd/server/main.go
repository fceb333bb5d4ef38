package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/virodata/poxbase/internal/config"
	"github.com/virodata/poxbase/internal/db"
	"github.com/virodata/poxbase/internal/domain"
	"github.com/virodata/poxbase/internal/export"
	"github.com/virodata/poxbase/internal/gbif"
	"github.com/virodata/poxbase/internal/ingestion"
	"github.com/virodata/poxbase/internal/middleware"
	"github.com/virodata/poxbase/internal/records"
	"github.com/virodata/poxbase/internal/repository"
	"github.com/virodata/poxbase/internal/unified"
)

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Run migrations
	if err := db.RunMigrations(cfg.DB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Build the model registry and filter engine
	registry := domain.DefaultRegistry()
	var engineOpts []unified.Option
	if cfg.Unified.MaxFilters > 0 {
		engineOpts = append(engineOpts, unified.WithMaxFilters(cfg.Unified.MaxFilters))
	}
	if cfg.Unified.SearchDepth > 0 {
		engineOpts = append(engineOpts, unified.WithSearchDepth(cfg.Unified.SearchDepth))
	}
	engine := unified.NewEngine(registry, engineOpts...)

	// Create repositories
	unifiedRepo := repository.NewUnifiedRepository(conn.Pool, registry)
	recordRepo := repository.NewRecordRepository(conn.Pool)

	// Species name resolution for imports
	var resolver gbif.SpeciesResolver = gbif.NoopResolver{}
	if cfg.GBIF.Enabled {
		var clientOpts []gbif.ClientOption
		if cfg.GBIF.BaseURL != "" {
			clientOpts = append(clientOpts, gbif.WithBaseURL(cfg.GBIF.BaseURL))
		}
		if cfg.GBIF.MinConfidence > 0 {
			clientOpts = append(clientOpts, gbif.WithMinConfidence(cfg.GBIF.MinConfidence))
		}
		resolver = gbif.NewClient(clientOpts...)
	}

	importService := ingestion.NewService(recordRepo, resolver)
	exportService := export.NewService(engine, unifiedRepo)

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	mux := http.NewServeMux()
	mux.Handle("/api/unified/export/", export.NewHTTPHandler(exportService))
	mux.Handle("/api/unified/", unified.NewHTTPHandler(engine, unifiedRepo))
	mux.Handle("/api/import/", ingestion.NewHTTPHandler(importService))
	mux.Handle("/api/hosts/geojson", records.NewGeoJSONHandler(recordRepo))
	mux.Handle("/api/stats/", records.NewStatsHandler(recordRepo))

	handler := corsHandler.Handler(middleware.LoggingMiddleware(mux))

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting API server on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
