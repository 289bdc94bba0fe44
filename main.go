package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"gopkg.in/natefinch/lumberjack.v2"

	"anibridge/api"
	"anibridge/config"
	"anibridge/handlers"
	"anibridge/internal/upstream"
	"anibridge/services/assets"
	"anibridge/services/catalog"
	"anibridge/services/enrich"
	"anibridge/services/episodes"
	"anibridge/services/favorites"
	"anibridge/services/playback"
	"anibridge/services/projection"
	"anibridge/services/resolver"
	"anibridge/services/schedule"
	"anibridge/services/scheduler"
	"anibridge/utils/zhtext"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	fmt.Println("anibridge starting...")

	configPath := os.Getenv("ANIBRIDGE_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("data", "settings.json")
	}

	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// File logging with rotation, mirrored to the console.
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	norm, err := zhtext.NewNormalizer()
	if err != nil {
		log.Fatalf("failed to init text normalizer: %v", err)
	}

	client := upstream.New(settings.Upstream.UserAgent, settings.Upstream.Referer, settings.Upstream.RequestTimeout())

	catalogSvc := catalog.NewService(client, settings.Upstream.FeedURL, norm)
	episodesSvc := episodes.NewService(client, settings.Upstream.BaseURL, norm)
	resolverSvc := resolver.NewService(settings.Upstream.ResolveURL, settings.Upstream.UserAgent, settings.Upstream.Referer, settings.Upstream.RequestTimeout())

	assetsSvc, err := assets.NewService(settings.Data.Directory, settings.Data.CoverDirectory)
	if err != nil {
		log.Fatalf("failed to init asset tables: %v", err)
	}
	scheduleSvc, err := schedule.NewService(settings.Data.Directory)
	if err != nil {
		log.Fatalf("failed to load schedule: %v", err)
	}
	favoritesSvc, err := favorites.NewService(settings.Data.Directory)
	if err != nil {
		log.Fatalf("failed to init favorites store: %v", err)
	}
	playbackSvc, err := playback.NewService(settings.Data.Directory)
	if err != nil {
		log.Fatalf("failed to init playback store: %v", err)
	}

	projectionSvc := projection.NewService(assetsSvc)
	favoritesSvc.SetMirror(projectionSvc)
	playbackSvc.SetMirror(projectionSvc)

	var enricher scheduler.Enricher
	if settings.Enrich.Enabled {
		enricher = enrich.NewService(
			client,
			catalogSvc,
			assetsSvc,
			settings.Enrich.SubjectSearchURL,
			settings.Data.Directory,
			settings.Data.CoverDirectory,
			settings.Enrich.MaxWorkers,
		)
		log.Println("asset enrichment enabled")
	}

	schedulerSvc := scheduler.NewService(catalogSvc, assetsSvc, scheduleSvc, projectionSvc, favoritesSvc, playbackSvc, enricher, settings.Sync.Interval())
	schedulerSvc.Start(context.Background())

	r := mux.NewRouter()
	api.Register(
		r,
		handlers.NewCatalogHandler(catalogSvc, projectionSvc, assetsSvc),
		handlers.NewEpisodesHandler(episodesSvc),
		handlers.NewPlayHandler(resolverSvc, api.StreamPath),
		handlers.NewStreamHandler(settings.Upstream.UserAgent, settings.Upstream.Referer, settings.Upstream.StreamTimeout()),
		handlers.NewFavoritesHandler(favoritesSvc, projectionSvc),
		handlers.NewPlaybackHandler(playbackSvc, projectionSvc),
		handlers.NewScheduleHandler(scheduleSvc, projectionSvc),
		assetsSvc.CoverDir(),
	)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	fmt.Printf("Server starting on %s\n", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // No write timeout for streaming
		IdleTimeout:  120 * time.Second,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("Shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	schedulerSvc.Stop(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
}
