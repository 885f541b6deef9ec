package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"safeskin/internal/config"
	"safeskin/internal/history"
	"safeskin/internal/httpx"
	"safeskin/internal/inference"
	"safeskin/internal/server"
	"safeskin/internal/storage"
	"safeskin/internal/sweep"
)

func main() {
	cfg := config.LoadConfig()

	timeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	log.Printf("External HTTP timeout: %s", timeout)

	backend := inference.NewClient(cfg.BackendAPIURL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := backend.CheckHealth(ctx); err != nil {
		log.Printf("Warning: inference backend %s not reachable: %v", cfg.BackendAPIURL, err)
	} else {
		log.Printf("Inference backend %s is healthy", cfg.BackendAPIURL)
	}
	cancel()

	startSweep(cfg)

	handler := server.NewHandler(backend)
	addr := ":" + cfg.Port
	log.Printf("Starting screening proxy on %s (backend %s, static %s)", addr, cfg.BackendAPIURL, cfg.StaticDir)
	if err := http.ListenAndServe(addr, server.Routes(handler, cfg.StaticDir)); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// startSweep wires the reconciliation sweep when both a schedule and a
// managed project are configured. The history backend decides where record
// lookups go.
func startSweep(cfg config.Config) {
	if cfg.SweepSchedule == "" {
		log.Println("Storage sweep disabled (sweep_schedule not set)")
		return
	}
	if cfg.ProjectURL == "" {
		log.Println("Storage sweep disabled: project_url not configured")
		return
	}

	objects := storage.NewClient(cfg.ProjectURL, cfg.ProjectAPIKey)

	var store history.Store
	switch cfg.HistoryBackend {
	case "sqlite":
		db, err := history.InitDB(cfg.DBPath)
		if err != nil {
			log.Fatalf("Failed to init database: %v", err)
		}
		store = history.NewSQLiteStore(db)
	default:
		store = history.NewRESTStore(cfg.ProjectURL, cfg.ProjectAPIKey, cfg.HistoryTable)
	}

	minAge := time.Duration(cfg.SweepMinAgeHours) * time.Hour
	sweep.StartScheduler(cfg.SweepSchedule, sweep.New(objects, cfg.StorageBucket, store, minAge))
}
