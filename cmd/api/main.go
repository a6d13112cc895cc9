package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xelth-com/arcasync/internal/app"
	"github.com/xelth-com/arcasync/internal/buildinfo"
	"github.com/xelth-com/arcasync/internal/config"
	"github.com/xelth-com/arcasync/internal/handlers"
	"github.com/xelth-com/arcasync/internal/jobs"
	"github.com/xelth-com/arcasync/internal/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Printf("🚀 arcasync %s (%s) starting", buildinfo.Version, cfg.NodeEnv)

	// 2. Live job events
	hub := websocket.NewHub()
	go hub.Run()

	// 3. Ledger, ERP, store client and jobs
	svc, err := app.New(cfg, hub)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	// 4. Cron schedules (SCHEDULE_<JOB>)
	scheduler := jobs.NewScheduler(svc.Runner)
	if err := scheduler.Configure(cfg.Schedules); err != nil {
		log.Printf("⚠️ Scheduler: %v", err)
	}
	scheduler.Start()

	// 5. Set up HTTP router
	router := handlers.NewRouter(handlers.Options{
		Runner:     svc.Runner,
		Catalog:    svc.Catalog,
		Hub:        hub,
		JWTSecret:  cfg.JWTSecret,
		APIKeyHash: cfg.APIKeyHash,
		Scheduled:  scheduler.Scheduled(),
		Checks: map[string]handlers.HealthCheck{
			"ledger": svc.PingLedger,
			"arca":   svc.Store.Ping,
		},
	})

	// 6. Start server with graceful shutdown
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		log.Printf("🚀 Server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sig := <-shutdown
	log.Printf("⚠️  Received signal: %v. Shutting down gracefully...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// No new scheduled runs, then let the active ones finish or cancel
	scheduler.Stop()
	svc.Close(ctx)

	log.Println("✅ Shutdown complete")
}
