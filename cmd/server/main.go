package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/chamahub/backend/internal/app"
	"github.com/chamahub/backend/internal/config"
	"github.com/chamahub/backend/internal/server"
)

func main() {
	// Load .env file if present (for local development)
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ Startup error: %v", err)
	}
	defer a.Close()

	if cfg.SchedulerEnabled {
		a.Scheduler.Start()
		log.Printf("✅ Scheduler started (%s)", cfg.Timezone)
	} else {
		log.Println("⚠️  Scheduler disabled, jobs run only on demand")
	}

	router := server.New(a)
	defer router.Close()

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// WriteTimeout must be 0 for the activity websocket
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🚀 Chama backend listening at http://%s", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Printf("❌ Server error: %v", err)
	}

	log.Println("🛑 Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  HTTP shutdown: %v", err)
	}
	if err := a.Scheduler.Stop(shutdownCtx); err != nil {
		log.Printf("⚠️  Scheduler did not drain: %v", err)
	}
}
