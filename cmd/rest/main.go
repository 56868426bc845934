package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"support-chatbot-be/internal/bootstrap"
	"support-chatbot-be/internal/config"
	"support-chatbot-be/internal/server"
	"support-chatbot-be/internal/tracer"
	"support-chatbot-be/pkg/database"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(gormDB, cfg)
	if err != nil {
		log.Fatalf("Failed to bootstrap: %v", err)
	}

	shutdownTracer := tracer.InitTracer(cfg.App.OtelEnabled, container.Logger)

	// 4. Start Background Services
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := container.Start(ctx); err != nil {
		log.Fatalf("Failed to start background services: %v", err)
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Run()
	}()

	// 6. Wait for a signal or a listener failure
	select {
	case <-ctx.Done():
		container.Logger.Info("HTTP", "Shutdown signal received", nil)
	case err := <-serverErr:
		container.Logger.Error("HTTP", "Server stopped", map[string]interface{}{"error": err.Error()})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		container.Logger.Warn("HTTP", "Server shutdown incomplete", map[string]interface{}{"error": err.Error()})
	}
	if err := container.Shutdown(shutdownCtx); err != nil {
		container.Logger.Warn("HTTP", "Container shutdown incomplete", map[string]interface{}{"error": err.Error()})
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Printf("Tracer shutdown: %v", err)
	}
	if err := database.Close(gormDB); err != nil {
		log.Printf("Database close: %v", err)
	}
}
