package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notechat-be/internal/bootstrap"
	"notechat-be/internal/config"
	"notechat-be/internal/server"
	"notechat-be/internal/tracer"
	"notechat-be/pkg/database"

	gormlogger "gorm.io/gorm/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// 2. Initialize Tracer
	shutdownTracer := tracer.InitTracer(cfg.Tracing)

	// 3. Initialize Database
	sqlLogLevel := gormlogger.Info
	if cfg.IsProduction() {
		sqlLogLevel = gormlogger.Warn
	}
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection, sqlLogLevel)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 4. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 5. Initialize Server
	srv := server.New(cfg, container)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("Received %s, shutting down", sig)
	case err := <-serverErr:
		log.Printf("Server stopped: %v", err)
	}

	// 6. Graceful Shutdown
	if err := srv.Shutdown(shutdownTimeout); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdownTracer(ctx); err != nil {
		log.Printf("Tracer shutdown error: %v", err)
	}
}
