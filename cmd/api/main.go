package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/visrodeck/relaygo/internal/config"
	"github.com/visrodeck/relaygo/internal/database"
	"github.com/visrodeck/relaygo/internal/handlers"
	"github.com/visrodeck/relaygo/internal/middleware"
	"github.com/visrodeck/relaygo/internal/relay"
	"github.com/visrodeck/relaygo/internal/retention"
	"github.com/visrodeck/relaygo/internal/store"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize database (detects embedded vs external automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// 3. Synchronize schema; the relay cannot run without its two tables
	log.Println("🚀 Synchronizing database schema...")
	if err := db.Migrate(); err != nil {
		db.Close()
		log.Fatalf("Database initialization failed: %v", err)
	}
	log.Println("✅ Schema synchronized successfully")

	// 4. Wire up the relay pipeline
	messages := store.NewMessages(db)
	devices := store.NewDevices(db)
	maintainer := retention.NewMaintainer(messages)
	svc := relay.NewService(messages, devices, maintainer)

	// 5. HTTP router with middleware chain
	router := handlers.NewRouter(svc)
	handler := middleware.CORSMiddleware(cfg.AllowedOrigins)(
		middleware.RequestIDMiddleware(router))

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// 6. Start server in goroutine
	go func() {
		log.Println("╔══════════════════════════════════════════╗")
		log.Println("║     VISRODECK RELAY SERVER ONLINE        ║")
		log.Println("╚══════════════════════════════════════════╝")
		log.Printf("✓ Server running on port %s", cfg.Port)
		log.Println("✓ Encryption enabled (AES-256-GCM)")
		log.Println("✓ FIFO cleanup active")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	sig := <-shutdown
	log.Printf("⚠️  Received signal: %v. Shutting down gracefully...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️  HTTP shutdown error: %v", err)
	}

	// Retention tasks still in flight are abandoned here; the table may run
	// over the tail cap until the next trim after restart.
	if err := db.Close(); err != nil {
		log.Printf("⚠️  Database close error: %v", err)
	}
	log.Println("🛑 Shutdown complete")
}
