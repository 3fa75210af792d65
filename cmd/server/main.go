package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"github.com/tmet/flightbook/internal/booking"
	"github.com/tmet/flightbook/internal/cache"
	"github.com/tmet/flightbook/internal/config"
	"github.com/tmet/flightbook/internal/database"
	"github.com/tmet/flightbook/internal/handlers"
	"github.com/tmet/flightbook/internal/router"
	"github.com/tmet/flightbook/internal/service"
	"github.com/tmet/flightbook/internal/websocket"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	if err := runMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create database pool: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	repo := database.NewRepository(pool)

	// Seat counters default to the flights table; with the redis backend
	// they move into Redis and are seeded from Postgres at boot.
	var inventory booking.InventoryStore = repo
	var seeder service.InventorySeeder
	if cfg.InventoryBackend == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rdb.Close()

		// Counters are rebuilt from the ticket table, not the stored
		// column, so a crash between the two stores cannot resurrect
		// already-sold seats.
		seatInventory := cache.NewSeatInventory(rdb, repo)
		synced, err := seatInventory.SyncFromStore(ctx, repo)
		if err != nil {
			log.Fatalf("Failed to sync seat counters: %v", err)
		}
		log.Printf("Synced seat counters for %d flights", synced)
		inventory = seatInventory
		seeder = seatInventory
		log.Printf("Seat counters served from redis at %s", cfg.RedisAddr)
	}

	coordinator := booking.NewCoordinator(inventory, repo)

	hub := websocket.NewHub()
	go hub.Run()

	bookingService := service.NewBookingService(repo, coordinator, hub, seeder)
	h := handlers.NewHandler(bookingService)
	r := router.SetupRouter(h, hub)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("API server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func runMigrations(databaseURL, dir string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open database for migrations: %w", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, dir)
}
