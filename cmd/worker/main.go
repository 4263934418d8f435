package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/hibiken/asynq"
	"github.com/shopfront/accounts/internal/config"
	"github.com/shopfront/accounts/internal/logger"
	"github.com/shopfront/accounts/internal/media"
	"github.com/shopfront/accounts/internal/repositories"
	"github.com/shopfront/accounts/internal/tasks"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		log.Fatalf("Failed to initialize logger: %v\n", err)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting Shopfront Accounts Worker")

	// Connect to database
	db, err := connectDB(cfg.DSN())
	if err != nil {
		logger.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Media host
	store, err := media.NewStore(ctx, cfg.Media)
	if err != nil {
		logger.Logger.Fatal("Failed to initialize media store", zap.Error(err))
	}
	avatars := media.NewAvatars(store, cfg.Media.Folder, cfg.Media.AvatarWidth)

	userRepo := repositories.NewUserRepository(db, logger.Logger)

	// Create Asynq server
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Queues: map[string]int{
				tasks.QueueCleanup: 1,
			},
		},
	)

	// Register task handlers
	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeAvatarDestroy, tasks.NewAvatarDestroyHandler(avatars, logger.Logger))

	// Start worker
	if err := srv.Start(mux); err != nil {
		logger.Logger.Fatal("Failed to start worker", zap.Error(err))
	}

	// Periodic orphaned avatar reconciliation
	reconciler := tasks.NewReconciler(avatars, userRepo, cfg.Reconcile.Grace, logger.Logger)
	scheduler, err := reconciler.Schedule(ctx, cfg.Reconcile.Schedule)
	if err != nil {
		logger.Logger.Fatal("Failed to schedule reconciliation", zap.Error(err))
	}
	scheduler.Start()

	logger.Logger.Info("Worker started", zap.String("reconcile_schedule", cfg.Reconcile.Schedule))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("Shutting down worker...")
	cancel()
	<-scheduler.Stop().Done()
	srv.Shutdown()
	logger.Logger.Info("Worker exited")
}

// connectDB connects to the database
func connectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
