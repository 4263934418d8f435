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
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/hibiken/asynq"
	"github.com/shopfront/accounts/docs"
	"github.com/shopfront/accounts/internal/config"
	"github.com/shopfront/accounts/internal/handlers"
	"github.com/shopfront/accounts/internal/logger"
	"github.com/shopfront/accounts/internal/mailer"
	"github.com/shopfront/accounts/internal/media"
	"github.com/shopfront/accounts/internal/middleware"
	"github.com/shopfront/accounts/internal/models"
	"github.com/shopfront/accounts/internal/repositories"
	"github.com/shopfront/accounts/internal/services"
	"github.com/shopfront/accounts/internal/session"
	"github.com/shopfront/accounts/internal/tasks"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// @title Shopfront Accounts API
// @version 1.0
// @description Storefront user accounts: registration, sessions, password recovery, profiles and user administration

// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
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

	logger.Logger.Info("Starting Shopfront Accounts API")

	// Connect to database
	db, err := connectDB(cfg.DSN())
	if err != nil {
		logger.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := runMigrations(db); err != nil {
		logger.Logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	ctx := context.Background()

	// Session revocation
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	var denylist session.Denylist = session.NopDenylist{}
	if cfg.Session.DenylistStore {
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Logger.Warn("Redis unavailable, revoked sessions are accepted until it recovers", zap.Error(err))
		}
		denylist = session.NewRedisDenylist(rdb)
	}

	// Cleanup queue for avatar objects that could not be destroyed inline
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()
	cleanupQueue := tasks.NewCleanupQueue(asynqClient, logger.Logger)

	// Media host
	store, err := media.NewStore(ctx, cfg.Media)
	if err != nil {
		logger.Logger.Fatal("Failed to initialize media store", zap.Error(err))
	}
	avatars := media.NewAvatars(store, cfg.Media.Folder, cfg.Media.AvatarWidth)

	issuer := session.NewIssuer(cfg.Session)

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db, logger.Logger)

	// Initialize services
	authService := services.NewAuthService(userRepo, avatars, cleanupQueue, issuer, denylist, mailer.NewSMTPMailer(cfg.SMTP), cfg.Reset.TokenTTL, logger.Logger)
	profileService := services.NewProfileService(userRepo, avatars, cleanupQueue, issuer, logger.Logger)
	adminService := services.NewAdminService(userRepo, avatars, cleanupQueue, logger.Logger)
	reconciler := tasks.NewReconciler(avatars, userRepo, cfg.Reconcile.Grace, logger.Logger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, issuer, cfg.Reset.URLBase, logger.Logger)
	profileHandler := handlers.NewProfileHandler(profileService, issuer, logger.Logger)
	adminHandler := handlers.NewAdminHandler(adminService, logger.Logger)
	reconcileHandler := handlers.NewReconcileHandler(reconciler, logger.Logger)

	// Initialize auth middleware
	authMiddleware := middleware.Authenticate(issuer, denylist, userRepo, logger.Logger)
	adminMiddleware := middleware.RequireRole(models.RoleAdmin)
	apiKeyMiddleware := middleware.APIKey(cfg.APIKey)

	// Setup router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger.Logger))
	r.Use(middleware.Recovery(logger.Logger))
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	r.Use(httprate.LimitByIP(100, time.Minute))
	r.Use(middleware.RequestSizeLimit(middleware.DefaultMaxRequestSize))

	// Swagger documentation
	docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", cfg.Server.Port)
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://localhost:%d/swagger/doc.json", cfg.Server.Port)),
	))

	// Locally hosted avatars
	if cfg.Media.Driver == config.MediaDriverLocal {
		r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(cfg.Media.BasePath))))
	}

	// Scope router to /api/v1
	r.Route("/api/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r)
		// Routes of the signed-in user
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			profileHandler.RegisterRoutes(r)
		})
		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware, adminMiddleware)
			adminHandler.RegisterRoutes(r)
		})
		// Internal routes for operators
		r.Group(func(r chi.Router) {
			r.Use(apiKeyMiddleware)
			reconcileHandler.RegisterRoutes(r)
		})
	})

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Logger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Logger.Info("Server exited")
}

// connectDB connects to the database
func connectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// runMigrations runs database migrations
func runMigrations(db *sql.DB) error {
	driver, err := mysql.WithInstance(db, &mysql.Config{
		MigrationsTable: "accounts_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	migrationPath := "file://migrations"
	if _, err := os.Stat("migrations"); os.IsNotExist(err) {
		// Try parent directories if running from cmd/api
		for _, candidate := range []string{"../migrations", "../../migrations"} {
			if _, err := os.Stat(candidate); err == nil {
				migrationPath = "file://" + candidate
				break
			}
		}
	}

	m, err := migrate.NewWithDatabaseInstance(migrationPath, "mysql", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
