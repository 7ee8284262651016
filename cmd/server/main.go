package main

import (
	"alcyxob/gym-sessions/internal/api"
	"alcyxob/gym-sessions/internal/authz"
	"alcyxob/gym-sessions/internal/config"
	"alcyxob/gym-sessions/internal/notify"
	"alcyxob/gym-sessions/internal/repository"
	"alcyxob/gym-sessions/internal/repository/memory"
	"alcyxob/gym-sessions/internal/repository/mongo"
	"alcyxob/gym-sessions/internal/service"
	"alcyxob/gym-sessions/internal/storage"
	"alcyxob/gym-sessions/internal/telemetry"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

// @title Gym Sessions API
// @version 1.0
// @description API for gym members, PT session balances, session records and diet/workout logs.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	log.Println("Starting Gym Sessions Server...")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	if cfg.JWT.Secret == "" {
		log.Fatal("FATAL: JWT secret is not configured (JWT_SECRET)")
	}
	log.Println("Configuration loaded.")

	// --- Tracing ---
	shutdownTracing, err := telemetry.Setup(context.Background(), cfg.Telemetry)
	if err != nil {
		log.Fatalf("FATAL: Could not set up tracing: %v", err)
	}

	// --- Repositories ---
	repos, closeDB := openRepositories(cfg.Database)
	defer closeDB()

	// --- Bootstrap Admin ---
	if cfg.Bootstrap.AdminEmail != "" && cfg.Bootstrap.AdminPassword != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := service.EnsureAdmin(ctx, repos.Members, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword); err != nil {
			log.Printf("ERROR: Failed to create bootstrap admin: %v", err)
		}
		cancel()
	}

	// --- Initialize Storage ---
	var fileStorage storage.FileStorage
	if cfg.S3.BucketName != "" {
		log.Println("Initializing file storage service...")
		fileStorage, err = storage.NewS3Storage(context.Background(), cfg.S3)
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize S3 storage: %v", err)
		}
	} else {
		log.Println("WARN: S3 bucket not configured; log media is disabled")
	}

	// --- Notifications ---
	var publisher notify.Publisher
	if cfg.Redis.URL != "" {
		redisPublisher, err := notify.NewRedisPublisher(cfg.Redis.URL, cfg.Redis.ChannelPrefix)
		if err != nil {
			log.Fatalf("FATAL: Could not connect to Redis: %v", err)
		}
		defer redisPublisher.Close()
		publisher = redisPublisher
		log.Println("Redis notification fan-out enabled.")
	}
	dispatcher := notify.NewDispatcher(repos.Notifications, publisher, cfg.Notify.Timeout)

	// --- Initialize Services ---
	log.Println("Initializing services...")
	engine := authz.NewEngine(repos.Members)
	ledgerService := service.NewLedgerService(repos, engine, service.LedgerPolicy{
		AutoDemote:        cfg.Ledger.AutoDemote,
		LowBalanceWarning: cfg.Ledger.LowBalanceWarning,
		AlertThreshold:    cfg.Ledger.AlertThreshold,
	})
	services := api.Services{
		Auth:          service.NewAuthService(repos.Members, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.Auth.RatePerMinute, cfg.Auth.Burst),
		Directory:     service.NewDirectoryService(repos, engine),
		Ledger:        ledgerService,
		Sessions:      service.NewSessionService(repos, ledgerService, engine, dispatcher),
		Logs:          service.NewLogService(repos, engine, fileStorage, dispatcher, cfg.S3.PresignExpiry),
		Notifications: service.NewNotificationService(repos, engine),
		Comments:      service.NewCommentService(repos, engine, dispatcher),
		Stats:         service.NewStatsService(repos, engine),
	}

	// --- Initialize Gin Engine ---
	router := gin.Default() // Includes Logger and Recovery middleware
	api.SetupRoutes(router, cfg.JWT.Secret, services)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server starting on %s", cfg.Server.Address)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: ListenAndServe Error: %v", err)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Printf("ERROR: Server forced to shutdown: %v", err)
	}
	dispatcher.Wait()
	if err := shutdownTracing(ctxShutdown); err != nil {
		log.Printf("ERROR: Failed to flush traces: %v", err)
	}

	log.Println("Server exiting.")
}

// openRepositories connects the configured backend. The returned func releases it.
func openRepositories(cfg config.DatabaseConfig) (repository.Set, func()) {
	switch cfg.Driver {
	case "memory":
		log.Println("WARN: Using the in-memory store; data is lost on restart")
		return memory.NewStore().Repositories(), func() {}
	case "mongo", "":
	default:
		log.Fatalf("FATAL: Unknown database driver %q", cfg.Driver)
	}

	dbClient, err := mongo.ConnectDB(cfg.URI, "gym-sessions")
	if err != nil {
		log.Fatalf("FATAL: Could not connect to MongoDB: %v", err)
	}
	appDB := dbClient.Database(cfg.Name)
	log.Println("Database connection established.")

	// --- Ensure Indexes ---
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		mongo.EnsureIndexes(ctx, appDB)
		log.Println("Index creation process completed.")
	}()

	if cfg.Transactions {
		log.Println("MongoDB multi-document transactions enabled.")
	} else {
		log.Println("WARN: MongoDB transactions disabled; failed units of work are undone by compensating writes.")
	}
	return mongo.NewRepositories(dbClient, appDB, cfg.Transactions), func() {
		log.Println("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Printf("ERROR: Failed to disconnect MongoDB: %v", err)
		}
	}
}
