package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"studentpay-server-go/config"
	"studentpay-server-go/db"
	"studentpay-server-go/handlers"
	"studentpay-server-go/logger"
	"studentpay-server-go/messaging"
	"studentpay-server-go/metrics"
)

const (
	serviceName = "studentpay-server"
	version     = "1.0.0"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	_ = godotenv.Load()

	slogLogger := logger.NewWithServiceContext(serviceName, version)
	slog.SetDefault(slogLogger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	slogLogger.Info("config loaded", "env", cfg.Env, "storage", cfg.Storage.Driver)

	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg, slogLogger)
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}
	defer closeStore()

	repos := db.NewRepositories(store, db.DocumentNames{
		Users:         cfg.Storage.UsersDocument,
		Students:      cfg.Storage.StudentsDocument,
		Notifications: cfg.Storage.NotificationsDocument,
	}, slogLogger)

	// Create empty documents on first start
	if err := repos.EnsureDocuments(ctx, slogLogger); err != nil {
		log.Fatalf("failed to prepare documents: %v", err)
	}

	publisher := openPublisher(cfg, slogLogger)
	defer func() {
		if err := publisher.Close(); err != nil {
			slogLogger.Warn("publisher close error", "error", err)
		}
	}()

	m := metrics.New()
	apiHandler := handlers.NewAPIHandler(repos, publisher, m, slogLogger)

	gin.SetMode(gin.ReleaseMode)
	router := handlers.NewRouter(apiHandler, handlers.RouterOptions{
		StaticDir: cfg.Server.StaticDir,
		Metrics:   m,
		Logger:    slogLogger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slogLogger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to run server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	slogLogger.Info("shutting down server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		slogLogger.Error("server forced to shutdown", "error", err)
	}
}

// openStore selects the document backend named by storage.driver
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (db.Store, func(), error) {
	if cfg.Storage.Driver != config.DriverRedis {
		if err := os.MkdirAll(cfg.Storage.Dir, 0o755); err != nil {
			return nil, nil, err
		}
		logger.Info("using file storage", "dir", cfg.Storage.Dir)
		return db.NewFileStore(cfg.Storage.Dir), func() {}, nil
	}

	client, err := db.InitializeRedisClient(ctx, db.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return db.NewRedisStore(client, cfg.Redis.KeyPrefix), closeRedis(client, logger), nil
}

func closeRedis(client *redis.Client, logger *slog.Logger) func() {
	return func() {
		if err := client.Close(); err != nil {
			logger.Warn("redis close error", "error", err)
		}
	}
}

// openPublisher connects to NATS when configured. The server keeps running
// without events if the connection fails.
func openPublisher(cfg *config.Config, logger *slog.Logger) messaging.Publisher {
	if cfg.NATS.URL == "" {
		return messaging.NopPublisher{}
	}
	publisher, err := messaging.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
	if err != nil {
		logger.Warn("failed to initialize NATS publisher", "error", err)
		return messaging.NopPublisher{}
	}
	return publisher
}
