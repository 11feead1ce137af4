package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Aidin1998/accountmanager/internal/bookkeeper"
	"github.com/Aidin1998/accountmanager/internal/cache"
	"github.com/Aidin1998/accountmanager/internal/config"
	"github.com/Aidin1998/accountmanager/internal/lock"
	"github.com/Aidin1998/accountmanager/internal/server"
	"github.com/Aidin1998/accountmanager/internal/store"
	"github.com/Aidin1998/accountmanager/pkg/logger"
	"github.com/Aidin1998/accountmanager/pkg/tracing"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const poolStatsInterval = 30 * time.Second

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	var configPaths []string
	if path := os.Getenv(config.EnvPrefix + "_CONFIG_FILE"); path != "" {
		configPaths = append(configPaths, path)
	}
	cfg, err := config.Load(configPaths...)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(cfg.Tracing.Enabled, os.Stdout)
	if err != nil {
		zapLogger.Fatal("Failed to set up tracing", zap.Error(err))
	}

	db, err := store.Open(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := store.Migrate(db); err != nil {
			zapLogger.Fatal("Failed to migrate database", zap.Error(err))
		}
	}
	go store.CollectPoolStats(ctx, db, cfg.Database.Driver, poolStatsInterval, zapLogger)

	accountStore := store.New(db, zapLogger, store.WithRowLocking(cfg.Database.RowLocking))
	options := []bookkeeper.Option{
		bookkeeper.WithTransactionOptions(bookkeeper.TransactionOptionsFromConfig(cfg.Ledger)),
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		if cfg.Redis.CacheTTL > 0 {
			options = append(options, bookkeeper.WithBalanceCache(cache.NewRedisBalanceCache(redisClient, zapLogger, cfg.Redis.CacheTTL)))
		}
	}

	var locker lock.Locker
	switch cfg.Ledger.LockMode {
	case "redis":
		locker = lock.NewRedisLocker(redisClient, cfg.Redis.LockExpiry, zapLogger)
	default:
		locker = lock.NewLocalLocker()
	}

	bookkeeperSvc := bookkeeper.NewService(zapLogger, accountStore, locker, options...)

	gin.SetMode(gin.ReleaseMode)
	apiServer := server.NewServer(zapLogger, bookkeeperSvc, cfg.Server, cfg.Tracing.ServiceName)
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      apiServer.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		zapLogger.Info("Starting API server",
			zap.String("addr", httpServer.Addr),
			zap.String("lock_mode", cfg.Ledger.LockMode),
			zap.Bool("balance_cache", cfg.Redis.Enabled && cfg.Redis.CacheTTL > 0))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		zapLogger.Info("Shutting down server...")
	case err := <-serverErr:
		zapLogger.Error("API server stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shut down API server", zap.Error(err))
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			zapLogger.Error("Failed to close Redis client", zap.Error(err))
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			zapLogger.Error("Failed to close database", zap.Error(err))
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		zapLogger.Error("Failed to flush traces", zap.Error(err))
	}

	zapLogger.Info("Server exited properly")
}
