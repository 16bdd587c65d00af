// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"iamkolkata/internal/api"
	"iamkolkata/internal/clients/genai"
	"iamkolkata/internal/clients/removebg"
	"iamkolkata/internal/clients/renderer"
	"iamkolkata/internal/common/config"
	"iamkolkata/internal/common/database"
	"iamkolkata/internal/common/logger"
	"iamkolkata/internal/common/observability"
	"iamkolkata/internal/compositor"
	"iamkolkata/internal/geocode"
	"iamkolkata/internal/portrait"
	"iamkolkata/internal/relay"
	"iamkolkata/internal/search"
	"iamkolkata/internal/store/entries"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting server...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry (optional) ---
	var searchIndex *search.Index
	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		searchIndex = search.NewIndex(esClient.Client, cfg.Database.Elasticsearch.Index, log)
		zapLog.Info("Elasticsearch connected successfully")
	} else {
		zapLog.Info("Elasticsearch disabled, search endpoint unavailable")
	}

	// --- Init S3 asset relay ---
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Relay.Region))
	if err != nil {
		zapLog.Fatal("aws config load failed", zap.Error(err))
	}
	s3Client := s3.NewFromConfig(awsCfg)
	assetRelay := relay.New(s3Client, s3.NewPresignClient(s3Client), cfg.Relay, log)
	zapLog.Info("S3 asset relay initialized", zap.String("bucket", cfg.Relay.Bucket))

	// --- Init external service clients ---
	genaiClient := genai.NewClient(cfg.GenAI, log)
	removebgClient := removebg.NewClient(cfg.RemoveBG, log)
	geocodeClient := geocode.NewClient(cfg.Geocode, log)
	localCompositor := compositor.New(cfg.Compositor, log)

	var cloudRenderer portrait.Renderer
	if cfg.Renderer.BaseURL != "" {
		cloudRenderer = renderer.NewClient(cfg.Renderer, log)
		zapLog.Info("Cloud renderer configured")
	} else {
		zapLog.Info("Cloud renderer not configured, portraits render locally")
	}

	jobStore := portrait.NewRedisJobStore(rdb.Client, time.Duration(cfg.Pipeline.JobTTLMin)*time.Minute)
	pipeline := portrait.New(
		genaiClient,
		removebgClient,
		assetRelay,
		cloudRenderer,
		localCompositor,
		jobStore,
		cfg.Pipeline,
		log,
	)

	entryRepo := entries.NewRepository(pg.DB, log)

	var searcher api.Searcher
	if searchIndex != nil {
		searcher = searchIndex
	}
	server := api.NewServer(
		entryRepo,
		searcher,
		genaiClient,
		geocodeClient,
		pipeline,
		rdb.Client,
		obs,
		cfg.Pipeline,
		log,
	)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	zapLog.Info("Shutdown signal received", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http server shutdown failed", zap.Error(err))
	}
	zapLog.Info("Server stopped")
}
