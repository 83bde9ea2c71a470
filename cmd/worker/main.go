package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zoomtile/zoomtile/internal/access"
	"github.com/zoomtile/zoomtile/internal/codec"
	"github.com/zoomtile/zoomtile/internal/config"
	"github.com/zoomtile/zoomtile/internal/render"
	"github.com/zoomtile/zoomtile/internal/resolve"
	"github.com/zoomtile/zoomtile/internal/storage"
	"github.com/zoomtile/zoomtile/internal/store"
	"github.com/zoomtile/zoomtile/internal/telemetry"
	"github.com/zoomtile/zoomtile/internal/webhook"
	"github.com/zoomtile/zoomtile/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[worker] ", log.LstdFlags|log.Lmsgprefix)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "zoomtile-worker",
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		SampleRatio:  cfg.Telemetry.SampleRatio,
	}, logger)
	cancel()
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}

	if err := codec.Startup(); err != nil {
		logger.Fatalf("codec startup failed: %v", err)
	}
	defer codec.Shutdown()

	storageClient, err := storage.NewClient(storage.Config{
		Endpoint: cfg.Storage.Endpoint,
		Access:   cfg.Storage.AccessKey,
		Secret:   cfg.Storage.SecretKey,
		Bucket:   cfg.Storage.Bucket,
		UseSSL:   cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Fatalf("storage client init failed: %v", err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 15*time.Second)
	err = storageClient.EnsureBucket(ctx)
	cancel()
	if err != nil {
		logger.Fatalf("bucket setup failed: %v", err)
	}

	var resolver render.Resolver
	if dir := strings.TrimSpace(cfg.Source.Dir); dir != "" {
		resolver = resolve.Local{Root: dir}
		logger.Printf("resolving sources from local dir=%s", dir)
	} else {
		resolver = resolve.Object{Storage: storageClient, Prefix: cfg.Source.Prefix}
		logger.Printf("resolving sources from bucket=%s prefix=%s", storageClient.Bucket(), cfg.Source.Prefix)
	}

	var policy render.AccessPolicy
	if key := strings.TrimSpace(cfg.Access.DenyListKey); key != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		})
		defer redisClient.Close()

		denyList, err := access.NewRedisDenyList(redisClient, key)
		if err != nil {
			logger.Fatalf("deny list init failed: %v", err)
		}
		policy = denyList
		logger.Printf("access deny list enabled key=%s", key)
	}

	renderer := render.NewService(resolver, codec.DefaultRegistry(), policy)

	var renderStore store.RenderStore
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		ctx, cancel = context.WithTimeout(context.Background(), 15*time.Second)
		pgStore, err := store.NewPostgresRenderStore(ctx, dsn)
		cancel()
		if err != nil {
			logger.Fatalf("postgres render store init failed: %v", err)
		}
		defer pgStore.Close()
		renderStore = pgStore
		logger.Printf("render log backed by postgres")
	} else {
		renderStore = store.NewMemoryRenderStore(0)
		logger.Printf("render log held in memory")
	}

	webhookClient := webhook.NewClient(webhook.Config{
		SigningSecret: cfg.Webhook.SigningSecret,
		Timeout:       10 * time.Second,
		MaxAttempts:   3,
	})

	srv, err := worker.NewServer(logger, cfg.Queue, cfg.Worker, renderer, storageClient, webhookClient, renderStore)
	if err != nil {
		logger.Fatalf("worker init failed: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", srv.MetricsHandler())
	mux.Handle("/renders", srv.RecentRendersHandler())

	metricsServer := &http.Server{
		Addr:         cfg.Worker.MetricsAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Printf("metrics listening on %s", cfg.Worker.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("metrics server failed: %v", err)
		}
	}()

	logger.Printf(
		"starting worker concurrency=%d max_active_renders=%d queue=%s redis=%s",
		cfg.Worker.Concurrency,
		cfg.Worker.MaxActiveJobs,
		cfg.Queue.Name,
		cfg.Queue.RedisAddr,
	)

	// asynq handles SIGINT and SIGTERM itself; Run returns once the
	// queue has drained in-flight tasks.
	if err := srv.Run(); err != nil {
		logger.Fatalf("worker failed: %v", err)
	}

	logger.Println("shutting down")
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Printf("metrics shutdown failed: %v", err)
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.Printf("tracing shutdown failed: %v", err)
	}
}
