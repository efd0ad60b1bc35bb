// Package main wires together the recipe harvester service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/barcraft/harvester/internal/api"
	gcsblob "github.com/barcraft/harvester/internal/blob/gcs"
	memoryblob "github.com/barcraft/harvester/internal/blob/memory"
	"github.com/barcraft/harvester/internal/circuit"
	"github.com/barcraft/harvester/internal/clock/system"
	"github.com/barcraft/harvester/internal/config"
	"github.com/barcraft/harvester/internal/embedding"
	embmemory "github.com/barcraft/harvester/internal/embedding/memory"
	"github.com/barcraft/harvester/internal/fetch"
	"github.com/barcraft/harvester/internal/harvest"
	"github.com/barcraft/harvester/internal/id/uuid"
	"github.com/barcraft/harvester/internal/logging"
	"github.com/barcraft/harvester/internal/ontology"
	ontmemory "github.com/barcraft/harvester/internal/ontology/memory"
	memorypublisher "github.com/barcraft/harvester/internal/publisher/memory"
	pubsubpublisher "github.com/barcraft/harvester/internal/publisher/pubsub"
	storememory "github.com/barcraft/harvester/internal/store/memory"
	"github.com/barcraft/harvester/internal/store/postgres"
	"github.com/barcraft/harvester/internal/telemetry"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry.Init()
	clock := system.New()
	idGen := uuid.NewUUIDGenerator()
	tracker := telemetry.NewTracker()

	jobs, recipes, clusters, cleanupDB, err := buildStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer cleanupDB()

	var seedPolicies []harvest.SourcePolicy
	if cfg.Policies.File != "" {
		seedPolicies, err = storememory.LoadPolicyFile(cfg.Policies.File)
		if err != nil {
			logger.Fatal("policy file load failed", zap.Error(err))
		}
		logger.Info("policies loaded", zap.Int("count", len(seedPolicies)))
	}
	policies := storememory.NewPolicyStore(seedPolicies)

	blobs, err := buildBlobStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("blob store init failed", zap.Error(err))
	}

	publisher, cleanupPub, err := buildPublisher(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("publisher init failed", zap.Error(err))
	}
	defer cleanupPub()

	fetcher := fetch.New(fetch.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
		DomainQPS: domainQPS(cfg),
	})

	var renderer harvest.Renderer
	if cfg.Headless.Enabled {
		chromeRenderer, err := fetch.NewChromedpRenderer(fetch.RendererConfig{
			MaxParallel: cfg.Headless.MaxParallel,
			NavTimeout:  time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
			DomainQPS:   domainQPS(cfg),
			UserAgent:   cfg.HTTP.UserAgent,
		}, logger.Named("renderer"))
		if err != nil {
			logger.Warn("headless renderer init failed", zap.Error(err))
		} else {
			renderer = chromeRenderer
			defer chromeRenderer.Close()
		}
	}

	var ontologyClient harvest.Ontology
	if cfg.OntologyBase() != "" {
		ontologyClient = ontology.NewClient(cfg.OntologyBase(), time.Duration(cfg.Ontology.TimeoutSeconds)*time.Second)
	} else {
		logger.Warn("no ontology service configured, using empty in-memory table")
		ontologyClient = ontmemory.New(nil)
	}

	var embedder harvest.Embedder
	if cfg.EmbeddingBase() != "" {
		embedder = embedding.NewClient(cfg.EmbeddingBase(), time.Duration(cfg.Embedding.TimeoutSeconds)*time.Second)
	} else {
		logger.Warn("no embedding service configured, using in-process embedder")
		embedder = embmemory.New(0)
	}

	robots := fetch.NewRobotsEnforcer(true, cfg.HTTP.UserAgent, logger.Named("robots"))
	breaker := circuit.New(
		cfg.Circuit.WindowSize,
		cfg.Circuit.FailureLimit,
		time.Duration(cfg.Circuit.CooldownSeconds)*time.Second,
		clock,
	)
	breaker.UseDomainRates(func(domain string) (float64, bool) {
		policy, ok, err := policies.ForDomain(ctx, domain)
		if err != nil || !ok || policy.Alerts.MaxFailureRate <= 0 {
			return 0, false
		}
		return policy.Alerts.MaxFailureRate, true
	})

	orch := orchestratorFromConfig(cfg, orchestratorDeps{
		jobs:      jobs,
		recipes:   recipes,
		clusters:  clusters,
		policies:  policies,
		fetcher:   fetcher,
		renderer:  renderer,
		ontology:  ontologyClient,
		embedder:  embedder,
		robots:    robots,
		breaker:   breaker,
		blobs:     blobs,
		publisher: publisher,
		tracker:   tracker,
		clock:     clock,
		ids:       idGen,
		logger:    logger,
	})

	apiServer := api.NewServer(orch, jobs, recipes, policies, tracker, logger.Named("api"), cfg)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("orchestrator started", zap.Int("concurrency", cfg.Harvest.Concurrency))
		orch.Run(ctx)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func domainQPS(cfg config.Config) float64 {
	if cfg.HTTP.DelaySeconds <= 0 {
		return 0
	}
	return 1.0 / float64(cfg.HTTP.DelaySeconds)
}

func buildStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (harvest.JobStore, harvest.RecipeStore, harvest.ClusterStore, func(), error) {
	if cfg.DB.DSN == "" {
		logger.Info("no database configured, using in-memory stores")
		return storememory.NewJobStore(), storememory.NewRecipeStore(), storememory.NewClusterStore(), func() {}, nil
	}

	pool, err := postgres.Connect(ctx, postgres.Config{
		DSN:      cfg.DB.DSN,
		MaxConns: int32(cfg.DB.MaxOpenConns),
		MinConns: int32(cfg.DB.MaxIdleConns),
	})
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	jobs, err := postgres.NewJobStore(pool)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	recipes, err := postgres.NewRecipeStore(pool)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	clusters, err := postgres.NewClusterStore(pool)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	logger.Info("connected to postgres")
	return jobs, recipes, clusters, pool.Close, nil
}

func buildBlobStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (harvest.BlobStore, error) {
	if cfg.Storage.GCSBucket == "" {
		logger.Info("no GCS bucket configured, archiving snapshots in memory")
		return memoryblob.NewBlobStore(), nil
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	logger.Info("archiving snapshots to GCS", zap.String("bucket", cfg.Storage.GCSBucket))
	return gcsblob.New(client, gcsblob.Config{Bucket: cfg.Storage.GCSBucket, Prefix: cfg.Storage.Prefix})
}

func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (harvest.Publisher, func(), error) {
	if cfg.PubSub.ProjectID == "" {
		logger.Info("no Pub/Sub project configured, recording events in memory")
		return memorypublisher.NewPublisher(), func() {}, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	pub := pubsubpublisher.New(client)
	logger.Info("publishing moderation events to Pub/Sub",
		zap.String("project", cfg.PubSub.ProjectID),
		zap.String("topic", cfg.PubSub.TopicName))
	return pub, pub.Stop, nil
}
