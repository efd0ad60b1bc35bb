package main

import (
	"go.uber.org/zap"

	"github.com/barcraft/harvester/internal/compliance"
	"github.com/barcraft/harvester/internal/config"
	"github.com/barcraft/harvester/internal/dedup"
	"github.com/barcraft/harvester/internal/extract"
	"github.com/barcraft/harvester/internal/fetch"
	"github.com/barcraft/harvester/internal/harvest"
	"github.com/barcraft/harvester/internal/normalize"
	"github.com/barcraft/harvester/internal/orchestrator"
	"github.com/barcraft/harvester/internal/quality"
	"github.com/barcraft/harvester/internal/telemetry"
)

type orchestratorDeps struct {
	jobs      harvest.JobStore
	recipes   harvest.RecipeStore
	clusters  harvest.ClusterStore
	policies  harvest.PolicyStore
	fetcher   harvest.Fetcher
	renderer  harvest.Renderer
	ontology  harvest.Ontology
	embedder  harvest.Embedder
	robots    harvest.RobotsPolicy
	breaker   harvest.Breaker
	blobs     harvest.BlobStore
	publisher harvest.Publisher
	tracker   *telemetry.Tracker
	clock     harvest.Clock
	ids       harvest.IDGenerator
	logger    *zap.Logger
}

// orchestratorFromConfig assembles the pipeline from configuration.
func orchestratorFromConfig(cfg config.Config, d orchestratorDeps) *orchestrator.Orchestrator {
	probe := fetch.NewShellDetector(0, nil)
	engine := extract.NewEngine(probe, d.renderer, d.logger.Named("extract"))

	return orchestrator.New(orchestrator.Config{
		Concurrency:   cfg.Harvest.Concurrency,
		QueueDepth:    cfg.Harvest.QueueDepth,
		StageTimeout:  cfg.StageTimeout(),
		SweepInterval: cfg.SweepInterval(),
		SweepBatch:    cfg.Harvest.SweepBatch,
		RetryDefaults: harvest.RetrySettings{
			BaseDelay:   cfg.RetryBase(),
			MaxDelay:    cfg.RetryMax(),
			MaxAttempts: cfg.Harvest.RetryMaxAttempts,
		},
		MaxUnresolvedFraction: cfg.Normalize.MaxUnresolvedFraction,
		SnapshotContentType:   cfg.Storage.ContentType,
		ModerationTopic:       cfg.PubSub.TopicName,
	}, orchestrator.Deps{
		Jobs:       d.jobs,
		Recipes:    d.recipes,
		Clusters:   d.clusters,
		Policies:   d.policies,
		Fetcher:    d.fetcher,
		Extractor:  engine,
		Normalizer: normalize.New(d.ontology, d.logger.Named("normalize")),
		Deduper: dedup.New(dedup.Config{
			DuplicateThreshold: cfg.Dedup.DuplicateThreshold,
			VariantThreshold:   cfg.Dedup.VariantThreshold,
			NeighborCount:      cfg.Dedup.NeighborCount,
		}, d.recipes, d.embedder, d.logger.Named("dedup")),
		Scorer: quality.New(quality.Config{
			AcceptThreshold:     cfg.Quality.AcceptThreshold,
			QuarantineThreshold: cfg.Quality.QuarantineThreshold,
			TrustWeight:         cfg.Quality.TrustWeight,
			StructureWeight:     cfg.Quality.StructureWeight,
			PlausibilityWeight:  cfg.Quality.PlausibilityWeight,
			PopularityWeight:    cfg.Quality.PopularityWeight,
		}),
		Checker:   compliance.New(d.robots),
		Breaker:   d.breaker,
		Blobs:     d.blobs,
		Publisher: d.publisher,
		Tracker:   d.tracker,
		Clock:     d.clock,
		IDs:       d.ids,
		Logger:    d.logger.Named("orchestrator"),
	})
}
