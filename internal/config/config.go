// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Harvest   HarvestConfig   `mapstructure:"harvest"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Dedup     DedupConfig     `mapstructure:"dedup"`
	Quality   QualityConfig   `mapstructure:"quality"`
	Normalize NormalizeConfig `mapstructure:"normalize"`
	Circuit   CircuitConfig   `mapstructure:"circuit"`
	Ontology  ServiceConfig   `mapstructure:"ontology"`
	Embedding ServiceConfig   `mapstructure:"embedding"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Policies  PoliciesConfig  `mapstructure:"policies"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// HarvestConfig governs the orchestrator worker pool and retry sweeper.
type HarvestConfig struct {
	Concurrency       int `mapstructure:"concurrency"`
	QueueDepth        int `mapstructure:"queue_depth"`
	SweepSeconds      int `mapstructure:"sweep_seconds"`
	SweepBatch        int `mapstructure:"sweep_batch"`
	StageTimeoutSec   int `mapstructure:"stage_timeout_seconds"`
	RetryBaseSeconds  int `mapstructure:"retry_base_seconds"`
	RetryMaxSeconds   int `mapstructure:"retry_max_seconds"`
	RetryMaxAttempts  int `mapstructure:"retry_max_attempts"`
	DiscoveryMaxLinks int `mapstructure:"discovery_max_links"`
}

// HTTPConfig configures the plain fetcher.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
	DelaySeconds   int    `mapstructure:"delay_seconds"`
	PerDomainMax   int    `mapstructure:"per_domain_max"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// DedupConfig holds similarity thresholds for the two-layer dedup engine.
type DedupConfig struct {
	DuplicateThreshold float64 `mapstructure:"duplicate_threshold"`
	VariantThreshold   float64 `mapstructure:"variant_threshold"`
	NeighborCount      int     `mapstructure:"neighbor_count"`
}

// QualityConfig holds scoring weights and disposition cutoffs.
type QualityConfig struct {
	AcceptThreshold     float64 `mapstructure:"accept_threshold"`
	QuarantineThreshold float64 `mapstructure:"quarantine_threshold"`
	TrustWeight         float64 `mapstructure:"trust_weight"`
	StructureWeight     float64 `mapstructure:"structure_weight"`
	PlausibilityWeight  float64 `mapstructure:"plausibility_weight"`
	PopularityWeight    float64 `mapstructure:"popularity_weight"`
}

// NormalizeConfig bounds how sloppy an extraction may be before it fails.
type NormalizeConfig struct {
	MaxUnresolvedFraction float64 `mapstructure:"max_unresolved_fraction"`
}

// CircuitConfig tunes the per-domain circuit breaker.
type CircuitConfig struct {
	WindowSize      int `mapstructure:"window_size"`
	FailureLimit    int `mapstructure:"failure_limit"`
	CooldownSeconds int `mapstructure:"cooldown_seconds"`
}

// ServiceConfig points at an internal collaborator service.
type ServiceConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// StorageConfig sets paths and content types for raw snapshot archiving.
type StorageConfig struct {
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// PubSubConfig holds metadata for moderation event publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// PoliciesConfig locates the source policy seed file for the memory store.
type PoliciesConfig struct {
	File string `mapstructure:"file"`
}

// StageTimeout converts the per-stage budget into a duration.
func (c Config) StageTimeout() time.Duration {
	return time.Duration(c.Harvest.StageTimeoutSec) * time.Second
}

// SweepInterval converts the retry sweep cadence into a duration.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.Harvest.SweepSeconds) * time.Second
}

// RetryBase converts the default retry base delay into a duration.
func (c Config) RetryBase() time.Duration {
	return time.Duration(c.Harvest.RetryBaseSeconds) * time.Second
}

// RetryMax converts the default retry delay ceiling into a duration.
func (c Config) RetryMax() time.Duration {
	return time.Duration(c.Harvest.RetryMaxSeconds) * time.Second
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Harvest.Concurrency <= 0 {
		return fmt.Errorf("harvest.concurrency must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Dedup.DuplicateThreshold < c.Dedup.VariantThreshold {
		return fmt.Errorf("dedup.duplicate_threshold must be >= dedup.variant_threshold")
	}
	if c.Quality.AcceptThreshold < c.Quality.QuarantineThreshold {
		return fmt.Errorf("quality.accept_threshold must be >= quality.quarantine_threshold")
	}
	if f := c.Normalize.MaxUnresolvedFraction; f < 0 || f > 1 {
		return fmt.Errorf("normalize.max_unresolved_fraction must be in [0,1]")
	}
	if c.Circuit.WindowSize <= 0 || c.Circuit.FailureLimit <= 0 {
		return fmt.Errorf("circuit.window_size and circuit.failure_limit must be > 0")
	}
	if c.Circuit.FailureLimit > c.Circuit.WindowSize {
		return fmt.Errorf("circuit.failure_limit must be <= circuit.window_size")
	}
	return nil
}

func trimBase(url string) string {
	return strings.TrimSuffix(url, "/")
}

// OntologyBase returns the ontology service base URL without a trailing slash.
func (c Config) OntologyBase() string { return trimBase(c.Ontology.BaseURL) }

// EmbeddingBase returns the embedding service base URL without a trailing slash.
func (c Config) EmbeddingBase() string { return trimBase(c.Embedding.BaseURL) }
