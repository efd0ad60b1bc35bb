package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("harvest.concurrency", 4)
	v.SetDefault("harvest.queue_depth", 64)
	v.SetDefault("harvest.sweep_seconds", 30)
	v.SetDefault("harvest.sweep_batch", 20)
	v.SetDefault("harvest.stage_timeout_seconds", 30)
	v.SetDefault("harvest.retry_base_seconds", 60)
	v.SetDefault("harvest.retry_max_seconds", 1800)
	v.SetDefault("harvest.retry_max_attempts", 4)
	v.SetDefault("harvest.discovery_max_links", 40)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.user_agent", "barcraft-harvester/0.1")
	v.SetDefault("http.delay_seconds", 1)
	v.SetDefault("http.per_domain_max", 2)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("dedup.duplicate_threshold", 0.95)
	v.SetDefault("dedup.variant_threshold", 0.88)
	v.SetDefault("dedup.neighbor_count", 10)
	v.SetDefault("quality.accept_threshold", 0.7)
	v.SetDefault("quality.quarantine_threshold", 0.45)
	v.SetDefault("quality.trust_weight", 0.3)
	v.SetDefault("quality.structure_weight", 0.3)
	v.SetDefault("quality.plausibility_weight", 0.25)
	v.SetDefault("quality.popularity_weight", 0.15)
	v.SetDefault("normalize.max_unresolved_fraction", 0.5)
	v.SetDefault("circuit.window_size", 10)
	v.SetDefault("circuit.failure_limit", 5)
	v.SetDefault("circuit.cooldown_seconds", 300)
	v.SetDefault("ontology.timeout_seconds", 5)
	v.SetDefault("embedding.timeout_seconds", 5)
	v.SetDefault("storage.prefix", "snapshots")
	v.SetDefault("storage.content_type", "text/html; charset=utf-8")
	v.SetDefault("logging.development", true)
}
