package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 4, cfg.Harvest.Concurrency)
	require.Equal(t, 4, cfg.Harvest.RetryMaxAttempts)
	require.InDelta(t, 0.95, cfg.Dedup.DuplicateThreshold, 1e-9)
	require.InDelta(t, 0.88, cfg.Dedup.VariantThreshold, 1e-9)
	require.InDelta(t, 0.7, cfg.Quality.AcceptThreshold, 1e-9)
	require.Equal(t, 10, cfg.Circuit.WindowSize)
	require.Equal(t, 5, cfg.Circuit.FailureLimit)
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Dedup.DuplicateThreshold = 0.5
	cfg.Dedup.VariantThreshold = 0.9
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsAuthWithoutKey(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Auth.Enabled = true
	cfg.Auth.APIKey = ""
	require.Error(t, cfg.Validate())
}

func TestValidateCircuitBounds(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Circuit.FailureLimit = cfg.Circuit.WindowSize + 1
	require.Error(t, cfg.Validate())
}
