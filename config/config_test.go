package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1000, cfg.Bus.HistoryLimit)
	assert.Equal(t, 3, cfg.Debate.MaxRounds)
	assert.Equal(t, 5, cfg.Debate.SelectionCap)
	assert.InDelta(t, 0.6, cfg.Debate.ConsensusThreshold, 1e-9)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
bus:
  history_limit: 64
debate:
  max_rounds: 5
  voting_method: consensus
request:
  default_timeout: 10s
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Bus.HistoryLimit)
	assert.Equal(t, 5, cfg.Debate.MaxRounds)
	assert.Equal(t, "consensus", cfg.Debate.VotingMethod)
	assert.Equal(t, 10*time.Second, cfg.Request.DefaultTimeout)
	// Untouched values keep their defaults.
	assert.Equal(t, 2, cfg.Debate.MinParticipants)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	t.Setenv("AGENTHIVE_DEBATE_MAX_ROUNDS", "7")
	t.Setenv("AGENTHIVE_DEBATE_CONSENSUS_THRESHOLD", "0.8")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Debate.MaxRounds)
	assert.InDelta(t, 0.8, cfg.Debate.ConsensusThreshold, 1e-9)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	require.Error(t, err)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero history limit", func(c *Config) { c.Bus.HistoryLimit = 0 }},
		{"zero max rounds", func(c *Config) { c.Debate.MaxRounds = 0 }},
		{"one participant minimum", func(c *Config) { c.Debate.MinParticipants = 1 }},
		{"max below min", func(c *Config) { c.Debate.MaxParticipants = 1 }},
		{"selection cap below min", func(c *Config) { c.Debate.SelectionCap = 1 }},
		{"threshold above one", func(c *Config) { c.Debate.ConsensusThreshold = 1.5 }},
		{"unknown voting method", func(c *Config) { c.Debate.VotingMethod = "coin_flip" }},
		{"zero drain interval", func(c *Config) { c.Request.DrainInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
