package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()
	viper.Reset()
	setDefaults()

	var cfg Config
	require.NoError(t, viper.Unmarshal(&cfg))
	return &cfg
}

func TestDefaults(t *testing.T) {
	cfg := defaultConfig(t)

	assert.Equal(t, "lexical", cfg.Scoring.Backend)
	assert.Equal(t, 0.62, cfg.Scoring.MatchThreshold)
	assert.Equal(t, 0.85, cfg.Scoring.ConfidenceHigh)
	assert.Equal(t, 0.65, cfg.Scoring.ConfidenceMid)
	assert.Equal(t, 0.5, cfg.Weights.Min)
	assert.Equal(t, 3.0, cfg.Weights.Max)
	assert.Equal(t, 0.1, cfg.Weights.Increment)
	assert.Equal(t, 0.05, cfg.Weights.Decrement)
	assert.Equal(t, 50, cfg.Extractor.MaxFragments)

	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	t.Run("weight bounds inverted", func(t *testing.T) {
		cfg := defaultConfig(t)
		cfg.Weights.Min = 4.0
		assert.Error(t, cfg.Validate())
	})

	t.Run("match threshold out of range", func(t *testing.T) {
		cfg := defaultConfig(t)
		cfg.Scoring.MatchThreshold = 1.0
		assert.Error(t, cfg.Validate())

		cfg.Scoring.MatchThreshold = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("confidence tiers inverted", func(t *testing.T) {
		cfg := defaultConfig(t)
		cfg.Scoring.ConfidenceMid = 0.9
		assert.Error(t, cfg.Validate())
	})

	t.Run("near miss floor above match threshold", func(t *testing.T) {
		cfg := defaultConfig(t)
		cfg.Weights.NearMissFloor = 0.7
		assert.Error(t, cfg.Validate())
	})
}
