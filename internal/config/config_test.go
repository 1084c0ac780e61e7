package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Len(t, cfg.Participants, 2)
	assert.Equal(t, "claude-proposer", cfg.Participants[0].ID)
	assert.Equal(t, "anthropic", cfg.Participants[0].Provider)
	assert.Equal(t, 5, cfg.Engine.MaxParticipants)
	assert.Equal(t, int64(10_000), cfg.Engine.MinTimeLimitMs)
	assert.Equal(t, int64(60_000), cfg.Engine.DefaultTimeLimitMs)
	assert.Equal(t, int64(15_000), cfg.Engine.RoundTimeLimitMs)
	assert.Equal(t, 4, cfg.Engine.DefaultMaxRounds)
	assert.Equal(t, 66.0, cfg.Engine.DefaultThreshold)
	assert.False(t, cfg.Gateway.Enabled)
	assert.Equal(t, 8080, cfg.Gateway.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Console)
}

func validTestConfig() *Config {
	cfg := DefaultConfig()
	cfg.AI.Profiles = []AIProfile{
		{ID: "ant", Provider: "anthropic", APIKey: "sk-ant-test", Priority: 1},
		{ID: "oai", Provider: "openai", APIKey: "sk-test", Priority: 1},
	}
	return cfg
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, validTestConfig().Validate())
	})

	t.Run("no participants", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Participants = nil
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "at least one participant")
	})

	t.Run("duplicate participant ids", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Participants = append(cfg.Participants, cfg.Participants[0])
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate")
	})

	t.Run("invalid provider", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Participants[0].Provider = "cohere"
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid provider")
	})

	t.Run("missing model", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Participants[0].Model = ""
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "model is required")
	})

	t.Run("invalid role", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Participants[0].Role = "moderator"
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid role")
	})

	t.Run("live provider without credentials", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.AI.Profiles = cfg.AI.Profiles[:1] // drop openai
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no AI profile")
	})

	t.Run("static participants need no credentials", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Participants = []ParticipantConfig{
			{ID: "offline", Provider: "static", Model: "canned"},
		}
		cfg.AI.Profiles = nil
		assert.NoError(t, cfg.Validate())
	})

	t.Run("profile without api key", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.AI.Profiles[0].APIKey = ""
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "api_key")
	})

	t.Run("threshold out of range", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Engine.DefaultThreshold = 120
		assert.Error(t, cfg.Validate())
	})
}
