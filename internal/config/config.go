package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the main Conclave configuration
type Config struct {
	// Participants available to sessions
	Participants []ParticipantConfig `json:"participants" mapstructure:"participants"`

	// Engine tuning
	Engine EngineConfig `json:"engine" mapstructure:"engine"`

	// AI provider credentials
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Gateway server
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ParticipantConfig declares one model-backed participant
type ParticipantConfig struct {
	ID        string   `json:"id" mapstructure:"id"`
	Provider  string   `json:"provider" mapstructure:"provider"` // anthropic, openai, static
	Model     string   `json:"model" mapstructure:"model"`
	Role      string   `json:"role" mapstructure:"role"` // proposer, critic, synthesizer, validator, generalist
	Strengths []string `json:"strengths,omitempty" mapstructure:"strengths"`
}

// EngineConfig tunes the session manager
type EngineConfig struct {
	MaxParticipants    int     `json:"max_participants" mapstructure:"max_participants"`
	MinTimeLimitMs     int64   `json:"min_time_limit_ms" mapstructure:"min_time_limit_ms"`
	DefaultTimeLimitMs int64   `json:"default_time_limit_ms" mapstructure:"default_time_limit_ms"`
	RoundTimeLimitMs   int64   `json:"round_time_limit_ms" mapstructure:"round_time_limit_ms"`
	DefaultMaxRounds   int     `json:"default_max_rounds" mapstructure:"default_max_rounds"`
	DefaultThreshold   float64 `json:"default_threshold" mapstructure:"default_threshold"`
	BaselineQuality    float64 `json:"baseline_quality" mapstructure:"baseline_quality"`
}

// AIConfig holds AI provider configuration
type AIConfig struct {
	Profiles []AIProfile `json:"profiles" mapstructure:"profiles"`
}

// AIProfile represents an AI provider credential profile
type AIProfile struct {
	ID       string `json:"id" mapstructure:"id"`
	Provider string `json:"provider" mapstructure:"provider"` // anthropic, openai
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	Priority int    `json:"priority" mapstructure:"priority"`
}

// GatewayConfig holds gateway server configuration
type GatewayConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Host    string `json:"host" mapstructure:"host"`
	Port    int    `json:"port" mapstructure:"port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Participants: []ParticipantConfig{
			{
				ID:       "claude-proposer",
				Provider: "anthropic",
				Model:    "claude-sonnet-4",
				Role:     "proposer",
			},
			{
				ID:       "gpt-critic",
				Provider: "openai",
				Model:    "gpt-4-turbo",
				Role:     "critic",
			},
		},
		Engine: EngineConfig{
			MaxParticipants:    5,
			MinTimeLimitMs:     10_000,
			DefaultTimeLimitMs: 60_000,
			RoundTimeLimitMs:   15_000,
			DefaultMaxRounds:   4,
			DefaultThreshold:   66,
		},
		Gateway: GatewayConfig{
			Enabled: false,
			Host:    "0.0.0.0",
			Port:    8080,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Pretty:  true,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.Participants) == 0 {
		return fmt.Errorf("at least one participant must be configured")
	}

	validProviders := map[string]bool{"anthropic": true, "openai": true, "static": true}
	validRoles := map[string]bool{
		"": true, "proposer": true, "critic": true,
		"synthesizer": true, "validator": true, "generalist": true,
	}

	seen := map[string]bool{}
	for i, p := range c.Participants {
		if p.ID == "" {
			return fmt.Errorf("participant %d: ID is required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("participant %s: duplicate ID", p.ID)
		}
		seen[p.ID] = true
		if !validProviders[p.Provider] {
			return fmt.Errorf("participant %s: invalid provider %s (must be: anthropic, openai, static)", p.ID, p.Provider)
		}
		if p.Model == "" {
			return fmt.Errorf("participant %s: model is required", p.ID)
		}
		if !validRoles[p.Role] {
			return fmt.Errorf("participant %s: invalid role %s", p.ID, p.Role)
		}
	}

	for i, profile := range c.AI.Profiles {
		if profile.ID == "" {
			return fmt.Errorf("AI profile %d: ID is required", i)
		}
		if profile.Provider != "anthropic" && profile.Provider != "openai" {
			return fmt.Errorf("AI profile %s: invalid provider %s (must be: anthropic, openai)", profile.ID, profile.Provider)
		}
		if profile.APIKey == "" {
			return fmt.Errorf("AI profile %s: api_key is required", profile.ID)
		}
	}

	// Live providers need a matching credential profile
	for _, p := range c.Participants {
		if p.Provider == "static" {
			continue
		}
		found := false
		for _, profile := range c.AI.Profiles {
			if profile.Provider == p.Provider {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("participant %s: no AI profile configured for provider %s", p.ID, p.Provider)
		}
	}

	if c.Engine.MinTimeLimitMs < 0 || c.Engine.DefaultThreshold < 0 || c.Engine.DefaultThreshold > 100 {
		return fmt.Errorf("invalid engine configuration")
	}

	return nil
}
