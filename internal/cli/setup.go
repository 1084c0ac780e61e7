package cli

import (
	"fmt"
	"time"

	"github.com/raihan/conclave/internal/config"
	"github.com/raihan/conclave/internal/logger"
	"github.com/raihan/conclave/internal/metrics"
	"github.com/raihan/conclave/pkg/collab"
	"github.com/raihan/conclave/pkg/provider"
)

// runtime bundles everything a command needs to drive sessions
type runtime struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Metrics
	manager *collab.Manager
}

// setup loads config and assembles the engine. Callers own log.Close().
func setup() (*runtime, error) {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	registry := collab.NewRegistry()
	for _, pc := range cfg.Participants {
		p := &collab.LLMParticipant{
			ID:        pc.ID,
			Provider:  pc.Provider,
			Model:     pc.Model,
			Role:      collab.ParticipantRole(pc.Role),
			Strengths: pc.Strengths,
			Active:    true,
		}
		if p.Role == "" {
			p.Role = collab.RoleGeneralist
		}
		if err := registry.Register(p); err != nil {
			log.Close()
			return nil, fmt.Errorf("failed to register participant %s: %w", pc.ID, err)
		}
	}

	querier, err := buildQuerier(cfg)
	if err != nil {
		log.Close()
		return nil, err
	}

	m := metrics.NewMetrics()

	manager, err := collab.NewManager(collab.ManagerConfig{
		Registry:         registry,
		Querier:          querier,
		Metrics:          m,
		Logger:           log.GetZerolog(),
		MaxParticipants:  cfg.Engine.MaxParticipants,
		MinTimeLimit:     time.Duration(cfg.Engine.MinTimeLimitMs) * time.Millisecond,
		DefaultTimeLimit: time.Duration(cfg.Engine.DefaultTimeLimitMs) * time.Millisecond,
		RoundTimeLimit:   time.Duration(cfg.Engine.RoundTimeLimitMs) * time.Millisecond,
		DefaultMaxRounds: cfg.Engine.DefaultMaxRounds,
		DefaultThreshold: cfg.Engine.DefaultThreshold,
		BaselineQuality:  cfg.Engine.BaselineQuality,
	})
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	return &runtime{
		cfg:     cfg,
		log:     log,
		metrics: m,
		manager: manager,
	}, nil
}

// buildQuerier wires one provider adapter per provider named by the
// configured participants.
func buildQuerier(cfg *config.Config) (*provider.Querier, error) {
	querier := provider.NewQuerier()
	factory := &provider.Factory{}

	needed := map[string]bool{}
	for _, pc := range cfg.Participants {
		needed[pc.Provider] = true
	}

	for name := range needed {
		p, err := factory.New(name, apiKeyFor(cfg, name))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s provider: %w", name, err)
		}
		querier.Register(p)
	}

	return querier, nil
}

// apiKeyFor returns the highest-priority credential for a provider
func apiKeyFor(cfg *config.Config, providerName string) string {
	key := ""
	best := -1
	for _, profile := range cfg.AI.Profiles {
		if profile.Provider != providerName {
			continue
		}
		if profile.Priority > best {
			best = profile.Priority
			key = profile.APIKey
		}
	}
	return key
}
