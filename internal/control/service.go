// Package control wires configuration into a running router service.
package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DealAppSeo/hyperdag-router/internal/cache"
	"github.com/DealAppSeo/hyperdag-router/internal/core/config"
	"github.com/DealAppSeo/hyperdag-router/internal/core/domain"
	"github.com/DealAppSeo/hyperdag-router/internal/execution"
	"github.com/DealAppSeo/hyperdag-router/internal/health"
	"github.com/DealAppSeo/hyperdag-router/internal/infra/provider"
	redisclient "github.com/DealAppSeo/hyperdag-router/internal/infra/redis"
	"github.com/DealAppSeo/hyperdag-router/internal/routing"
)

// Service is the main application struct that manages the router lifecycle.
type Service struct {
	cfg          *config.AppConfig
	registry     *routing.Registry
	ranker       *routing.Ranker
	executor     *execution.Executor
	usage        *execution.UsageTracker
	healthMon    *health.Monitor
	healthServer *health.Server
	redisCache   *redisclient.Cache
	log          *slog.Logger
}

// NewService creates a new Service instance with all dependencies initialized.
func NewService(cfg *config.AppConfig) (*Service, error) {
	active := cfg.ActiveProviders()
	if len(active) == 0 {
		return nil, fmt.Errorf("no providers configured with credentials")
	}

	// 1. Providers and registry
	registry := routing.NewRegistry()
	providers := make(map[string]provider.Provider, len(active))

	for _, pc := range active {
		prov, err := buildProvider(pc)
		if err != nil {
			return nil, fmt.Errorf("failed to init provider %s: %w", pc.Name, err)
		}

		caps := pc.Capabilities
		if len(caps) == 0 {
			caps = defaultCapabilities(pc.Kind)
		}

		candidate := routing.NewCandidate(pc.Name, prov.Name(), pc.CostPer1KTokens, caps, routing.DefaultBackoffPolicy)
		if pc.MaxConcurrent > 0 {
			candidate.MaxConcurrent = pc.MaxConcurrent
		}
		registry.Add(candidate)
		providers[pc.Name] = prov
		slog.Info("Registered provider", "name", pc.Name, "kind", pc.Kind, "model", pc.Model)
	}

	// 2. Ranker
	ranker := routing.NewRanker(registry, routing.RankerConfig{
		LearningRate:   cfg.Routing.LearningRate,
		MinSuitability: cfg.Routing.MinSuitability,
	})

	// 3. Response cache: Redis when configured, in-memory otherwise
	var store cache.Store
	var redisCache *redisclient.Cache
	if cfg.Cache.Redis.URL != "" {
		var err error
		redisCache, err = redisclient.NewCache(cfg.Cache.Redis, cfg.Cache.TTL.Std())
		if err != nil {
			slog.Warn("Failed to connect to Redis, using in-memory cache", "error", err)
			store = cache.NewMemory(cfg.Cache.MaxEntries, cfg.Cache.TTL.Std())
		} else {
			store = redisCache
			slog.Info("Using Redis response cache")
		}
	} else {
		store = cache.NewMemory(cfg.Cache.MaxEntries, cfg.Cache.TTL.Std())
		slog.Info("Using in-memory response cache", "max_entries", cfg.Cache.MaxEntries)
	}

	// 4. Execution layer
	usage := execution.NewUsageTracker()
	executor := execution.NewExecutor(registry, ranker, store, providers, usage, execution.Config{
		AttemptTimeout: cfg.Routing.AttemptTimeout.Std(),
	})

	// 5. Health monitor and HTTP surface
	healthMon := health.NewMonitor(registry, providers, cfg.Routing.ProbeInterval.Std())
	healthServer := health.NewServer(healthMon, executor, registry, usage, cfg.Server.Port)

	return &Service{
		cfg:          cfg,
		registry:     registry,
		ranker:       ranker,
		executor:     executor,
		usage:        usage,
		healthMon:    healthMon,
		healthServer: healthServer,
		redisCache:   redisCache,
		log:          slog.Default(),
	}, nil
}

// Executor exposes the execution layer for embedding callers.
func (s *Service) Executor() *execution.Executor {
	return s.executor
}

// Registry exposes candidate administration.
func (s *Service) Registry() *routing.Registry {
	return s.registry
}

// Start starts the HTTP server and background health probes.
func (s *Service) Start(ctx context.Context) error {
	go func() {
		if err := s.healthServer.Start(); err != nil {
			s.log.Error("HTTP server failed", "error", err)
		}
	}()

	s.healthMon.Start(ctx)

	s.log.Info("Router started", "port", s.cfg.Server.Port, "candidates", s.registry.Len())
	return nil
}

// Stop stops the service.
func (s *Service) Stop(ctx context.Context) error {
	s.log.Info("Stopping router...")

	s.healthMon.Stop()

	if s.redisCache != nil {
		if err := s.redisCache.Close(); err != nil {
			s.log.Warn("Failed to close Redis", "error", err)
		}
	}

	return s.healthServer.Stop(ctx)
}

func buildProvider(pc config.ProviderConfig) (provider.Provider, error) {
	switch pc.Kind {
	case "openai":
		return provider.NewOpenAI(pc.APIKey, pc.Model)
	case "anthropic":
		return provider.NewAnthropic(pc.APIKey, pc.Model)
	case "google":
		return provider.NewGoogle(pc.APIKey, pc.Model)
	case "local":
		return provider.NewLocal(nil), nil
	default:
		return nil, fmt.Errorf("unknown provider kind: %s", pc.Kind)
	}
}

// defaultCapabilities gives each provider kind a usable profile when the
// config declares none. Adaptation refines these at runtime.
func defaultCapabilities(kind string) map[string]float64 {
	switch kind {
	case "openai":
		return map[string]float64{
			domain.DimGeneralReasoning: 0.85,
			domain.DimCodeExpertise:    0.85,
			domain.DimWeb3Expertise:    0.6,
			domain.DimSeoExpertise:     0.7,
			domain.DimCostEfficiency:   0.5,
			domain.DimResponseSpeed:    0.7,
		}
	case "anthropic":
		return map[string]float64{
			domain.DimGeneralReasoning: 0.9,
			domain.DimCodeExpertise:    0.9,
			domain.DimWeb3Expertise:    0.65,
			domain.DimSeoExpertise:     0.7,
			domain.DimCostEfficiency:   0.45,
			domain.DimResponseSpeed:    0.6,
		}
	case "google":
		return map[string]float64{
			domain.DimGeneralReasoning: 0.8,
			domain.DimCodeExpertise:    0.75,
			domain.DimWeb3Expertise:    0.55,
			domain.DimSeoExpertise:     0.65,
			domain.DimCostEfficiency:   0.7,
			domain.DimResponseSpeed:    0.75,
		}
	case "local":
		return map[string]float64{
			domain.DimGeneralReasoning: 0.3,
			domain.DimCostEfficiency:   1.0,
			domain.DimResponseSpeed:    0.95,
		}
	default:
		return map[string]float64{domain.DimGeneralReasoning: 0.5}
	}
}
