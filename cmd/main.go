package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	billingredis "github.com/lexgate/lexgate/internal/billing/redis"
	cacheredis "github.com/lexgate/lexgate/internal/cache/redis"
	"github.com/lexgate/lexgate/internal/config"
	corpusredis "github.com/lexgate/lexgate/internal/corpus/redis"
	"github.com/lexgate/lexgate/internal/domain"
	embeddingopenai "github.com/lexgate/lexgate/internal/embedding/openai"
	"github.com/lexgate/lexgate/internal/http"
	"github.com/lexgate/lexgate/internal/http/middleware"
	"github.com/lexgate/lexgate/internal/observability"
	"github.com/lexgate/lexgate/internal/provider/echo"
	"github.com/lexgate/lexgate/internal/provider/openai"
	"github.com/lexgate/lexgate/internal/provider/registry"
	"github.com/lexgate/lexgate/internal/resilience"
	"github.com/lexgate/lexgate/internal/routing"
	settingsredis "github.com/lexgate/lexgate/internal/settings/redis"
)

func main() {
	container := buildContainer()

	err := container.Invoke(func(server *http.Server) {
		if err := server.Start(); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(observability.InitLogger); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}
	if err := container.Provide(observability.NewEventBus); err != nil {
		log.Fatalf("Failed to provide event bus: %v", err)
	}
	if err := container.Provide(func(bus *observability.EventBus) domain.EventPublisher {
		return bus
	}); err != nil {
		log.Fatalf("Failed to provide event publisher: %v", err)
	}

	// Redis backs settings, the balance ledger, the semantic cache and
	// the reference corpus.
	if err := container.Provide(func(cfg *config.RedisConfig) *redis.Client {
		return redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}); err != nil {
		log.Fatalf("Failed to provide redis client: %v", err)
	}
	if err := container.Provide(func(client *redis.Client) domain.SettingsStore {
		return settingsredis.NewStore(client)
	}); err != nil {
		log.Fatalf("Failed to provide settings store: %v", err)
	}
	if err := container.Provide(func(client *redis.Client) domain.BalanceLedger {
		return billingredis.NewLedger(client)
	}); err != nil {
		log.Fatalf("Failed to provide balance ledger: %v", err)
	}

	// Provider Registry
	if err := container.Provide(func() domain.ProviderRegistry {
		return registry.NewRegistry()
	}); err != nil {
		log.Fatalf("Failed to provide registry: %v", err)
	}

	// Echo Provider (always available, used for local development)
	if err := container.Provide(echo.NewProvider); err != nil {
		log.Fatalf("Failed to provide echo provider: %v", err)
	}

	// OpenAI Provider (optional, requires API key)
	if err := container.Provide(func(cfg *config.Config) (*openai.Provider, error) {
		if cfg.OpenAI.APIKey == "" {
			return nil, nil
		}

		return openai.NewProvider(openai.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Timeout: cfg.OpenAI.Timeout,
		})
	}); err != nil {
		log.Fatalf("Failed to provide OpenAI provider: %v", err)
	}

	// Exact token counting piggybacks on the OpenAI provider; without it
	// the meter falls back to the heuristic estimate.
	if err := container.Provide(func(provider *openai.Provider) domain.TokenCounter {
		if provider == nil {
			return nil
		}
		return provider
	}); err != nil {
		log.Fatalf("Failed to provide token counter: %v", err)
	}

	// Embedding Generator (optional, shared by cache and retrieval)
	if err := container.Provide(func(cfg *embeddingopenai.Config) (*embeddingopenai.Generator, error) {
		if cfg.APIKey == "" {
			return nil, nil
		}
		return embeddingopenai.NewGenerator(*cfg)
	}); err != nil {
		log.Fatalf("Failed to provide embedding generator: %v", err)
	}

	// Semantic Cache (optional)
	if err := container.Provide(func(
		cfg *config.CacheConfig,
		client *redis.Client,
		generator *embeddingopenai.Generator,
	) (domain.ResponseCache, error) {
		if !cfg.Enabled {
			return nil, nil
		}
		if generator == nil {
			return nil, fmt.Errorf("semantic cache enabled but no embedding generator configured")
		}

		search, err := cacheredis.NewVectorSearch(client, cfg.IndexName, "cache:", generator.Dimension())
		if err != nil {
			return nil, fmt.Errorf("failed to create cache vector search: %w", err)
		}
		return domain.NewSemanticCacheService(generator, search, cfg.Threshold), nil
	}); err != nil {
		log.Fatalf("Failed to provide response cache: %v", err)
	}

	// Retrieval Engine (optional)
	if err := container.Provide(func(
		cfg *config.RetrievalConfig,
		client *redis.Client,
		generator *embeddingopenai.Generator,
	) (*domain.RetrievalEngine, error) {
		if !cfg.Enabled {
			return nil, nil
		}
		if generator == nil {
			return nil, fmt.Errorf("retrieval enabled but no embedding generator configured")
		}

		store, err := corpusredis.NewStore(client, cfg.IndexName, generator.Dimension())
		if err != nil {
			return nil, fmt.Errorf("failed to create corpus store: %w", err)
		}
		return domain.NewRetrievalEngine(generator, store, cfg.MaxResults, cfg.MinScore), nil
	}); err != nil {
		log.Fatalf("Failed to provide retrieval engine: %v", err)
	}

	// Register providers with registry (invoked for side effects)
	if err := container.Invoke(func(
		reg domain.ProviderRegistry,
		echoProvider *echo.Provider,
		openaiProvider *openai.Provider,
	) error {
		ctx := context.Background()

		if err := reg.Register(ctx, echoProvider); err != nil {
			return fmt.Errorf("failed to register echo provider: %w", err)
		}

		// Register OpenAI if enabled
		if openaiProvider != nil {
			if err := reg.Register(ctx, openaiProvider); err != nil {
				return fmt.Errorf("failed to register OpenAI provider: %w", err)
			}
		}

		return nil
	}); err != nil {
		log.Fatalf("Failed to register providers: %v", err)
	}

	// Domain Services
	if err := container.Provide(domain.NewQueryAnalyzer); err != nil {
		log.Fatalf("Failed to provide query analyzer: %v", err)
	}
	if err := container.Provide(domain.NewPromptResolver); err != nil {
		log.Fatalf("Failed to provide prompt resolver: %v", err)
	}
	if err := container.Provide(domain.NewUsageMeter); err != nil {
		log.Fatalf("Failed to provide usage meter: %v", err)
	}
	if err := container.Provide(func(settings domain.SettingsStore) domain.ModelPlanner {
		return routing.NewSelector(settings)
	}); err != nil {
		log.Fatalf("Failed to provide model planner: %v", err)
	}
	if err := container.Provide(newPipeline); err != nil {
		log.Fatalf("Failed to provide pipeline service: %v", err)
	}

	// HTTP Layer
	if err := container.Provide(middleware.BuildMiddlewareChain); err != nil {
		log.Fatalf("Failed to provide middleware chain: %v", err)
	}
	if err := container.Provide(http.NewHandler); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(http.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	return container
}

// pipelineDeps collects the pipeline constructor arguments; dig cannot
// inject a constructor with this many positional parameters cleanly.
type pipelineDeps struct {
	dig.In

	Registry   domain.ProviderRegistry
	Planner    domain.ModelPlanner
	Analyzer   *domain.QueryAnalyzer
	Prompts    *domain.PromptResolver
	Retrieval  *domain.RetrievalEngine
	Meter      *domain.UsageMeter
	Cache      domain.ResponseCache
	Ledger     domain.BalanceLedger
	Events     domain.EventPublisher
	Resilience *config.ResilienceConfig
}

func newPipeline(deps pipelineDeps) *domain.PipelineService {
	pipeline := domain.NewPipelineService(
		deps.Registry,
		deps.Planner,
		deps.Analyzer,
		deps.Prompts,
		deps.Retrieval,
		deps.Meter,
		deps.Cache,
		deps.Ledger,
		deps.Events,
	)

	pipeline.SetPolicy(resilience.Policy{
		MaxAttempts:      deps.Resilience.MaxAttempts,
		FallbackAttempts: deps.Resilience.FallbackAttempts,
		BaseDelay:        time.Duration(deps.Resilience.BaseDelayMs) * time.Millisecond,
		MaxJitter:        time.Duration(deps.Resilience.MaxJitterMs) * time.Millisecond,
		Classify:         domain.ClassifyFailure,
	})

	return pipeline
}
