package domain_test

import (
	"context"
	"sync"
	"time"

	"github.com/lexgate/lexgate/internal/domain"
)

// stubProvider implements domain.Provider with injectable behavior.
type stubProvider struct {
	name       string
	models     []string
	generateFn func(ctx context.Context, req *domain.ProviderRequest) (*domain.ProviderResult, error)
	streamFn   func(ctx context.Context, req *domain.ProviderRequest) (<-chan domain.StreamChunk, error)
	countFn    func(ctx context.Context, model, text string) (int, error)
}

func (p *stubProvider) Generate(ctx context.Context, req *domain.ProviderRequest) (*domain.ProviderResult, error) {
	return p.generateFn(ctx, req)
}

func (p *stubProvider) GenerateStream(ctx context.Context, req *domain.ProviderRequest) (<-chan domain.StreamChunk, error) {
	return p.streamFn(ctx, req)
}

func (p *stubProvider) CountTokens(ctx context.Context, model, text string) (int, error) {
	if p.countFn == nil {
		return 0, nil
	}
	return p.countFn(ctx, model, text)
}

func (p *stubProvider) Name() string {
	if p.name == "" {
		return "stub"
	}
	return p.name
}

func (p *stubProvider) IsModelSupported(_ context.Context, model string) bool {
	for _, m := range p.models {
		if m == model {
			return true
		}
	}
	return false
}

func (p *stubProvider) SupportedModels(_ context.Context) []string {
	return p.models
}

// stubRegistry resolves every model to a single provider.
type stubRegistry struct {
	provider domain.Provider
	err      error
}

func (r *stubRegistry) Register(_ context.Context, _ domain.Provider) error { return nil }

func (r *stubRegistry) Get(_ context.Context, _ string) (domain.Provider, error) {
	return r.provider, r.err
}

func (r *stubRegistry) List(_ context.Context) ([]string, error) {
	return []string{r.provider.Name()}, nil
}

func (r *stubRegistry) GetByModel(_ context.Context, _ string) (domain.Provider, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.provider, nil
}

// stubPlanner returns a fixed candidate plan.
type stubPlanner struct {
	primary   string
	fallbacks []string
}

func (p *stubPlanner) Primary(_ context.Context, req *domain.GenerationRequest) string {
	if req != nil && req.Model != "" {
		return req.Model
	}
	return p.primary
}

func (p *stubPlanner) Fallbacks(_ context.Context, _ string) []string {
	return p.fallbacks
}

// stubEmbedder implements domain.EmbeddingGenerator.
type stubEmbedder struct {
	generateFn func(ctx context.Context, text string) ([]float64, error)
}

func (e *stubEmbedder) Generate(ctx context.Context, text string) ([]float64, error) {
	return e.generateFn(ctx, text)
}

func (e *stubEmbedder) Name() string { return "stub-embedder" }

func (e *stubEmbedder) Dimension() int { return 3 }

// stubCorpus implements domain.CorpusStore.
type stubCorpus struct {
	docs     []domain.CorpusDocument
	listErr  error
	searchFn func(ctx context.Context, embedding []float64, limit int) ([]domain.RetrievedPassage, error)
}

func (c *stubCorpus) ListAll(_ context.Context) ([]domain.CorpusDocument, error) {
	return c.docs, c.listErr
}

func (c *stubCorpus) SimilaritySearch(ctx context.Context, embedding []float64, limit int) ([]domain.RetrievedPassage, error) {
	if c.searchFn == nil {
		return nil, nil
	}
	return c.searchFn(ctx, embedding, limit)
}

// stubSearch implements domain.SimilaritySearch.
type stubSearch struct {
	searchFn func(ctx context.Context, embedding []float64, threshold float64, limit int) ([]*domain.SearchResult, error)
	indexFn  func(ctx context.Context, key string, embedding []float64, data []byte, ttl time.Duration) error
}

func (s *stubSearch) Search(ctx context.Context, embedding []float64, threshold float64, limit int) ([]*domain.SearchResult, error) {
	return s.searchFn(ctx, embedding, threshold, limit)
}

func (s *stubSearch) Index(ctx context.Context, key string, embedding []float64, data []byte, ttl time.Duration) error {
	return s.indexFn(ctx, key, embedding, data, ttl)
}

// stubCache implements domain.ResponseCache.
type stubCache struct {
	getFn func(ctx context.Context, req *domain.GenerationRequest) (*domain.CachedResult, error)
	setFn func(ctx context.Context, req *domain.GenerationRequest, result *domain.GenerationResult, ttl time.Duration) error
}

func (c *stubCache) Get(ctx context.Context, req *domain.GenerationRequest) (*domain.CachedResult, error) {
	return c.getFn(ctx, req)
}

func (c *stubCache) Set(ctx context.Context, req *domain.GenerationRequest, result *domain.GenerationResult, ttl time.Duration) error {
	if c.setFn == nil {
		return nil
	}
	return c.setFn(ctx, req, result, ttl)
}

// recordingEvents captures published events for assertions.
type recordingEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	eventType string
	data      map[string]interface{}
}

func (r *recordingEvents) Publish(_ context.Context, eventType string, data map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{eventType: eventType, data: data})
}

func (r *recordingEvents) states() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var states []string
	for _, event := range r.events {
		if event.eventType == domain.EventTransactionState {
			states = append(states, event.data["state"].(string))
		}
	}
	return states
}
