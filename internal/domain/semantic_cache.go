package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lexgate/lexgate/internal/observability"
)

// SemanticCacheService caches generation results keyed by an embedding
// of the request, so repeated or near-identical questions are served
// without re-running (or re-billing) the pipeline.
type SemanticCacheService struct {
	embeddingGen     EmbeddingGenerator
	similaritySearch SimilaritySearch
	threshold        float64
}

// NewSemanticCacheService creates a new semantic cache service.
func NewSemanticCacheService(
	embeddingGen EmbeddingGenerator,
	similaritySearch SimilaritySearch,
	threshold float64,
) *SemanticCacheService {
	return &SemanticCacheService{
		embeddingGen:     embeddingGen,
		similaritySearch: similaritySearch,
		threshold:        threshold,
	}
}

// Get retrieves a cached result for a semantically similar request.
func (s *SemanticCacheService) Get(ctx context.Context, req *GenerationRequest) (*CachedResult, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	logger := observability.FromContext(ctx)

	queryText := s.buildQueryText(req)

	embedding, err := s.embeddingGen.Generate(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	results, err := s.similaritySearch.Search(ctx, embedding, s.threshold, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar vectors: %w", err)
	}

	if len(results) == 0 {
		return nil, ErrCacheMiss
	}

	logger.Info("found similar cached entry",
		observability.Float64("similarity", results[0].Similarity),
		observability.String("cache_key", results[0].Key))

	cached := &CachedResult{
		Result:          nil,
		CachedAt:        results[0].IndexedAt,
		SimilarityScore: results[0].Similarity,
	}

	if unmarshalErr := json.Unmarshal(results[0].Data, &cached.Result); unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal cached result: %w", unmarshalErr)
	}

	return cached, nil
}

// Set stores a result with its embedding in the cache.
func (s *SemanticCacheService) Set(
	ctx context.Context,
	req *GenerationRequest,
	result *GenerationResult,
	ttl time.Duration,
) error {
	if req == nil {
		return errors.New("request cannot be nil")
	}

	if result == nil {
		return errors.New("result cannot be nil")
	}

	queryText := s.buildQueryText(req)

	embedding, err := s.embeddingGen.Generate(ctx, queryText)
	if err != nil {
		return fmt.Errorf("failed to generate embedding: %w", err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	cacheKey := s.generateCacheKey(queryText)

	if indexErr := s.similaritySearch.Index(ctx, cacheKey, embedding, data, ttl); indexErr != nil {
		return fmt.Errorf("failed to index in cache: %w", indexErr)
	}

	observability.FromContext(ctx).Debug("indexed result in cache",
		observability.String("cache_key", cacheKey),
		observability.Int("data_size", len(data)))
	return nil
}

// buildQueryText constructs a consistent text representation of the
// request for embedding. Mode is part of the key: the same question in
// draft and advice mode must never share a cache entry.
func (s *SemanticCacheService) buildQueryText(req *GenerationRequest) string {
	parts := []string{
		fmt.Sprintf("mode: %s", req.Mode),
		fmt.Sprintf("prompt: %s", req.Prompt),
	}

	if len(req.History) > 0 {
		var turns []string
		for _, msg := range req.History {
			turns = append(turns, fmt.Sprintf("%s: %s", msg.Role, msg.Content))
		}
		parts = append(parts, fmt.Sprintf("history: %s", strings.Join(turns, " ")))
	}

	if req.Language != "" {
		parts = append(parts, fmt.Sprintf("language: %s", req.Language))
	}

	return strings.Join(parts, " | ")
}

// generateCacheKey creates a unique cache key from query text.
func (s *SemanticCacheService) generateCacheKey(queryText string) string {
	hash := sha256.Sum256([]byte(queryText))
	return fmt.Sprintf("cache:%s", hex.EncodeToString(hash[:]))
}
