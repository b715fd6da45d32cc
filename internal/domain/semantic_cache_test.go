package domain_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lexgate/lexgate/internal/domain"
)

func cacheRequest() *domain.GenerationRequest {
	return &domain.GenerationRequest{
		UserID: "u",
		Mode:   domain.ModeAdvice,
		Prompt: "What is the penalty for late tax filing",
	}
}

func TestSemanticCacheService_Get_CacheHit(t *testing.T) {
	ctx := context.Background()

	embedding := []float64{0.1, 0.2, 0.3}
	embedder := &stubEmbedder{generateFn: func(_ context.Context, text string) ([]float64, error) {
		require.Contains(t, text, "mode: advice")
		require.Contains(t, text, "prompt: What is the penalty for late tax filing")
		return embedding, nil
	}}

	cached, err := json.Marshal(&domain.GenerationResult{Text: "Cached answer", Model: "gpt-4o-mini"})
	require.NoError(t, err)

	indexedAt := time.Now().Add(-time.Minute)
	search := &stubSearch{searchFn: func(_ context.Context, vec []float64, threshold float64, limit int) ([]*domain.SearchResult, error) {
		require.Equal(t, embedding, vec)
		require.Equal(t, 0.85, threshold)
		require.Equal(t, 1, limit)
		return []*domain.SearchResult{{
			Key:        "cache:abc123",
			Similarity: 0.95,
			Data:       cached,
			IndexedAt:  indexedAt,
		}}, nil
	}}

	service := domain.NewSemanticCacheService(embedder, search, 0.85)

	result, err := service.Get(ctx, cacheRequest())
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, "Cached answer", result.Result.Text)
	require.Equal(t, indexedAt, result.CachedAt)
	require.InEpsilon(t, 0.95, result.SimilarityScore, 0.001)
}

func TestSemanticCacheService_Get_CacheMiss(t *testing.T) {
	ctx := context.Background()

	embedder := &stubEmbedder{generateFn: func(_ context.Context, _ string) ([]float64, error) {
		return []float64{0.1, 0.2, 0.3}, nil
	}}
	search := &stubSearch{searchFn: func(_ context.Context, _ []float64, _ float64, _ int) ([]*domain.SearchResult, error) {
		return []*domain.SearchResult{}, nil
	}}

	service := domain.NewSemanticCacheService(embedder, search, 0.85)

	result, err := service.Get(ctx, cacheRequest())
	require.ErrorIs(t, err, domain.ErrCacheMiss)
	require.Nil(t, result)
}

func TestSemanticCacheService_Get_NilRequest(t *testing.T) {
	service := domain.NewSemanticCacheService(nil, nil, 0.85)

	result, err := service.Get(context.Background(), nil)
	require.Error(t, err)
	require.Nil(t, result)
	require.Equal(t, "request cannot be nil", err.Error())
}

func TestSemanticCacheService_Get_EmbeddingError(t *testing.T) {
	ctx := context.Background()

	embedder := &stubEmbedder{generateFn: func(_ context.Context, _ string) ([]float64, error) {
		return nil, errors.New("embedding failed")
	}}

	service := domain.NewSemanticCacheService(embedder, &stubSearch{}, 0.85)

	result, err := service.Get(ctx, cacheRequest())
	require.Error(t, err)
	require.Nil(t, result)
	require.Contains(t, err.Error(), "failed to generate embedding")
}

func TestSemanticCacheService_ModeSeparatesEntries(t *testing.T) {
	ctx := context.Background()

	var texts []string
	embedder := &stubEmbedder{generateFn: func(_ context.Context, text string) ([]float64, error) {
		texts = append(texts, text)
		return []float64{0.1}, nil
	}}
	search := &stubSearch{searchFn: func(_ context.Context, _ []float64, _ float64, _ int) ([]*domain.SearchResult, error) {
		return nil, nil
	}}

	service := domain.NewSemanticCacheService(embedder, search, 0.85)

	adviceReq := cacheRequest()
	draftReq := cacheRequest()
	draftReq.Mode = domain.ModeDraft

	_, _ = service.Get(ctx, adviceReq)
	_, _ = service.Get(ctx, draftReq)

	require.Len(t, texts, 2)
	require.NotEqual(t, texts[0], texts[1])
}

func TestSemanticCacheService_Set_Success(t *testing.T) {
	ctx := context.Background()

	embedding := []float64{0.1, 0.2, 0.3}
	embedder := &stubEmbedder{generateFn: func(_ context.Context, _ string) ([]float64, error) {
		return embedding, nil
	}}

	var indexed bool
	search := &stubSearch{indexFn: func(_ context.Context, key string, vec []float64, data []byte, ttl time.Duration) error {
		indexed = true
		require.True(t, strings.HasPrefix(key, "cache:"))
		require.Equal(t, embedding, vec)
		require.Equal(t, time.Hour, ttl)

		var result domain.GenerationResult
		require.NoError(t, json.Unmarshal(data, &result))
		require.Equal(t, "fresh answer", result.Text)
		return nil
	}}

	service := domain.NewSemanticCacheService(embedder, search, 0.85)

	err := service.Set(ctx, cacheRequest(), &domain.GenerationResult{Text: "fresh answer"}, time.Hour)
	require.NoError(t, err)
	require.True(t, indexed)
}

func TestSemanticCacheService_Set_NilArguments(t *testing.T) {
	ctx := context.Background()
	service := domain.NewSemanticCacheService(nil, nil, 0.85)

	err := service.Set(ctx, nil, &domain.GenerationResult{}, time.Hour)
	require.Error(t, err)
	require.Equal(t, "request cannot be nil", err.Error())

	err = service.Set(ctx, cacheRequest(), nil, time.Hour)
	require.Error(t, err)
	require.Equal(t, "result cannot be nil", err.Error())
}
