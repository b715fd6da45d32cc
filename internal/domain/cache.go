package domain

import (
	"context"
	"time"
)

// ResponseCache serves prior answers for semantically identical
// requests. A cache hit bypasses the generation pipeline entirely and
// is not re-billed.
type ResponseCache interface {
	// Get retrieves a cached result for a semantically similar request.
	Get(ctx context.Context, req *GenerationRequest) (*CachedResult, error)

	// Set stores a result with its embedding in the cache.
	Set(ctx context.Context, req *GenerationRequest, result *GenerationResult, ttl time.Duration) error
}

// SimilaritySearch performs vector similarity search operations over
// the cache index.
type SimilaritySearch interface {
	// Search finds similar vectors above the threshold.
	Search(ctx context.Context, embedding []float64, threshold float64, limit int) ([]*SearchResult, error)

	// Index stores a vector with associated data.
	Index(ctx context.Context, key string, embedding []float64, data []byte, ttl time.Duration) error
}

// CachedResult is a cached generation result with match metadata.
type CachedResult struct {
	Result          *GenerationResult
	CachedAt        time.Time
	SimilarityScore float64
}

// SearchResult represents a vector search result.
type SearchResult struct {
	Key        string
	Similarity float64
	Data       []byte
	IndexedAt  time.Time
}
