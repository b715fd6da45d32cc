package domain

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/lexgate/lexgate/internal/observability"
)

// Retrieval defaults.
const (
	DefaultRetrievalMaxResults = 3
	DefaultRetrievalMinScore   = 0.5
)

// RetrievalEngine augments prompts with semantically retrieved reference
// passages. Search is two-tier: a server-side similarity search first,
// then a local cosine scan over the whole corpus. Every failure path
// degrades to an empty context string; retrieval is never fatal to the
// parent request.
type RetrievalEngine struct {
	embedder   EmbeddingGenerator
	corpus     CorpusStore
	maxResults int
	minScore   float64
}

// NewRetrievalEngine creates an engine. maxResults and minScore fall
// back to the package defaults when non-positive.
func NewRetrievalEngine(embedder EmbeddingGenerator, corpus CorpusStore, maxResults int, minScore float64) *RetrievalEngine {
	if maxResults <= 0 {
		maxResults = DefaultRetrievalMaxResults
	}
	if minScore <= 0 {
		minScore = DefaultRetrievalMinScore
	}
	return &RetrievalEngine{
		embedder:   embedder,
		corpus:     corpus,
		maxResults: maxResults,
		minScore:   minScore,
	}
}

// BuildContext embeds query, retrieves the most similar passages and
// formats them as an additive prompt block. An empty result is "".
func (e *RetrievalEngine) BuildContext(ctx context.Context, query string) string {
	if e == nil || e.embedder == nil || e.corpus == nil {
		return ""
	}

	logger := observability.FromContext(ctx)

	embedding, err := e.embedder.Generate(ctx, query)
	if err != nil {
		logger.Warn("embedding failed, skipping retrieval", observability.Error(err))
		return ""
	}
	if len(embedding) == 0 {
		logger.Warn("empty embedding, skipping retrieval")
		return ""
	}

	passages := e.searchServerSide(ctx, embedding)
	if len(passages) == 0 {
		passages = e.searchLocal(ctx, embedding)
	}

	return FormatPassages(passages)
}

// searchServerSide is the first tier: provider-native similarity search.
func (e *RetrievalEngine) searchServerSide(ctx context.Context, embedding []float64) []RetrievedPassage {
	passages, err := e.corpus.SimilaritySearch(ctx, embedding, e.maxResults)
	if err != nil {
		observability.FromContext(ctx).Warn("server-side similarity search failed, falling back to local scan",
			observability.Error(err))
		return nil
	}
	return passages
}

// searchLocal is the fallback tier: load the corpus and score each
// document by cosine similarity against the query vector.
func (e *RetrievalEngine) searchLocal(ctx context.Context, embedding []float64) []RetrievedPassage {
	logger := observability.FromContext(ctx)

	documents, err := e.corpus.ListAll(ctx)
	if err != nil {
		logger.Warn("corpus load failed, skipping retrieval", observability.Error(err))
		return nil
	}

	passages := make([]RetrievedPassage, 0, len(documents))
	for _, doc := range documents {
		score := CosineSimilarity(embedding, doc.Embedding)
		if score < e.minScore {
			continue
		}
		passages = append(passages, RetrievedPassage{
			Title:   doc.Title,
			Content: doc.Content,
			Score:   score,
		})
	}

	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Score > passages[j].Score
	})

	if len(passages) > e.maxResults {
		passages = passages[:e.maxResults]
	}

	logger.Debug("local similarity scan completed",
		observability.Int("corpus_size", len(documents)),
		observability.Int("matches", len(passages)))

	return passages
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Mismatched lengths and zero-norm vectors score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 0
	}

	return floats.Dot(a, b) / (normA * normB)
}

// FormatPassages renders passages as a deterministic context block:
// index, two-decimal score, source title and content per match.
func FormatPassages(passages []RetrievedPassage) string {
	if len(passages) == 0 {
		return ""
	}

	var builder strings.Builder
	builder.WriteString("Relevant legal references:\n")
	for i, passage := range passages {
		fmt.Fprintf(&builder, "[%d] (score: %.2f) %s\n%s\n", i+1, passage.Score, passage.Title, passage.Content)
	}
	return builder.String()
}
