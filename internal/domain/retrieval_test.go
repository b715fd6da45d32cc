package domain_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexgate/lexgate/internal/domain"
)

func TestCosineSimilarity(t *testing.T) {
	t.Run("identical vectors score one", func(t *testing.T) {
		v := []float64{0.3, 0.5, 0.7}
		require.InDelta(t, 1.0, domain.CosineSimilarity(v, v), 1e-6)
	})

	t.Run("orthogonal vectors score zero", func(t *testing.T) {
		require.InDelta(t, 0.0, domain.CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	})

	t.Run("opposite vectors score minus one", func(t *testing.T) {
		require.InDelta(t, -1.0, domain.CosineSimilarity([]float64{1, 2}, []float64{-1, -2}), 1e-6)
	})

	t.Run("mismatched lengths score zero", func(t *testing.T) {
		require.Zero(t, domain.CosineSimilarity([]float64{1, 2}, []float64{1, 2, 3}))
	})

	t.Run("zero vector scores zero", func(t *testing.T) {
		require.Zero(t, domain.CosineSimilarity([]float64{0, 0}, []float64{1, 2}))
	})

	t.Run("empty vectors score zero", func(t *testing.T) {
		require.Zero(t, domain.CosineSimilarity(nil, nil))
	})
}

func TestRetrievalEngine_BuildContext(t *testing.T) {
	ctx := context.Background()

	query := []float64{1, 0, 0}

	embedder := &stubEmbedder{generateFn: func(_ context.Context, _ string) ([]float64, error) {
		return query, nil
	}}

	t.Run("empty corpus yields empty context", func(t *testing.T) {
		engine := domain.NewRetrievalEngine(embedder, &stubCorpus{}, 3, 0.5)
		require.Empty(t, engine.BuildContext(ctx, "question"))
	})

	t.Run("embedding failure degrades to empty context", func(t *testing.T) {
		failing := &stubEmbedder{generateFn: func(_ context.Context, _ string) ([]float64, error) {
			return nil, domain.ErrEmbeddingQuota
		}}
		corpus := &stubCorpus{docs: []domain.CorpusDocument{{Title: "doc", Embedding: query}}}

		engine := domain.NewRetrievalEngine(failing, corpus, 3, 0.5)
		require.Empty(t, engine.BuildContext(ctx, "question"))
	})

	t.Run("empty embedding degrades to empty context", func(t *testing.T) {
		empty := &stubEmbedder{generateFn: func(_ context.Context, _ string) ([]float64, error) {
			return []float64{}, nil
		}}

		engine := domain.NewRetrievalEngine(empty, &stubCorpus{}, 3, 0.5)
		require.Empty(t, engine.BuildContext(ctx, "question"))
	})

	t.Run("server-side results are preferred", func(t *testing.T) {
		corpus := &stubCorpus{
			docs: []domain.CorpusDocument{{Title: "local", Content: "local content", Embedding: query}},
			searchFn: func(_ context.Context, _ []float64, _ int) ([]domain.RetrievedPassage, error) {
				return []domain.RetrievedPassage{{Title: "remote", Content: "remote content", Score: 0.9}}, nil
			},
		}

		engine := domain.NewRetrievalEngine(embedder, corpus, 3, 0.5)
		result := engine.BuildContext(ctx, "question")

		require.Contains(t, result, "remote")
		require.NotContains(t, result, "local")
	})

	t.Run("local scan filters by threshold and orders by score", func(t *testing.T) {
		corpus := &stubCorpus{
			docs: []domain.CorpusDocument{
				{Title: "weak", Content: "w", Embedding: []float64{0, 1, 0}},   // similarity 0
				{Title: "strong", Content: "s", Embedding: []float64{1, 0, 0}}, // similarity 1
				{Title: "mid", Content: "m", Embedding: []float64{1, 1, 0}},    // similarity ~0.707
			},
			searchFn: func(_ context.Context, _ []float64, _ int) ([]domain.RetrievedPassage, error) {
				return nil, errors.New("index missing")
			},
		}

		engine := domain.NewRetrievalEngine(embedder, corpus, 3, 0.5)
		result := engine.BuildContext(ctx, "question")

		require.Contains(t, result, "strong")
		require.Contains(t, result, "mid")
		require.NotContains(t, result, "weak")
		require.Less(t, strings.Index(result, "strong"), strings.Index(result, "mid"))
	})

	t.Run("local scan honors the result limit", func(t *testing.T) {
		corpus := &stubCorpus{
			docs: []domain.CorpusDocument{
				{Title: "a", Content: "a", Embedding: []float64{1, 0, 0}},
				{Title: "b", Content: "b", Embedding: []float64{1, 0.1, 0}},
				{Title: "c", Content: "c", Embedding: []float64{1, 0.2, 0}},
			},
		}

		engine := domain.NewRetrievalEngine(embedder, corpus, 2, 0.5)
		result := engine.BuildContext(ctx, "question")

		require.Contains(t, result, "[1]")
		require.Contains(t, result, "[2]")
		require.NotContains(t, result, "[3]")
	})

	t.Run("corpus load failure degrades to empty context", func(t *testing.T) {
		corpus := &stubCorpus{listErr: errors.New("redis down")}

		engine := domain.NewRetrievalEngine(embedder, corpus, 3, 0.5)
		require.Empty(t, engine.BuildContext(ctx, "question"))
	})
}

func TestFormatPassages(t *testing.T) {
	t.Run("empty is empty string", func(t *testing.T) {
		require.Empty(t, domain.FormatPassages(nil))
	})

	t.Run("deterministic block format", func(t *testing.T) {
		passages := []domain.RetrievedPassage{
			{Title: "Civil Code art. 10", Content: "Text A", Score: 0.91},
			{Title: "Tax Code art. 3", Content: "Text B", Score: 0.755},
		}

		got := domain.FormatPassages(passages)
		want := "Relevant legal references:\n" +
			"[1] (score: 0.91) Civil Code art. 10\nText A\n" +
			"[2] (score: 0.76) Tax Code art. 3\nText B\n"
		require.Equal(t, want, got)
	})
}
