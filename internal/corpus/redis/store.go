// Package redis stores the reference corpus used for retrieval
// augmentation: one hash per document with its title, content and
// embedding, covered by a Redis search index for the server-side
// similarity tier.
package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lexgate/lexgate/internal/domain"
	"github.com/lexgate/lexgate/internal/observability"
)

const (
	keyPrefix           = "corpus:"
	scanBatchSize       = 100
	redisDialectVersion = 2
)

// Store implements domain.CorpusStore on Redis.
type Store struct {
	client             *redis.Client
	indexName          string
	embeddingDimension int
}

// NewStore creates a corpus store, creating the search index if missing.
func NewStore(client *redis.Client, indexName string, embeddingDimension int) (*Store, error) {
	s := &Store{
		client:             client,
		indexName:          indexName,
		embeddingDimension: embeddingDimension,
	}

	if err := s.createIndex(); err != nil {
		return nil, fmt.Errorf("failed to create corpus index: %w", err)
	}

	return s, nil
}

// Add stores a document under a caller-chosen id.
func (s *Store) Add(ctx context.Context, id string, doc domain.CorpusDocument) error {
	if id == "" {
		return fmt.Errorf("document id cannot be empty")
	}

	err := s.client.HSet(ctx, keyPrefix+id,
		"title", doc.Title,
		"content", doc.Content,
		"embedding", floatsToBytes(doc.Embedding),
		"indexed_at", time.Now().Unix(),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to store corpus document: %w", err)
	}
	return nil
}

// ListAll loads the entire corpus for local similarity scoring.
func (s *Store) ListAll(ctx context.Context) ([]domain.CorpusDocument, error) {
	var documents []domain.CorpusDocument

	iter := s.client.Scan(ctx, 0, keyPrefix+"*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		fields, err := s.client.HGetAll(ctx, iter.Val()).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to load corpus document %s: %w", iter.Val(), err)
		}

		documents = append(documents, domain.CorpusDocument{
			Title:     fields["title"],
			Content:   fields["content"],
			Embedding: bytesToFloats([]byte(fields["embedding"])),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("corpus scan failed: %w", err)
	}

	return documents, nil
}

// SimilaritySearch performs the server-side KNN search over the corpus
// index, returning passages ordered by descending similarity.
func (s *Store) SimilaritySearch(ctx context.Context, embedding []float64, limit int) ([]domain.RetrievedPassage, error) {
	logger := observability.FromContext(ctx)

	query := fmt.Sprintf("*=>[KNN %d @embedding $vec AS score]", limit)

	results, err := s.client.FTSearchWithArgs(ctx, s.indexName, query,
		&redis.FTSearchOptions{
			Return: []redis.FTSearchReturn{
				{FieldName: "title"},
				{FieldName: "content"},
				{FieldName: "score"},
			},
			SortBy: []redis.FTSearchSortBy{
				{FieldName: "score", Asc: true},
			},
			DialectVersion: redisDialectVersion,
			Params: map[string]any{
				"vec": floatsToBytes(embedding),
			},
		},
	).Result()
	if err != nil {
		return nil, fmt.Errorf("corpus search failed: %w", err)
	}

	passages := make([]domain.RetrievedPassage, 0, len(results.Docs))
	for _, doc := range results.Docs {
		scoreStr, ok := doc.Fields["score"]
		if !ok {
			continue
		}
		distance, parseErr := strconv.ParseFloat(scoreStr, 64)
		if parseErr != nil {
			continue
		}

		passages = append(passages, domain.RetrievedPassage{
			Title:   doc.Fields["title"],
			Content: doc.Fields["content"],
			Score:   1.0 - distance, // cosine distance to similarity
		})
	}

	logger.Debug("corpus search completed",
		observability.Int("total_docs", results.Total),
		observability.Int("passages", len(passages)))

	return passages, nil
}

func (s *Store) createIndex() error {
	ctx := context.Background()

	_, err := s.client.FTInfo(ctx, s.indexName).Result()
	if err == nil {
		return nil
	}

	_, err = s.client.FTCreate(ctx, s.indexName,
		&redis.FTCreateOptions{
			OnHash: true,
			Prefix: []any{keyPrefix},
		},
		&redis.FieldSchema{
			FieldName: "embedding",
			FieldType: redis.SearchFieldTypeVector,
			VectorArgs: &redis.FTVectorArgs{
				FlatOptions: &redis.FTFlatOptions{
					Type:           "FLOAT32",
					Dim:            s.embeddingDimension,
					DistanceMetric: "COSINE",
				},
			},
		},
		&redis.FieldSchema{
			FieldName: "title",
			FieldType: redis.SearchFieldTypeText,
		},
		&redis.FieldSchema{
			FieldName: "content",
			FieldType: redis.SearchFieldTypeText,
		},
	).Result()
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

func floatsToBytes(fs []float64) []byte {
	const bytesPerFloat32 = 4
	buf := make([]byte, len(fs)*bytesPerFloat32)

	for i, f := range fs {
		u := math.Float32bits(float32(f))
		binary.LittleEndian.PutUint32(buf[i*bytesPerFloat32:], u)
	}

	return buf
}

func bytesToFloats(buf []byte) []float64 {
	const bytesPerFloat32 = 4
	fs := make([]float64, len(buf)/bytesPerFloat32)

	for i := range fs {
		u := binary.LittleEndian.Uint32(buf[i*bytesPerFloat32:])
		fs[i] = float64(math.Float32frombits(u))
	}

	return fs
}
