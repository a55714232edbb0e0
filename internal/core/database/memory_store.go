package db

import (
	"context"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/Prism/internal/core"
	"github.com/markdave123-py/Prism/internal/models"
)

// MemoryStore is a brute-force cosine-distance store for running without Postgres.
type MemoryStore struct {
	mu        sync.RWMutex
	embedder  core.EmbeddingProvider
	batchSize int
	chunks    []models.DocumentChunk
}

func NewMemoryStore(embedder core.EmbeddingProvider, batchSize int) *MemoryStore {
	return &MemoryStore{embedder: embedder, batchSize: batchSize}
}

func (s *MemoryStore) Add(ctx context.Context, documents []string, metadatas []models.ChunkMetadata) error {
	if err := validateAdd(documents, metadatas); err != nil {
		return err
	}
	if len(documents) == 0 {
		return nil
	}
	vecs, err := embedBatched(ctx, s.embedder, documents, s.batchSize)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	added := make([]models.DocumentChunk, len(documents))
	for i := range documents {
		added[i] = models.DocumentChunk{
			ID:          uuid.NewString(),
			Text:        documents[i],
			Source:      metadatas[i].Source,
			ContentType: metadatas[i].Type,
			ChunkIndex:  metadatas[i].Chunk,
			Embedding:   vecs[i],
			CreatedAt:   now,
		}
	}

	s.mu.Lock()
	s.chunks = append(s.chunks, added...)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, text string, k int) ([]models.QueryResult, error) {
	if k <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	empty := len(s.chunks) == 0
	s.mu.RUnlock()
	if empty {
		return nil, nil
	}

	vecs, err := s.embedder.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	query := vecs[0]

	s.mu.RLock()
	results := make([]models.QueryResult, 0, len(s.chunks))
	for _, c := range s.chunks {
		results = append(results, models.QueryResult{
			Document:  c.Text,
			Metadata:  c.Metadata(),
			Distance:  cosineDistance(c.Embedding, query),
			CreatedAt: c.CreatedAt,
		})
	}
	s.mu.RUnlock()

	slices.SortStableFunc(results, func(a, b models.QueryResult) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	s.chunks = nil
	s.mu.Unlock()
	return nil
}

// cosineDistance is 1 - cos(a, b); zero vectors are maximally distant.
func cosineDistance(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

var _ core.VectorStore = (*MemoryStore)(nil)
