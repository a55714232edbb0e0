package db

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/Prism/internal/core"
	"github.com/markdave123-py/Prism/internal/models"
)

const (
	defaultEmbedBatch       = 64
	defaultEmbedConcurrency = 4
)

// embedBatched splits texts into batches of size and embeds them in parallel,
// returning vectors aligned with texts.
func embedBatched(ctx context.Context, e core.EmbeddingProvider, texts []string, size int) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if size <= 0 {
		size = defaultEmbedBatch
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultEmbedConcurrency)
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		g.Go(func() error {
			vecs, err := e.EmbedTexts(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), end-start)
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return out, nil
}

func validateAdd(documents []string, metadatas []models.ChunkMetadata) error {
	if len(documents) != len(metadatas) {
		return fmt.Errorf("documents and metadatas length mismatch: %d != %d", len(documents), len(metadatas))
	}
	for i, m := range metadatas {
		if m.Source == "" || m.Type == "" {
			return fmt.Errorf("metadata %d: source and type are required", i)
		}
	}
	return nil
}

var errEmptyCollection = errors.New("collection name is empty")
