package core

import (
	"context"
	"io"

	"github.com/markdave123-py/Prism/internal/models"
)

// VectorStore stores chunk texts with metadata and answers nearest-neighbour text queries.
// One instance serves one session's collection.
type VectorStore interface {
	// Add embeds and stores documents; IDs and timestamps are assigned by the store.
	Add(ctx context.Context, documents []string, metadatas []models.ChunkMetadata) error
	Query(ctx context.Context, text string, k int) ([]models.QueryResult, error)
	Count(ctx context.Context) (int, error)
	// Clear drops every stored chunk; the store stays usable and empty.
	Clear(ctx context.Context) error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, key string, data io.Reader, contentType string) (url string, err error)
	DeletePrefix(ctx context.Context, prefix string) error
}
