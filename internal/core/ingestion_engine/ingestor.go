package ingestion_engine

import (
	"context"

	"github.com/markdave123-py/Prism/internal/core"
	"github.com/markdave123-py/Prism/internal/models"
)

type Ingestor interface {
	Ingest(ctx context.Context, store core.VectorStore, filePath, fileName string) models.IngestionResult
	IngestYouTube(ctx context.Context, store core.VectorStore, url string) models.IngestionResult
}

var _ Ingestor = (*DocumentIngestor)(nil)
