package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/markdave123-py/Prism/internal/core"
	"github.com/markdave123-py/Prism/internal/core/logger"
	"github.com/markdave123-py/Prism/internal/models"
)

// NewDocumentIngestor wires the per-format paths. Nil describers make their formats fail at ingest time.
func NewDocumentIngestor(
	extractor core.DocumentExtractor,
	images core.ImageDescriber,
	videos core.VideoDescriber,
	audio core.AudioTranscriber,
	youtube core.AudioDownloader,
	cfg *IngestConfig,
	log *logger.Logger,
) *DocumentIngestor {
	return &DocumentIngestor{
		extractor: extractor,
		images:    images,
		videos:    videos,
		audio:     audio,
		youtube:   youtube,
		cfg:       cfg,
		log:       log.With("service", "DocumentIngestor"),
	}
}

// Ingest processes one file and reports the outcome. It never returns an error:
// every failure becomes an error result and the store is left as it was.
func (i *DocumentIngestor) Ingest(ctx context.Context, store core.VectorStore, filePath, fileName string) models.IngestionResult {
	start := time.Now()
	ext := strings.ToLower(filepath.Ext(fileName))
	ctype, ok := ContentTypeFor(ext)
	if !ok {
		return i.failed(fileName, "", &core.UnsupportedFormatError{Ext: ext})
	}

	var (
		res models.IngestionResult
		err error
	)
	switch ctype {
	case models.ContentText:
		res, err = i.ingestText(ctx, store, filePath, fileName)
	case models.ContentImage:
		res, err = i.ingestDescription(ctx, store, fileName, ctype, func() (string, error) {
			if i.images == nil {
				return "", errors.New("image description is not configured")
			}
			return i.images.DescribeImage(ctx, filePath)
		})
	case models.ContentVideo:
		res, err = i.ingestDescription(ctx, store, fileName, ctype, func() (string, error) {
			if i.videos == nil {
				return "", errors.New("video description is not configured")
			}
			return i.videos.DescribeVideo(ctx, filePath)
		})
	case models.ContentAudio:
		res, err = i.ingestAudio(ctx, store, filePath, fileName, models.ContentAudio)
	}
	if err != nil {
		return i.failed(fileName, ctype, err)
	}

	i.log.Info("ingested", "file", fileName, "type", ctype, "chunks", res.Chunks, "took", time.Since(start))
	return res
}

// IngestYouTube downloads the audio of url and stores its transcript tagged as youtube content.
func (i *DocumentIngestor) IngestYouTube(ctx context.Context, store core.VectorStore, url string) models.IngestionResult {
	if i.youtube == nil {
		return i.failed(url, models.ContentYouTube, errors.New("youtube download is not configured"))
	}

	path, cleanup, err := i.youtube.DownloadAudio(ctx, url)
	if err != nil {
		return i.failed(url, models.ContentYouTube, fmt.Errorf("download: %w", err))
	}
	defer cleanup()

	res, err := i.ingestAudio(ctx, store, path, url, models.ContentYouTube)
	if err != nil {
		if errors.Is(err, core.ErrNoContent) {
			err = fmt.Errorf("no transcript found or empty: %w", err)
		}
		return i.failed(url, models.ContentYouTube, err)
	}
	return res
}

func (i *DocumentIngestor) ingestText(ctx context.Context, store core.VectorStore, path, name string) (models.IngestionResult, error) {
	text, err := i.extractor.Extract(ctx, path)
	if err != nil {
		return models.IngestionResult{}, err
	}
	if strings.TrimSpace(text) == "" {
		return models.IngestionResult{}, core.ErrNoContent
	}
	n, err := i.storeChunks(ctx, store, text, name, models.ContentText)
	if err != nil {
		return models.IngestionResult{}, err
	}
	return succeeded(name, models.ContentText, fmt.Sprintf("Processed %d chunks", n), n, ""), nil
}

func (i *DocumentIngestor) ingestAudio(ctx context.Context, store core.VectorStore, path, source string, ctype models.ContentType) (models.IngestionResult, error) {
	if i.audio == nil {
		return models.IngestionResult{}, errors.New("audio transcription is not configured")
	}
	transcript, err := i.audio.TranscribeAudio(ctx, path)
	if err != nil {
		return models.IngestionResult{}, err
	}
	if strings.TrimSpace(transcript) == "" {
		return models.IngestionResult{}, core.ErrNoContent
	}
	n, err := i.storeChunks(ctx, store, transcript, source, ctype)
	if err != nil {
		return models.IngestionResult{}, err
	}

	msg := fmt.Sprintf("Processed %d chunks", n)
	if ctype == models.ContentYouTube {
		msg = fmt.Sprintf("Processed %d chunks (%d characters)", n, len([]rune(transcript)))
	}
	return succeeded(source, ctype, msg, n, ""), nil
}

// ingestDescription stores a single media description as one chunk.
func (i *DocumentIngestor) ingestDescription(ctx context.Context, store core.VectorStore, name string, ctype models.ContentType, describe func() (string, error)) (models.IngestionResult, error) {
	desc, err := describe()
	if err != nil {
		return models.IngestionResult{}, err
	}
	if strings.TrimSpace(desc) == "" {
		return models.IngestionResult{}, &core.DescriptionError{Kind: string(ctype), Err: core.ErrNoContent}
	}
	meta := models.ChunkMetadata{Source: name, Type: ctype}
	if err := store.Add(ctx, []string{desc}, []models.ChunkMetadata{meta}); err != nil {
		return models.IngestionResult{}, fmt.Errorf("store description: %w", err)
	}
	msg := fmt.Sprintf("Analyzed (%d chars)", len([]rune(desc)))
	return succeeded(name, ctype, msg, 1, desc), nil
}

func (i *DocumentIngestor) storeChunks(ctx context.Context, store core.VectorStore, text, source string, ctype models.ContentType) (int, error) {
	chunks, err := Chunk(text, i.cfg.ChunkSize, i.cfg.ChunkOverlap)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, core.ErrNoContent
	}
	metas := make([]models.ChunkMetadata, len(chunks))
	for idx := range chunks {
		metas[idx] = models.ChunkMetadata{Source: source, Type: ctype, Chunk: idx}
	}
	if err := store.Add(ctx, chunks, metas); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}
	return len(chunks), nil
}

func succeeded(name string, ctype models.ContentType, msg string, chunks int, desc string) models.IngestionResult {
	return models.IngestionResult{
		Name:        name,
		Status:      models.StatusSuccess,
		ContentType: ctype,
		Chunks:      chunks,
		Description: desc,
		Message:     msg,
		CreatedAt:   time.Now().UTC(),
	}
}

func (i *DocumentIngestor) failed(name string, ctype models.ContentType, err error) models.IngestionResult {
	var allFailed *core.AllModelsFailedError
	if errors.As(err, &allFailed) {
		i.log.Warn("vision fallback exhausted", "file", name, "attempts", allFailed.Detail())
	} else {
		i.log.Warn("ingestion failed", "file", name, "error", err)
	}
	return models.IngestionResult{
		Name:        name,
		Status:      models.StatusError,
		ContentType: ctype,
		Message:     FailureMessage(err),
		Error:       err.Error(),
		CreatedAt:   time.Now().UTC(),
	}
}

// FailureMessage renders err the way it is shown to users.
func FailureMessage(err error) string {
	var unsupported *core.UnsupportedFormatError
	var allFailed *core.AllModelsFailedError
	switch {
	case errors.As(err, &unsupported):
		return unsupported.Error()
	case errors.As(err, &allFailed):
		return allFailed.Error()
	default:
		return "Error: " + err.Error()
	}
}
