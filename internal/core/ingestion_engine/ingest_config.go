package ingestion_engine

import (
	"github.com/markdave123-py/Prism/internal/core"
	"github.com/markdave123-py/Prism/internal/core/logger"
	"github.com/markdave123-py/Prism/internal/models"
)

// Accepted upload extensions per content family.
var (
	TextExtensions  = []string{".pdf", ".docx", ".pptx", ".md", ".txt"}
	ImageExtensions = []string{".png", ".jpg", ".jpeg"}
	VideoExtensions = []string{".mp4"}
	AudioExtensions = []string{".mp3"}
)

// IngestConfig tunes chunking.
//
// ChunkSize:    window length in characters (e.g., 1000).
// ChunkOverlap: characters shared by consecutive windows (e.g., 200).
type IngestConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

// DocumentIngestor dispatches an item to the right extractor or describer,
// chunks the resulting text and writes it to a session's vector store:
//
// extractor: text formats (pdf/docx/pptx/md/txt).
// images:    single image description.
// videos:    frame-sampled video summary.
// audio:     transcription with tiered fallback.
// youtube:   remote audio download, fed into audio.
type DocumentIngestor struct {
	extractor core.DocumentExtractor
	images    core.ImageDescriber
	videos    core.VideoDescriber
	audio     core.AudioTranscriber
	youtube   core.AudioDownloader
	cfg       *IngestConfig
	log       *logger.Logger
}

// ContentTypeFor maps a lowercased extension to its content family.
func ContentTypeFor(ext string) (models.ContentType, bool) {
	switch {
	case contains(TextExtensions, ext):
		return models.ContentText, true
	case contains(ImageExtensions, ext):
		return models.ContentImage, true
	case contains(VideoExtensions, ext):
		return models.ContentVideo, true
	case contains(AudioExtensions, ext):
		return models.ContentAudio, true
	}
	return "", false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
