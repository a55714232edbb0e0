package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/Prism/internal/core"
	"github.com/markdave123-py/Prism/internal/core/ingestion_engine"
	"github.com/markdave123-py/Prism/internal/core/logger"
	"github.com/markdave123-py/Prism/internal/models"
)

// Upload is one file of a multipart batch.
type Upload struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// IngestService saves uploads, feeds them to the ingestor under the session
// lock and records every outcome in the session's ingestion log.
type IngestService struct {
	sessions  *SessionService
	ingestor  ingestion_engine.Ingestor
	archiver  *Archiver
	uploadDir string
	maxBytes  int64
	log       *logger.Logger
}

// NewIngestService wires batch ingestion. archiver may be nil, in which case
// local copies are removed straight after ingestion.
func NewIngestService(sessions *SessionService, ingestor ingestion_engine.Ingestor, archiver *Archiver, uploadDir string, maxBytes int64, log *logger.Logger) *IngestService {
	return &IngestService{
		sessions:  sessions,
		ingestor:  ingestor,
		archiver:  archiver,
		uploadDir: uploadDir,
		maxBytes:  maxBytes,
		log:       log.With("service", "IngestService"),
	}
}

// ProcessFiles ingests a batch. One file failing never stops the others.
func (s *IngestService) ProcessFiles(ctx context.Context, sessionID string, uploads []Upload) (models.BatchReport, error) {
	var report models.BatchReport

	for _, up := range uploads {
		if strings.TrimSpace(up.Name) == "" {
			continue
		}
		report.TotalCount++
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res, err := s.processOne(ctx, sessionID, up)
		if err != nil {
			return report, err
		}
		if res.OK() {
			report.ProcessedCount++
		}
		report.Results = append(report.Results, res)
	}

	s.log.Info("batch processed", "session", sessionID, "processed", report.ProcessedCount, "total", report.TotalCount)
	return report, nil
}

// processOne returns an error only when the session itself is unusable.
func (s *IngestService) processOne(ctx context.Context, sessionID string, up Upload) (models.IngestionResult, error) {
	name := filepath.Base(strings.ReplaceAll(up.Name, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(name))

	var res models.IngestionResult
	switch {
	case !accepted(ext):
		res = rejected(name, &core.UnsupportedFormatError{Ext: ext})
	case s.maxBytes > 0 && up.Size > s.maxBytes:
		res = rejected(name, fmt.Errorf("file exceeds maximum size of %d MB", s.maxBytes>>20))
	}
	if res.Status != "" {
		return res, s.sessions.Do(ctx, sessionID, func(sess *Session) error {
			sess.RecordIngestion(res)
			return nil
		})
	}

	path, err := s.save(sessionID, name, up)
	if err != nil {
		s.log.Error("save upload failed", "file", name, "error", err)
		res = rejected(name, errors.New("failed to save file"))
		return res, s.sessions.Do(ctx, sessionID, func(sess *Session) error {
			sess.RecordIngestion(res)
			return nil
		})
	}
	// The hand-off happens under the session lock so a Clear either sees the
	// queued job or runs before it exists.
	handed := false
	err = s.sessions.Do(ctx, sessionID, func(sess *Session) error {
		store, err := sess.Store(ctx)
		if err != nil {
			res = rejected(name, err)
		} else {
			res = s.ingestor.Ingest(ctx, store, path, name)
		}
		sess.RecordIngestion(res)
		s.handOff(sessionID, name, path, up.ContentType)
		handed = true
		return nil
	})
	if !handed {
		removeUpload(path, s.log)
	}
	return res, err
}

// ProcessYouTube ingests the audio track behind url.
func (s *IngestService) ProcessYouTube(ctx context.Context, sessionID, url string) (models.IngestionResult, error) {
	var res models.IngestionResult
	err := s.sessions.Do(ctx, sessionID, func(sess *Session) error {
		store, err := sess.Store(ctx)
		if err != nil {
			res = rejected(url, err)
		} else {
			res = s.ingestor.IngestYouTube(ctx, store, url)
		}
		sess.RecordIngestion(res)
		return nil
	})
	return res, err
}

func (s *IngestService) save(sessionID, name string, up Upload) (string, error) {
	dir := filepath.Join(s.uploadDir, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	src, err := up.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	path := filepath.Join(dir, uuid.NewString()+"_"+name)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		removeUpload(path, s.log)
		return "", err
	}
	if err := dst.Close(); err != nil {
		removeUpload(path, s.log)
		return "", err
	}
	return path, nil
}

// handOff passes the local copy to the archiver, which removes it when done.
func (s *IngestService) handOff(sessionID, name, path, contentType string) {
	if s.archiver == nil {
		removeUpload(path, s.log)
		return
	}
	s.archiver.Enqueue(archiveJob{SessionID: sessionID, Name: name, Path: path, ContentType: contentType})
}

func accepted(ext string) bool {
	_, ok := ingestion_engine.ContentTypeFor(ext)
	return ok
}

func rejected(name string, err error) models.IngestionResult {
	return models.IngestionResult{
		Name:      name,
		Status:    models.StatusError,
		Message:   ingestion_engine.FailureMessage(err),
		Error:     err.Error(),
		CreatedAt: time.Now().UTC(),
	}
}
