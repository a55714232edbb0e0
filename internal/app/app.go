package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/markdave123-py/Prism/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/Prism/internal/api/middlewares"
	"github.com/markdave123-py/Prism/internal/config"
	"github.com/markdave123-py/Prism/internal/core"
	db "github.com/markdave123-py/Prism/internal/core/database"
	"github.com/markdave123-py/Prism/internal/core/ingestion_engine"
	"github.com/markdave123-py/Prism/internal/core/logger"
	"github.com/markdave123-py/Prism/internal/core/media"
	objectclient "github.com/markdave123-py/Prism/internal/core/object-client"
	"github.com/markdave123-py/Prism/internal/services"
)

type App struct {
	DB       *sql.DB
	Sessions *services.SessionService
	Archiver *services.Archiver
	Server   *Server

	closers []io.Closer
	log     *logger.Logger
}

func NewApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	a := &App{log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	tools := media.NewTools(log, media.ToolPaths{FFmpeg: cfg.FFmpegPath, FFprobe: cfg.FFprobePath, YtDlp: cfg.YtDlpPath})
	if err := tools.AssertReady(appCtx); err != nil {
		log.Warn("media tools missing; video, audio and youtube ingestion will fail", "error", err)
	}

	embedder, embedCloser, err := newEmbedder(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder: %w", err)
	}
	a.track(embedCloser)

	vision, visionCloser, err := newVisionChain(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize vision models: %w", err)
	}
	a.track(visionCloser)

	tiers, tierClosers, err := newTranscriptionTiers(appCtx, cfg, log)
	for _, c := range tierClosers {
		a.track(c)
	}
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize transcription: %w", err)
	}

	newStore, err := a.storeFactory(appCtx, cfg, embedder)
	if err != nil {
		return nil, err
	}

	var archive services.ArchivePurger
	if cfg.ArchiveEnabled() {
		s3Client, err := objectclient.NewS3Client(appCtx, cfg, log)
		if err != nil {
			return nil, err
		}
		a.Archiver = services.NewArchiver(s3Client, log)
		a.Archiver.Start(context.WithoutCancel(ctx))
		archive = a.Archiver
	} else {
		log.Info("upload archive disabled")
	}

	ingestor := ingestion_engine.NewDocumentIngestor(
		ingestion_engine.NewDocconvExtractor(),
		media.NewImageDescriber(vision[0], log),
		media.NewVideoDescriber(tools, vision, media.VideoOptions{
			Frames:      cfg.VideoFrames,
			Concurrency: cfg.MediaConcurrency,
			WorkDir:     cfg.WorkDir,
		}, log),
		media.NewAudioTranscriber(tools, tiers, media.AudioOptions{
			Concurrency: cfg.MediaConcurrency,
			WorkDir:     cfg.WorkDir,
		}, log),
		media.NewYouTubeDownloader(tools, cfg.WorkDir, log),
		&ingestion_engine.IngestConfig{ChunkSize: cfg.ChunkSize, ChunkOverlap: cfg.ChunkOverlap},
		log,
	)

	a.Sessions = services.NewSessionService(
		newStore,
		func(ctx context.Context) (core.LLMProvider, error) { return newChatLLM(ctx, cfg) },
		archive, cfg.SessionTTL, log,
	)

	ingestService := services.NewIngestService(a.Sessions, ingestor, a.Archiver, cfg.UploadFolder, cfg.MaxFileSizeBytes(), log)
	chatService := services.NewChatService(a.Sessions, log)

	router := NewRouter(cfg, Routes{
		Chat:     handlers.NewChatHandler(chatService, log),
		Ingest:   handlers.NewIngestHandler(ingestService, log),
		Sessions: handlers.NewSessionHandler(a.Sessions, log),
		Cookies:  appMiddleware.NewSessions(cfg.SessionSecret, cfg.SessionTTL, cfg.LogMode == "prod", log),
	}, log)
	a.Server = NewServer(cfg, router, log)

	ok = true
	return a, nil
}

// storeFactory picks pgvector when DATABASE_URL is set and the in-memory store otherwise.
func (a *App) storeFactory(ctx context.Context, cfg *config.Config, embedder core.EmbeddingProvider) (services.StoreFactory, error) {
	if cfg.DatabaseURL == "" {
		a.log.Warn("DATABASE_URL not set; using in-memory vector store")
		return func(context.Context, string) (core.VectorStore, error) {
			return db.NewMemoryStore(embedder, cfg.EmbedBatchSize), nil
		}, nil
	}

	sqlDB, err := db.Open(ctx, cfg, a.log)
	if err != nil {
		return nil, err
	}
	a.DB = sqlDB
	a.log.Info("database initialized and ready")

	return func(_ context.Context, sessionID string) (core.VectorStore, error) {
		return db.NewPgVectorStore(sqlDB, sessionID, embedder, cfg.EmbedBatchSize, a.log)
	}, nil
}

func (a *App) track(c io.Closer) {
	if c != nil {
		a.closers = append(a.closers, c)
	}
}

// Close drains the archiver and releases clients and the database.
func (a *App) Close() {
	if a.Archiver != nil {
		a.Archiver.Close()
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn("close client", "error", err)
		}
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}
