package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/markdave123-py/Prism/internal/core"
	"github.com/markdave123-py/Prism/internal/core/logger"
	"github.com/markdave123-py/Prism/internal/models"
)

// PgVectorStore keeps one collection of chunks in the shared document_chunks
// table and ranks them by L2 distance.
type PgVectorStore struct {
	db         *sql.DB
	collection string
	embedder   core.EmbeddingProvider
	batchSize  int
	log        *logger.Logger
}

func NewPgVectorStore(db *sql.DB, collection string, embedder core.EmbeddingProvider, batchSize int, log *logger.Logger) (*PgVectorStore, error) {
	if collection == "" {
		return nil, errEmptyCollection
	}
	return &PgVectorStore{
		db:         db,
		collection: collection,
		embedder:   embedder,
		batchSize:  batchSize,
		log:        log.With("service", "PgVectorStore", "collection", collection),
	}, nil
}

// Add embeds documents and inserts them in a single transaction.
func (s *PgVectorStore) Add(ctx context.Context, documents []string, metadatas []models.ChunkMetadata) error {
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

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO document_chunks
			(id, collection, text, source, content_type, chunk_index, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range documents {
		m := metadatas[i]
		if _, err := stmt.ExecContext(ctx,
			uuid.NewString(), s.collection, documents[i], m.Source, string(m.Type), m.Chunk,
			pgvector.NewVector(vecs[i]), now,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Debug("chunks stored", "count", len(documents))
	return nil
}

// Query returns up to k chunks nearest to text, closest first.
func (s *PgVectorStore) Query(ctx context.Context, text string, k int) ([]models.QueryResult, error) {
	if k <= 0 {
		return nil, nil
	}
	vecs, err := s.embedder.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}

	const q = `
		SELECT text, source, content_type, chunk_index, created_at, embedding <-> $2 AS distance
		FROM document_chunks
		WHERE collection = $1
		ORDER BY embedding <-> $2
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, q, s.collection, pgvector.NewVector(vecs[0]), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.QueryResult
	for rows.Next() {
		var (
			r           models.QueryResult
			contentType string
		)
		if err := rows.Scan(&r.Document, &r.Metadata.Source, &contentType, &r.Metadata.Chunk, &r.CreatedAt, &r.Distance); err != nil {
			return nil, err
		}
		r.Metadata.Type = models.ContentType(contentType)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PgVectorStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM document_chunks WHERE collection = $1`, s.collection).Scan(&n)
	return n, err
}

// Clear deletes the whole collection; the store remains usable.
func (s *PgVectorStore) Clear(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE collection = $1`, s.collection)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	s.log.Info("collection cleared", "deleted", n)
	return nil
}

var _ core.VectorStore = (*PgVectorStore)(nil)
