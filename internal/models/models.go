package models

import (
	"time"
)

// ContentType tags where a chunk's text came from.
type ContentType string

const (
	ContentText    ContentType = "text"
	ContentImage   ContentType = "image"
	ContentVideo   ContentType = "video"
	ContentAudio   ContentType = "audio"
	ContentYouTube ContentType = "youtube"
)

// ChunkMetadata is stored next to every chunk. Chunk is zero for single-chunk media.
type ChunkMetadata struct {
	Source string      `json:"source"`
	Type   ContentType `json:"type"`
	Chunk  int         `json:"chunk"`
}

// DocumentChunk represents one stored text chunk.
type DocumentChunk struct {
	ID          string      `db:"id" json:"id"`
	Collection  string      `db:"collection" json:"collection"` // owning session
	Text        string      `db:"text" json:"text"`
	Source      string      `db:"source" json:"source"`
	ContentType ContentType `db:"content_type" json:"content_type"`
	ChunkIndex  int         `db:"chunk_index" json:"chunk_index"`
	Embedding   []float32   `db:"embedding" json:"-"` // pgvector column
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
}

// Metadata returns the chunk's metadata view.
func (c DocumentChunk) Metadata() ChunkMetadata {
	return ChunkMetadata{Source: c.Source, Type: c.ContentType, Chunk: c.ChunkIndex}
}

// QueryResult is one ranked hit; lower Distance is closer.
type QueryResult struct {
	Document  string        `json:"document"`
	Metadata  ChunkMetadata `json:"metadata"`
	Distance  float64       `json:"distance"`
	CreatedAt time.Time     `json:"created_at"`
}

// Ingestion statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// IngestionResult reports the outcome of one processed item.
// Either Chunks/Description (success) or Error is populated.
type IngestionResult struct {
	Name        string      `json:"name"`
	Status      string      `json:"status"`
	ContentType ContentType `json:"content_type,omitempty"`
	Chunks      int         `json:"chunks,omitempty"`
	Description string      `json:"description,omitempty"`
	Message     string      `json:"message"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

func (r IngestionResult) OK() bool { return r.Status == StatusSuccess }

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn represents an individual chat message (user or assistant).
type ChatTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// BatchReport summarizes one multi-file upload.
type BatchReport struct {
	ProcessedCount int               `json:"processed_count"`
	TotalCount     int               `json:"total_count"`
	Results        []IngestionResult `json:"results"`
}

// SessionStatus is the status view of one chat session.
type SessionStatus struct {
	SessionID      string            `json:"session_id"`
	ChunkCount     int               `json:"chunk_count"`
	ChatHistory    []ChatTurn        `json:"chat_history"`
	ProcessedFiles []IngestionResult `json:"processed_files"`
}
