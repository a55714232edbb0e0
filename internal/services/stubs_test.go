package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/markdave123-py/Prism/internal/core"
	"github.com/markdave123-py/Prism/internal/core/logger"
	"github.com/markdave123-py/Prism/internal/models"
)

// scriptedStore answers Query from a per-k table and records calls.
type scriptedStore struct {
	mu       sync.Mutex
	byK      map[int][]string
	count    int
	queryErr error
	queries  []int
	added    []string
	cleared  int
}

func (s *scriptedStore) Add(_ context.Context, docs []string, _ []models.ChunkMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added = append(s.added, docs...)
	s.count += len(docs)
	return nil
}

func (s *scriptedStore) Query(_ context.Context, _ string, k int) ([]models.QueryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, k)
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	var out []models.QueryResult
	for i, d := range s.byK[k] {
		out = append(out, models.QueryResult{Document: d, Distance: float64(i)})
	}
	return out, nil
}

func (s *scriptedStore) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count, nil
}

func (s *scriptedStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared++
	s.count = 0
	s.byK = nil
	s.added = nil
	return nil
}

type stubLLM struct {
	mu      sync.Mutex
	reply   string
	err     error
	system  string
	prompts []string
	closed  bool
}

func (l *stubLLM) Generate(_ context.Context, system, user string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.system = system
	l.prompts = append(l.prompts, user)
	return l.reply, l.err
}

func (l *stubLLM) Close() error {
	l.closed = true
	return nil
}

type stubIngestor struct {
	mu     sync.Mutex
	files  []string
	paths  []string
	urls   []string
	result func(name string) models.IngestionResult
}

func (i *stubIngestor) Ingest(_ context.Context, store core.VectorStore, path, name string) models.IngestionResult {
	i.mu.Lock()
	i.files = append(i.files, name)
	i.paths = append(i.paths, path)
	i.mu.Unlock()
	if i.result != nil {
		return i.result(name)
	}
	_ = store.Add(context.Background(), []string{"chunk of " + name}, []models.ChunkMetadata{{Source: name, Type: models.ContentText}})
	return models.IngestionResult{Name: name, Status: models.StatusSuccess, Chunks: 1, Message: "Processed 1 chunks"}
}

func (i *stubIngestor) IngestYouTube(_ context.Context, _ core.VectorStore, url string) models.IngestionResult {
	i.mu.Lock()
	i.urls = append(i.urls, url)
	i.mu.Unlock()
	return models.IngestionResult{Name: url, Status: models.StatusSuccess, ContentType: models.ContentYouTube, Chunks: 2, Message: "Processed 2 chunks (1500 characters)"}
}

type fakeObjects struct {
	mu       sync.Mutex
	uploads  map[string]string
	prefixes []string
	err      error
}

func (f *fakeObjects) UploadFile(_ context.Context, key string, data io.Reader, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	b, _ := io.ReadAll(data)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploads == nil {
		f.uploads = map[string]string{}
	}
	f.uploads[key] = string(b)
	return "https://example/" + key, nil
}

func (f *fakeObjects) DeletePrefix(_ context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefixes = append(f.prefixes, prefix)
	return nil
}

func (f *fakeObjects) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for k := range f.uploads {
		out = append(out, k)
	}
	return out
}

// registry builds a SessionService whose sessions all share store and llm.
func registry(store core.VectorStore, llm core.LLMProvider, archive ArchivePurger) *SessionService {
	return NewSessionService(
		func(context.Context, string) (core.VectorStore, error) { return store, nil },
		func(context.Context) (core.LLMProvider, error) { return llm, nil },
		archive, time.Hour, logger.Nop(),
	)
}

func textUpload(name, body string) Upload {
	return Upload{
		Name:        name,
		Size:        int64(len(body)),
		ContentType: "text/plain",
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

var errBoom = errors.New("boom")
