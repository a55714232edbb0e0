package db

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/markdave123-py/Prism/internal/models"
)

// keywordEmbedder maps text onto fixed axes so similarity is predictable.
type keywordEmbedder struct {
	mu      sync.Mutex
	calls   int
	batches []int
	err     error
}

var axes = []string{"cat", "dog", "car"}

func (e *keywordEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.batches = append(e.batches, len(texts))
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, len(axes))
		for j, a := range axes {
			v[j] = float32(strings.Count(strings.ToLower(t), a))
		}
		out[i] = v
	}
	return out, nil
}

func meta(source string, chunk int) models.ChunkMetadata {
	return models.ChunkMetadata{Source: source, Type: models.ContentText, Chunk: chunk}
}

func TestMemoryStoreQueryRanksByDistance(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(&keywordEmbedder{}, 2)

	docs := []string{"a car on the road", "the cat sat", "dog and cat", "dog park dog"}
	metas := []models.ChunkMetadata{meta("a.txt", 0), meta("a.txt", 1), meta("b.txt", 0), meta("b.txt", 1)}
	if err := s.Add(ctx, docs, metas); err != nil {
		t.Fatalf("Add: %v", err)
	}

	n, _ := s.Count(ctx)
	if n != 4 {
		t.Fatalf("count = %d", n)
	}

	res, err := s.Query(ctx, "cat", 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("got %d results", len(res))
	}
	if res[0].Document != "the cat sat" || res[1].Document != "dog and cat" {
		t.Fatalf("unexpected ranking: %q, %q", res[0].Document, res[1].Document)
	}
	if res[0].Distance > res[1].Distance {
		t.Fatalf("results not ascending: %v > %v", res[0].Distance, res[1].Distance)
	}
	if res[0].Metadata != meta("a.txt", 1) {
		t.Fatalf("metadata = %+v", res[0].Metadata)
	}
	if res[0].CreatedAt.IsZero() {
		t.Fatal("created_at not assigned")
	}

	all, _ := s.Query(ctx, "cat", 50)
	if len(all) != 4 {
		t.Fatalf("k larger than store returned %d", len(all))
	}
}

func TestMemoryStoreClearKeepsStoreUsable(t *testing.T) {
	ctx := context.Background()
	emb := &keywordEmbedder{}
	s := NewMemoryStore(emb, 0)

	if err := s.Add(ctx, []string{"cat"}, []models.ChunkMetadata{meta("x", 0)}); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.Count(ctx); n != 0 {
		t.Fatalf("count after clear = %d", n)
	}

	calls := emb.calls
	res, err := s.Query(ctx, "cat", 15)
	if err != nil || len(res) != 0 {
		t.Fatalf("query on empty store: %v %v", res, err)
	}
	if emb.calls != calls {
		t.Fatal("empty store should not embed the query")
	}

	if err := s.Add(ctx, []string{"dog"}, []models.ChunkMetadata{meta("y", 0)}); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Fatalf("count after re-add = %d", n)
	}
}

func TestAddValidation(t *testing.T) {
	tests := []struct {
		name  string
		docs  []string
		metas []models.ChunkMetadata
	}{
		{"length mismatch", []string{"a", "b"}, []models.ChunkMetadata{meta("s", 0)}},
		{"missing source", []string{"a"}, []models.ChunkMetadata{{Type: models.ContentText}}},
		{"missing type", []string{"a"}, []models.ChunkMetadata{{Source: "s"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewMemoryStore(&keywordEmbedder{}, 0)
			if err := s.Add(context.Background(), tt.docs, tt.metas); err == nil {
				t.Fatal("expected validation error")
			}
			if n, _ := s.Count(context.Background()); n != 0 {
				t.Fatalf("store modified on invalid add: %d", n)
			}
		})
	}
}

func TestAddEmbedFailureLeavesStoreUntouched(t *testing.T) {
	boom := errors.New("quota")
	s := NewMemoryStore(&keywordEmbedder{err: boom}, 0)
	err := s.Add(context.Background(), []string{"a"}, []models.ChunkMetadata{meta("s", 0)})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if n, _ := s.Count(context.Background()); n != 0 {
		t.Fatalf("count = %d", n)
	}
}

func TestEmbedBatchedPreservesOrder(t *testing.T) {
	emb := &keywordEmbedder{}
	texts := []string{"cat", "dog", "car", "cat cat", "dog dog", "car car", "cat dog"}
	vecs, err := embedBatched(context.Background(), emb, texts, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(emb.batches) != 3 {
		t.Fatalf("expected 3 batches, got %v", emb.batches)
	}
	for i, txt := range texts {
		want, _ := emb.EmbedTexts(context.Background(), []string{txt})
		for j := range want[0] {
			if vecs[i][j] != want[0][j] {
				t.Fatalf("vector %d misaligned: %v vs %v", i, vecs[i], want[0])
			}
		}
	}
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{2, 0}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"zero", []float32{0, 0}, []float32{1, 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cosineDistance(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("got %v want %v", got, tt.want)
			}
		})
	}
}

func TestBuildDSN(t *testing.T) {
	raw := "postgres://u:p@localhost:5432/prism"
	if got, err := buildDSN(raw, ""); err != nil || got != raw {
		t.Fatalf("no cert: %q %v", got, err)
	}

	if _, err := buildDSN(raw, filepath.Join(t.TempDir(), "missing.crt")); err == nil {
		t.Fatal("expected error for missing cert")
	}

	cert := filepath.Join(t.TempDir(), "ca.crt")
	if err := os.WriteFile(cert, []byte("pem"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := buildDSN(raw, cert)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "sslmode=verify-ca") || !strings.Contains(got, "sslrootcert=") {
		t.Fatalf("dsn = %q", got)
	}
}

func TestBootstrapSQLDeclaresSchema(t *testing.T) {
	script, err := bootstrapSQL()
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"CREATE EXTENSION IF NOT EXISTS vector", "prism_meta", "document_chunks", "embedding     vector"} {
		if !strings.Contains(script, want) {
			t.Errorf("bootstrap script missing %q", want)
		}
	}
}

func TestNewPgVectorStoreRequiresCollection(t *testing.T) {
	if _, err := NewPgVectorStore(nil, "", &keywordEmbedder{}, 0, nil); !errors.Is(err, errEmptyCollection) {
		t.Fatalf("err = %v", err)
	}
}
