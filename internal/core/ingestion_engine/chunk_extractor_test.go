package ingestion_engine

import (
	"errors"
	"strings"
	"testing"
)

func TestChunkWindows(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		size    int
		overlap int
		want    []int // chunk lengths
	}{
		{"empty", "", 10, 2, nil},
		{"shorter than size", "hello", 10, 2, []int{5}},
		{"exact size", strings.Repeat("a", 10), 10, 2, []int{10, 2}},
		{"no overlap", strings.Repeat("a", 25), 10, 0, []int{10, 10, 5}},
		{"pdf scenario", strings.Repeat("x", 2400), 1000, 200, []int{1000, 1000, 800}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Chunk(tc.text, tc.size, tc.overlap)
			if err != nil {
				t.Fatalf("Chunk: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d chunks, want %d", len(got), len(tc.want))
			}
			for i, c := range got {
				if len([]rune(c)) != tc.want[i] {
					t.Fatalf("chunk %d len = %d, want %d", i, len([]rune(c)), tc.want[i])
				}
			}
		})
	}
}

func TestChunkCoverageAndOverlap(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog. Pack my box with five dozen liquor jugs. ÅÄÖ ünïcödé."
	runes := []rune(text)
	windows := []struct{ size, overlap int }{{10, 3}, {7, 0}, {20, 19}, {200, 50}}

	for _, w := range windows {
		chunks, err := Chunk(text, w.size, w.overlap)
		if err != nil {
			t.Fatalf("Chunk(%d,%d): %v", w.size, w.overlap, err)
		}
		step := w.size - w.overlap
		wantCount := (len(runes) + step - 1) / step
		if len(chunks) != wantCount {
			t.Fatalf("size=%d overlap=%d: %d chunks, want %d", w.size, w.overlap, len(chunks), wantCount)
		}

		covered := 0
		for i, c := range chunks {
			offset := i * step
			end := offset + w.size
			if end > len(runes) {
				end = len(runes)
			}
			if c != string(runes[offset:end]) {
				t.Fatalf("size=%d overlap=%d: chunk %d = %q, want window at %d", w.size, w.overlap, i, c, offset)
			}
			if i > 0 && end-offset == w.size {
				prev := []rune(chunks[i-1])
				if string(prev[step:]) != string([]rune(c)[:w.overlap]) {
					t.Fatalf("chunks %d/%d do not share %d runes", i-1, i, w.overlap)
				}
			}
			covered = end
		}
		if covered != len(runes) {
			t.Fatalf("size=%d overlap=%d: chunks stop at %d of %d", w.size, w.overlap, covered, len(runes))
		}
	}
}

func TestChunkDropsWhitespaceWindows(t *testing.T) {
	text := "abcd" + strings.Repeat(" ", 12) + "efgh"
	got, err := Chunk(text, 4, 0)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(got) != 2 || got[0] != "abcd" || got[1] != "efgh" {
		t.Fatalf("Chunk = %q", got)
	}
}

func TestChunkInvalidWindow(t *testing.T) {
	for _, w := range [][2]int{{0, 0}, {10, 10}, {10, -1}, {5, 7}} {
		if _, err := Chunk("text", w[0], w[1]); !errors.Is(err, ErrInvalidChunkWindow) {
			t.Fatalf("Chunk(%d,%d) err = %v", w[0], w[1], err)
		}
	}
}
