package ingestion_engine

import (
	"errors"
	"strings"
)

var ErrInvalidChunkWindow = errors.New("chunk window needs size > 0 and 0 <= overlap < size")

// Chunk splits text into fixed windows of size runes, each starting size-overlap
// runes after the previous one. Windows holding only whitespace are dropped;
// the rest are returned untrimmed so consecutive chunks share exactly overlap runes.
func Chunk(text string, size, overlap int) ([]string, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, ErrInvalidChunkWindow
	}
	runes := []rune(text)
	step := size - overlap

	var out []string
	for offset := 0; offset < len(runes); offset += step {
		end := offset + size
		if end > len(runes) {
			end = len(runes)
		}
		window := string(runes[offset:end])
		if strings.TrimSpace(window) == "" {
			continue
		}
		out = append(out, window)
	}
	return out, nil
}
