package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"code.sajari.com/docconv"
	"github.com/yuin/goldmark"

	"github.com/markdave123-py/Prism/internal/core"
)

var _ core.DocumentExtractor = (*DocconvExtractor)(nil)

var htmlTag = regexp.MustCompile(`<[^<]+?>`)

// DocconvExtractor implements core.DocumentExtractor using sajari/docconv for
// office formats and goldmark for Markdown.
type DocconvExtractor struct {
	markdown goldmark.Markdown
	formats  map[string]func(io.Reader) (string, error)
}

func NewDocconvExtractor() *DocconvExtractor {
	e := &DocconvExtractor{markdown: goldmark.New()}
	e.formats = map[string]func(io.Reader) (string, error){
		".pdf":  docconvBody(docconv.ConvertPDF),
		".docx": docconvBody(docconv.ConvertDocx),
		".pptx": docconvBody(docconv.ConvertPptx),
		".md":   e.convertMarkdown,
		".txt":  readPlain,
	}
	return e
}

// Supports reports whether ext (with dot, any case) has an extractor.
func (e *DocconvExtractor) Supports(ext string) bool {
	_, ok := e.formats[strings.ToLower(ext)]
	return ok
}

// Extract returns the whole text of the file at path, trimmed.
func (e *DocconvExtractor) Extract(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	convert, ok := e.formats[ext]
	if !ok {
		return "", &core.UnsupportedFormatError{Ext: ext}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", &core.ExtractionError{Format: ext, Err: err}
	}
	defer f.Close()

	text, err := convert(f)
	if err != nil {
		return "", &core.ExtractionError{Format: ext, Err: err}
	}
	return strings.TrimSpace(text), nil
}

func (e *DocconvExtractor) convertMarkdown(r io.Reader) (string, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	var html bytes.Buffer
	if err := e.markdown.Convert(src, &html); err != nil {
		return "", fmt.Errorf("markdown to html: %w", err)
	}
	return htmlTag.ReplaceAllString(html.String(), ""), nil
}

func readPlain(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(b), "�"), nil
}

// docconvBody adapts docconv's (body, meta, err) converters.
func docconvBody(fn func(io.Reader) (string, map[string]string, error)) func(io.Reader) (string, error) {
	return func(r io.Reader) (string, error) {
		body, _, err := fn(r)
		return body, err
	}
}
