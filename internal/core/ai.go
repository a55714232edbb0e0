package core

import "context"

type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}

// Image is an encoded still image handed to a vision model.
type Image struct {
	Data     []byte
	MIMEType string
}

// VisionProvider is one vision-capable model. Fallback chains are ordered slices of these.
type VisionProvider interface {
	Name() string
	Describe(ctx context.Context, image Image, prompt string) (string, error)
	DescribeMany(ctx context.Context, images []Image, prompt string) (string, error)
}

// Transcriber turns an audio file into text.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, audioPath string) (string, error)
}
