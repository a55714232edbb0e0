package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/markdave123-py/Prism/internal/core"
)

type WhisperTranscriber struct {
	client *openai.Client
}

func NewWhisperTranscriber(client *openai.Client) *WhisperTranscriber {
	return &WhisperTranscriber{client: client}
}

func (w *WhisperTranscriber) Name() string { return "whisper" }

func (w *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: audioPath,
	})
	if err != nil {
		return "", fmt.Errorf("whisper: %w", classifyOpenAIError(err))
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", core.ErrUnrecognizedSpeech
	}
	return text, nil
}

var _ core.Transcriber = (*WhisperTranscriber)(nil)
