package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/markdave123-py/Prism/internal/core"
)

// OpenAILLM talks to any OpenAI-compatible chat endpoint (OpenAI, OpenRouter).
type OpenAILLM struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return openai.NewClientWithConfig(cfg)
}

func NewOpenAILLM(client *openai.Client, model string) *OpenAILLM {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAILLM{client: client, model: model, temperature: 0.7, maxTokens: 2048}
}

// WithModel returns a copy bound to another model on the same client.
func (o *OpenAILLM) WithModel(model string) *OpenAILLM {
	cp := *o
	cp.model = model
	return &cp
}

func (o *OpenAILLM) Name() string { return o.model }

func (o *OpenAILLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var messages []openai.ChatCompletionMessage
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: userPrompt})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", classifyOpenAIError(err))
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (o *OpenAILLM) Describe(ctx context.Context, image core.Image, prompt string) (string, error) {
	return o.describe(ctx, []core.Image{image}, prompt, 500)
}

func (o *OpenAILLM) DescribeMany(ctx context.Context, images []core.Image, prompt string) (string, error) {
	return o.describe(ctx, images, prompt, 1000)
}

func (o *OpenAILLM) describe(ctx context.Context, images []core.Image, prompt string, maxTokens int) (string, error) {
	parts := make([]openai.ChatMessagePart, 0, len(images)+1)
	parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: prompt})
	for _, img := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    dataURI(img),
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.model,
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, MultiContent: parts}},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("vision %s: %w", o.model, classifyOpenAIError(err))
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision %s: no choices returned", o.model)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("vision %s: empty response", o.model)
	}
	return text, nil
}

func dataURI(img core.Image) string {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// classifyOpenAIError tags 401 and 403 answers as credential rejections
// so callers can abandon a provider instead of retrying it.
func classifyOpenAIError(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("%w: %v", core.ErrCredentialRejected, err)
	}
	return err
}

var (
	_ core.LLMProvider    = (*OpenAILLM)(nil)
	_ core.VisionProvider = (*OpenAILLM)(nil)
)
