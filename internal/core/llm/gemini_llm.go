package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/Prism/internal/core"
)

type GeminiLLM struct {
	client      *genai.Client
	modelName   string
	temperature float32
	maxTokens   int32
	ownsClient  bool
}

func NewGeminiLLM(ctx context.Context, apiKey, modelName string) (*GeminiLLM, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiLLM{client: cl, modelName: modelName, temperature: 0.7, maxTokens: 2048, ownsClient: true}, nil
}

// WithModel returns a view on the same client using another model.
// Closing the view leaves the shared client open.
func (g *GeminiLLM) WithModel(modelName string) *GeminiLLM {
	cp := *g
	cp.modelName = modelName
	cp.ownsClient = false
	return &cp
}

func (g *GeminiLLM) Name() string { return g.modelName }

func (g *GeminiLLM) Close() error {
	if g.client != nil && g.ownsClient {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m := g.model(g.maxTokens)
	if systemPrompt != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}

	resp, err := m.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return responseText(resp), nil
}

func (g *GeminiLLM) Describe(ctx context.Context, image core.Image, prompt string) (string, error) {
	return g.describe(ctx, []core.Image{image}, prompt, 500)
}

func (g *GeminiLLM) DescribeMany(ctx context.Context, images []core.Image, prompt string) (string, error) {
	return g.describe(ctx, images, prompt, 1000)
}

func (g *GeminiLLM) describe(ctx context.Context, images []core.Image, prompt string, maxTokens int32) (string, error) {
	parts := make([]genai.Part, 0, len(images)+1)
	parts = append(parts, genai.Text(prompt))
	for _, img := range images {
		parts = append(parts, genai.Blob{MIMEType: img.MIMEType, Data: img.Data})
	}

	resp, err := g.model(maxTokens).GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini vision: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini vision: empty response")
	}
	return text, nil
}

func (g *GeminiLLM) model(maxTokens int32) *genai.GenerativeModel {
	m := g.client.GenerativeModel(g.modelName)
	m.SetTemperature(g.temperature)
	m.SetMaxOutputTokens(maxTokens)
	return m
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String())
}

var (
	_ core.LLMProvider    = (*GeminiLLM)(nil)
	_ core.VisionProvider = (*GeminiLLM)(nil)
)
