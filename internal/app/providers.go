package app

import (
	"context"
	"fmt"
	"io"

	"github.com/markdave123-py/Prism/internal/config"
	"github.com/markdave123-py/Prism/internal/core"
	"github.com/markdave123-py/Prism/internal/core/llm"
	"github.com/markdave123-py/Prism/internal/core/logger"
	"github.com/markdave123-py/Prism/internal/core/media"
)

// newChatLLM builds the chat model a session talks to.
func newChatLLM(ctx context.Context, cfg *config.Config) (core.LLMProvider, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		return llm.NewGeminiLLM(ctx, cfg.GeminiAPIKey, cfg.GenModel)
	case config.ProviderOpenAI, config.ProviderOpenRouter:
		client := llm.NewOpenAIClient(cfg.APIKey(cfg.LLMProvider), cfg.BaseURL(cfg.LLMProvider))
		return llm.NewOpenAILLM(client, cfg.GenModel), nil
	}
	return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
}

func newEmbedder(ctx context.Context, cfg *config.Config) (core.EmbeddingProvider, io.Closer, error) {
	switch cfg.EmbedProvider {
	case config.ProviderGemini:
		e, err := llm.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel)
		if err != nil {
			return nil, nil, err
		}
		return e, e, nil
	case config.ProviderOpenAI:
		client := llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
		return llm.NewOpenAIEmbedder(client, cfg.EmbedModel), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbedProvider)
}

// newVisionChain returns one provider per configured vision model, in order.
func newVisionChain(ctx context.Context, cfg *config.Config) ([]core.VisionProvider, io.Closer, error) {
	if len(cfg.VisionModels) == 0 {
		return nil, nil, fmt.Errorf("no vision models configured")
	}
	chain := make([]core.VisionProvider, 0, len(cfg.VisionModels))

	switch cfg.VisionProvider {
	case config.ProviderGemini:
		base, err := llm.NewGeminiLLM(ctx, cfg.GeminiAPIKey, cfg.VisionModels[0])
		if err != nil {
			return nil, nil, err
		}
		chain = append(chain, base)
		for _, m := range cfg.VisionModels[1:] {
			chain = append(chain, base.WithModel(m))
		}
		return chain, base, nil
	case config.ProviderOpenAI, config.ProviderOpenRouter:
		client := llm.NewOpenAIClient(cfg.APIKey(cfg.VisionProvider), cfg.BaseURL(cfg.VisionProvider))
		base := llm.NewOpenAILLM(client, cfg.VisionModels[0])
		for _, m := range cfg.VisionModels {
			chain = append(chain, base.WithModel(m))
		}
		return chain, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown vision provider %q", cfg.VisionProvider)
}

// newTranscriptionTiers follows the order of TRANSCRIBE_PROVIDERS. The size
// policy belongs to the service: whisper takes 20MB/60s, google 10MB/30s.
func newTranscriptionTiers(ctx context.Context, cfg *config.Config, log *logger.Logger) ([]media.TranscriptionTier, []io.Closer, error) {
	var (
		tiers   []media.TranscriptionTier
		closers []io.Closer
	)
	for _, name := range cfg.TranscribeProviders {
		var t core.Transcriber
		switch name {
		case config.TranscriberWhisper:
			if cfg.OpenAIAPIKey == "" {
				return nil, closers, fmt.Errorf("whisper transcription needs OPENAI_API_KEY")
			}
			t = llm.NewWhisperTranscriber(llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL))
		case config.TranscriberGoogle:
			g, err := llm.NewGoogleSpeechTranscriber(ctx, cfg.SpeechLanguage, log)
			if err != nil {
				log.Warn("google speech unavailable, tier skipped", "error", err)
				continue
			}
			closers = append(closers, g)
			t = g
		default:
			return nil, closers, fmt.Errorf("unknown transcriber %q", name)
		}
		tiers = append(tiers, tierFor(name, t))
	}
	return tiers, closers, nil
}

func tierFor(name string, t core.Transcriber) media.TranscriptionTier {
	if name == config.TranscriberWhisper {
		return media.PrimaryTier(t)
	}
	return media.SecondaryTier(t)
}
