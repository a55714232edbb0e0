package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider names accepted by LLM_PROVIDER, VISION_PROVIDER and EMBED_PROVIDER.
const (
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
)

// Transcriber names accepted by TRANSCRIBE_PROVIDERS.
const (
	TranscriberWhisper = "whisper"
	TranscriberGoogle  = "google"
)

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

type Config struct {
	Port           string
	LogMode        string
	RequestTimeout time.Duration

	DatabaseURL string
	SslCertPath string

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	LLMProvider       string
	GeminiAPIKey      string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	GenModel          string

	EmbedProvider  string
	EmbedModel     string
	EmbedBatchSize int

	VisionProvider string
	VisionModels   []string

	TranscribeProviders []string
	SpeechLanguage      string

	ChunkSize        int
	ChunkOverlap     int
	VideoFrames      int
	MediaConcurrency int

	UploadFolder  string
	WorkDir       string
	MaxFileSizeMB int

	SessionSecret  string
	SessionTTL     time.Duration
	AllowedOrigins []string

	FFmpegPath  string
	FFprobePath string
	YtDlpPath   string
}

// LoadConfig loads the environment variables and returns a validated config.
func LoadConfig() (*Config, error) {

	_ = godotenv.Load()

	var errs []string
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		LogMode:        getEnv("LOG_MODE", "dev"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 10*time.Minute, &errs),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		SslCertPath: getEnv("SSL_CERT_PATH", ""),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", ""),

		LLMProvider:       strings.ToLower(getEnv("LLM_PROVIDER", ProviderGemini)),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		OpenRouterAPIKey:  getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", defaultOpenRouterBaseURL),
		GenModel:          getEnv("GEN_MODEL", ""),

		EmbedModel:     getEnv("EMBED_MODEL", ""),
		EmbedBatchSize: getEnvInt("EMBED_BATCH_SIZE", 16, &errs),

		VisionModels: getEnvList("VISION_MODELS", nil),

		SpeechLanguage: getEnv("SPEECH_LANGUAGE", "en-US"),

		ChunkSize:        getEnvInt("CHUNK_SIZE", 1000, &errs),
		ChunkOverlap:     getEnvInt("CHUNK_OVERLAP", 200, &errs),
		VideoFrames:      getEnvInt("VIDEO_FRAMES", 8, &errs),
		MediaConcurrency: getEnvInt("MEDIA_CONCURRENCY", 4, &errs),

		UploadFolder:  getEnv("UPLOAD_FOLDER", "./uploads"),
		WorkDir:       getEnv("WORK_DIR", filepath.Join(os.TempDir(), "prism-media")),
		MaxFileSizeMB: getEnvInt("MAX_FILE_SIZE_MB", 200, &errs),

		SessionSecret:  getEnv("SESSION_SECRET", ""),
		SessionTTL:     getEnvDuration("SESSION_TTL", 24*time.Hour, &errs),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:8888"}),

		FFmpegPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getEnv("FFPROBE_PATH", "ffprobe"),
		YtDlpPath:   getEnv("YTDLP_PATH", "yt-dlp"),
	}

	// Embedding and vision follow the chat provider unless set explicitly.
	// OpenRouter has no embeddings endpoint, so it falls back to Gemini.
	defaultEmbed := cfg.LLMProvider
	if defaultEmbed == ProviderOpenRouter {
		defaultEmbed = ProviderGemini
	}
	cfg.EmbedProvider = strings.ToLower(getEnv("EMBED_PROVIDER", defaultEmbed))
	cfg.VisionProvider = strings.ToLower(getEnv("VISION_PROVIDER", cfg.LLMProvider))

	defaultTranscribers := []string{TranscriberGoogle}
	if cfg.LLMProvider == ProviderOpenAI {
		defaultTranscribers = []string{TranscriberWhisper, TranscriberGoogle}
	}
	for _, t := range getEnvList("TRANSCRIBE_PROVIDERS", defaultTranscribers) {
		cfg.TranscribeProviders = append(cfg.TranscribeProviders, strings.ToLower(t))
	}

	if cfg.GenModel == "" {
		cfg.GenModel = DefaultGenModel(cfg.LLMProvider)
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultEmbedModel(cfg.EmbedProvider)
	}
	if len(cfg.VisionModels) == 0 {
		cfg.VisionModels = DefaultVisionModels(cfg.VisionProvider)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks provider names, the chunk window and required secrets.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderGemini, ProviderOpenAI, ProviderOpenRouter:
	default:
		return fmt.Errorf("config: unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	switch c.VisionProvider {
	case ProviderGemini, ProviderOpenAI, ProviderOpenRouter:
	default:
		return fmt.Errorf("config: unknown VISION_PROVIDER %q", c.VisionProvider)
	}
	switch c.EmbedProvider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("config: EMBED_PROVIDER must be gemini or openai, got %q", c.EmbedProvider)
	}
	for _, t := range c.TranscribeProviders {
		if t != TranscriberWhisper && t != TranscriberGoogle {
			return fmt.Errorf("config: unknown transcriber %q in TRANSCRIBE_PROVIDERS", t)
		}
	}
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("config: chunk window %d/%d is invalid, need 0 <= overlap < size", c.ChunkSize, c.ChunkOverlap)
	}
	if c.VideoFrames <= 0 {
		return fmt.Errorf("config: VIDEO_FRAMES must be positive")
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("config: SESSION_SECRET not set")
	}
	for _, p := range []string{c.LLMProvider, c.VisionProvider, c.EmbedProvider} {
		if c.APIKey(p) == "" {
			return fmt.Errorf("config: API key for provider %q not set", p)
		}
	}
	return nil
}

// APIKey returns the credential configured for the given provider.
func (c *Config) APIKey(provider string) string {
	switch provider {
	case ProviderGemini:
		return c.GeminiAPIKey
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderOpenRouter:
		return c.OpenRouterAPIKey
	}
	return ""
}

// BaseURL returns the API base for OpenAI-compatible providers; empty means the library default.
func (c *Config) BaseURL(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return c.OpenAIBaseURL
	case ProviderOpenRouter:
		return c.OpenRouterBaseURL
	}
	return ""
}

// ArchiveEnabled reports whether uploads should be copied to S3.
func (c *Config) ArchiveEnabled() bool {
	return c.BucketName != "" && c.AwsAccessKey != "" && c.AwsSecretKey != ""
}

func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.MaxFileSizeMB) << 20
}

func DefaultGenModel(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderOpenRouter:
		return "openai/gpt-4o-mini"
	default:
		return "gemini-1.5-flash"
	}
}

func DefaultEmbedModel(provider string) string {
	if provider == ProviderOpenAI {
		return "text-embedding-3-small"
	}
	return "text-embedding-004"
}

// DefaultVisionModels is the ordered fallback chain tried for video description.
func DefaultVisionModels(provider string) []string {
	switch provider {
	case ProviderOpenRouter:
		return []string{"google/gemini-2.0-flash-exp:free", "openai/gpt-4o-mini", "anthropic/claude-3.5-sonnet"}
	case ProviderOpenAI:
		return []string{"gpt-4o"}
	default:
		return []string{"gemini-1.5-flash"}
	}
}

// Helper to read environment variables with a default fallback.
// An empty value counts as unset.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int, errs *[]string) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s=%q is not an int", key, v))
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration, errs *[]string) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s=%q is not a duration", key, v))
		return def
	}
	return d
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, def []string) []string {
	v := getEnv(key, "")
	if strings.TrimSpace(v) == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
