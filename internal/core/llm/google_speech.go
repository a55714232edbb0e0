package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/markdave123-py/Prism/internal/core"
	"github.com/markdave123-py/Prism/internal/core/logger"
)

// GoogleSpeechTranscriber sends 16 kHz mono LINEAR16 audio to Cloud Speech-to-Text.
type GoogleSpeechTranscriber struct {
	client   *speech.Client
	language string
	timeout  time.Duration
	log      *logger.Logger
}

func NewGoogleSpeechTranscriber(ctx context.Context, language string, log *logger.Logger) (*GoogleSpeechTranscriber, error) {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))

	var (
		c   *speech.Client
		err error
	)
	if creds != "" {
		c, err = speech.NewClient(ctx, option.WithCredentialsFile(creds))
	} else {
		c, err = speech.NewClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	if language == "" {
		language = "en-US"
	}
	return &GoogleSpeechTranscriber{
		client:   c,
		language: language,
		timeout:  5 * time.Minute,
		log:      log.With("service", "GoogleSpeechTranscriber"),
	}, nil
}

func (g *GoogleSpeechTranscriber) Name() string { return "google" }

func (g *GoogleSpeechTranscriber) Close() error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Close()
}

func (g *GoogleSpeechTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            16000,
			AudioChannelCount:          1,
			LanguageCode:               g.language,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: audio}},
	}

	op, err := g.client.LongRunningRecognize(ctx, req)
	if err != nil {
		return "", fmt.Errorf("speech recognize: %w", classifyGRPCError(err))
	}
	resp, err := op.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("speech recognize: %w", classifyGRPCError(err))
	}

	text := joinTranscripts(resp)
	if text == "" {
		return "", core.ErrUnrecognizedSpeech
	}
	g.log.Debug("speech recognized", "bytes", len(audio), "chars", len(text))
	return text, nil
}

// joinTranscripts keeps the top alternative of every result.
func joinTranscripts(resp *speechpb.LongRunningRecognizeResponse) string {
	if resp == nil {
		return ""
	}
	parts := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		if t := strings.TrimSpace(r.Alternatives[0].Transcript); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func classifyGRPCError(err error) error {
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %v", core.ErrCredentialRejected, err)
	}
	return err
}

var _ core.Transcriber = (*GoogleSpeechTranscriber)(nil)
