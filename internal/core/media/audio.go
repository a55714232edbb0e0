package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/Prism/internal/core"
	"github.com/markdave123-py/Prism/internal/core/logger"
)

var errAllSegmentsFailed = errors.New("all segment transcriptions failed")

var _ core.AudioTranscriber = (*AudioTranscriber)(nil)

// TranscriptionTier is one transcription service with its own size policy.
// Files above MaxBytes are cut into Segment-long pieces.
type TranscriptionTier struct {
	Transcriber core.Transcriber
	MaxBytes    int64
	Segment     time.Duration
}

// PrimaryTier and SecondaryTier carry the size thresholds of the hosted
// transcription API and the speech-recognition fallback.
func PrimaryTier(t core.Transcriber) TranscriptionTier {
	return TranscriptionTier{Transcriber: t, MaxBytes: 20 << 20, Segment: 60 * time.Second}
}

func SecondaryTier(t core.Transcriber) TranscriptionTier {
	return TranscriptionTier{Transcriber: t, MaxBytes: 10 << 20, Segment: 30 * time.Second}
}

// AudioOptions tunes segmenting.
type AudioOptions struct {
	Concurrency int
	WorkDir     string
}

// AudioTranscriber normalizes audio and walks its tiers in order until one succeeds.
type AudioTranscriber struct {
	tools Tools
	tiers []TranscriptionTier
	opts  AudioOptions
	log   *logger.Logger
}

func NewAudioTranscriber(tools Tools, tiers []TranscriptionTier, opts AudioOptions, log *logger.Logger) *AudioTranscriber {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.WorkDir == "" {
		opts.WorkDir = os.TempDir()
	}
	return &AudioTranscriber{tools: tools, tiers: tiers, opts: opts, log: log.With("service", "AudioTranscriber")}
}

func (a *AudioTranscriber) TranscribeAudio(ctx context.Context, path string) (string, error) {
	if len(a.tiers) == 0 {
		return "", &core.TranscriptionError{Err: errors.New("no transcription service configured")}
	}

	dir, release, err := scratchDir(a.opts.WorkDir, "audio-*", a.log)
	if err != nil {
		return "", &core.TranscriptionError{Err: err}
	}
	defer release()

	wav := path
	if !a.isSpeechWAV(ctx, path) {
		wav = filepath.Join(dir, "normalized.wav")
		if err := a.tools.NormalizeAudio(ctx, path, wav); err != nil {
			return "", &core.TranscriptionError{Err: fmt.Errorf("normalize: %w", err)}
		}
	}

	var lastErr error
	for _, tier := range a.tiers {
		text, err := a.runTier(ctx, tier, wav, dir)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		a.log.Warn("transcriber failed, falling back", "transcriber", tier.Transcriber.Name(), "error", err)
		lastErr = fmt.Errorf("%s: %w", tier.Transcriber.Name(), err)
	}
	return "", &core.TranscriptionError{Err: lastErr}
}

// isSpeechWAV is true only for a .wav already in 16 kHz mono PCM s16le.
// A failed probe means the file gets normalized.
func (a *AudioTranscriber) isSpeechWAV(ctx context.Context, path string) bool {
	if strings.ToLower(filepath.Ext(path)) != ".wav" {
		return false
	}
	f, err := a.tools.ProbeAudio(ctx, path)
	if err != nil {
		a.log.Debug("audio probe failed, normalizing", "error", err)
		return false
	}
	return f.IsSpeechWAV()
}

func (a *AudioTranscriber) runTier(ctx context.Context, tier TranscriptionTier, wav, dir string) (string, error) {
	info, err := os.Stat(wav)
	if err != nil {
		return "", err
	}
	if info.Size() <= tier.MaxBytes {
		text, err := tier.Transcriber.Transcribe(ctx, wav)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) == "" {
			return "", core.ErrUnrecognizedSpeech
		}
		return strings.TrimSpace(text), nil
	}
	return a.transcribeSegments(ctx, tier, wav, dir)
}

// transcribeSegments cuts wav at 0, L, 2L, ... and joins the segment
// transcripts that succeeded, in segment order, with single spaces.
func (a *AudioTranscriber) transcribeSegments(ctx context.Context, tier TranscriptionTier, wav, dir string) (string, error) {
	duration, err := a.tools.ProbeDuration(ctx, wav)
	if err != nil {
		return "", err
	}
	var starts []time.Duration
	for s := time.Duration(0); s < duration; s += tier.Segment {
		starts = append(starts, s)
	}
	a.log.Info("segmenting audio", "transcriber", tier.Transcriber.Name(), "segments", len(starts), "segment", tier.Segment)

	texts := make([]string, len(starts))
	var (
		mu       sync.Mutex
		rejected error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Concurrency)
	for i, start := range starts {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			seg := filepath.Join(dir, fmt.Sprintf("%s_seg_%03d.wav", tier.Transcriber.Name(), i))
			defer removeQuietly(seg, a.log)

			if err := a.tools.CutSegment(gctx, wav, start, tier.Segment, seg); err != nil {
				a.log.Warn("segment cut failed", "index", i, "error", err)
				return nil
			}
			text, err := tier.Transcriber.Transcribe(gctx, seg)
			if errors.Is(err, core.ErrCredentialRejected) {
				mu.Lock()
				rejected = err
				mu.Unlock()
				return err
			}
			if err != nil {
				a.log.Warn("segment skipped", "index", i, "error", err)
				return nil
			}
			texts[i] = strings.TrimSpace(text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if rejected != nil {
			return "", rejected
		}
		return "", err
	}

	var parts []string
	for _, t := range texts {
		if t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return "", errAllSegmentsFailed
	}
	return strings.Join(parts, " "), nil
}
