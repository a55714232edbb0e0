package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/Prism/internal/core"
	"github.com/markdave123-py/Prism/internal/core/logger"
)

const VideoPrompt = "Analyze these video frames in sequence and provide a comprehensive summary of what happens in the video. Describe the main events, actions, objects, and any text visible."

const maxVideoFrames = 10

var errNoFrames = errors.New("no frames could be loaded for analysis")

var _ core.VideoDescriber = (*VideoDescriber)(nil)

// VideoOptions tunes frame sampling.
//
// Frames:      frames sampled at i*duration/Frames (capped at 10).
// Concurrency: parallel ffmpeg frame grabs.
// WorkDir:     root for per-call scratch directories.
type VideoOptions struct {
	Frames      int
	Concurrency int
	WorkDir     string
}

// VideoDescriber samples frames and walks an ordered chain of vision providers.
type VideoDescriber struct {
	tools     Tools
	providers []core.VisionProvider
	opts      VideoOptions
	log       *logger.Logger
}

func NewVideoDescriber(tools Tools, providers []core.VisionProvider, opts VideoOptions, log *logger.Logger) *VideoDescriber {
	if opts.Frames <= 0 {
		opts.Frames = 8
	}
	if opts.Frames > maxVideoFrames {
		opts.Frames = maxVideoFrames
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.WorkDir == "" {
		opts.WorkDir = os.TempDir()
	}
	return &VideoDescriber{tools: tools, providers: providers, opts: opts, log: log.With("service", "VideoDescriber")}
}

func (d *VideoDescriber) DescribeVideo(ctx context.Context, path string) (string, error) {
	dir, release, err := scratchDir(d.opts.WorkDir, "frames-*", d.log)
	if err != nil {
		return "", &core.DescriptionError{Kind: "video", Err: err}
	}
	defer release()

	frames, err := d.sampleFrames(ctx, path, dir)
	if err != nil {
		return "", &core.DescriptionError{Kind: "video", Err: err}
	}

	return d.describeFrames(ctx, frames)
}

// describeFrames tries each provider in order; the first non-empty answer wins.
func (d *VideoDescriber) describeFrames(ctx context.Context, frames []core.Image) (string, error) {
	failures := make([]core.ModelFailure, 0, len(d.providers))
	for _, p := range d.providers {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out, err := p.DescribeMany(ctx, frames, VideoPrompt)
		if err == nil && strings.TrimSpace(out) == "" {
			err = errors.New("empty response")
		}
		if err != nil {
			d.log.Warn("vision model failed, trying next", "model", p.Name(), "error", err)
			failures = append(failures, core.ModelFailure{Model: p.Name(), Err: err})
			continue
		}
		d.log.Info("video described", "model", p.Name(), "frames", len(frames), "chars", len(out))
		return strings.TrimSpace(out), nil
	}
	return "", &core.AllModelsFailedError{Attempts: failures}
}

// sampleFrames grabs frames at i*duration/N in parallel and returns the ones
// that could be read, in time order.
func (d *VideoDescriber) sampleFrames(ctx context.Context, path, dir string) ([]core.Image, error) {
	duration, err := d.tools.ProbeDuration(ctx, path)
	if err != nil {
		return nil, err
	}

	n := d.opts.Frames
	slots := make([][]byte, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Concurrency)
	for i := 0; i < n; i++ {
		at := time.Duration(int64(i) * int64(duration) / int64(n))
		out := filepath.Join(dir, fmt.Sprintf("frame_%02d.jpg", i))
		g.Go(func() error {
			if err := d.tools.ExtractFrame(gctx, path, at, out); err != nil {
				d.log.Warn("frame skipped", "index", i, "at", at, "error", err)
				return nil
			}
			data, err := os.ReadFile(out)
			if err != nil || len(data) == 0 {
				d.log.Warn("frame unreadable", "index", i, "error", err)
				return nil
			}
			slots[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frames := make([]core.Image, 0, n)
	for _, data := range slots {
		if data != nil {
			frames = append(frames, core.Image{Data: data, MIMEType: "image/jpeg"})
		}
	}
	if len(frames) == 0 {
		return nil, errNoFrames
	}
	return frames, nil
}
