package media

import (
	"context"
	"os"

	"github.com/markdave123-py/Prism/internal/core"
	"github.com/markdave123-py/Prism/internal/core/logger"
)

var _ core.AudioDownloader = (*YouTubeDownloader)(nil)

// YouTubeDownloader fetches a video's audio track into a scratch directory.
type YouTubeDownloader struct {
	tools   Tools
	workDir string
	log     *logger.Logger
}

func NewYouTubeDownloader(tools Tools, workDir string, log *logger.Logger) *YouTubeDownloader {
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &YouTubeDownloader{tools: tools, workDir: workDir, log: log.With("service", "YouTubeDownloader")}
}

func (y *YouTubeDownloader) DownloadAudio(ctx context.Context, url string) (string, func(), error) {
	dir, release, err := scratchDir(y.workDir, "youtube-*", y.log)
	if err != nil {
		return "", func() {}, err
	}
	path, err := y.tools.DownloadAudio(ctx, url, dir)
	if err != nil {
		release()
		return "", func() {}, err
	}
	return path, release, nil
}
