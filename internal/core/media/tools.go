package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/markdave123-py/Prism/internal/core/logger"
)

// Tools is the glue around system binaries.
//
// REQUIRED BINARIES at runtime:
// - ffmpeg for audio normalization, segment cutting and frame grabs
// - ffprobe for durations
// - yt-dlp for YouTube audio downloads
type Tools interface {
	AssertReady(ctx context.Context) error

	ProbeDuration(ctx context.Context, path string) (time.Duration, error)
	ProbeAudio(ctx context.Context, path string) (AudioFormat, error)
	ExtractFrame(ctx context.Context, videoPath string, at time.Duration, outPath string) error
	NormalizeAudio(ctx context.Context, inPath, outPath string) error
	CutSegment(ctx context.Context, inPath string, start, length time.Duration, outPath string) error
	DownloadAudio(ctx context.Context, url, outDir string) (string, error)
}

// AudioFormat describes the first audio stream of a file.
type AudioFormat struct {
	Codec      string
	SampleRate int
	Channels   int
}

// IsSpeechWAV reports whether f already is 16 kHz mono PCM s16le.
func (f AudioFormat) IsSpeechWAV() bool {
	return f.Codec == "pcm_s16le" && f.SampleRate == 16000 && f.Channels == 1
}

type ToolPaths struct {
	FFmpeg  string
	FFprobe string
	YtDlp   string
}

type tools struct {
	log   *logger.Logger
	paths ToolPaths

	defaultTimeout time.Duration
}

func NewTools(log *logger.Logger, paths ToolPaths) Tools {
	if paths.FFmpeg == "" {
		paths.FFmpeg = "ffmpeg"
	}
	if paths.FFprobe == "" {
		paths.FFprobe = "ffprobe"
	}
	if paths.YtDlp == "" {
		paths.YtDlp = "yt-dlp"
	}
	return &tools{
		log:            log.With("service", "MediaTools"),
		paths:          paths,
		defaultTimeout: 10 * time.Minute,
	}
}

func (m *tools) AssertReady(ctx context.Context) error {
	for _, bin := range []string{m.paths.FFmpeg, m.paths.FFprobe, m.paths.YtDlp} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("missing required binary %q in PATH: %w", bin, err)
		}
	}
	return nil
}

func (m *tools) ProbeDuration(ctx context.Context, path string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.paths.FFprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || secs < 0 {
		return 0, fmt.Errorf("ffprobe returned unusable duration %q", strings.TrimSpace(string(out)))
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// ExtractFrame grabs one JPEG frame at the given offset.
func (m *tools) ExtractFrame(ctx context.Context, videoPath string, at time.Duration, outPath string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	args := []string{
		"-y",
		"-ss", formatSeconds(at),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "3",
		outPath,
	}
	return m.run(ctx, "extract frame", outPath, args)
}

// ProbeAudio reads codec, sample rate and channel count of the first audio stream.
func (m *tools) ProbeAudio(ctx context.Context, path string) (AudioFormat, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.paths.FFprobe,
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=codec_name,sample_rate,channels",
		"-of", "default=noprint_wrappers=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return AudioFormat{}, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseAudioFormat(string(out))
}

func parseAudioFormat(out string) (AudioFormat, error) {
	var f AudioFormat
	for _, line := range strings.Split(out, "\n") {
		key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch key {
		case "codec_name":
			f.Codec = val
		case "sample_rate":
			f.SampleRate, _ = strconv.Atoi(val)
		case "channels":
			f.Channels, _ = strconv.Atoi(val)
		}
	}
	if f.Codec == "" {
		return f, fmt.Errorf("ffprobe found no audio stream")
	}
	return f, nil
}

// NormalizeAudio converts to 16 kHz mono PCM s16le WAV.
func (m *tools) NormalizeAudio(ctx context.Context, inPath, outPath string) error {
	ctx, cancel := context.WithTimeout(ctx, m.defaultTimeout)
	defer cancel()

	args := []string{
		"-y",
		"-i", inPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-acodec", "pcm_s16le",
		"-f", "wav",
		outPath,
	}
	return m.run(ctx, "normalize audio", outPath, args)
}

func (m *tools) CutSegment(ctx context.Context, inPath string, start, length time.Duration, outPath string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	args := []string{
		"-y",
		"-ss", formatSeconds(start),
		"-t", formatSeconds(length),
		"-i", inPath,
		"-ac", "1",
		"-ar", "16000",
		"-acodec", "pcm_s16le",
		outPath,
	}
	return m.run(ctx, "cut segment", outPath, args)
}

// DownloadAudio fetches the best audio stream of url into outDir and returns the file path.
func (m *tools) DownloadAudio(ctx context.Context, url, outDir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.defaultTimeout)
	defer cancel()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir outDir: %w", err)
	}
	cmd := exec.CommandContext(ctx, m.paths.YtDlp,
		"-f", "bestaudio/best",
		"-x", "--audio-format", "mp3",
		"--no-playlist",
		"--quiet", "--no-warnings",
		"-o", filepath.Join(outDir, "%(id)s.%(ext)s"),
		"--print", "after_move:filepath",
		url,
	)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("yt-dlp failed: %w", err)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	path := strings.TrimSpace(lines[len(lines)-1])
	if path == "" {
		return "", fmt.Errorf("yt-dlp produced no file for %s", url)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("yt-dlp output missing at %s", path)
	}
	m.log.Debug("downloaded audio", "url", url, "path", path)
	return path, nil
}

func (m *tools) run(ctx context.Context, what, outPath string, args []string) error {
	cmd := exec.CommandContext(ctx, m.paths.FFmpeg, append([]string{"-hide_banner", "-loglevel", "error"}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg %s failed: %w; out=%s", what, err, string(out))
	}
	if _, err := os.Stat(outPath); err != nil {
		return fmt.Errorf("ffmpeg %s: output missing at %s", what, outPath)
	}
	return nil
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// scratchDir creates a fresh directory under root and returns a release func
// that removes it, logging instead of failing when removal does not work.
func scratchDir(root, pattern string, log *logger.Logger) (string, func(), error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", func() {}, fmt.Errorf("mkdir work root: %w", err)
	}
	dir, err := os.MkdirTemp(root, pattern)
	if err != nil {
		return "", func() {}, fmt.Errorf("create scratch dir: %w", err)
	}
	release := func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("scratch cleanup failed", "dir", dir, "error", err)
		}
	}
	return dir, release, nil
}

// removeQuietly deletes a temp file, reporting failures through the log only.
func removeQuietly(path string, log *logger.Logger) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("temp file cleanup failed", "path", path, "error", err)
	}
}
