package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/markdave123-py/Prism/internal/core"
	"github.com/markdave123-py/Prism/internal/core/logger"
)

type cut struct {
	start, length time.Duration
}

type fakeTools struct {
	mu         sync.Mutex
	duration   time.Duration
	frameAt    []time.Duration
	failFrames map[int]bool
	cuts       []cut
	segPaths   []string
	normalized int
	// format is what ProbeAudio reports; nil means 16 kHz mono PCM.
	format *AudioFormat
}

func (f *fakeTools) AssertReady(context.Context) error { return nil }

func (f *fakeTools) ProbeDuration(context.Context, string) (time.Duration, error) {
	return f.duration, nil
}

func (f *fakeTools) ProbeAudio(context.Context, string) (AudioFormat, error) {
	if f.format == nil {
		return AudioFormat{Codec: "pcm_s16le", SampleRate: 16000, Channels: 1}, nil
	}
	return *f.format, nil
}

func (f *fakeTools) ExtractFrame(_ context.Context, _ string, at time.Duration, out string) error {
	f.mu.Lock()
	idx := len(f.frameAt)
	f.frameAt = append(f.frameAt, at)
	f.mu.Unlock()
	if f.failFrames[int(at/time.Second)] {
		return fmt.Errorf("decode error at frame %d", idx)
	}
	return os.WriteFile(out, []byte(fmt.Sprintf("frame@%s", at)), 0o644)
}

func (f *fakeTools) NormalizeAudio(_ context.Context, _ string, out string) error {
	f.mu.Lock()
	f.normalized++
	f.mu.Unlock()
	return os.WriteFile(out, []byte("pcm"), 0o644)
}

func (f *fakeTools) CutSegment(_ context.Context, _ string, start, length time.Duration, out string) error {
	f.mu.Lock()
	f.cuts = append(f.cuts, cut{start, length})
	f.segPaths = append(f.segPaths, out)
	f.mu.Unlock()
	return os.WriteFile(out, []byte(fmt.Sprintf("seg@%d", int(start/time.Second))), 0o644)
}

func (f *fakeTools) DownloadAudio(_ context.Context, _ string, outDir string) (string, error) {
	p := filepath.Join(outDir, "abc.mp3")
	return p, os.WriteFile(p, []byte("mp3"), 0o644)
}

// segmentTranscriber answers from the segment file content; listed segments fail.
type segmentTranscriber struct {
	name     string
	fail     map[string]error
	whole    string
	wholeErr error
	mu       sync.Mutex
	calls    int
}

func (s *segmentTranscriber) Name() string { return s.name }

func (s *segmentTranscriber) Transcribe(_ context.Context, path string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	content := string(data)
	if !strings.HasPrefix(content, "seg@") {
		return s.whole, s.wholeErr
	}
	if err := s.fail[content]; err != nil {
		return "", err
	}
	return "text-" + strings.TrimPrefix(content, "seg@"), nil
}

func bigWav(t *testing.T, size int64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "big.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.Truncate(size); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	f.Close()
	return path
}

func TestAudioSplitsLargeFileIntoPrimarySegments(t *testing.T) {
	tools := &fakeTools{duration: 150 * time.Second}
	primary := &segmentTranscriber{name: "whisper", fail: map[string]error{"seg@60": core.ErrUnrecognizedSpeech}}
	workDir := t.TempDir()
	a := NewAudioTranscriber(tools, []TranscriptionTier{PrimaryTier(primary)}, AudioOptions{Concurrency: 3, WorkDir: workDir}, logger.Nop())

	got, err := a.TranscribeAudio(context.Background(), bigWav(t, 25<<20))
	if err != nil {
		t.Fatalf("TranscribeAudio: %v", err)
	}
	if got != "text-0 text-120" {
		t.Fatalf("transcript = %q", got)
	}

	sort.Slice(tools.cuts, func(i, j int) bool { return tools.cuts[i].start < tools.cuts[j].start })
	want := []cut{{0, time.Minute}, {time.Minute, time.Minute}, {2 * time.Minute, time.Minute}}
	if !reflect.DeepEqual(tools.cuts, want) {
		t.Fatalf("cuts = %v, want %v", tools.cuts, want)
	}
	if tools.normalized != 0 {
		t.Fatalf("wav input should not be normalized")
	}
	for _, p := range tools.segPaths {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("segment %s not removed", p)
		}
	}
	if entries, _ := os.ReadDir(workDir); len(entries) != 0 {
		t.Fatalf("scratch dir left behind: %v", entries)
	}
}

func TestAudioSecondaryUsesThirtySecondSegments(t *testing.T) {
	tools := &fakeTools{duration: 70 * time.Second}
	primary := &segmentTranscriber{name: "whisper", fail: map[string]error{
		"seg@0": core.ErrCredentialRejected, "seg@60": core.ErrCredentialRejected,
	}}
	secondary := &segmentTranscriber{name: "google"}
	a := NewAudioTranscriber(tools, []TranscriptionTier{PrimaryTier(primary), SecondaryTier(secondary)}, AudioOptions{Concurrency: 1, WorkDir: t.TempDir()}, logger.Nop())

	got, err := a.TranscribeAudio(context.Background(), bigWav(t, 25<<20))
	if err != nil {
		t.Fatalf("TranscribeAudio: %v", err)
	}
	if got != "text-0 text-30 text-60" {
		t.Fatalf("transcript = %q", got)
	}
	if primary.calls != 1 {
		t.Fatalf("primary should stop after a rejected credential, got %d calls", primary.calls)
	}
}

func TestAudioSmallFileFallsBack(t *testing.T) {
	tools := &fakeTools{}
	primary := &segmentTranscriber{name: "whisper", wholeErr: core.ErrCredentialRejected}
	secondary := &segmentTranscriber{name: "google", whole: "  spoken words "}
	a := NewAudioTranscriber(tools, []TranscriptionTier{PrimaryTier(primary), SecondaryTier(secondary)}, AudioOptions{WorkDir: t.TempDir()}, logger.Nop())

	src := filepath.Join(t.TempDir(), "talk.mp3")
	if err := os.WriteFile(src, []byte("id3"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := a.TranscribeAudio(context.Background(), src)
	if err != nil {
		t.Fatalf("TranscribeAudio: %v", err)
	}
	if got != "spoken words" || tools.normalized != 1 {
		t.Fatalf("got %q normalized=%d", got, tools.normalized)
	}
	if len(tools.cuts) != 0 {
		t.Fatalf("small file should not be segmented")
	}
}

func TestAudioNormalizesWAVInOtherFormats(t *testing.T) {
	tests := []struct {
		name   string
		format AudioFormat
	}{
		{"stereo 44.1 kHz", AudioFormat{Codec: "pcm_s16le", SampleRate: 44100, Channels: 2}},
		{"mono 48 kHz", AudioFormat{Codec: "pcm_s16le", SampleRate: 48000, Channels: 1}},
		{"float samples", AudioFormat{Codec: "pcm_f32le", SampleRate: 16000, Channels: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format := tt.format
			tools := &fakeTools{format: &format}
			tr := &segmentTranscriber{name: "whisper", whole: "hello"}
			a := NewAudioTranscriber(tools, []TranscriptionTier{PrimaryTier(tr)}, AudioOptions{WorkDir: t.TempDir()}, logger.Nop())

			got, err := a.TranscribeAudio(context.Background(), bigWav(t, 1024))
			if err != nil {
				t.Fatalf("TranscribeAudio: %v", err)
			}
			if got != "hello" || tools.normalized != 1 {
				t.Fatalf("got %q normalized=%d, want one normalization", got, tools.normalized)
			}
		})
	}
}

func TestParseAudioFormat(t *testing.T) {
	got, err := parseAudioFormat("codec_name=pcm_s16le\nsample_rate=16000\nchannels=1\n")
	if err != nil {
		t.Fatalf("parseAudioFormat: %v", err)
	}
	if !got.IsSpeechWAV() {
		t.Fatalf("format = %+v, want speech wav", got)
	}
	if _, err := parseAudioFormat(""); err == nil {
		t.Fatal("empty probe output accepted")
	}
}

func TestAudioAllTiersFail(t *testing.T) {
	tools := &fakeTools{duration: 90 * time.Second}
	fail := map[string]error{"seg@0": core.ErrUnrecognizedSpeech, "seg@30": errors.New("503"), "seg@60": core.ErrUnrecognizedSpeech}
	secondary := &segmentTranscriber{name: "google", fail: fail}
	a := NewAudioTranscriber(tools, []TranscriptionTier{SecondaryTier(secondary)}, AudioOptions{WorkDir: t.TempDir()}, logger.Nop())

	_, err := a.TranscribeAudio(context.Background(), bigWav(t, 11<<20))
	var terr *core.TranscriptionError
	if !errors.As(err, &terr) || !errors.Is(err, errAllSegmentsFailed) {
		t.Fatalf("err = %v, want TranscriptionError wrapping all-segments failure", err)
	}
}

type scriptedVision struct {
	name  string
	out   string
	err   error
	order *[]string
	seen  int
}

func (v *scriptedVision) Name() string { return v.name }

func (v *scriptedVision) Describe(_ context.Context, img core.Image, _ string) (string, error) {
	*v.order = append(*v.order, v.name)
	v.seen = 1
	return v.out, v.err
}

func (v *scriptedVision) DescribeMany(_ context.Context, imgs []core.Image, prompt string) (string, error) {
	*v.order = append(*v.order, v.name)
	v.seen = len(imgs)
	if prompt != VideoPrompt {
		return "", errors.New("unexpected prompt")
	}
	return v.out, v.err
}

func TestVideoFallbackChain(t *testing.T) {
	var order []string
	a := &scriptedVision{name: "a", err: errors.New("429"), order: &order}
	b := &scriptedVision{name: "b", out: "   ", order: &order}
	c := &scriptedVision{name: "c", out: "A person walks a dog.", order: &order}
	never := &scriptedVision{name: "d", out: "unused", order: &order}

	tools := &fakeTools{duration: 80 * time.Second}
	workDir := t.TempDir()
	d := NewVideoDescriber(tools, []core.VisionProvider{a, b, c, never}, VideoOptions{Frames: 8, Concurrency: 4, WorkDir: workDir}, logger.Nop())

	got, err := d.DescribeVideo(context.Background(), "/videos/clip.mp4")
	if err != nil {
		t.Fatalf("DescribeVideo: %v", err)
	}
	if got != "A person walks a dog." {
		t.Fatalf("summary = %q", got)
	}
	if !reflect.DeepEqual(order, []string{"a", "b", "c"}) {
		t.Fatalf("attempt order = %v", order)
	}
	if c.seen != 8 {
		t.Fatalf("frames sent = %d, want 8", c.seen)
	}

	sort.Slice(tools.frameAt, func(i, j int) bool { return tools.frameAt[i] < tools.frameAt[j] })
	for i, at := range tools.frameAt {
		if want := time.Duration(i) * 10 * time.Second; at != want {
			t.Fatalf("frame %d at %v, want %v", i, at, want)
		}
	}
	if entries, _ := os.ReadDir(workDir); len(entries) != 0 {
		t.Fatalf("frames not cleaned up: %v", entries)
	}
}

func TestVideoAllModelsFail(t *testing.T) {
	var order []string
	providers := []core.VisionProvider{
		&scriptedVision{name: "google/gemini-2.0-flash-exp:free", err: errors.New("rate limited"), order: &order},
		&scriptedVision{name: "openai/gpt-4o-mini", err: errors.New("timeout"), order: &order},
		&scriptedVision{name: "anthropic/claude-3.5-sonnet", err: errors.New("500"), order: &order},
	}
	tools := &fakeTools{duration: 8 * time.Second, failFrames: map[int]bool{3: true}}
	d := NewVideoDescriber(tools, providers, VideoOptions{WorkDir: t.TempDir()}, logger.Nop())

	_, err := d.DescribeVideo(context.Background(), "/videos/clip.mp4")
	var all *core.AllModelsFailedError
	if !errors.As(err, &all) {
		t.Fatalf("err = %v, want AllModelsFailedError", err)
	}
	if err.Error() != core.AllVisionModelsFailedText {
		t.Fatalf("text = %q", err.Error())
	}
	want := []string{"google/gemini-2.0-flash-exp:free", "openai/gpt-4o-mini", "anthropic/claude-3.5-sonnet"}
	if !reflect.DeepEqual(order, want) || len(all.Attempts) != 3 {
		t.Fatalf("order = %v attempts = %d", order, len(all.Attempts))
	}
	if providers[2].(*scriptedVision).seen != 7 {
		t.Fatalf("unreadable frame should be skipped, sent %d", providers[2].(*scriptedVision).seen)
	}
}

func TestVideoNoFrames(t *testing.T) {
	var order []string
	tools := &fakeTools{duration: 2 * time.Second, failFrames: map[int]bool{0: true, 1: true}}
	d := NewVideoDescriber(tools, []core.VisionProvider{&scriptedVision{name: "a", order: &order}}, VideoOptions{Frames: 2, WorkDir: t.TempDir()}, logger.Nop())

	_, err := d.DescribeVideo(context.Background(), "/videos/clip.mp4")
	var derr *core.DescriptionError
	if !errors.As(err, &derr) || !errors.Is(err, errNoFrames) {
		t.Fatalf("err = %v", err)
	}
	if len(order) != 0 {
		t.Fatalf("vision should not be called without frames")
	}
}

func TestImageDescriberSingleAttempt(t *testing.T) {
	var order []string
	v := &scriptedVision{name: "gpt-4o", err: errors.New("bad request"), order: &order}
	d := NewImageDescriber(v, logger.Nop())

	path := filepath.Join(t.TempDir(), "cat.png")
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := d.DescribeImage(context.Background(), path)
	var derr *core.DescriptionError
	if !errors.As(err, &derr) || len(order) != 1 {
		t.Fatalf("err = %v attempts = %d", err, len(order))
	}

	v.err, v.out = nil, " a cat "
	got, err := d.DescribeImage(context.Background(), path)
	if err != nil || got != "a cat" {
		t.Fatalf("got %q err %v", got, err)
	}
}

func TestYouTubeDownloaderCleanup(t *testing.T) {
	workDir := t.TempDir()
	y := NewYouTubeDownloader(&fakeTools{}, workDir, logger.Nop())
	path, cleanup, err := y.DownloadAudio(context.Background(), "https://youtu.be/abc")
	if err != nil {
		t.Fatalf("DownloadAudio: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("downloaded file missing: %v", err)
	}
	cleanup()
	if entries, _ := os.ReadDir(workDir); len(entries) != 0 {
		t.Fatalf("download dir not removed")
	}
}
