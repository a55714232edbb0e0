package core

import "context"

// ImageDescriber produces a description of a single image file.
type ImageDescriber interface {
	DescribeImage(ctx context.Context, path string) (string, error)
}

// VideoDescriber summarizes a video from sampled frames.
type VideoDescriber interface {
	DescribeVideo(ctx context.Context, path string) (string, error)
}

// AudioTranscriber produces a transcript for an audio file.
type AudioTranscriber interface {
	TranscribeAudio(ctx context.Context, path string) (string, error)
}

// AudioDownloader fetches the audio track of a remote video.
// The returned cleanup removes everything the download produced.
type AudioDownloader interface {
	DownloadAudio(ctx context.Context, url string) (path string, cleanup func(), err error)
}

// DocumentExtractor extracts the plain text of a document file.
type DocumentExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}
