package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoContent means a source produced no usable text.
	ErrNoContent = errors.New("no text found")
	// ErrUnrecognizedSpeech means a transcriber heard nothing it could transcribe.
	ErrUnrecognizedSpeech = errors.New("speech could not be recognized")
	// ErrCredentialRejected means a provider refused the configured API key.
	ErrCredentialRejected = errors.New("credential rejected by provider")
)

// AllVisionModelsFailedText is the exact message reported when every vision model failed.
const AllVisionModelsFailedText = "Error: All vision models failed to analyze the video. The service may be rate-limited. Please try again later or with fewer/shorter videos."

type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return "Unsupported format: " + e.Ext
}

type ExtractionError struct {
	Format string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

type DescriptionError struct {
	Kind string // "image" or "video"
	Err  error
}

func (e *DescriptionError) Error() string {
	return fmt.Sprintf("describe %s: %v", e.Kind, e.Err)
}

func (e *DescriptionError) Unwrap() error { return e.Err }

// ModelFailure records one failed attempt in a fallback chain.
type ModelFailure struct {
	Model string
	Err   error
}

// AllModelsFailedError is returned once every vision model in the chain has been tried.
type AllModelsFailedError struct {
	Attempts []ModelFailure
}

func (e *AllModelsFailedError) Error() string {
	return AllVisionModelsFailedText
}

// Detail lists each model and why it failed, for logs.
func (e *AllModelsFailedError) Detail() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Model, a.Err))
	}
	return strings.Join(parts, "; ")
}

// TranscriptionError means every transcription tier failed.
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription failed: %v", e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("Error generating response: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
