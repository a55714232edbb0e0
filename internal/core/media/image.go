package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/markdave123-py/Prism/internal/core"
	"github.com/markdave123-py/Prism/internal/core/logger"
)

const ImagePrompt = "Describe this image in detail. What do you see? Include objects, people, colors, text, and any other relevant details."

var _ core.ImageDescriber = (*ImageDescriber)(nil)

// ImageDescriber makes exactly one vision call per image; there is no fallback.
type ImageDescriber struct {
	vision core.VisionProvider
	log    *logger.Logger
}

func NewImageDescriber(vision core.VisionProvider, log *logger.Logger) *ImageDescriber {
	return &ImageDescriber{vision: vision, log: log.With("service", "ImageDescriber")}
}

func (d *ImageDescriber) DescribeImage(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &core.DescriptionError{Kind: "image", Err: err}
	}
	img := core.Image{Data: data, MIMEType: mimeForImage(path)}

	out, err := d.vision.Describe(ctx, img, ImagePrompt)
	if err != nil {
		return "", &core.DescriptionError{Kind: "image", Err: fmt.Errorf("%s: %w", d.vision.Name(), err)}
	}
	d.log.Debug("image described", "file", filepath.Base(path), "model", d.vision.Name(), "chars", len(out))
	return strings.TrimSpace(out), nil
}

func mimeForImage(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	default:
		return "image/jpeg"
	}
}
