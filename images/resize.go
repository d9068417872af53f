package images

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// downscale resizes raster image wider than maxWidth keeping aspect ratio.
// Image is returned unchanged when it cannot be decoded, re-encoded in its own
// format or is narrow enough.
func downscale(data []byte, name string, maxWidth int, log *zap.Logger) []byte {
	format, err := imaging.FormatFromFilename(name)
	if err != nil {
		return data
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		log.Debug("Unable to decode image, storing as is", zap.String("file", name), zap.Error(err))
		return data
	}
	if cfg.Width <= maxWidth {
		return data
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		log.Debug("Unable to decode image, storing as is", zap.String("file", name), zap.Error(err))
		return data
	}
	resized := imaging.Resize(img, maxWidth, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format, imaging.JPEGQuality(90)); err != nil {
		log.Warn("Unable to encode resized image, storing original", zap.String("file", name), zap.Error(err))
		return data
	}
	log.Debug("Image downscaled", zap.String("file", name), zap.Int("from", cfg.Width), zap.Int("to", maxWidth))
	return buf.Bytes()
}
