// Package pipeline implements the stages of photo processing: decoding
// originals, rendering variants, publishing them and tracking the outcome.
package pipeline

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"go.uber.org/multierr"

	"github.com/Skryldev/photo-processor/core"
	apperrors "github.com/Skryldev/photo-processor/errors"
	"github.com/Skryldev/photo-processor/utils"
)

// Codec decodes originals in two stages. The primary decoder runs first
// unless the hint says HEIC and the bytes do not sniff as a standard raster;
// on failure the bytes are converted to JPEG and that JPEG goes back through
// the primary decoder. Every successful path ends in the same normalisation.
type Codec struct {
	primary  core.Decoder
	fallback core.HEICConverter
	quality  int
	logger   core.Logger
}

// NewCodec creates a Codec. A nil fallback disables the conversion stage.
func NewCodec(primary core.Decoder, fallback core.HEICConverter, quality int, logger core.Logger) *Codec {
	if fallback == nil {
		fallback = NoFallback{}
	}
	if quality <= 0 {
		quality = 92
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &Codec{primary: primary, fallback: fallback, quality: quality, logger: logger}
}

func (c *Codec) Decode(ctx context.Context, data []byte, contentType string) core.DecodeResult {
	sniffed := utils.DetectFormat(data)

	var primaryErr error
	if utils.IsHEIC(contentType) && !utils.IsStandardRaster(sniffed) {
		c.logger.Debug("decode.primary_skipped", "content_type", contentType, "sniffed", sniffed)
	} else {
		img, err := c.primary.Decode(ctx, data)
		if err == nil {
			return core.DecodeResult{Path: core.DecodePrimary, Image: canonical(img, sniffed)}
		}
		primaryErr = err
		c.logger.Warn("decode.primary_failed",
			"content_type", contentType,
			"sniffed", sniffed,
			"error", err.Error(),
		)
	}

	jpg, err := c.fallback.ToJPEG(ctx, data, c.quality)
	if err != nil {
		return failed(multierr.Combine(primaryErr, err))
	}
	img, err := c.primary.Decode(ctx, jpg)
	if err != nil {
		return failed(multierr.Combine(primaryErr, fmt.Errorf("decode converted jpeg: %w", err)))
	}
	c.logger.Info("decode.fallback_used", "content_type", contentType, "sniffed", sniffed)
	return core.DecodeResult{Path: core.DecodeFallback, Image: canonical(img, sniffed)}
}

func failed(cause error) core.DecodeResult {
	return core.DecodeResult{
		Path:  core.DecodeFailed,
		Cause: apperrors.New(apperrors.CategoryDecode, "codec.decode", cause),
	}
}

// canonical converts any decoded model (YCbCr, CMYK, Gray, paletted) to
// non-premultiplied RGBA at origin (0,0).
func canonical(img image.Image, sourceType string) *core.CanonicalImage {
	return &core.CanonicalImage{Pixels: imaging.Clone(img), SourceType: sourceType}
}

// NoFallback is the converter used when no HEIC support is wired.
type NoFallback struct{}

func (NoFallback) ToJPEG(context.Context, []byte, int) ([]byte, error) {
	return nil, apperrors.New(apperrors.CategoryDecode, "fallback", apperrors.ErrFallbackUnavailable)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
