// Package decoder provides the primary image decoder.
package decoder

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // registers image/webp

	apperrors "github.com/Skryldev/photo-processor/errors"
)

// Standard decodes every raster format registered with the image package
// (JPEG, PNG, GIF, BMP, TIFF, WebP) and applies the EXIF orientation tag.
// Decoding is a full decode, so a truncated or corrupt body fails here rather
// than later in the pipeline.
type Standard struct {
	// MaxPixels rejects images whose header declares more pixels; 0 disables.
	MaxPixels int64
}

// NewStandard returns a decoder with the given pixel limit.
func NewStandard(maxPixels int64) *Standard { return &Standard{MaxPixels: maxPixels} }

func (d *Standard) Decode(ctx context.Context, data []byte) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "standard.decode", err)
	}
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, "standard.decode", apperrors.ErrEmptyInput)
	}

	if d.MaxPixels > 0 {
		// Header probe only; a failure here is left to the full decode.
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			if int64(cfg.Width)*int64(cfg.Height) > d.MaxPixels {
				return nil, apperrors.New(apperrors.CategoryDecode, "standard.decode",
					fmt.Errorf("%w: %dx%d exceeds %d pixels", apperrors.ErrInvalidDimensions, cfg.Width, cfg.Height, d.MaxPixels))
			}
		}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "standard.decode", err)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, "standard.decode", apperrors.ErrInvalidDimensions)
	}
	return img, nil
}
