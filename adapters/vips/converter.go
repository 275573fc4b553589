// Package vips converts HEIC/HEIF originals through libvips (libheif).
// It needs libvips at runtime and is wired only by the binaries.
package vips

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	govips "github.com/davidbyttow/govips/v2/vips"

	apperrors "github.com/Skryldev/photo-processor/errors"
)

// ConverterConfig configures the libvips runtime.
type ConverterConfig struct {
	MaxCacheSize int
	MaxWorkers   int
	ReportLeaks  bool
}

// Converter re-encodes images libvips can load (notably HEIC/HEIF) as JPEG.
// Safe for concurrent use across goroutines.
type Converter struct {
	cfg ConverterConfig
}

var startOnce sync.Once

// NewConverter initialises libvips and returns a ready Converter.
// Call Shutdown() when the process exits.
func NewConverter(cfg ConverterConfig) *Converter {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	startOnce.Do(func() {
		govips.LoggingSettings(nil, govips.LogLevelWarning)
		govips.Startup(&govips.Config{
			ConcurrencyLevel: cfg.MaxWorkers,
			MaxCacheSize:     cfg.MaxCacheSize,
			ReportLeaks:      cfg.ReportLeaks,
		})
	})
	return &Converter{cfg: cfg}
}

// Shutdown releases all libvips resources. Call once at process exit.
func (c *Converter) Shutdown() {
	govips.Shutdown()
}

// ToJPEG decodes data with libvips and exports it as JPEG at quality.
// Orientation is baked into the pixels and metadata is stripped, so the
// result decodes upright with no orientation tag left to apply.
func (c *Converter) ToJPEG(ctx context.Context, data []byte, quality int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.heic", err)
	}
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, "vips.heic", apperrors.ErrEmptyInput)
	}

	ref, err := govips.NewImageFromBuffer(data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.heic.load", err)
	}
	defer ref.Close()

	if err := ref.AutoRotate(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.heic.rotate", err)
	}
	if ref.Interpretation() != govips.InterpretationSRGB {
		if err := ref.ToColorSpace(govips.InterpretationSRGB); err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.heic.colorspace", err)
		}
	}

	ep := govips.NewJpegExportParams()
	ep.Quality = quality
	ep.StripMetadata = true
	ep.OptimizeCoding = true
	buf, _, err := ref.ExportJpeg(ep)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.heic.export",
			fmt.Errorf("%s source: %w", govips.ImageTypes[ref.Format()], err))
	}
	return buf, nil
}
