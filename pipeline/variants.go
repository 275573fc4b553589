package pipeline

import (
	"context"
	"fmt"
	"image"
	"runtime"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/Skryldev/photo-processor/core"
	apperrors "github.com/Skryldev/photo-processor/errors"
	"github.com/Skryldev/photo-processor/utils"
)

// Generator renders every (resolution, format) pair of a policy from one
// canonical image. Resolutions are processed on a bounded pool; the output
// order follows the policy regardless of scheduling.
type Generator struct {
	policy   core.Policy
	registry core.Registry
	workers  int
	// Resampler controls quality vs speed. Defaults to xdraw.CatmullRom.
	Resampler xdraw.Interpolator
}

// NewGenerator creates a Generator. workers <= 0 selects min(NumCPU, 4).
func NewGenerator(policy core.Policy, reg core.Registry, workers int) *Generator {
	if workers <= 0 {
		workers = min(runtime.NumCPU(), 4)
	}
	return &Generator{policy: policy, registry: reg, workers: workers, Resampler: xdraw.CatmullRom}
}

func (g *Generator) Generate(ctx context.Context, img *core.CanonicalImage) ([]core.Variant, error) {
	if img == nil || img.Pixels == nil {
		return nil, apperrors.New(apperrors.CategoryEncode, "generate", apperrors.ErrEmptyInput)
	}

	encoders := make([]core.Encoder, len(g.policy.Encodings))
	for i, e := range g.policy.Encodings {
		enc, ok := g.registry.EncoderFor(e.Format)
		if !ok {
			return nil, apperrors.New(apperrors.CategoryEncode, "generate",
				fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, e.Format))
		}
		encoders[i] = enc
	}

	out := make([]core.Variant, g.policy.Size())
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for ri, r := range g.policy.Resolutions {
		eg.Go(func() error {
			scaled := g.fit(img.Pixels, r.Width)
			b := scaled.Bounds()
			for ei, e := range g.policy.Encodings {
				if err := ectx.Err(); err != nil {
					return err
				}
				data, err := encoders[ei].Encode(ectx, scaled, core.EncodeOptions{Quality: e.Quality})
				if err != nil {
					return apperrors.Wrap(apperrors.CategoryEncode, "generate."+r.Key+"."+string(e.Format), err)
				}
				out[ri*len(encoders)+ei] = core.Variant{
					Key:    r.Key,
					Format: e.Format,
					Width:  b.Dx(),
					Height: b.Dy(),
					Data:   data,
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// fit scales src down to maxW wide. Narrower sources are returned as-is.
func (g *Generator) fit(src *image.NRGBA, maxW int) image.Image {
	srcB := src.Bounds()
	w, h := utils.FitWidth(srcB.Dx(), srcB.Dy(), maxW)
	if w == srcB.Dx() {
		return src
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	g.Resampler.Scale(dst, dst.Bounds(), src, srcB, xdraw.Src, nil)
	return dst
}
