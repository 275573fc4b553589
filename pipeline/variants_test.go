package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"testing"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"github.com/Skryldev/photo-processor/adapters/encoder"
	"github.com/Skryldev/photo-processor/core"
	apperrors "github.com/Skryldev/photo-processor/errors"
	"github.com/Skryldev/photo-processor/pipeline"
)

func newRegistry() *core.DefaultRegistry {
	reg := core.NewRegistry()
	reg.RegisterEncoder(core.FormatWebP, encoder.NewWebP(0))
	reg.RegisterEncoder(core.FormatJPEG, encoder.NewJPEG(0))
	return reg
}

func canonicalOf(w, h int) *core.CanonicalImage {
	return &core.CanonicalImage{Pixels: imaging.Clone(gradient(w, h)), SourceType: "image/png"}
}

func TestGenerate_PolicyOrderAndSizes(t *testing.T) {
	gen := pipeline.NewGenerator(core.DefaultPolicy(), newRegistry(), 2)

	variants, err := gen.Generate(context.Background(), canonicalOf(2000, 1500))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := []struct {
		key    string
		format core.Format
		w, h   int
	}{
		{"sm", core.FormatWebP, 512, 384},
		{"sm", core.FormatJPEG, 512, 384},
		{"md", core.FormatWebP, 1024, 768},
		{"md", core.FormatJPEG, 1024, 768},
		{"lg", core.FormatWebP, 1600, 1200},
		{"lg", core.FormatJPEG, 1600, 1200},
	}
	if len(variants) != len(want) {
		t.Fatalf("got %d variants, want %d", len(variants), len(want))
	}
	for i, w := range want {
		v := variants[i]
		if v.Key != w.key || v.Format != w.format {
			t.Errorf("[%d] = %s.%s, want %s.%s", i, v.Key, v.Format, w.key, w.format)
		}
		if v.Width != w.w || v.Height != w.h {
			t.Errorf("[%d] size = %dx%d, want %dx%d", i, v.Width, v.Height, w.w, w.h)
		}
		if len(v.Data) == 0 {
			t.Errorf("[%d] empty data", i)
		}
	}
}

func TestGenerate_EncodedBytesMatchFormat(t *testing.T) {
	gen := pipeline.NewGenerator(core.DefaultPolicy(), newRegistry(), 0)
	variants, err := gen.Generate(context.Background(), canonicalOf(800, 600))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, v := range variants {
		var img image.Image
		switch v.Format {
		case core.FormatJPEG:
			img, err = jpeg.Decode(bytes.NewReader(v.Data))
		case core.FormatWebP:
			img, err = webp.Decode(bytes.NewReader(v.Data))
		}
		if err != nil {
			t.Fatalf("%s.%s: decode output: %v", v.Key, v.Format, err)
		}
		if b := img.Bounds(); b.Dx() != v.Width || b.Dy() != v.Height {
			t.Errorf("%s.%s: decoded %dx%d, reported %dx%d", v.Key, v.Format, b.Dx(), b.Dy(), v.Width, v.Height)
		}
	}
}

func TestGenerate_NeverUpscales(t *testing.T) {
	gen := pipeline.NewGenerator(core.DefaultPolicy(), newRegistry(), 0)
	variants, err := gen.Generate(context.Background(), canonicalOf(300, 200))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, v := range variants {
		if v.Width != 300 || v.Height != 200 {
			t.Errorf("%s.%s = %dx%d, want source size 300x200", v.Key, v.Format, v.Width, v.Height)
		}
	}
}

func TestGenerate_TallImageKeepsAspect(t *testing.T) {
	gen := pipeline.NewGenerator(core.DefaultPolicy(), newRegistry(), 0)
	variants, err := gen.Generate(context.Background(), canonicalOf(1000, 3000))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	sm := variants[0]
	if sm.Width != 512 || sm.Height != 1536 {
		t.Errorf("sm = %dx%d, want 512x1536", sm.Width, sm.Height)
	}
	md := variants[2]
	if md.Width != 1000 || md.Height != 3000 {
		t.Errorf("md = %dx%d, want 1000x3000", md.Width, md.Height)
	}
}

type failingEncoder struct{}

func (failingEncoder) CanEncode(core.Format) bool { return true }
func (failingEncoder) Encode(context.Context, image.Image, core.EncodeOptions) ([]byte, error) {
	return nil, errors.New("encoder exploded")
}

func TestGenerate_EncoderFailure(t *testing.T) {
	reg := newRegistry()
	reg.RegisterEncoder(core.FormatJPEG, failingEncoder{})
	gen := pipeline.NewGenerator(core.DefaultPolicy(), reg, 0)

	variants, err := gen.Generate(context.Background(), canonicalOf(100, 100))
	if err == nil {
		t.Fatal("expected error")
	}
	if variants != nil {
		t.Error("partial variants returned")
	}
	if !apperrors.IsCategory(err, apperrors.CategoryEncode) {
		t.Errorf("category = %s, want encode", apperrors.CategoryOf(err))
	}
}

func TestGenerate_MissingEncoder(t *testing.T) {
	reg := core.NewRegistry()
	reg.RegisterEncoder(core.FormatJPEG, encoder.NewJPEG(0))
	gen := pipeline.NewGenerator(core.DefaultPolicy(), reg, 0)

	_, err := gen.Generate(context.Background(), canonicalOf(10, 10))
	if !errors.Is(err, apperrors.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestGenerate_ContextCancel(t *testing.T) {
	gen := pipeline.NewGenerator(core.DefaultPolicy(), newRegistry(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := gen.Generate(ctx, canonicalOf(200, 200)); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestGenerate_NilImage(t *testing.T) {
	gen := pipeline.NewGenerator(core.DefaultPolicy(), newRegistry(), 0)
	if _, err := gen.Generate(context.Background(), nil); !errors.Is(err, apperrors.ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
}
