package pipeline_test

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/Skryldev/photo-processor/adapters/decoder"
	"github.com/Skryldev/photo-processor/core"
	apperrors "github.com/Skryldev/photo-processor/errors"
	"github.com/Skryldev/photo-processor/pipeline"
)

type stubConverter struct {
	out     []byte
	err     error
	calls   int
	quality int
}

func (s *stubConverter) ToJPEG(_ context.Context, _ []byte, quality int) ([]byte, error) {
	s.calls++
	s.quality = quality
	return s.out, s.err
}

type countingDecoder struct {
	core.Decoder
	calls int
}

func (c *countingDecoder) Decode(ctx context.Context, data []byte) (image.Image, error) {
	c.calls++
	return c.Decoder.Decode(ctx, data)
}

func newCodec(fallback core.HEICConverter) (*pipeline.Codec, *countingDecoder) {
	d := &countingDecoder{Decoder: decoder.NewStandard(0)}
	return pipeline.NewCodec(d, fallback, 92, nil), d
}

func TestCodec_PrimaryJPEG(t *testing.T) {
	conv := &stubConverter{}
	codec, _ := newCodec(conv)

	res := codec.Decode(context.Background(), jpegBytes(t, 64, 48), "image/jpeg")
	if err := res.Err(); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if res.Path != core.DecodePrimary {
		t.Errorf("path = %s, want primary", res.Path)
	}
	if res.Image.Width() != 64 || res.Image.Height() != 48 {
		t.Errorf("size = %dx%d, want 64x48", res.Image.Width(), res.Image.Height())
	}
	if res.Image.SourceType != "image/jpeg" {
		t.Errorf("source type = %q", res.Image.SourceType)
	}
	if conv.calls != 0 {
		t.Errorf("fallback called %d times", conv.calls)
	}
}

func TestCodec_PrimaryPNG_Canonical(t *testing.T) {
	codec, _ := newCodec(nil)
	res := codec.Decode(context.Background(), pngBytes(t, 10, 7), "")
	if err := res.Err(); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if b := res.Image.Pixels.Bounds(); b.Min != (image.Point{}) {
		t.Errorf("origin = %v, want (0,0)", b.Min)
	}
	px := res.Image.Pixels.NRGBAAt(9, 6)
	if px.A != 255 {
		t.Errorf("alpha = %d, want opaque", px.A)
	}
}

func TestCodec_OrientationAppliedOnBothPaths(t *testing.T) {
	rotated := withOrientation(t, jpegBytes(t, 40, 20), 6)

	t.Run("primary", func(t *testing.T) {
		codec, _ := newCodec(nil)
		res := codec.Decode(context.Background(), rotated, "image/jpeg")
		if err := res.Err(); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if res.Image.Width() != 20 || res.Image.Height() != 40 {
			t.Errorf("size = %dx%d, want 20x40", res.Image.Width(), res.Image.Height())
		}
	})

	t.Run("fallback", func(t *testing.T) {
		conv := &stubConverter{out: rotated}
		codec, _ := newCodec(conv)
		res := codec.Decode(context.Background(), heicBytes(), "image/heic")
		if err := res.Err(); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if res.Path != core.DecodeFallback {
			t.Errorf("path = %s, want fallback", res.Path)
		}
		if res.Image.Width() != 20 || res.Image.Height() != 40 {
			t.Errorf("size = %dx%d, want 20x40", res.Image.Width(), res.Image.Height())
		}
	})
}

func TestCodec_HEICHintSkipsPrimary(t *testing.T) {
	conv := &stubConverter{out: jpegBytes(t, 30, 30)}
	codec, dec := newCodec(conv)

	res := codec.Decode(context.Background(), heicBytes(), "image/heif")
	if err := res.Err(); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if conv.calls != 1 || conv.quality != 92 {
		t.Errorf("fallback calls=%d quality=%d, want 1 and 92", conv.calls, conv.quality)
	}
	// Only the converted JPEG goes through the primary decoder.
	if dec.calls != 1 {
		t.Errorf("primary decoder calls = %d, want 1", dec.calls)
	}
}

func TestCodec_HEICHintWithJPEGBytesUsesPrimary(t *testing.T) {
	conv := &stubConverter{}
	codec, _ := newCodec(conv)

	res := codec.Decode(context.Background(), jpegBytes(t, 16, 16), "image/heic")
	if res.Path != core.DecodePrimary {
		t.Fatalf("path = %s, want primary (err=%v)", res.Path, res.Err())
	}
	if conv.calls != 0 {
		t.Errorf("fallback called %d times", conv.calls)
	}
}

func TestCodec_BothStagesFail(t *testing.T) {
	conv := &stubConverter{err: errors.New("vips: not a known file format")}
	codec, _ := newCodec(conv)

	res := codec.Decode(context.Background(), []byte("garbage bytes"), "image/jpeg")
	if res.Path != core.DecodeFailed {
		t.Fatalf("path = %s, want failed", res.Path)
	}
	if res.Image != nil {
		t.Error("failed result carries an image")
	}
	err := res.Err()
	if !apperrors.IsCategory(err, apperrors.CategoryDecode) {
		t.Errorf("category = %s, want decode", apperrors.CategoryOf(err))
	}
	if !errors.Is(err, conv.err) {
		t.Errorf("fallback cause missing from %v", err)
	}
}

func TestCodec_NoFallbackConfigured(t *testing.T) {
	codec, _ := newCodec(nil)
	res := codec.Decode(context.Background(), heicBytes(), "image/heic")
	if !errors.Is(res.Err(), apperrors.ErrFallbackUnavailable) {
		t.Fatalf("err = %v, want ErrFallbackUnavailable", res.Err())
	}
}

func TestCodec_ConvertedBytesUndecodable(t *testing.T) {
	conv := &stubConverter{out: []byte("still not an image")}
	codec, _ := newCodec(conv)
	res := codec.Decode(context.Background(), heicBytes(), "image/heic")
	if res.Path != core.DecodeFailed {
		t.Fatalf("path = %s, want failed", res.Path)
	}
}

func TestCodec_VendorHEICHintSkipsPrimary(t *testing.T) {
	conv := &stubConverter{out: jpegBytes(t, 12, 12)}
	codec, dec := newCodec(conv)

	res := codec.Decode(context.Background(), heicBytes(), "image/x-heic")
	if res.Path != core.DecodeFallback {
		t.Fatalf("path = %s, want fallback (err=%v)", res.Path, res.Err())
	}
	if dec.calls != 1 {
		t.Errorf("primary decoder calls = %d, want 1 (converted jpeg only)", dec.calls)
	}
}
