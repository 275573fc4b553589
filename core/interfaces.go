package core

import (
	"context"
	"image"
	"io"
)

// Decoder fully decodes raw bytes into pixels, applying EXIF orientation.
// Implementations live in adapters/decoder/.
type Decoder interface {
	Decode(ctx context.Context, data []byte) (image.Image, error)
}

// HEICConverter re-encodes HEIC/HEIF bytes as JPEG at the given quality.
// Implementations live in adapters/vips/.
type HEICConverter interface {
	ToJPEG(ctx context.Context, data []byte, quality int) ([]byte, error)
}

// Encoder serialises pixels to bytes in one output format.
// Implementations live in adapters/encoder/.
type Encoder interface {
	Encode(ctx context.Context, img image.Image, opts EncodeOptions) ([]byte, error)
	CanEncode(format Format) bool
}

// EncodeOptions carries format-specific encoding parameters.
type EncodeOptions struct {
	Quality int // 1-100; 0 = use encoder default
}

// Codec turns original bytes into a CanonicalImage.
type Codec interface {
	Decode(ctx context.Context, data []byte, contentType string) DecodeResult
}

// VariantGenerator renders every (resolution, format) pair of a policy.
type VariantGenerator interface {
	Generate(ctx context.Context, img *CanonicalImage) ([]Variant, error)
}

// Publisher uploads one variant and returns its public tokenized URL.
type Publisher interface {
	Publish(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error)
}

// OutcomeTracker persists lifecycle transitions of a photo record.
type OutcomeTracker interface {
	MarkProcessing(ctx context.Context, photoID string) error
	MarkReady(ctx context.Context, photoID string, outputs Outputs) error
	MarkFailed(ctx context.Context, photoID string, cause error) error
}

// ObjectStore reads and writes blobs. Implementations live in adapters/storage/.
type ObjectStore interface {
	Put(ctx context.Context, key StorageKey, r io.Reader, opts PutOptions) error
	Get(ctx context.Context, key StorageKey) (io.ReadCloser, error)
	Delete(ctx context.Context, key StorageKey) error
	Stat(ctx context.Context, key StorageKey) (ObjectAttrs, error)
}

// RecordStore reads photo records and applies outcome writes.
// Implementations live in adapters/records/.
type RecordStore interface {
	Get(ctx context.Context, photoID string) (*PhotoRecord, error)
	Update(ctx context.Context, photoID string, u RecordUpdate) error
}

// MetricsCollector receives performance observations from the pipeline.
type MetricsCollector interface {
	RecordProcessingTime(stage string, d interface{ Seconds() float64 })
	RecordThroughput(bytes int64)
	RecordError(stage string, category string)
	RecordOutcome(outcome string)
}

// Logger is a minimal structured logging interface.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// Registry maps Format values to Encoder implementations.
type Registry interface {
	EncoderFor(format Format) (Encoder, bool)
	RegisterEncoder(format Format, e Encoder)
}
