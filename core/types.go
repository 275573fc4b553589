package core

import (
	"context"
	"image"
	"time"
)

// Format identifies an output encoding. Its value doubles as the file
// extension and as the inner key of Outputs.
type Format string

const (
	FormatWebP Format = "webp"
	FormatJPEG Format = "jpg"
)

// ContentType returns the MIME type published with objects of this format.
func (f Format) ContentType() string {
	switch f {
	case FormatWebP:
		return "image/webp"
	case FormatJPEG:
		return "image/jpeg"
	}
	return "application/octet-stream"
}

// Status is the processing lifecycle state of a photo record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// Outputs maps resolution key to format to public URL.
type Outputs map[string]map[Format]string

// Set records url under (key, format).
func (o Outputs) Set(key string, f Format, url string) {
	if o[key] == nil {
		o[key] = make(map[Format]string, 2)
	}
	o[key][f] = url
}

// Count returns the number of URLs held.
func (o Outputs) Count() int {
	n := 0
	for _, byFormat := range o {
		n += len(byFormat)
	}
	return n
}

// Clone returns a deep copy.
func (o Outputs) Clone() Outputs {
	if o == nil {
		return nil
	}
	out := make(Outputs, len(o))
	for k, byFormat := range o {
		m := make(map[Format]string, len(byFormat))
		for f, u := range byFormat {
			m[f] = u
		}
		out[k] = m
	}
	return out
}

// PhotoRecord is the persisted per-photo document. Records are created
// elsewhere; this module only reads ParkID/OwnerID and writes the outcome
// fields.
type PhotoRecord struct {
	ID        string    `json:"id"`
	ParkID    string    `json:"parkId" validate:"required"`
	OwnerID   string    `json:"ownerId" validate:"required"`
	Status    Status    `json:"status"`
	Outputs   Outputs   `json:"outputs,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RecordUpdate is one atomic write of the outcome fields. A nil Outputs and
// an empty Error clear those fields.
type RecordUpdate struct {
	Status    Status
	Outputs   Outputs
	Error     string
	UpdatedAt time.Time
}

// Trigger is the upload-completed event delivered by the storage layer.
type Trigger struct {
	Bucket      string `json:"bucket"`
	ObjectPath  string `json:"objectPath"`
	ContentType string `json:"contentType,omitempty"`
}

// UploadRef identifies a photo from its upload object path.
type UploadRef struct {
	OwnerID string
	PhotoID string
}

// StorageKey uniquely identifies an object in a storage backend.
type StorageKey struct {
	Bucket string
	Path   string
}

// PutOptions carries the object attributes written alongside the body.
type PutOptions struct {
	ContentType  string
	CacheControl string
	Metadata     map[string]string
}

// ObjectAttrs describes a stored object.
type ObjectAttrs struct {
	Size         int64
	ContentType  string
	CacheControl string
	Metadata     map[string]string
}

// CanonicalImage is a decoded image with orientation applied and pixels in
// non-premultiplied sRGB, origin at (0,0).
type CanonicalImage struct {
	Pixels *image.NRGBA
	// SourceType is the sniffed MIME type of the bytes that were decoded.
	SourceType string
}

// Width returns the pixel width.
func (c *CanonicalImage) Width() int { return c.Pixels.Bounds().Dx() }

// Height returns the pixel height.
func (c *CanonicalImage) Height() int { return c.Pixels.Bounds().Dy() }

// DecodePath tags which strategy produced a DecodeResult.
type DecodePath string

const (
	DecodePrimary  DecodePath = "primary"
	DecodeFallback DecodePath = "fallback"
	DecodeFailed   DecodePath = "failed"
)

// DecodeResult is the tagged outcome of the two-stage decode.
type DecodeResult struct {
	Path  DecodePath
	Image *CanonicalImage
	// Cause is set when Path is DecodeFailed.
	Cause error
}

// Err returns the decode failure, or nil on success.
func (r DecodeResult) Err() error {
	if r.Path == DecodeFailed {
		return r.Cause
	}
	return nil
}

// Variant is one encoded rendition of the canonical image.
type Variant struct {
	Key    string // resolution key
	Format Format
	Width  int
	Height int
	Data   []byte
}

// Outcome classifies how one invocation ended.
type Outcome string

const (
	OutcomeSkipped Outcome = "skipped"
	OutcomeReady   Outcome = "ready"
	OutcomeFailed  Outcome = "failed"
)

// Result is returned by Processor.Handle.
type Result struct {
	PhotoID string
	Outcome Outcome
	Decode  DecodePath
	Outputs Outputs
	// Err is the skip reason or the pipeline failure that was recorded.
	Err      error
	Duration time.Duration
}

// Job encapsulates a single trigger for the worker pool.
type Job struct {
	ID      string
	Ctx     context.Context //nolint:containedctx // intentional for async jobs
	Trigger Trigger
	// Done is invoked from the worker once Handle returns; nil for fire-and-forget.
	Done func(Result, error)
}

// Stage names a phase of one invocation, reported to hooks.
type Stage string

const (
	StageLoad     Stage = "load"
	StageDownload Stage = "download"
	StageDecode   Stage = "decode"
	StageGenerate Stage = "generate"
	StagePublish  Stage = "publish"
	StageCommit   Stage = "commit"
	StageCleanup  Stage = "cleanup"
)

// Hook allows callers to observe stages without modifying them.
type Hook interface {
	BeforeStage(ctx context.Context, stage Stage, photoID string)
	AfterStage(ctx context.Context, stage Stage, photoID string, d time.Duration, err error)
}
