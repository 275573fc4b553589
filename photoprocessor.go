// Package photoprocessor turns uploaded park photos into published web
// variants. New wires the default decoder, encoders and pipeline stages
// around caller-supplied storage and record backends.
package photoprocessor

import (
	"context"
	"errors"

	"github.com/Skryldev/photo-processor/adapters/decoder"
	"github.com/Skryldev/photo-processor/adapters/encoder"
	"github.com/Skryldev/photo-processor/config"
	"github.com/Skryldev/photo-processor/core"
	"github.com/Skryldev/photo-processor/pipeline"
)

// DefaultConfig returns a sensible production configuration.
func DefaultConfig() config.Config { return config.Default() }

// Dependencies are the external systems a Processor talks to.
type Dependencies struct {
	Objects core.ObjectStore // required
	Records core.RecordStore // required
	// HEIC converts originals the primary decoder cannot read; nil disables
	// the fallback.
	HEIC    core.HEICConverter
	Logger  core.Logger
	Metrics core.MetricsCollector
}

// Processor is the primary entry point.
type Processor struct {
	inner  *core.Processor
	reg    *core.DefaultRegistry
	policy core.Policy
}

// New creates a fully wired Processor with WebP and JPEG encoders registered.
func New(cfg config.Config, deps Dependencies) (*Processor, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if deps.Objects == nil || deps.Records == nil {
		return nil, errors.New("photoprocessor: Objects and Records are required")
	}

	policy := core.PolicyFromConfig(cfg)
	reg := core.NewRegistry()
	reg.RegisterEncoder(core.FormatWebP, encoder.NewWebP(cfg.WebPQuality))
	reg.RegisterEncoder(core.FormatJPEG, encoder.NewJPEG(cfg.JPEGQuality))

	inner := core.New(cfg, core.Components{
		Objects:   deps.Objects,
		Records:   deps.Records,
		Codec:     pipeline.NewCodec(decoder.NewStandard(cfg.MaxPixels), deps.HEIC, cfg.HEICQuality, deps.Logger),
		Generator: pipeline.NewGenerator(policy, reg, cfg.EncodeWorkers),
		Publisher: pipeline.NewPublisher(deps.Objects, cfg.PublicBaseURL, cfg.CacheControl),
		Tracker:   pipeline.NewTracker(deps.Records, policy, cfg.MaxErrorLength),
	})
	inner.SetLogger(deps.Logger)
	if deps.Metrics != nil {
		inner.SetMetrics(deps.Metrics)
	}
	return &Processor{inner: inner, reg: reg, policy: policy}, nil
}

// Handle processes one upload trigger synchronously.
func (p *Processor) Handle(ctx context.Context, trig core.Trigger) (core.Result, error) {
	return p.inner.Handle(ctx, trig)
}

// AddHook registers an observer for stage events.
func (p *Processor) AddHook(h core.Hook) { p.inner.AddHook(h) }

// RegisterEncoder replaces the encoder used for a format.
func (p *Processor) RegisterEncoder(f core.Format, e core.Encoder) { p.reg.RegisterEncoder(f, e) }

// Policy returns the variant policy in effect.
func (p *Processor) Policy() core.Policy { return p.policy }

// Start starts the background worker pool.
func (p *Processor) Start() { p.inner.Start() }

// Stop shuts down the worker pool after in-flight jobs finish.
func (p *Processor) Stop() { p.inner.Stop() }

// Submit enqueues an async job for the worker pool.
func (p *Processor) Submit(job core.Job) error { return p.inner.Submit(job) }

// Stats returns lightweight processing statistics.
func (p *Processor) Stats() (ready, failed, skipped int64) {
	return p.inner.ReadyCount(), p.inner.FailedCount(), p.inner.SkippedCount()
}
