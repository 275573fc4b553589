package core

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/Skryldev/photo-processor/config"
	apperrors "github.com/Skryldev/photo-processor/errors"
	"github.com/Skryldev/photo-processor/utils"
)

// Components are the collaborators a Processor orchestrates.
type Components struct {
	Objects   ObjectStore
	Records   RecordStore
	Codec     Codec
	Generator VariantGenerator
	Publisher Publisher
	Tracker   OutcomeTracker
}

// Processor is the central orchestrator. Handle runs one trigger end to end;
// Start/Submit/Stop run triggers on a bounded worker pool. It is safe for
// concurrent use.
type Processor struct {
	cfg config.Config
	Components
	hooks    []Hook
	logger   Logger
	metrics  MetricsCollector
	validate *validator.Validate
	policy   Policy

	// Worker pool.
	jobQueue chan Job
	wg       sync.WaitGroup
	once     sync.Once
	stopOnce sync.Once
	shutdown chan struct{}

	// Atomic counters for lightweight internal metrics.
	readyCount   int64
	failedCount  int64
	skippedCount int64
}

// New creates a Processor. Call Start() before submitting jobs; call Stop()
// when done. Handle may be used without starting the pool.
func New(cfg config.Config, c Components) *Processor {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	if cfg.UploadConcurrency <= 0 {
		cfg.UploadConcurrency = 1
	}
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = 10 * time.Second
	}
	return &Processor{
		cfg:        cfg,
		Components: c,
		logger:     nopLogger{},
		validate:   validator.New(),
		policy:     PolicyFromConfig(cfg),
		jobQueue:   make(chan Job, queueSize),
		shutdown:   make(chan struct{}),
	}
}

// SetLogger attaches a structured logger.
func (p *Processor) SetLogger(l Logger) {
	if l != nil {
		p.logger = l
	}
}

// SetMetrics attaches a metrics collector.
func (p *Processor) SetMetrics(m MetricsCollector) { p.metrics = m }

// AddHook registers a stage hook.
func (p *Processor) AddHook(h Hook) { p.hooks = append(p.hooks, h) }

// Handle processes one upload trigger. Result.Err carries the skip reason or
// the failure that was recorded on the photo. The returned error is non-nil
// only when a status write could not be committed; the trigger should then be
// redelivered.
func (p *Processor) Handle(ctx context.Context, trig Trigger) (Result, error) {
	start := time.Now()

	ref, ok := ParseUploadPath(trig.ObjectPath)
	if !ok {
		p.logger.Debug("trigger.ignored", "bucket", trig.Bucket, "path", trig.ObjectPath)
		err := apperrors.New(apperrors.CategoryTrigger, "parse", apperrors.ErrMalformedTrigger)
		return p.finish(Result{Outcome: OutcomeSkipped, Err: err}, start), nil
	}
	res := Result{PhotoID: ref.PhotoID}

	if p.cfg.InvocationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.InvocationTimeout)
		defer cancel()
	}

	// --- 1. Load and validate the record ------------------------------------
	var rec *PhotoRecord
	err := p.stage(ctx, StageLoad, ref.PhotoID, func(ctx context.Context) error {
		var err error
		rec, err = p.load(ctx, ref.PhotoID)
		return err
	})
	if errors.Is(err, apperrors.ErrRecordNotFound) || errors.Is(err, apperrors.ErrRecordIncomplete) {
		p.logger.Error("record.unusable",
			"photo_id", ref.PhotoID,
			"owner_id", ref.OwnerID,
			"error", err.Error(),
		)
		res.Outcome, res.Err = OutcomeSkipped, err
		return p.finish(res, start), nil
	}
	if err != nil {
		return p.finish(res, start), err
	}

	if p.completed(ctx, trig, rec) {
		p.logger.Info("trigger.duplicate",
			"photo_id", ref.PhotoID,
			"path", trig.ObjectPath,
		)
		res.Outcome = OutcomeSkipped
		res.Err = apperrors.New(apperrors.CategoryTrigger, "dedupe", apperrors.ErrAlreadyProcessed)
		return p.finish(res, start), nil
	}

	// --- 2. Claim the photo -------------------------------------------------
	err = p.stage(ctx, StageCommit, ref.PhotoID, func(ctx context.Context) error {
		return p.Tracker.MarkProcessing(ctx, ref.PhotoID)
	})
	if err != nil {
		return p.finish(res, start), err
	}

	// --- 3. Download, decode, generate, publish ------------------------------
	outputs, path, runErr := p.run(ctx, trig, ref.PhotoID, rec)
	res.Decode = path

	// --- 4. Commit the outcome ------------------------------------------------
	if runErr == nil {
		runErr = p.stage(ctx, StageCommit, ref.PhotoID, func(ctx context.Context) error {
			cctx, cancel := p.commitContext(ctx)
			defer cancel()
			return p.Tracker.MarkReady(cctx, ref.PhotoID, outputs)
		})
		if runErr == nil {
			p.cleanup(ctx, trig, ref.PhotoID)
			res.Outcome, res.Outputs = OutcomeReady, outputs
			p.logger.Info("photo.ready",
				"photo_id", ref.PhotoID,
				"park_id", rec.ParkID,
				"decode", string(path),
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return p.finish(res, start), nil
		}
	}

	res.Outcome, res.Err = OutcomeFailed, runErr
	p.logger.Error("photo.failed",
		"photo_id", ref.PhotoID,
		"park_id", rec.ParkID,
		"error", runErr.Error(),
	)
	err = p.stage(ctx, StageCommit, ref.PhotoID, func(ctx context.Context) error {
		cctx, cancel := p.commitContext(ctx)
		defer cancel()
		return p.Tracker.MarkFailed(cctx, ref.PhotoID, runErr)
	})
	return p.finish(res, start), err
}

func (p *Processor) load(ctx context.Context, photoID string) (*PhotoRecord, error) {
	rec, err := p.Records.Get(ctx, photoID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apperrors.New(apperrors.CategoryRecord, "load", apperrors.ErrRecordNotFound)
	}
	if err := p.validate.Struct(rec); err != nil {
		return nil, apperrors.New(apperrors.CategoryRecord, "load",
			fmt.Errorf("%w: %v", apperrors.ErrRecordIncomplete, err))
	}
	return rec, nil
}

// completed reports a redelivery of a finished upload: the record is ready
// with full outputs and the original is already gone. A re-uploaded original
// is processed again.
func (p *Processor) completed(ctx context.Context, trig Trigger, rec *PhotoRecord) bool {
	if rec.Status != StatusReady || p.policy.Covers(rec.Outputs) != nil {
		return false
	}
	_, err := p.Objects.Stat(ctx, StorageKey{Bucket: trig.Bucket, Path: trig.ObjectPath})
	return errors.Is(err, apperrors.ErrObjectNotFound)
}

func (p *Processor) run(ctx context.Context, trig Trigger, photoID string, rec *PhotoRecord) (Outputs, DecodePath, error) {
	var data []byte
	err := p.stage(ctx, StageDownload, photoID, func(ctx context.Context) error {
		var err error
		data, err = p.download(ctx, StorageKey{Bucket: trig.Bucket, Path: trig.ObjectPath})
		return err
	})
	if err != nil {
		return nil, "", err
	}

	var decoded DecodeResult
	err = p.stage(ctx, StageDecode, photoID, func(ctx context.Context) error {
		decoded = p.Codec.Decode(ctx, data, trig.ContentType)
		return decoded.Err()
	})
	if err != nil {
		return nil, DecodeFailed, err
	}

	var variants []Variant
	err = p.stage(ctx, StageGenerate, photoID, func(ctx context.Context) error {
		var err error
		variants, err = p.Generator.Generate(ctx, decoded.Image)
		return err
	})
	if err != nil {
		return nil, decoded.Path, err
	}

	var outputs Outputs
	err = p.stage(ctx, StagePublish, photoID, func(ctx context.Context) error {
		var err error
		outputs, err = p.publishAll(ctx, trig.Bucket, rec.ParkID, photoID, variants)
		return err
	})
	return outputs, decoded.Path, err
}

func (p *Processor) download(ctx context.Context, key StorageKey) ([]byte, error) {
	rc, err := p.Objects.Get(ctx, key)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryTransfer, "download", err)
	}
	defer rc.Close()

	buf, err := utils.DrainReader(ctx, &utils.LimitedReader{R: rc, Max: p.cfg.MaxImageBytes}, p.cfg.ChunkSize)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryTransfer, "download", err)
	}
	data := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)

	if len(data) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, "download", apperrors.ErrEmptyInput)
	}
	if p.metrics != nil {
		p.metrics.RecordThroughput(int64(len(data)))
	}
	return data, nil
}

// publishAll uploads every variant with bounded concurrency. The first
// failure cancels the remaining uploads and no outputs are returned.
func (p *Processor) publishAll(ctx context.Context, bucket, parkID, photoID string, variants []Variant) (Outputs, error) {
	urls := make([]string, len(variants))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.UploadConcurrency)
	for i, v := range variants {
		g.Go(func() error {
			path := VariantPath(parkID, photoID, v.Key, v.Format)
			u, err := p.Publisher.Publish(gctx, bucket, path, v.Data, v.Format.ContentType())
			if err != nil {
				return err
			}
			urls[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	outputs := make(Outputs, len(variants))
	for i, v := range variants {
		outputs.Set(v.Key, v.Format, urls[i])
	}
	return outputs, nil
}

// cleanup deletes the original upload. Failures are logged and swallowed.
func (p *Processor) cleanup(ctx context.Context, trig Trigger, photoID string) {
	_ = p.stage(ctx, StageCleanup, photoID, func(ctx context.Context) error {
		cctx, cancel := p.commitContext(ctx)
		defer cancel()
		err := p.Objects.Delete(cctx, StorageKey{Bucket: trig.Bucket, Path: trig.ObjectPath})
		if err != nil {
			p.logger.Warn("original.delete_failed",
				"photo_id", photoID,
				"path", trig.ObjectPath,
				"error", err.Error(),
			)
		}
		return err
	})
}

// commitContext detaches terminal writes from the invocation deadline so a
// timed-out run is still recorded.
func (p *Processor) commitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), p.cfg.CommitTimeout)
}

func (p *Processor) stage(ctx context.Context, s Stage, photoID string, fn func(context.Context) error) (err error) {
	p.notifyBefore(ctx, s, photoID)
	t := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.New(apperrors.CategoryPipeline, string(s), fmt.Errorf("panic: %v", r))
		}
		p.notifyAfter(ctx, s, photoID, time.Since(t), err)
	}()
	return fn(ctx)
}

func (p *Processor) finish(res Result, start time.Time) Result {
	res.Duration = time.Since(start)
	switch res.Outcome {
	case OutcomeReady:
		atomic.AddInt64(&p.readyCount, 1)
	case OutcomeFailed:
		atomic.AddInt64(&p.failedCount, 1)
	case OutcomeSkipped:
		atomic.AddInt64(&p.skippedCount, 1)
	}
	if p.metrics != nil && res.Outcome != "" {
		p.metrics.RecordOutcome(string(res.Outcome))
	}
	return res
}

// ── worker pool ───────────────────────────────────────────────────────────────

// Start launches the worker pool. It is idempotent.
func (p *Processor) Start() {
	p.once.Do(func() {
		workerCount := p.cfg.WorkerCount
		if workerCount <= 0 {
			workerCount = runtime.NumCPU()
		}
		for i := 0; i < workerCount; i++ {
			p.wg.Add(1)
			go p.worker()
		}
	})
}

// Stop signals workers to exit after their current job and waits for them.
// Jobs still queued are dropped; their transports redeliver them.
func (p *Processor) Stop() {
	p.stopOnce.Do(func() { close(p.shutdown) })
	p.wg.Wait()
}

// Submit enqueues an async job. Returns ErrWorkerPoolFull if the queue is full.
func (p *Processor) Submit(job Job) error {
	if job.Ctx == nil {
		job.Ctx = context.Background()
	}
	select {
	case <-p.shutdown:
		return apperrors.New(apperrors.CategoryPipeline, "submit", context.Canceled)
	default:
	}
	select {
	case p.jobQueue <- job:
		return nil
	default:
		return apperrors.New(apperrors.CategoryPipeline, "submit", apperrors.ErrWorkerPoolFull)
	}
}

func (p *Processor) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.shutdown:
			return
		case job := <-p.jobQueue:
			p.processJob(job)
		}
	}
}

func (p *Processor) processJob(job Job) {
	res, err := p.Handle(job.Ctx, job.Trigger)
	if job.Done != nil {
		job.Done(res, err)
	}
}

func (p *Processor) notifyBefore(ctx context.Context, s Stage, photoID string) {
	for _, h := range p.hooks {
		h.BeforeStage(ctx, s, photoID)
	}
}

func (p *Processor) notifyAfter(ctx context.Context, s Stage, photoID string, d time.Duration, err error) {
	for _, h := range p.hooks {
		h.AfterStage(ctx, s, photoID, d, err)
	}
}

// ReadyCount returns the number of photos marked ready.
func (p *Processor) ReadyCount() int64 { return atomic.LoadInt64(&p.readyCount) }

// FailedCount returns the number of photos marked failed.
func (p *Processor) FailedCount() int64 { return atomic.LoadInt64(&p.failedCount) }

// SkippedCount returns the number of triggers that were ignored.
func (p *Processor) SkippedCount() int64 { return atomic.LoadInt64(&p.skippedCount) }

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
