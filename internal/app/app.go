// Package app assembles a Processor and its backends from configuration for
// the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"

	photoprocessor "github.com/Skryldev/photo-processor"
	"github.com/Skryldev/photo-processor/adapters/records"
	"github.com/Skryldev/photo-processor/adapters/storage"
	"github.com/Skryldev/photo-processor/adapters/vips"
	"github.com/Skryldev/photo-processor/config"
	"github.com/Skryldev/photo-processor/core"
	"github.com/Skryldev/photo-processor/hooks"
)

// App holds the wired processor and everything that must be closed with it.
type App struct {
	Config    config.Config
	Logger    *hooks.SlogLogger
	Metrics   *hooks.InMemoryMetrics
	Objects   core.ObjectStore
	Processor *photoprocessor.Processor

	closers []func()
}

// New builds the processor described by cfg.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: hooks.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: hooks.ParseLevel(cfg.LogLevel),
		}))),
		Metrics: hooks.NewInMemoryMetrics(),
	}

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		}); err != nil {
			return nil, fmt.Errorf("sentry.Init: %w", err)
		}
		a.closers = append(a.closers, func() { sentry.Flush(2 * time.Second) })
	}

	objects, err := NewObjectStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Objects = objects

	recs, err := a.recordStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	heic := vips.NewConverter(vips.ConverterConfig{})
	a.closers = append(a.closers, heic.Shutdown)

	proc, err := photoprocessor.New(cfg, photoprocessor.Dependencies{
		Objects: objects,
		Records: recs,
		HEIC:    heic,
		Logger:  a.Logger,
		Metrics: a.Metrics,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	proc.AddHook(hooks.NewLoggingHook(a.Logger))
	proc.AddHook(hooks.NewMetricsHook(a.Metrics))
	if cfg.Sentry.DSN != "" {
		proc.AddHook(hooks.NewSentryHook(nil))
	}
	a.Processor = proc
	return a, nil
}

// NewObjectStore builds the configured storage backend.
func NewObjectStore(ctx context.Context, cfg config.Config) (core.ObjectStore, error) {
	switch cfg.Storage {
	case config.StorageS3:
		client, err := storage.NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return storage.NewS3(client)
	default:
		return storage.NewLocal(cfg.Local.RootDir, os.FileMode(cfg.Local.Permissions))
	}
}

func (a *App) recordStore(ctx context.Context, cfg config.Config) (core.RecordStore, error) {
	switch cfg.Records {
	case config.RecordsPostgres:
		pg, err := records.OpenPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		return pg, nil
	default:
		a.Logger.Warn("records.memory", "note", "records are not persisted across restarts")
		return records.NewMemory(), nil
	}
}

// Snapshot returns current metrics for the debug endpoint.
func (a *App) Snapshot() any { return a.Metrics.Snapshot() }

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
