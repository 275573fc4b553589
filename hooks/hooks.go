// Package hooks provides production-ready Hook and Logger implementations.
package hooks

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Skryldev/photo-processor/core"
	apperrors "github.com/Skryldev/photo-processor/errors"
)

// ── Structured logger adapter ─────────────────────────────────────────────────

// SlogLogger wraps the standard library slog.Logger to satisfy core.Logger.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger creates a logger backed by slog.
func NewSlogLogger(l *slog.Logger) *SlogLogger { return &SlogLogger{log: l} }

func (s *SlogLogger) Debug(msg string, fields ...interface{}) {
	s.log.Debug(msg, toAttrs(fields)...)
}
func (s *SlogLogger) Info(msg string, fields ...interface{}) {
	s.log.Info(msg, toAttrs(fields)...)
}
func (s *SlogLogger) Warn(msg string, fields ...interface{}) {
	s.log.Warn(msg, toAttrs(fields)...)
}
func (s *SlogLogger) Error(msg string, fields ...interface{}) {
	s.log.Error(msg, toAttrs(fields)...)
}

func toAttrs(fields []interface{}) []any { return fields }

// ParseLevel maps a config log level onto slog; unknown values mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// ── Logging hook ──────────────────────────────────────────────────────────────

// LoggingHook logs before/after each stage.
type LoggingHook struct {
	logger core.Logger
}

// NewLoggingHook creates a LoggingHook.
func NewLoggingHook(l core.Logger) *LoggingHook { return &LoggingHook{logger: l} }

func (h *LoggingHook) BeforeStage(_ context.Context, stage core.Stage, photoID string) {
	h.logger.Debug("pipeline.stage.start",
		"stage", string(stage),
		"photo_id", photoID,
	)
}

func (h *LoggingHook) AfterStage(_ context.Context, stage core.Stage, photoID string, d time.Duration, err error) {
	if err != nil {
		h.logger.Error("pipeline.stage.error",
			"stage", string(stage),
			"photo_id", photoID,
			"duration_ms", d.Milliseconds(),
			"category", string(apperrors.CategoryOf(err)),
			"error", err.Error(),
		)
		return
	}
	h.logger.Debug("pipeline.stage.done",
		"stage", string(stage),
		"photo_id", photoID,
		"duration_ms", d.Milliseconds(),
	)
}

// ── In-memory metrics collector ───────────────────────────────────────────────

// InMemoryMetrics accumulates metrics; safe for concurrent use.
type InMemoryMetrics struct {
	mu sync.RWMutex

	stageDurationsMs map[string]int64 // cumulative ms per stage
	stageCalls       map[string]int64 // call count per stage
	stageErrors      map[string]int64
	errorCategories  map[string]int64
	outcomes         map[string]int64

	totalThroughputB int64
}

// NewInMemoryMetrics creates an empty metrics store.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		stageDurationsMs: make(map[string]int64),
		stageCalls:       make(map[string]int64),
		stageErrors:      make(map[string]int64),
		errorCategories:  make(map[string]int64),
		outcomes:         make(map[string]int64),
	}
}

func (m *InMemoryMetrics) RecordProcessingTime(stage string, d interface{ Seconds() float64 }) {
	ms := int64(d.Seconds() * 1000)
	m.mu.Lock()
	m.stageDurationsMs[stage] += ms
	m.stageCalls[stage]++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordThroughput(bytes int64) {
	atomic.AddInt64(&m.totalThroughputB, bytes)
}

func (m *InMemoryMetrics) RecordError(stage string, category string) {
	m.mu.Lock()
	m.stageErrors[stage]++
	m.errorCategories[category]++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordOutcome(outcome string) {
	m.mu.Lock()
	m.outcomes[outcome]++
	m.mu.Unlock()
}

// Snapshot returns a copy of current metrics.
func (m *InMemoryMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		StageDurationsMs: copyCounts(m.stageDurationsMs),
		StageCalls:       copyCounts(m.stageCalls),
		StageErrors:      copyCounts(m.stageErrors),
		ErrorCategories:  copyCounts(m.errorCategories),
		Outcomes:         copyCounts(m.outcomes),
		TotalThroughputB: atomic.LoadInt64(&m.totalThroughputB),
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// MetricsSnapshot is an immutable point-in-time copy of metrics.
type MetricsSnapshot struct {
	StageDurationsMs map[string]int64 `json:"stageDurationsMs"`
	StageCalls       map[string]int64 `json:"stageCalls"`
	StageErrors      map[string]int64 `json:"stageErrors"`
	ErrorCategories  map[string]int64 `json:"errorCategories"`
	Outcomes         map[string]int64 `json:"outcomes"`
	TotalThroughputB int64            `json:"totalThroughputBytes"`
}

// ── Metrics hook ──────────────────────────────────────────────────────────────

// MetricsHook feeds stage events into a MetricsCollector.
type MetricsHook struct {
	collector core.MetricsCollector
}

// NewMetricsHook creates a MetricsHook.
func NewMetricsHook(c core.MetricsCollector) *MetricsHook { return &MetricsHook{collector: c} }

func (h *MetricsHook) BeforeStage(context.Context, core.Stage, string) {}

func (h *MetricsHook) AfterStage(_ context.Context, stage core.Stage, _ string, d time.Duration, err error) {
	h.collector.RecordProcessingTime(string(stage), d)
	if err != nil {
		h.collector.RecordError(string(stage), string(apperrors.CategoryOf(err)))
	}
}
