package hooks

import (
	"context"
	"errors"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Skryldev/photo-processor/core"
	apperrors "github.com/Skryldev/photo-processor/errors"
)

// SentryHook reports stage failures to Sentry. Records that are missing or
// incomplete are expected noise and are not reported.
type SentryHook struct {
	hub *sentry.Hub
}

// NewSentryHook reports through hub; nil uses the current hub.
func NewSentryHook(hub *sentry.Hub) *SentryHook {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return &SentryHook{hub: hub}
}

func (h *SentryHook) BeforeStage(context.Context, core.Stage, string) {}

func (h *SentryHook) AfterStage(_ context.Context, stage core.Stage, photoID string, d time.Duration, err error) {
	if err == nil || errors.Is(err, apperrors.ErrRecordNotFound) || errors.Is(err, apperrors.ErrRecordIncomplete) {
		return
	}
	h.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("stage", string(stage))
		scope.SetTag("category", string(apperrors.CategoryOf(err)))
		scope.SetTag("photo_id", photoID)
		scope.SetExtra("duration_ms", d.Milliseconds())
		h.hub.CaptureException(err)
	})
}
