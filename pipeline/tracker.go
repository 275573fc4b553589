package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/Skryldev/photo-processor/core"
	apperrors "github.com/Skryldev/photo-processor/errors"
)

// Tracker writes lifecycle transitions to the record store. Each transition
// is a single update carrying a fresh timestamp.
type Tracker struct {
	records     core.RecordStore
	policy      core.Policy
	maxErrorLen int
	now         func() time.Time
}

// NewTracker creates a Tracker that only accepts outputs covering policy.
func NewTracker(records core.RecordStore, policy core.Policy, maxErrorLen int) *Tracker {
	if maxErrorLen <= 0 {
		maxErrorLen = 500
	}
	return &Tracker{records: records, policy: policy, maxErrorLen: maxErrorLen, now: time.Now}
}

// WithClock replaces the timestamp source.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// MarkProcessing clears outputs and error. It is valid from any state so a
// redelivered trigger can reprocess.
func (t *Tracker) MarkProcessing(ctx context.Context, photoID string) error {
	return t.write(ctx, "tracker.processing", photoID, core.RecordUpdate{Status: core.StatusProcessing})
}

func (t *Tracker) MarkReady(ctx context.Context, photoID string, outputs core.Outputs) error {
	if err := t.policy.Covers(outputs); err != nil {
		return apperrors.New(apperrors.CategoryCommit, "tracker.ready",
			fmt.Errorf("%w: %v", apperrors.ErrIncompleteOutputs, err))
	}
	return t.write(ctx, "tracker.ready", photoID, core.RecordUpdate{
		Status:  core.StatusReady,
		Outputs: outputs.Clone(),
	})
}

func (t *Tracker) MarkFailed(ctx context.Context, photoID string, cause error) error {
	msg := apperrors.Message(cause, t.maxErrorLen)
	if msg == "" {
		msg = "unknown error"
	}
	return t.write(ctx, "tracker.failed", photoID, core.RecordUpdate{
		Status: core.StatusFailed,
		Error:  msg,
	})
}

func (t *Tracker) write(ctx context.Context, op, photoID string, u core.RecordUpdate) error {
	u.UpdatedAt = t.now().UTC()
	return apperrors.Wrap(apperrors.CategoryCommit, op, t.records.Update(ctx, photoID, u))
}
