package records_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/photo-processor/adapters/records"
	"github.com/Skryldev/photo-processor/core"
	apperrors "github.com/Skryldev/photo-processor/errors"
)

func TestMemory_PutDefaultsToPending(t *testing.T) {
	m := records.NewMemory()
	m.Put(core.PhotoRecord{ID: "p1", ParkID: "park", OwnerID: "u1"})

	rec, err := m.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, rec.Status)
}

func TestMemory_GetMissing(t *testing.T) {
	_, err := records.NewMemory().Get(context.Background(), "nope")
	assert.ErrorIs(t, err, apperrors.ErrRecordNotFound)
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	m := records.NewMemory()
	o := core.Outputs{}
	o.Set("sm", core.FormatJPEG, "u")
	m.Put(core.PhotoRecord{ID: "p1", ParkID: "park", OwnerID: "u1", Outputs: o})

	rec, err := m.Get(context.Background(), "p1")
	require.NoError(t, err)
	rec.Outputs["sm"][core.FormatJPEG] = "mutated"
	rec.ParkID = "other"

	again, err := m.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "u", again.Outputs["sm"][core.FormatJPEG])
	assert.Equal(t, "park", again.ParkID)
}

func TestMemory_UpdateReplacesOutcomeFields(t *testing.T) {
	m := records.NewMemory()
	m.Put(core.PhotoRecord{ID: "p1", ParkID: "park", OwnerID: "u1"})
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, m.Update(ctx, "p1", core.RecordUpdate{Status: core.StatusFailed, Error: "boom", UpdatedAt: now}))
	require.NoError(t, m.Update(ctx, "p1", core.RecordUpdate{Status: core.StatusProcessing, UpdatedAt: now.Add(time.Second)}))

	rec, err := m.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusProcessing, rec.Status)
	assert.Empty(t, rec.Error)
	assert.Equal(t, "park", rec.ParkID, "identity fields are untouched")
	assert.Len(t, m.History("p1"), 2)
}

func TestMemory_UpdatedAtMonotonic(t *testing.T) {
	m := records.NewMemory()
	m.Put(core.PhotoRecord{ID: "p1", ParkID: "park", OwnerID: "u1"})
	ctx := context.Background()
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.Update(ctx, "p1", core.RecordUpdate{Status: core.StatusProcessing, UpdatedAt: ts}))
	require.NoError(t, m.Update(ctx, "p1", core.RecordUpdate{Status: core.StatusReady, UpdatedAt: ts.Add(-time.Hour)}))

	h := m.History("p1")
	require.Len(t, h, 2)
	assert.True(t, h[1].UpdatedAt.After(h[0].UpdatedAt))
}

func TestMemory_UpdateMissing(t *testing.T) {
	err := records.NewMemory().Update(context.Background(), "nope", core.RecordUpdate{Status: core.StatusReady})
	assert.ErrorIs(t, err, apperrors.ErrRecordNotFound)
}

func TestMemory_CancelledContext(t *testing.T) {
	m := records.NewMemory()
	m.Put(core.PhotoRecord{ID: "p1", ParkID: "park", OwnerID: "u1"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Get(ctx, "p1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, m.Update(ctx, "p1", core.RecordUpdate{}), context.Canceled)
	assert.Empty(t, m.History("p1"))
}
