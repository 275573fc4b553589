// Package records provides core.RecordStore implementations.
package records

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Skryldev/photo-processor/core"
	apperrors "github.com/Skryldev/photo-processor/errors"
)

// Memory is an in-process record store. It keeps every applied update so
// callers can inspect the write history.
type Memory struct {
	mu      sync.RWMutex
	records map[string]core.PhotoRecord
	history map[string][]core.RecordUpdate
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]core.PhotoRecord),
		history: make(map[string][]core.RecordUpdate),
	}
}

// Put creates or replaces a record, as the upload-initiation side would.
func (m *Memory) Put(rec core.PhotoRecord) {
	if rec.Status == "" {
		rec.Status = core.StatusPending
	}
	rec.Outputs = rec.Outputs.Clone()
	m.mu.Lock()
	m.records[rec.ID] = rec
	m.mu.Unlock()
}

func (m *Memory) Get(ctx context.Context, photoID string) (*core.PhotoRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryRecord, "memory.get", err)
	}
	m.mu.RLock()
	rec, ok := m.records[photoID]
	m.mu.RUnlock()
	if !ok {
		return nil, apperrors.New(apperrors.CategoryRecord, "memory.get",
			fmt.Errorf("%w: %s", apperrors.ErrRecordNotFound, photoID))
	}
	rec.Outputs = rec.Outputs.Clone()
	return &rec, nil
}

// Update applies u atomically. UpdatedAt never moves backwards.
func (m *Memory) Update(ctx context.Context, photoID string, u core.RecordUpdate) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryRecord, "memory.update", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[photoID]
	if !ok {
		return apperrors.New(apperrors.CategoryRecord, "memory.update",
			fmt.Errorf("%w: %s", apperrors.ErrRecordNotFound, photoID))
	}
	if !u.UpdatedAt.After(rec.UpdatedAt) {
		u.UpdatedAt = rec.UpdatedAt.Add(time.Microsecond)
	}
	u.Outputs = u.Outputs.Clone()

	rec.Status = u.Status
	rec.Outputs = u.Outputs
	rec.Error = u.Error
	rec.UpdatedAt = u.UpdatedAt
	m.records[photoID] = rec
	m.history[photoID] = append(m.history[photoID], u)
	return nil
}

// History returns the updates applied to photoID, oldest first.
func (m *Memory) History(photoID string) []core.RecordUpdate {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.RecordUpdate, len(m.history[photoID]))
	copy(out, m.history[photoID])
	return out
}
