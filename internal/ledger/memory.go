package ledger

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Ledger for tests and dry runs. All mutations
// happen under one mutex, which gives Advance its atomicity.
type Memory struct {
	mu     sync.Mutex
	runs   map[string]*Checkpoint
	bySrc  map[string][]string // creation order per source
	now    func() time.Time
	serial int
}

func NewMemory() *Memory {
	return &Memory{
		runs:  make(map[string]*Checkpoint),
		bySrc: make(map[string][]string),
		now:   time.Now,
	}
}

func (m *Memory) Create(_ context.Context, runID, source string) (Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.bySrc[source] {
		if m.runs[id].Status == StatusInProgress {
			return Checkpoint{}, ErrConflict
		}
	}

	now := m.now()
	cp := &Checkpoint{
		RunID:     runID,
		Source:    source,
		Status:    StatusInProgress,
		StartedAt: now,
		UpdatedAt: now,
	}
	m.runs[runID] = cp
	m.bySrc[source] = append(m.bySrc[source], runID)
	return *cp, nil
}

func (m *Memory) Advance(_ context.Context, runID, cursor string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp, ok := m.runs[runID]
	if !ok || cp.Status != StatusInProgress {
		return ErrNotFound
	}
	cp.Cursor = cursor
	cp.Processed += delta
	cp.UpdatedAt = m.now()
	return nil
}

func (m *Memory) Complete(_ context.Context, runID string) error {
	return m.finish(runID, StatusCompleted, "")
}

func (m *Memory) Fail(_ context.Context, runID, reason string) error {
	return m.finish(runID, StatusFailed, reason)
}

func (m *Memory) finish(runID string, status Status, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp, ok := m.runs[runID]
	if !ok || cp.Status != StatusInProgress {
		return ErrNotFound
	}
	cp.Status = status
	cp.Reason = reason
	cp.UpdatedAt = m.now()
	return nil
}

func (m *Memory) Latest(_ context.Context, source string) (Checkpoint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.bySrc[source]
	if len(ids) == 0 {
		return Checkpoint{}, false, nil
	}
	return *m.runs[ids[len(ids)-1]], true, nil
}
