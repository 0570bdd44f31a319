// Package history records metadata about merge runs.
//
// Only run metadata is stored (who, when, which files, how many rows, the
// outcome). Merged record data never leaves the request that produced it.
package history

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status of a finished run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one merge invocation.
type Run struct {
	ID        uuid.UUID     `json:"id"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"-"`
	Origin    string        `json:"origin"`
	Profile   string        `json:"profile"`
	KeyColumn string        `json:"keyColumn"`
	Sources   []string      `json:"sources"`
	Bytes     int64         `json:"bytes"`
	RowsRead  int           `json:"rowsRead"`
	RowsKept  int           `json:"rowsAccepted"`
	RowsOut   int           `json:"rowsOut"`
	Columns   int           `json:"columns"`
	Status    Status        `json:"status"`
	Error     string        `json:"error,omitempty"`
	ErrorCode string        `json:"errorCode,omitempty"`
	IPAddress string        `json:"ipAddress,omitempty"`
	UserAgent string        `json:"userAgent,omitempty"`
}

// MarshalJSON reports Duration in whole milliseconds.
func (r Run) MarshalJSON() ([]byte, error) {
	type plain Run
	return json.Marshal(struct {
		plain
		DurationMs int64 `json:"durationMs"`
	}{plain(r), r.Duration.Milliseconds()})
}

// Store persists run metadata.
type Store interface {
	Record(ctx context.Context, run Run) error
	Recent(ctx context.Context, limit int) ([]Run, error)
	// Prune deletes runs started before the cutoff and reports how many
	// were removed.
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close()
}

// MemoryStore keeps the most recent runs in a fixed-size ring.
type MemoryStore struct {
	mu   sync.RWMutex
	runs []Run
	next int
	full bool
}

// NewMemoryStore returns a store holding at most size runs.
func NewMemoryStore(size int) *MemoryStore {
	if size <= 0 {
		size = 1
	}
	return &MemoryStore{runs: make([]Run, size)}
}

// Record implements Store.
func (m *MemoryStore) Record(_ context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs[m.next] = run
	m.next = (m.next + 1) % len(m.runs)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

// Recent implements Store, newest first.
func (m *MemoryStore) Recent(_ context.Context, limit int) ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := m.next
	if m.full {
		count = len(m.runs)
	}
	if limit <= 0 || limit > count {
		limit = count
	}

	out := make([]Run, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (m.next - 1 - i + len(m.runs)) % len(m.runs)
		out = append(out, m.runs[idx])
	}
	return out, nil
}

// Prune implements Store.
func (m *MemoryStore) Prune(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := m.next
	start := 0
	if m.full {
		count = len(m.runs)
		start = m.next
	}

	kept := make([]Run, 0, count)
	for i := 0; i < count; i++ {
		run := m.runs[(start+i)%len(m.runs)]
		if !run.StartedAt.Before(before) {
			kept = append(kept, run)
		}
	}

	clear(m.runs)
	copy(m.runs, kept)
	m.next = len(kept) % len(m.runs)
	m.full = len(kept) == len(m.runs)
	return int64(count - len(kept)), nil
}

// Close implements Store.
func (m *MemoryStore) Close() {}
