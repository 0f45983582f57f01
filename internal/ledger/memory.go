package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/nutrilog/nutrilog/constants"
)

// MemoryLedger is an in-memory ledger for tests and single-process dev runs.
// Entries are lost on restart.
type MemoryLedger struct {
	mu        sync.Mutex
	records   map[string]*Record
	retention time.Duration
	closed    bool

	now func() time.Time
}

func NewMemoryLedger(retention time.Duration) *MemoryLedger {
	return &MemoryLedger{
		records:   make(map[string]*Record),
		retention: retention,
		now:       time.Now,
	}
}

func (m *MemoryLedger) Begin(_ context.Context, key string) (BeginOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return AlreadyCompleted, ErrClosed
	}

	now := m.now()
	if rec, ok := m.records[key]; ok && now.Before(rec.ExpiresAt) {
		if rec.Status == constants.LedgerStatusCompleted {
			return AlreadyCompleted, nil
		}
		return AlreadyInProgress, nil
	}

	m.records[key] = &Record{
		Key:       key,
		Status:    constants.LedgerStatusProcessing,
		ExpiresAt: now.Add(m.retention),
	}
	return Proceed, nil
}

func (m *MemoryLedger) Complete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if rec, ok := m.records[key]; ok {
		rec.Status = constants.LedgerStatusCompleted
	}
	return nil
}

func (m *MemoryLedger) CleanupExpired(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	count := 0
	now := m.now()
	for key, rec := range m.records {
		if !now.Before(rec.ExpiresAt) {
			delete(m.records, key)
			count++
		}
	}
	return count, nil
}

func (m *MemoryLedger) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.records = nil
	return nil
}
