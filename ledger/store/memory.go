// Package store provides RecordStore implementations.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/lypto/reward-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	records map[ledger.Address]*memRecord
}

type memRecord struct {
	kind      string
	value     []byte
	createdAt time.Time
	updatedAt time.Time
}

func NewMemory() *Memory {
	return &Memory{records: make(map[ledger.Address]*memRecord)}
}

// CreateIfAbsent materializes a record at address. The map write under the
// lock is the whole check-and-insert, so two concurrent creates on the same
// address cannot both succeed.
func (m *Memory) CreateIfAbsent(_ context.Context, address ledger.Address, kind string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[address]; ok {
		return ledger.ErrAlreadyExists
	}

	now := time.Now().UTC()
	m.records[address] = &memRecord{
		kind:      kind,
		value:     cloneBytes(value),
		createdAt: now,
		updatedAt: now,
	}
	return nil
}

// Mutate applies fn to the value at address under the write lock.
func (m *Memory) Mutate(_ context.Context, address ledger.Address, fn ledger.MutateFunc) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[address]
	if !ok {
		return nil, ledger.ErrNotFound
	}

	next, err := fn(cloneBytes(rec.value))
	if err != nil {
		return nil, err
	}
	rec.value = cloneBytes(next)
	rec.updatedAt = time.Now().UTC()
	return cloneBytes(next), nil
}

func (m *Memory) Read(_ context.Context, address ledger.Address) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[address]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return cloneBytes(rec.value), nil
}

func (m *Memory) ListByKind(_ context.Context, kind string) ([]ledger.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Record
	for addr, rec := range m.records {
		if rec.kind != kind {
			continue
		}
		result = append(result, ledger.Record{
			Address:   addr,
			Kind:      rec.kind,
			Value:     cloneBytes(rec.value),
			CreatedAt: rec.createdAt,
			UpdatedAt: rec.updatedAt,
		})
	}
	return result, nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Compile-time check that Memory implements ledger.RecordStore
var _ ledger.RecordStore = (*Memory)(nil)
