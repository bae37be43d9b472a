package checkout

import (
	"context"
	"sync"
	"time"

	"cache2k25/internal/dto"
)

// DefaultPendingTTL bounds how long a draft waits for its payment to settle.
const DefaultPendingTTL = 15 * time.Minute

// PendingStore keeps the registration draft of an in-flight payment, keyed by
// merchant transaction id. Expired records behave as missing.
type PendingStore interface {
	Put(ctx context.Context, merchantTransactionID string, draft dto.RegisterRequest, ttl time.Duration) error
	Get(ctx context.Context, merchantTransactionID string) (dto.RegisterRequest, error)
	Delete(ctx context.Context, merchantTransactionID string) error
}

type pendingRecord struct {
	draft     dto.RegisterRequest
	expiresAt time.Time
}

type MemoryStore struct {
	mu      sync.Mutex
	records map[string]pendingRecord
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]pendingRecord), now: time.Now}
}

func (m *MemoryStore) Put(_ context.Context, txnID string, draft dto.RegisterRequest, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[txnID] = pendingRecord{draft: draft, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, txnID string) (dto.RegisterRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[txnID]
	if !ok {
		return dto.RegisterRequest{}, ErrPendingNotFound
	}
	if !m.now().Before(rec.expiresAt) {
		delete(m.records, txnID)
		return dto.RegisterRequest{}, ErrPendingNotFound
	}
	return rec.draft, nil
}

func (m *MemoryStore) Delete(_ context.Context, txnID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, txnID)
	return nil
}

// Sweep drops expired records and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for id, rec := range m.records {
		if !now.Before(rec.expiresAt) {
			delete(m.records, id)
			n++
		}
	}
	return n
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
