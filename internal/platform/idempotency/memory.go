package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. It backs local runs without Redis and tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryEntry
}

type memoryEntry struct {
	record    Record
	expiresAt time.Time
}

// NewMemoryStore constructs an empty memory-backed idempotency store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Reserve(_ context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := hashKey(key)
	entry, ok := s.records[id]
	if !ok || !now.Before(entry.expiresAt) {
		record := Record{Fingerprint: fingerprint, Status: StatusPending, CreatedAt: now.UTC()}
		s.records[id] = memoryEntry{record: record, expiresAt: now.Add(ttlOrDefault(ttl))}
		return Reservation{State: ReservationStateNew, Record: record}, nil
	}
	return reservationFor(entry.record, fingerprint)
}

func (s *MemoryStore) SaveResponse(_ context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := hashKey(key)
	if entry, ok := s.records[id]; ok && entry.record.Fingerprint != fingerprint {
		return ErrFingerprintMismatch
	}
	s.records[id] = memoryEntry{record: completedRecord(fingerprint, resp, now), expiresAt: now.Add(ttlOrDefault(ttl))}
	return nil
}

func (s *MemoryStore) Release(_ context.Context, key, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := hashKey(key)
	if entry, ok := s.records[id]; ok && entry.record.Fingerprint == fingerprint {
		delete(s.records, id)
	}
	return nil
}

func reservationFor(record Record, fingerprint string) (Reservation, error) {
	if record.Fingerprint != fingerprint {
		return Reservation{}, ErrFingerprintMismatch
	}
	if record.Status == StatusCompleted {
		return Reservation{State: ReservationStateCompleted, Record: record}, nil
	}
	return Reservation{State: ReservationStatePending, Record: record}, nil
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
