package sessionstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore is the in-process fallback. Same TTL semantics as the Redis
// store, but records vanish with the process and are invisible to other
// server instances.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	// now is swappable so TTL behavior is testable without sleeping.
	now func() time.Time
}

type memoryEntry struct {
	data      Record
	expiresAt time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// StartJanitor evicts expired entries every interval until ctx is done.
// The store also evicts lazily on read, so the janitor only bounds memory.
func (s *MemoryStore) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.evictExpired()
			}
		}
	}()
}

func (s *MemoryStore) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
		}
	}
}

func (s *MemoryStore) Put(_ context.Context, id string, data Record, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stamp := now.UTC().Format(time.RFC3339)
	copied := copyRecord(data)
	if _, ok := copied["created_at"]; !ok {
		copied["created_at"] = stamp
	}
	copied["updated_at"] = stamp

	s.entries[id] = &memoryEntry{
		data:      copied,
		expiresAt: now.Add(ttl),
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.live(id)
	if err != nil {
		return nil, err
	}
	return copyRecord(e.data), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, patch Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.live(id)
	if err != nil {
		return nil, err
	}

	// Merge in place: remaining TTL is untouched.
	for k, v := range copyRecord(patch) {
		e.data[k] = v
	}
	e.data["updated_at"] = s.now().UTC().Format(time.RFC3339)

	return copyRecord(e.data), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

func (s *MemoryStore) Extend(_ context.Context, id string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.live(id)
	if err != nil {
		return err
	}
	e.expiresAt = s.now().Add(ttl)
	return nil
}

func (s *MemoryStore) ListIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	ids := make([]string, 0, len(s.entries))
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// live returns the entry for id, evicting it first if expired.
// Caller must hold the mutex.
func (s *MemoryStore) live(id string) (*memoryEntry, error) {
	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, id)
		return nil, ErrNotFound
	}
	return e, nil
}

// copyRecord round-trips through JSON so callers and the store never
// share mutable references, and so stored values match what the Redis
// backend would return after unmarshal.
func copyRecord(in Record) Record {
	raw, err := json.Marshal(in)
	if err != nil {
		// Records come from internal structs; a marshal failure here is a
		// programming error surfaced at the next read.
		return Record{}
	}
	var out Record
	_ = json.Unmarshal(raw, &out)
	if out == nil {
		out = Record{}
	}
	return out
}
