// Package records is the client-side persisted record repository: every
// piece of attempt state that must survive a page reload (answers,
// progress, shuffled option orders, the fetched question set, checkpoint
// flags) is written here under a session-namespaced key. The mechanism is
// swappable — in-memory for tests, a JSON file standing in for browser
// local storage — without the runtime knowing which one it talks to.
package records

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("records: key not found")

// Repository is a typed get/set/delete surface over namespaced keys.
type Repository interface {
	// Get unmarshals the value stored under key into dst.
	Get(key string, dst any) error
	// Set marshals v and stores it under key.
	Set(key string, v any) error
	// Delete removes key. Missing keys are not an error.
	Delete(key string) error
	// Keys returns every stored key with the given prefix.
	Keys(prefix string) ([]string, error)
}

// MemoryRepository keeps records in a process-local map.
type MemoryRepository struct {
	mu   sync.Mutex
	data map[string]json.RawMessage
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{data: make(map[string]json.RawMessage)}
}

func (r *MemoryRepository) Get(key string, dst any) error {
	r.mu.Lock()
	raw, ok := r.data[key]
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(raw, dst)
}

func (r *MemoryRepository) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.data[key] = raw
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) Delete(key string) error {
	r.mu.Lock()
	delete(r.data, key)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) Keys(prefix string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var keys []string
	for k := range r.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
