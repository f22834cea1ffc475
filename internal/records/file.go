package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileRepository persists records to a single JSON file, flushed on every
// write. It plays the role browser local storage plays for the web client:
// a reload (new process) rehydrates from the same file.
type FileRepository struct {
	mu   sync.Mutex
	path string
	data map[string]json.RawMessage
}

// NewFileRepository loads (or creates) the record file at path.
func NewFileRepository(path string) (*FileRepository, error) {
	r := &FileRepository{
		path: path,
		data: make(map[string]json.RawMessage),
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return r, nil
		}
		return nil, fmt.Errorf("read record file: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &r.data); err != nil {
			return nil, fmt.Errorf("parse record file: %w", err)
		}
	}
	return r, nil
}

func (r *FileRepository) Get(key string, dst any) error {
	r.mu.Lock()
	raw, ok := r.data[key]
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(raw, dst)
}

func (r *FileRepository) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[key] = raw
	return r.flush()
}

func (r *FileRepository) Delete(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[key]; !ok {
		return nil
	}
	delete(r.data, key)
	return r.flush()
}

func (r *FileRepository) Keys(prefix string) ([]string, error) {
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

// flush writes the file atomically via rename. Caller must hold the mutex.
func (r *FileRepository) flush() error {
	raw, err := json.Marshal(r.data)
	if err != nil {
		return err
	}

	tmp := r.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create record dir: %w", err)
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write record file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace record file: %w", err)
	}
	return nil
}
