package records

import (
	"path/filepath"
	"sort"
	"testing"
)

func TestMemoryRepositoryRoundTrip(t *testing.T) {
	repo := NewMemoryRepository()

	type progress struct {
		Index   int `json:"index"`
		Elapsed int `json:"elapsed"`
	}

	if err := repo.Set("session:s1:progress", progress{Index: 3, Elapsed: 120}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got progress
	if err := repo.Get("session:s1:progress", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Index != 3 || got.Elapsed != 120 {
		t.Errorf("got %+v, want {3 120}", got)
	}

	var missing progress
	if err := repo.Get("session:s1:missing", &missing); err != ErrNotFound {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}
}

func TestMemoryRepositoryKeysAndDelete(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Set("session:s1:answers", 1)
	repo.Set("session:s1:progress", 2)
	repo.Set("session:s2:answers", 3)

	keys, err := repo.Keys("session:s1:")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "session:s1:answers" || keys[1] != "session:s1:progress" {
		t.Errorf("Keys = %v", keys)
	}

	if err := repo.Delete("session:s1:answers"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete("session:s1:answers"); err != nil {
		t.Fatalf("Delete of missing key should be a no-op, got %v", err)
	}

	var v int
	if err := repo.Get("session:s1:answers", &v); err != ErrNotFound {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestFileRepositorySurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")

	repo, err := NewFileRepository(path)
	if err != nil {
		t.Fatalf("NewFileRepository: %v", err)
	}
	if err := repo.Set("session:current", "s1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := repo.Set("session:s1:progress", map[string]int{"index": 5}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// A new instance over the same file is a reload.
	reloaded, err := NewFileRepository(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	var sid string
	if err := reloaded.Get("session:current", &sid); err != nil || sid != "s1" {
		t.Errorf("session pointer after reload = %q, %v", sid, err)
	}

	var prog map[string]int
	if err := reloaded.Get("session:s1:progress", &prog); err != nil {
		t.Fatalf("Get after reload: %v", err)
	}
	if prog["index"] != 5 {
		t.Errorf("index = %d, want 5", prog["index"])
	}
}

func TestFileRepositoryDeletePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")

	repo, _ := NewFileRepository(path)
	repo.Set("k", "v")
	repo.Delete("k")

	reloaded, err := NewFileRepository(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	var v string
	if err := reloaded.Get("k", &v); err != ErrNotFound {
		t.Errorf("deleted key resurfaced after reload: %v", err)
	}
}
