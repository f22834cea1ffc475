package runtime

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quizient/certlab-backend/internal/config"
	"github.com/quizient/certlab-backend/internal/records"
)

// IdentityMigrator relocates every per-session persisted record from one
// session id to another. It runs when the server issues a session id
// distinct from the client-generated temporary one (or from a previously
// promoted one).
type IdentityMigrator struct {
	repo records.Repository
}

// NewIdentityMigrator creates a migrator over repo.
func NewIdentityMigrator(repo records.Repository) *IdentityMigrator {
	return &IdentityMigrator{repo: repo}
}

// Migrate moves all records under oldID's namespace to newID's and then
// deletes the originals. Each record is written under the new key before
// its old key is deleted, so no interleaved read ever observes a record
// that exists under neither id.
func (m *IdentityMigrator) Migrate(oldID, newID string) error {
	if oldID == newID || oldID == "" {
		return nil
	}

	oldPrefix := config.RecordKey.SessionPrefix(oldID)
	newPrefix := config.RecordKey.SessionPrefix(newID)

	keys, err := m.repo.Keys(oldPrefix)
	if err != nil {
		return fmt.Errorf("enumerate session records: %w", err)
	}

	for _, key := range keys {
		var raw json.RawMessage
		if err := m.repo.Get(key, &raw); err != nil {
			if err == records.ErrNotFound {
				continue
			}
			return fmt.Errorf("read record %s: %w", key, err)
		}

		newKey := newPrefix + strings.TrimPrefix(key, oldPrefix)
		if err := m.repo.Set(newKey, raw); err != nil {
			return fmt.Errorf("write record %s: %w", newKey, err)
		}
		if err := m.repo.Delete(key); err != nil {
			return fmt.Errorf("delete record %s: %w", key, err)
		}
	}

	// The active-session pointer follows the records.
	if err := m.repo.Set(config.RecordKey.CurrentSessionKey(), newID); err != nil {
		return fmt.Errorf("update current session pointer: %w", err)
	}
	return nil
}
