// Package sessionstore persists exam attempt records as JSON blobs
// addressed by session id, with TTL-based expiry. A shared Redis store is
// preferred so any server instance can serve any attempt; when Redis is
// unreachable the store degrades to an in-process map with identical TTL
// semantics.
package sessionstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultTTL is applied when a caller passes a non-positive TTL.
const DefaultTTL = 6 * time.Hour

// ErrNotFound is returned when no record exists for the session id.
var ErrNotFound = errors.New("sessionstore: record not found")

// Record is one attempt's stored fields. The store stamps created_at on
// Put and refreshes updated_at on every write.
type Record map[string]any

// Store is the session store contract. Updates are last-writer-wins;
// concurrent writers for one session id may lose fields, which is
// acceptable for a single-candidate workload.
type Store interface {
	// Put writes a full record under id with the given TTL.
	Put(ctx context.Context, id string, data Record, ttl time.Duration) error
	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, id string) (Record, error)
	// Update merges patch into the existing record, preserving the
	// remaining TTL, and returns the merged record. ErrNotFound if the
	// record is missing or expired.
	Update(ctx context.Context, id string, patch Record) (Record, error)
	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, id string) error
	// Extend resets the record's TTL.
	Extend(ctx context.Context, id string, ttl time.Duration) error
	// ListIDs enumerates live session ids. Maintenance only.
	ListIDs(ctx context.Context) ([]string, error)
}

// New returns a Redis-backed store when rdb is reachable, otherwise the
// in-process fallback. The degradation is logged: attempts on a fallback
// store do not survive a process restart and are invisible to other
// instances.
func New(ctx context.Context, rdb *redis.Client, log zerolog.Logger) Store {
	if rdb != nil {
		if err := rdb.Ping(ctx).Err(); err == nil {
			return NewRedisStore(rdb)
		} else {
			log.Warn().Err(err).Msg("Redis unreachable, session store degraded to in-process memory")
		}
	} else {
		log.Warn().Msg("No Redis client, session store degraded to in-process memory")
	}
	return NewMemoryStore()
}
