package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/quizient/certlab-backend/internal/config"
	"github.com/quizient/certlab-backend/internal/model"
	"github.com/quizient/certlab-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// PartialWorker consumes the partial-submission queue and UPSERTs
// checkpoint answer snapshots to PostgreSQL. Grading never reads these
// rows; they exist so an abandoned attempt leaves a durable trail.
type PartialWorker struct {
	attempts *repository.AttemptRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewPartialWorker creates a new PartialWorker.
func NewPartialWorker(attempts *repository.AttemptRepository, rdb *redis.Client, log zerolog.Logger) *PartialWorker {
	return &PartialWorker{
		attempts: attempts,
		rdb:      rdb,
		log:      log.With().Str("component", "partial_worker").Logger(),
	}
}

type snapshotPayload struct {
	SessionID string               `json:"session_id"`
	Answers   []model.AnswerRecord `json:"answers"`
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *PartialWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *PartialWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or the 1s timeout elapses.
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistPartialQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var payload snapshotPayload
	if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}

	if err := w.attempts.UpsertAnswers(ctx, payload.SessionID, payload.Answers, true); err != nil {
		w.log.Error().Err(err).
			Str("session_id", payload.SessionID).
			Msg("Persist error, retrying in 5s")
		// Push back to the queue for retry.
		w.rdb.RPush(ctx, config.WorkerKey.PersistPartialQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

// drain processes all remaining items in the queue before shutdown.
func (w *PartialWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistPartialQueue).Result()
		if err != nil {
			break
		}

		var payload snapshotPayload
		if err := json.Unmarshal([]byte(result), &payload); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.attempts.UpsertAnswers(ctx, payload.SessionID, payload.Answers, true); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistPartialQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
