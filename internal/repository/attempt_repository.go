package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizient/certlab-backend/internal/model"
)

// AttemptRepository persists attempt artifacts: partial answer snapshots
// and final graded results.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// UpsertAnswers writes one row per answer — creates or updates without
// locking, so checkpoint snapshots and the final submission can land in
// any order.
func (r *AttemptRepository) UpsertAnswers(ctx context.Context, sessionID string, answers []model.AnswerRecord, partial bool) error {
	for _, a := range answers {
		payload, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshal answer for question %d: %w", a.QuestionID, err)
		}
		_, err = r.pool.Exec(ctx,
			`INSERT INTO attempt_answers (session_id, question_id, payload, partial)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (session_id, question_id) DO UPDATE
			 SET payload = EXCLUDED.payload, partial = EXCLUDED.partial, updated_at = NOW()`,
			sessionID, a.QuestionID, payload, partial,
		)
		if err != nil {
			return fmt.Errorf("upsert answer for question %d: %w", a.QuestionID, err)
		}
	}
	return nil
}

// SaveResult records the graded outcome of a final submission.
func (r *AttemptRepository) SaveResult(ctx context.Context, sessionID string, result *model.SubmitResponse) error {
	details, err := json.Marshal(result.Details)
	if err != nil {
		return fmt.Errorf("marshal result details: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO attempt_results (session_id, total_correct, total_questions, details)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id) DO UPDATE
		 SET total_correct = EXCLUDED.total_correct,
		     total_questions = EXCLUDED.total_questions,
		     details = EXCLUDED.details,
		     updated_at = NOW()`,
		sessionID, result.TotalCorrect, result.TotalQuestions, details,
	)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}
