package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quizient/certlab-backend/internal/config"
	"github.com/quizient/certlab-backend/internal/model"
	"github.com/quizient/certlab-backend/internal/repository"
	"github.com/quizient/certlab-backend/internal/sessionstore"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// AnswerKeySource is the grading-side question-bank surface.
type AnswerKeySource interface {
	AnswerKeys(ctx context.Context, ids []int) (map[int]repository.AnswerKey, error)
}

// AttemptSink persists attempt artifacts durably.
type AttemptSink interface {
	UpsertAnswers(ctx context.Context, sessionID string, answers []model.AnswerRecord, partial bool) error
	SaveResult(ctx context.Context, sessionID string, result *model.SubmitResponse) error
}

// GradingService grades submissions and verifies single answers.
type GradingService struct {
	keys     AnswerKeySource
	attempts AttemptSink
	exams    *ExamService
	store    sessionstore.Store
	// rdb, when present, carries partial snapshots to the persistence
	// worker instead of blocking the request on Postgres.
	rdb *redis.Client
	log zerolog.Logger
}

// NewGradingService creates a new GradingService. rdb and attempts may be
// nil: partial persistence then degrades to best-effort synchronous or
// no-op respectively.
func NewGradingService(keys AnswerKeySource, attempts AttemptSink, exams *ExamService, store sessionstore.Store, rdb *redis.Client, log zerolog.Logger) *GradingService {
	return &GradingService{
		keys:     keys,
		attempts: attempts,
		exams:    exams,
		store:    store,
		rdb:      rdb,
		log:      log.With().Str("component", "grading_service").Logger(),
	}
}

// partialPayload is the queue message consumed by the persistence worker.
type partialPayload struct {
	SessionID string               `json:"session_id"`
	Answers   []model.AnswerRecord `json:"answers"`
}

// Submit handles both checkpoint snapshots and the final submission.
func (s *GradingService) Submit(ctx context.Context, req *model.SubmitRequest) (*model.SubmitResponse, error) {
	session, err := s.exams.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == model.SessionStatusSubmitted {
		return nil, ErrSessionSubmitted
	}

	if req.Partial {
		s.persistPartial(ctx, req)
		// Partial submissions are acknowledged, never graded.
		return &model.SubmitResponse{
			TotalQuestions: len(session.QuestionIDs),
			Details:        []model.SubmitDetail{},
		}, nil
	}

	return s.gradeFinal(ctx, session, req)
}

// persistPartial is fire-and-forget: a queue push when Redis is up, a
// direct upsert otherwise. Failures are logged and never surface to the
// candidate.
func (s *GradingService) persistPartial(ctx context.Context, req *model.SubmitRequest) {
	if s.rdb != nil {
		raw, err := json.Marshal(partialPayload{SessionID: req.SessionID, Answers: req.Answers})
		if err == nil {
			if err := s.rdb.RPush(ctx, config.WorkerKey.PersistPartialQueue, raw).Err(); err == nil {
				return
			}
			s.log.Warn().Str("session_id", req.SessionID).Msg("Partial queue push failed, falling back to direct write")
		}
	}
	if s.attempts == nil {
		return
	}
	if err := s.attempts.UpsertAnswers(ctx, req.SessionID, req.Answers, true); err != nil {
		s.log.Warn().Err(err).Str("session_id", req.SessionID).Msg("Partial answer persistence failed")
	}
}

func (s *GradingService) gradeFinal(ctx context.Context, session *model.ExamSession, req *model.SubmitRequest) (*model.SubmitResponse, error) {
	keys, err := s.keys.AnswerKeys(ctx, session.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("load answer keys: %w", err)
	}

	byQuestion := make(map[int]*model.AnswerRecord, len(req.Answers))
	for i := range req.Answers {
		byQuestion[req.Answers[i].QuestionID] = &req.Answers[i]
	}

	resp := &model.SubmitResponse{
		TotalQuestions: len(session.QuestionIDs),
		Details:        make([]model.SubmitDetail, 0, len(session.QuestionIDs)),
	}

	for _, qid := range session.QuestionIDs {
		key, ok := keys[qid]
		if !ok {
			return nil, fmt.Errorf("no answer key for question %d", qid)
		}

		detail := model.SubmitDetail{QuestionID: qid}
		if rec, ok := byQuestion[qid]; ok && rec.Answered() {
			detail.Answered = true
			detail.Correct = grade(&key, rec)
		}
		if detail.Correct {
			resp.TotalCorrect++
		}
		resp.Details = append(resp.Details, detail)
	}

	if s.attempts != nil {
		if err := s.attempts.UpsertAnswers(ctx, req.SessionID, req.Answers, false); err != nil {
			s.log.Error().Err(err).Str("session_id", req.SessionID).Msg("Final answer persistence failed")
		}
		if err := s.attempts.SaveResult(ctx, req.SessionID, resp); err != nil {
			s.log.Error().Err(err).Str("session_id", req.SessionID).Msg("Result persistence failed")
		}
	}

	// The attempt ends here; the record stays until TTL for inspection.
	if _, err := s.store.Update(ctx, req.SessionID, sessionstore.Record{
		"status": string(model.SessionStatusSubmitted),
	}); err != nil {
		s.log.Warn().Err(err).Str("session_id", req.SessionID).Msg("Session close failed")
	}

	s.log.Info().
		Str("session_id", req.SessionID).
		Int("total_correct", resp.TotalCorrect).
		Int("total_questions", resp.TotalQuestions).
		Msg("Attempt graded")
	return resp, nil
}

// CheckAnswer verifies one answer out of band and reveals the key and
// explanation. It never affects grading.
func (s *GradingService) CheckAnswer(ctx context.Context, req *model.CheckAnswerRequest) (*model.CheckAnswerResponse, error) {
	if _, err := s.exams.GetSession(ctx, req.SessionID); err != nil {
		return nil, err
	}

	qid := req.Answer.QuestionID
	keys, err := s.keys.AnswerKeys(ctx, []int{qid})
	if err != nil {
		return nil, fmt.Errorf("load answer key: %w", err)
	}
	key, ok := keys[qid]
	if !ok {
		return nil, fmt.Errorf("no answer key for question %d", qid)
	}

	return &model.CheckAnswerResponse{
		QuestionID:       qid,
		Correct:          grade(&key, &req.Answer),
		CorrectOptionIDs: key.OptionIDs,
		Explanation:      key.Explanation,
	}, nil
}

// grade compares one canonical answer against its key.
func grade(key *repository.AnswerKey, rec *model.AnswerRecord) bool {
	switch key.Kind {
	case model.KindSingleSelect:
		return len(key.OptionIDs) == 1 && rec.OptionID == key.OptionIDs[0]

	case model.KindMultiSelect:
		if len(rec.OptionIDs) != len(key.OptionIDs) {
			return false
		}
		want := make(map[int]bool, len(key.OptionIDs))
		for _, id := range key.OptionIDs {
			want[id] = true
		}
		for _, id := range rec.OptionIDs {
			if !want[id] {
				return false
			}
		}
		return true

	case model.KindPairedMatching:
		if len(rec.Pairs) != len(key.Pairs) {
			return false
		}
		for left, right := range key.Pairs {
			if rec.Pairs[left] != right {
				return false
			}
		}
		return true
	}
	return false
}
