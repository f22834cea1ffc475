package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quizient/certlab-backend/internal/config"
	"github.com/quizient/certlab-backend/internal/model"
	"github.com/quizient/certlab-backend/internal/sessionstore"
	"github.com/rs/zerolog"
)

// Domain Errors
var (
	ErrSessionNotFound  = errors.New("exam session not found or expired")
	ErrSessionSubmitted = errors.New("exam session is already submitted")
	ErrInvalidIndex     = errors.New("question index out of range")
)

// InsufficientQuestionsError reports how many questions the bank can
// actually serve, so the client can offer a count adjustment.
type InsufficientQuestionsError struct {
	Requested int
	Available int
}

func (e *InsufficientQuestionsError) Error() string {
	return fmt.Sprintf("only %d of %d requested questions available", e.Available, e.Requested)
}

// QuestionSource is the question-bank read surface the exam service needs.
type QuestionSource interface {
	CountAvailable(ctx context.Context, examType string, filters map[string]string) (int, error)
	SelectRandom(ctx context.Context, examType string, filters map[string]string, count int) ([]model.Question, error)
	SelectByIDs(ctx context.Context, ids []int) ([]model.Question, error)
	GetByID(ctx context.Context, id int) (*model.Question, error)
}

// ExamService starts, pages, and resumes exam attempts.
type ExamService struct {
	questions QuestionSource
	store     sessionstore.Store
	cfg       *config.Config
	log       zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(questions QuestionSource, store sessionstore.Store, cfg *config.Config, log zerolog.Logger) *ExamService {
	return &ExamService{
		questions: questions,
		store:     store,
		cfg:       cfg,
		log:       log.With().Str("component", "exam_service").Logger(),
	}
}

// checkpointInterval is the section length: a pacing checkpoint lands at
// every multiple of it within the attempt.
const checkpointInterval = 60

// secondsPerQuestion sizes the attempt duration.
const secondsPerQuestion = 90

func (s *ExamService) buildBlueprint(examType string, count int, questions []model.Question) model.ExamBlueprint {
	var checkpoints []int
	for cp := checkpointInterval; cp < count; cp += checkpointInterval {
		checkpoints = append(checkpoints, cp)
	}

	multi := false
	for i := range questions {
		if questions[i].Kind == model.KindMultiSelect {
			multi = true
			break
		}
	}

	return model.ExamBlueprint{
		ExamType:             examType,
		DurationMinutes:      count * secondsPerQuestion / 60,
		TotalQuestions:       count,
		Checkpoints:          checkpoints,
		MultiSelect:          multi,
		PauseCooldownSeconds: int(s.cfg.PauseCooldown.Seconds()),
		PauseDurationSeconds: int(s.cfg.PauseDuration.Seconds()),
	}
}

// Select starts an attempt with the full question set returned up front.
// When fewer questions are available than requested, the error carries
// the available count and no session is created.
func (s *ExamService) Select(ctx context.Context, req *model.SelectExamRequest) (*model.SelectExamResponse, error) {
	var (
		questions []model.Question
		err       error
	)

	if len(req.QuestionIDs) > 0 {
		questions, err = s.questions.SelectByIDs(ctx, req.QuestionIDs)
		if err != nil {
			return nil, fmt.Errorf("select fixed questions: %w", err)
		}
	} else {
		available, err := s.questions.CountAvailable(ctx, req.ExamType, req.Filters)
		if err != nil {
			return nil, fmt.Errorf("count available: %w", err)
		}
		if available < req.Count {
			return nil, &InsufficientQuestionsError{Requested: req.Count, Available: available}
		}
		questions, err = s.questions.SelectRandom(ctx, req.ExamType, req.Filters, req.Count)
		if err != nil {
			return nil, fmt.Errorf("select questions: %w", err)
		}
	}

	session, err := s.createSession(ctx, req.ExamType, questions)
	if err != nil {
		return nil, err
	}

	return &model.SelectExamResponse{
		SessionID: session.ID,
		Total:     len(questions),
		Exam:      session.Blueprint,
		Questions: questions,
	}, nil
}

// StartOnDemand starts an attempt whose questions are fetched one by one.
func (s *ExamService) StartOnDemand(ctx context.Context, req *model.StartOnDemandRequest) (*model.StartOnDemandResponse, error) {
	available, err := s.questions.CountAvailable(ctx, req.ExamType, req.Filters)
	if err != nil {
		return nil, fmt.Errorf("count available: %w", err)
	}
	if available < req.Count {
		return nil, &InsufficientQuestionsError{Requested: req.Count, Available: available}
	}

	questions, err := s.questions.SelectRandom(ctx, req.ExamType, req.Filters, req.Count)
	if err != nil {
		return nil, fmt.Errorf("select questions: %w", err)
	}

	session, err := s.createSession(ctx, req.ExamType, questions)
	if err != nil {
		return nil, err
	}

	return &model.StartOnDemandResponse{
		SessionID: session.ID,
		Total:     len(questions),
		Exam:      session.Blueprint,
	}, nil
}

func (s *ExamService) createSession(ctx context.Context, examType string, questions []model.Question) (*model.ExamSession, error) {
	ids := make([]int, len(questions))
	for i := range questions {
		ids[i] = questions[i].ID
	}

	session := &model.ExamSession{
		ID:          uuid.New().String(),
		Blueprint:   s.buildBlueprint(examType, len(questions), questions),
		QuestionIDs: ids,
		Status:      model.SessionStatusActive,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.store.Put(ctx, session.ID, sessionToRecord(session), s.cfg.SessionTTL); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	s.log.Info().
		Str("session_id", session.ID).
		Str("exam_type", examType).
		Int("questions", len(ids)).
		Msg("Attempt started")
	return session, nil
}

// QuestionAt serves one question by position for on-demand attempts.
func (s *ExamService) QuestionAt(ctx context.Context, sessionID string, index int) (*model.Question, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(session.QuestionIDs) {
		return nil, ErrInvalidIndex
	}
	return s.questions.GetByID(ctx, session.QuestionIDs[index])
}

// Resume rebuilds an attempt from the session store after a restart and
// refreshes its TTL.
func (s *ExamService) Resume(ctx context.Context, sessionID string) (*model.ResumeResponse, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	questions, err := s.questions.SelectByIDs(ctx, session.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("load session questions: %w", err)
	}

	if err := s.store.Extend(ctx, sessionID, s.cfg.SessionTTL); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("TTL extend failed on resume")
	}

	return &model.ResumeResponse{Session: session, Questions: questions}, nil
}

// GetSession loads and decodes the stored session record.
func (s *ExamService) GetSession(ctx context.Context, sessionID string) (*model.ExamSession, error) {
	rec, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sessionstore.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return sessionFromRecord(rec)
}

// UpdateProgress mirrors the candidate's position into the session record
// so resume and the progress stream see fresh numbers.
func (s *ExamService) UpdateProgress(ctx context.Context, sessionID string, currentIndex, elapsedSeconds int) (*model.ExamSession, error) {
	rec, err := s.store.Update(ctx, sessionID, sessionstore.Record{
		"current_index":   currentIndex,
		"elapsed_seconds": elapsedSeconds,
	})
	if err != nil {
		if errors.Is(err, sessionstore.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("update progress: %w", err)
	}
	return sessionFromRecord(rec)
}

// ListSessionIDs enumerates live attempts. Maintenance only.
func (s *ExamService) ListSessionIDs(ctx context.Context) ([]string, error) {
	return s.store.ListIDs(ctx)
}

// sessionToRecord and sessionFromRecord round-trip the session struct
// through the store's generic record shape.
func sessionToRecord(s *model.ExamSession) sessionstore.Record {
	raw, _ := json.Marshal(s)
	var rec sessionstore.Record
	_ = json.Unmarshal(raw, &rec)
	return rec
}

func sessionFromRecord(rec sessionstore.Record) (*model.ExamSession, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode session record: %w", err)
	}
	var session model.ExamSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session record: %w", err)
	}
	return &session, nil
}
