package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quizient/certlab-backend/internal/model"
	"github.com/quizient/certlab-backend/internal/sessionstore"
	"github.com/rs/zerolog"
)

// ErrPauseCooldown is returned while a new pause is still on cooldown.
var ErrPauseCooldown = errors.New("pause is on cooldown")

// PauseService owns the pause clock of an attempt.
type PauseService struct {
	exams *ExamService
	store sessionstore.Store
	log   zerolog.Logger
	// now is swappable for tests.
	now func() time.Time
}

// NewPauseService creates a new PauseService.
func NewPauseService(exams *ExamService, store sessionstore.Store, log zerolog.Logger) *PauseService {
	return &PauseService{
		exams: exams,
		store: store,
		log:   log.With().Str("component", "pause_service").Logger(),
		now:   time.Now,
	}
}

// Start begins a pause, enforcing the blueprint's cooldown between
// consecutive pauses of the same attempt.
func (s *PauseService) Start(ctx context.Context, sessionID string) (*model.PauseStatusResponse, error) {
	session, err := s.exams.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == model.SessionStatusSubmitted {
		return nil, ErrSessionSubmitted
	}

	now := s.now().UTC()
	cooldown := time.Duration(session.Blueprint.PauseCooldownSeconds) * time.Second
	if session.LastPauseAt != nil {
		if readyAt := session.LastPauseAt.Add(cooldown); now.Before(readyAt) {
			return nil, fmt.Errorf("%w: ready in %s", ErrPauseCooldown, readyAt.Sub(now).Round(time.Second))
		}
	}

	until := now.Add(time.Duration(session.Blueprint.PauseDurationSeconds) * time.Second)
	if _, err := s.store.Update(ctx, sessionID, sessionstore.Record{
		"paused_until":  until.Format(time.RFC3339),
		"last_pause_at": now.Format(time.RFC3339),
	}); err != nil {
		return nil, fmt.Errorf("persist pause: %w", err)
	}

	s.log.Info().Str("session_id", sessionID).Time("until", until).Msg("Attempt paused")
	return s.status(session.Blueprint, &until, &now), nil
}

// Skip ends an active pause early. The cooldown clock keeps running from
// the pause's start.
func (s *PauseService) Skip(ctx context.Context, sessionID string) (*model.PauseStatusResponse, error) {
	session, err := s.exams.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.Update(ctx, sessionID, sessionstore.Record{
		"paused_until": nil,
	}); err != nil {
		return nil, fmt.Errorf("persist pause skip: %w", err)
	}

	return s.status(session.Blueprint, nil, session.LastPauseAt), nil
}

// Status reports the current pause clock.
func (s *PauseService) Status(ctx context.Context, sessionID string) (*model.PauseStatusResponse, error) {
	session, err := s.exams.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.status(session.Blueprint, session.PausedUntil, session.LastPauseAt), nil
}

func (s *PauseService) status(bp model.ExamBlueprint, until, lastPause *time.Time) *model.PauseStatusResponse {
	now := s.now().UTC()
	resp := &model.PauseStatusResponse{}

	if until != nil && now.Before(*until) {
		resp.Paused = true
		resp.PausedUntil = until.UTC().Format(time.RFC3339)
	}

	if lastPause != nil {
		cooldown := time.Duration(bp.PauseCooldownSeconds) * time.Second
		if readyAt := lastPause.Add(cooldown); now.Before(readyAt) {
			resp.CooldownRemainingSeconds = int(readyAt.Sub(now).Seconds())
		}
	}
	return resp
}
