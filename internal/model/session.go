package model

import (
	"time"
)

// SessionStatus enumerates exam attempt states.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "ACTIVE"
	SessionStatusSubmitted SessionStatus = "SUBMITTED"
)

// ExamSession is the server-side record of one exam attempt, stored as a
// JSON blob in the session store and addressed by session id. The server
// process is its exclusive writer.
type ExamSession struct {
	ID          string        `json:"id"`
	Blueprint   ExamBlueprint `json:"blueprint"`
	QuestionIDs []int         `json:"question_ids"`
	// CurrentIndex and ElapsedSeconds are advisory progress mirrors used
	// by resume and the progress stream.
	CurrentIndex   int `json:"current_index"`
	ElapsedSeconds int `json:"elapsed_seconds"`
	// Barrier is the lowest index the candidate may navigate back to.
	Barrier     int           `json:"barrier"`
	PausedUntil *time.Time    `json:"paused_until,omitempty"`
	LastPauseAt *time.Time    `json:"last_pause_at,omitempty"`
	Status      SessionStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Remaining returns the remaining attempt time given the blueprint
// duration and the recorded elapsed seconds.
func (s *ExamSession) Remaining() time.Duration {
	total := time.Duration(s.Blueprint.DurationMinutes) * time.Minute
	remaining := total - time.Duration(s.ElapsedSeconds)*time.Second
	if remaining < 0 {
		return 0
	}
	return remaining
}
