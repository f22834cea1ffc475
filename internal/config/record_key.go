package config

import (
	"fmt"
)

// RecordKeyStruct builds the per-session client-persisted record names.
// Every record a candidate's attempt leaves behind is namespaced by the
// session id so the identity migrator can relocate them as a unit.
type RecordKeyStruct struct{}

func NewRecordKeyStruct() *RecordKeyStruct {
	return &RecordKeyStruct{}
}

// AnswersKey returns the record key for a session's captured answers.
func (r *RecordKeyStruct) AnswersKey(sessionID string) string {
	return fmt.Sprintf("session:%s:answers", sessionID)
}

// ProgressKey returns the record key for a session's progress
// (current index, elapsed time, back-navigation barrier).
func (r *RecordKeyStruct) ProgressKey(sessionID string) string {
	return fmt.Sprintf("session:%s:progress", sessionID)
}

// ShuffleKey returns the record key for a session's frozen option orders.
func (r *RecordKeyStruct) ShuffleKey(sessionID string) string {
	return fmt.Sprintf("session:%s:shuffled_options", sessionID)
}

// QuestionSetKey returns the record key for a session's fetched question set.
func (r *RecordKeyStruct) QuestionSetKey(sessionID string) string {
	return fmt.Sprintf("session:%s:questions", sessionID)
}

// CheckpointFlagKey returns the record key for the "already partially
// submitted" marker of one checkpoint index.
func (r *RecordKeyStruct) CheckpointFlagKey(sessionID string, index int) string {
	return fmt.Sprintf("session:%s:checkpoint:%d:submitted", sessionID, index)
}

// PauseOverrideKey returns the record key for the per-session flag that
// unlocks forward navigation at checkpoint gates.
func (r *RecordKeyStruct) PauseOverrideKey(sessionID string) string {
	return fmt.Sprintf("session:%s:gate_override", sessionID)
}

// SubmitErrorKey returns the record key under which the last failed final
// submission's full error payload is kept for inspection.
func (r *RecordKeyStruct) SubmitErrorKey(sessionID string) string {
	return fmt.Sprintf("session:%s:last_submit_error", sessionID)
}

// CurrentSessionKey returns the record key holding the active session id,
// temporary or server-issued. It is the only key outside the per-session
// namespace.
func (r *RecordKeyStruct) CurrentSessionKey() string {
	return "session:current"
}

// SessionPrefix returns the namespace prefix shared by every record of a
// session. The identity migrator relocates everything under this prefix.
func (r *RecordKeyStruct) SessionPrefix(sessionID string) string {
	return fmt.Sprintf("session:%s:", sessionID)
}

var RecordKey = NewRecordKeyStruct()
