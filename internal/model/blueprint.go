package model

// ExamBlueprint declares the server-side parameters of one exam attempt.
// It is immutable once the attempt starts; the question-selection service
// supplies it and the runtime only reads it.
type ExamBlueprint struct {
	ExamType        string `json:"exam_type"`
	DurationMinutes int    `json:"duration_minutes"`
	TotalQuestions  int    `json:"total_questions"`
	// Checkpoints are the ordered question indices at which forward
	// progress is gated and a partial submission fires.
	Checkpoints []int `json:"checkpoints"`
	MultiSelect bool  `json:"multi_select"`
	// Pause cooldown rules, in seconds.
	PauseCooldownSeconds int `json:"pause_cooldown_seconds"`
	PauseDurationSeconds int `json:"pause_duration_seconds"`
}

// GatePositions returns every index at which forward navigation is gated:
// the configured checkpoints plus the hard gate immediately preceding each
// of the first two checkpoints, so the candidate reviews pacing before the
// boundary itself.
func (b *ExamBlueprint) GatePositions() map[int]bool {
	gates := make(map[int]bool, len(b.Checkpoints)+2)
	for i, cp := range b.Checkpoints {
		gates[cp] = true
		if i < 2 && cp > 0 {
			gates[cp-1] = true
		}
	}
	return gates
}

// IsCheckpoint reports whether index is a configured checkpoint.
func (b *ExamBlueprint) IsCheckpoint(index int) bool {
	for _, cp := range b.Checkpoints {
		if cp == index {
			return true
		}
	}
	return false
}
