package runtime

import (
	"time"

	"github.com/quizient/certlab-backend/internal/model"
)

// State names the runtime's position in the attempt lifecycle.
type State string

const (
	StateCreated          State = "CREATED"
	StateQuestionsLoading State = "QUESTIONS_LOADING"
	StateActive           State = "ACTIVE"
	StateCheckpointGated  State = "CHECKPOINT_GATED"
	StatePaused           State = "PAUSED"
	StateSubmitting       State = "SUBMITTING"
	StateTerminal         State = "TERMINAL"
)

// ExamSessionContext owns all mutable attempt state for one runtime
// instance. Nothing lives at package scope, so concurrent test instances
// never share state.
type ExamSessionContext struct {
	SessionID string
	Blueprint model.ExamBlueprint
	Questions []model.Question
	// gates is every index at which forward navigation locks: configured
	// checkpoints plus the hard gates preceding the first two.
	gates map[int]bool

	CurrentIndex int
	// Barrier is the lowest index backward navigation may reach. It only
	// ever grows, and it is persisted so a reload cannot lower it.
	Barrier int

	// elapsedBase is the elapsed time rehydrated from the persisted
	// progress record; startedAt anchors the current process's run.
	elapsedBase time.Duration
	startedAt   time.Time

	PausedUntil  time.Time
	GateOverride bool

	submitting bool
	terminal   bool
}

// progressRecord is the persisted shape of navigation progress.
type progressRecord struct {
	CurrentIndex   int `json:"current_index"`
	ElapsedSeconds int `json:"elapsed_seconds"`
	Barrier        int `json:"barrier"`
}

// Elapsed returns total attempt time across reloads.
func (c *ExamSessionContext) Elapsed(now time.Time) time.Duration {
	if c.startedAt.IsZero() {
		return c.elapsedBase
	}
	return c.elapsedBase + now.Sub(c.startedAt)
}
