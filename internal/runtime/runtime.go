// Package runtime drives one certification practice exam attempt on the
// candidate side: question navigation, answer capture, autosave,
// checkpoint and pause gating, identity migration, and submission. The
// runtime is single-threaded and cooperative; it suspends only at the
// network call sites and mutates its stores synchronously in between.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quizient/certlab-backend/internal/config"
	"github.com/quizient/certlab-backend/internal/model"
	"github.com/quizient/certlab-backend/internal/records"
	"github.com/rs/zerolog"
)

// Navigation and submission guard errors.
var (
	ErrPaused          = errors.New("attempt is paused")
	ErrCheckpointGated = errors.New("forward navigation is gated at a checkpoint")
	ErrPairsIncomplete = errors.New("paired-matching answer is incomplete")
	ErrBackBarrier     = errors.New("cannot navigate back past a crossed checkpoint")
	ErrTerminal        = errors.New("attempt has already been submitted")
	ErrSubmitInFlight  = errors.New("a final submission is already in flight")
	ErrWrongKind       = errors.New("answer does not match the question's interaction kind")
)

// PairReader exposes the live paired-matching widget state. The widget is
// the source of truth at navigation and submission time: it can be mutated
// without every persistence hook firing, so the runtime re-reads it rather
// than trusting a possibly stale stored record.
type PairReader interface {
	LivePairs(questionID int) (map[int]int, bool)
}

// StartParams selects the question set for a new attempt.
type StartParams struct {
	Count       int
	ExamType    string
	Filters     map[string]string
	QuestionIDs []int
	// AutoAdjustCount retries selection once with the server-reported
	// available count when the requested count cannot be satisfied.
	AutoAdjustCount bool
	// OnDemand starts the attempt in server-paged mode.
	OnDemand bool
}

// Runtime orchestrates one exam attempt.
type Runtime struct {
	api  ExamAPI
	repo records.Repository
	log  zerolog.Logger

	sc       *ExamSessionContext
	shuffle  *ShuffleCache
	answers  *AnswerStore
	migrator *IdentityMigrator

	pairReader PairReader
	now        func() time.Time
	rng        *rand.Rand

	// lastSubmitError keeps the most recent failed final submission's
	// full diagnostic for persistent display.
	lastSubmitError *APIError

	started bool
}

// New creates a Runtime over the given collaborator API and persisted
// record repository.
func New(api ExamAPI, repo records.Repository, log zerolog.Logger) *Runtime {
	return &Runtime{
		api:  api,
		repo: repo,
		log:  log.With().Str("component", "exam_runtime").Logger(),
		sc:   &ExamSessionContext{},
		now:  time.Now,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetPairReader attaches the live paired-matching widget.
func (r *Runtime) SetPairReader(pr PairReader) {
	r.pairReader = pr
}

// Context exposes the attempt state for rendering.
func (r *Runtime) Context() *ExamSessionContext {
	return r.sc
}

// State reports the runtime's current lifecycle state.
func (r *Runtime) State() State {
	switch {
	case r.sc.terminal:
		return StateTerminal
	case r.sc.submitting:
		return StateSubmitting
	case !r.started:
		return StateCreated
	case r.sc.Questions == nil:
		return StateQuestionsLoading
	case r.now().Before(r.sc.PausedUntil):
		return StatePaused
	case r.sc.gates[r.sc.CurrentIndex] && !r.sc.GateOverride:
		return StateCheckpointGated
	default:
		return StateActive
	}
}

// LastSubmitError returns the persisted diagnostic of the most recent
// failed final submission, or nil.
func (r *Runtime) LastSubmitError() *APIError {
	return r.lastSubmitError
}

// questionSetRecord is the persisted shape of a fetched question set.
type questionSetRecord struct {
	Blueprint model.ExamBlueprint `json:"blueprint"`
	Total     int                 `json:"total"`
	Questions []model.Question    `json:"questions"`
}

// Start brings the attempt to the Active state: it rehydrates every
// persisted record before any network call, reuses a valid cached
// question set when one exists, and otherwise invokes the question
// selection collaborator — migrating the session identity synchronously
// if the server issues a new id.
func (r *Runtime) Start(ctx context.Context, params StartParams) error {
	if r.sc.terminal {
		return ErrTerminal
	}

	// Session identity: reuse the cached id (temporary or promoted) so a
	// reload never silently abandons progress; mint a temporary one
	// otherwise.
	var cachedID string
	if err := r.repo.Get(config.RecordKey.CurrentSessionKey(), &cachedID); err == nil && cachedID != "" {
		r.sc.SessionID = cachedID
	} else {
		r.sc.SessionID = "temp-" + uuid.New().String()
		if err := r.repo.Set(config.RecordKey.CurrentSessionKey(), r.sc.SessionID); err != nil {
			return fmt.Errorf("persist session id: %w", err)
		}
	}

	r.rehydrate()
	r.started = true

	// A cached question set in which every question carries a valid id is
	// reused without a network call.
	if cached := r.cachedQuestionSet(); cached != nil {
		r.adoptQuestionSet(cached.Blueprint, cached.Questions)
		r.sc.startedAt = r.now()
		return nil
	}

	// A promoted session without a usable local cache (on-demand mode, or
	// a cleared cache) is rebuilt from the server's persisted state.
	if !strings.HasPrefix(r.sc.SessionID, "temp-") {
		if resp, err := r.api.Resume(ctx, r.sc.SessionID); err == nil && resp.Session != nil {
			r.adoptResumed(resp)
			r.sc.startedAt = r.now()
			return nil
		}
	}

	var (
		set *questionSetRecord
		sid string
		err error
	)
	if params.OnDemand {
		set, sid, err = r.startOnDemand(ctx, params)
	} else {
		set, sid, err = r.selectQuestions(ctx, params)
	}
	if err != nil {
		return err
	}

	// Promote the session identity before anything renders.
	if sid != "" && sid != r.sc.SessionID {
		if err := r.migrateIdentity(sid); err != nil {
			return err
		}
	}

	for i := range set.Questions {
		// On-demand placeholders (id -1) are validated when fetched.
		if set.Questions[i].ID == -1 {
			continue
		}
		if err := set.Questions[i].Validate(); err != nil {
			return fmt.Errorf("question set integrity: %w", err)
		}
	}

	if err := r.repo.Set(config.RecordKey.QuestionSetKey(r.sc.SessionID), set); err != nil {
		return fmt.Errorf("persist question set: %w", err)
	}

	r.adoptQuestionSet(set.Blueprint, set.Questions)
	r.sc.startedAt = r.now()
	r.persistProgress()
	return nil
}

func (r *Runtime) selectQuestions(ctx context.Context, params StartParams) (*questionSetRecord, string, error) {
	req := model.SelectExamRequest{
		Count:       params.Count,
		ExamType:    params.ExamType,
		Filters:     params.Filters,
		QuestionIDs: params.QuestionIDs,
	}

	resp, err := r.api.SelectExam(ctx, req)
	if err != nil {
		var apiErr *APIError
		// The server conveys how many questions it can serve; retry once
		// with the adjusted count when the caller opted in.
		if params.AutoAdjustCount && errors.As(err, &apiErr) && apiErr.Available > 0 && apiErr.Available < params.Count {
			r.log.Info().
				Int("requested", params.Count).
				Int("available", apiErr.Available).
				Msg("Adjusting question count to available")
			req.Count = apiErr.Available
			resp, err = r.api.SelectExam(ctx, req)
		}
		if err != nil {
			return nil, "", fmt.Errorf("select questions: %w", err)
		}
	}

	return &questionSetRecord{
		Blueprint: resp.Exam,
		Total:     resp.Total,
		Questions: resp.Questions,
	}, resp.SessionID, nil
}

func (r *Runtime) startOnDemand(ctx context.Context, params StartParams) (*questionSetRecord, string, error) {
	resp, err := r.api.StartOnDemand(ctx, model.StartOnDemandRequest{
		Count:    params.Count,
		ExamType: params.ExamType,
		Filters:  params.Filters,
	})
	if err != nil {
		return nil, "", fmt.Errorf("start on-demand: %w", err)
	}

	// Only the first question is fetched eagerly; the rest load as the
	// candidate reaches them.
	first, err := r.api.QuestionAt(ctx, resp.SessionID, 0)
	if err != nil {
		return nil, "", fmt.Errorf("fetch first question: %w", err)
	}

	questions := make([]model.Question, resp.Total)
	questions[0] = *first
	// Unfetched slots carry id -1; ensureQuestion fills them before the
	// integrity invariant applies.
	for i := 1; i < resp.Total; i++ {
		questions[i].ID = -1
	}

	set := &questionSetRecord{Blueprint: resp.Exam, Total: resp.Total, Questions: questions}
	return set, resp.SessionID, nil
}

// rehydrate loads every persisted per-session record into memory. Runs
// before any network call so a reload never discards progress.
func (r *Runtime) rehydrate() {
	sid := r.sc.SessionID

	var prog progressRecord
	if err := r.repo.Get(config.RecordKey.ProgressKey(sid), &prog); err == nil {
		r.sc.CurrentIndex = prog.CurrentIndex
		r.sc.Barrier = prog.Barrier
		r.sc.elapsedBase = time.Duration(prog.ElapsedSeconds) * time.Second
	}

	var override bool
	if err := r.repo.Get(config.RecordKey.PauseOverrideKey(sid), &override); err == nil {
		r.sc.GateOverride = override
	}

	var submitErr APIError
	if err := r.repo.Get(config.RecordKey.SubmitErrorKey(sid), &submitErr); err == nil {
		r.lastSubmitError = &submitErr
	}

	r.shuffle = NewShuffleCache(r.repo, config.RecordKey.ShuffleKey(sid), r.rng)
	r.shuffle.Load()

	r.answers = NewAnswerStore(r.repo, config.RecordKey.AnswersKey(sid))
	r.answers.Load()

	r.migrator = NewIdentityMigrator(r.repo)
}

func (r *Runtime) cachedQuestionSet() *questionSetRecord {
	var set questionSetRecord
	if err := r.repo.Get(config.RecordKey.QuestionSetKey(r.sc.SessionID), &set); err != nil {
		return nil
	}
	if len(set.Questions) == 0 {
		return nil
	}
	for i := range set.Questions {
		if set.Questions[i].ID <= 0 {
			return nil
		}
	}
	return &set
}

// adoptResumed rebuilds the attempt from the server's session record.
// Missing questions become on-demand placeholders.
func (r *Runtime) adoptResumed(resp *model.ResumeResponse) {
	sess := resp.Session
	questions := resp.Questions
	if len(questions) == 0 {
		questions = make([]model.Question, len(sess.QuestionIDs))
		for i := range questions {
			questions[i].ID = -1
		}
	}
	r.adoptQuestionSet(sess.Blueprint, questions)
	if sess.CurrentIndex > r.sc.CurrentIndex {
		r.sc.CurrentIndex = sess.CurrentIndex
	}
	if sess.Barrier > r.sc.Barrier {
		r.sc.Barrier = sess.Barrier
	}
	if sess.PausedUntil != nil {
		r.sc.PausedUntil = *sess.PausedUntil
	}
}

func (r *Runtime) adoptQuestionSet(bp model.ExamBlueprint, questions []model.Question) {
	r.sc.Blueprint = bp
	r.sc.Questions = questions
	r.sc.gates = bp.GatePositions()
	r.answers.Normalize(questions)
}

func (r *Runtime) migrateIdentity(newID string) error {
	oldID := r.sc.SessionID
	if err := r.migrator.Migrate(oldID, newID); err != nil {
		return fmt.Errorf("migrate session identity: %w", err)
	}
	r.sc.SessionID = newID
	r.shuffle.Rekey(config.RecordKey.ShuffleKey(newID))
	r.answers.Rekey(config.RecordKey.AnswersKey(newID))
	r.log.Info().Str("old_id", oldID).Str("new_id", newID).Msg("Session identity promoted")
	return nil
}

// CurrentQuestion returns the question at the current index together with
// its frozen shuffled option order, fetching the question first in
// on-demand mode.
func (r *Runtime) CurrentQuestion(ctx context.Context) (*model.Question, []model.Option, error) {
	if err := r.ensureQuestion(ctx, r.sc.CurrentIndex); err != nil {
		return nil, nil, err
	}
	q := &r.sc.Questions[r.sc.CurrentIndex]
	return q, r.shuffle.EnsureShuffled(q, r.sc.CurrentIndex), nil
}

func (r *Runtime) ensureQuestion(ctx context.Context, index int) error {
	if index < 0 || index >= len(r.sc.Questions) {
		return fmt.Errorf("question index %d out of range", index)
	}
	if r.sc.Questions[index].ID > 0 {
		return nil
	}

	q, err := r.api.QuestionAt(ctx, r.sc.SessionID, index)
	if err != nil {
		return fmt.Errorf("fetch question %d: %w", index, err)
	}
	if err := q.Validate(); err != nil {
		return fmt.Errorf("question at index %d: %w", index, err)
	}
	r.sc.Questions[index] = *q

	set := &questionSetRecord{
		Blueprint: r.sc.Blueprint,
		Total:     len(r.sc.Questions),
		Questions: r.sc.Questions,
	}
	return r.repo.Set(config.RecordKey.QuestionSetKey(r.sc.SessionID), set)
}

// NextQuestion advances to the next question, subject to the pause clock,
// checkpoint gates, and paired-matching completeness. Advancing past the
// last question submits the attempt.
func (r *Runtime) NextQuestion(ctx context.Context) error {
	if r.sc.terminal {
		return ErrTerminal
	}
	if r.now().Before(r.sc.PausedUntil) {
		return ErrPaused
	}
	if r.sc.gates[r.sc.CurrentIndex] && !r.sc.GateOverride {
		return ErrCheckpointGated
	}
	if err := r.requireCompletePairs(); err != nil {
		return err
	}

	if r.sc.CurrentIndex >= len(r.sc.Questions)-1 {
		_, err := r.Submit(ctx)
		return err
	}

	crossedCheckpoint := r.sc.Blueprint.IsCheckpoint(r.sc.CurrentIndex)
	r.sc.CurrentIndex++

	// The barrier only grows: once a pacing boundary is behind the
	// candidate, it stays behind them, reload or not.
	if crossedCheckpoint && r.sc.CurrentIndex > r.sc.Barrier {
		r.sc.Barrier = r.sc.CurrentIndex
	}
	r.persistProgress()

	if r.sc.Blueprint.IsCheckpoint(r.sc.CurrentIndex) {
		r.maybePartialSubmit(ctx, r.sc.CurrentIndex)
	}

	return r.ensureQuestion(ctx, r.sc.CurrentIndex)
}

// PrevQuestion steps back one question, never past the barrier.
func (r *Runtime) PrevQuestion() error {
	if r.sc.terminal {
		return ErrTerminal
	}
	if r.sc.CurrentIndex-1 < r.sc.Barrier {
		return ErrBackBarrier
	}
	r.sc.CurrentIndex--
	r.persistProgress()
	return nil
}

// requireCompletePairs blocks forward navigation off a paired-matching
// question until every left item is mapped. The live widget wins over the
// stored record.
func (r *Runtime) requireCompletePairs() error {
	q := &r.sc.Questions[r.sc.CurrentIndex]
	if q.Kind != model.KindPairedMatching {
		return nil
	}
	rec := r.livePairRecord(q, r.sc.CurrentIndex)
	if !rec.PairsComplete(q.Pairs) {
		return fmt.Errorf("%w: question %d", ErrPairsIncomplete, q.ID)
	}
	return nil
}

// livePairRecord builds the authoritative pair answer for q: the widget's
// live state when available, else the stored record, else an empty record.
func (r *Runtime) livePairRecord(q *model.Question, index int) *model.AnswerRecord {
	if r.pairReader != nil {
		if pairs, ok := r.pairReader.LivePairs(q.ID); ok {
			return &model.AnswerRecord{
				QuestionID: q.ID,
				Kind:       model.KindPairedMatching,
				Pairs:      pairs,
			}
		}
	}
	if rec := r.answers.Get(q.Key(index)); rec != nil {
		return rec
	}
	return &model.AnswerRecord{QuestionID: q.ID, Kind: model.KindPairedMatching}
}

// RecordSingle captures a single-select choice; a new choice replaces the
// prior one.
func (r *Runtime) RecordSingle(optionID int) error {
	q, err := r.captureTarget(model.KindSingleSelect)
	if err != nil {
		return err
	}
	r.answers.Put(q.Key(r.sc.CurrentIndex), &model.AnswerRecord{
		QuestionID: q.ID,
		Kind:       model.KindSingleSelect,
		OptionID:   optionID,
	})
	return nil
}

// RecordMulti captures a multi-select set; any subset, including empty,
// is a valid intermediate state.
func (r *Runtime) RecordMulti(optionIDs []int) error {
	q, err := r.captureTarget(model.KindMultiSelect)
	if err != nil {
		return err
	}
	r.answers.Put(q.Key(r.sc.CurrentIndex), &model.AnswerRecord{
		QuestionID: q.ID,
		Kind:       model.KindMultiSelect,
		OptionIDs:  optionIDs,
	})
	return nil
}

// RecordPairs captures the full pair map of the current paired-matching
// question.
func (r *Runtime) RecordPairs(pairs map[int]int) error {
	q, err := r.captureTarget(model.KindPairedMatching)
	if err != nil {
		return err
	}
	r.answers.Put(q.Key(r.sc.CurrentIndex), &model.AnswerRecord{
		QuestionID: q.ID,
		Kind:       model.KindPairedMatching,
		Pairs:      pairs,
	})
	return nil
}

// captureTarget enforces exactly one answer-capture path per question:
// the one matching its interaction kind.
func (r *Runtime) captureTarget(kind model.InteractionKind) (*model.Question, error) {
	if r.sc.terminal {
		return nil, ErrTerminal
	}
	q := &r.sc.Questions[r.sc.CurrentIndex]
	if q.Kind != kind {
		return nil, fmt.Errorf("%w: question %d is %s", ErrWrongKind, q.ID, q.Kind)
	}
	return q, nil
}

// VerifyAnswer checks the current answer out of band. A wrong verified
// single/multi-select answer is disregarded — cleared so it is not
// submitted as-is — but navigation is never blocked by this.
func (r *Runtime) VerifyAnswer(ctx context.Context) (*model.CheckAnswerResponse, error) {
	q := &r.sc.Questions[r.sc.CurrentIndex]
	key := q.Key(r.sc.CurrentIndex)
	rec := r.answers.Get(key)
	if rec == nil {
		return nil, fmt.Errorf("no recorded answer for question %d", q.ID)
	}

	resp, err := r.api.CheckAnswer(ctx, model.CheckAnswerRequest{
		SessionID: r.sc.SessionID,
		Answer:    *rec,
	})
	if err != nil {
		// Verification is best effort: the attempt state is untouched.
		r.log.Warn().Err(err).Int("question_id", q.ID).Msg("Answer verification failed")
		return nil, err
	}

	if !resp.Correct && q.Kind != model.KindPairedMatching {
		r.answers.Disregard(key)
	}
	return resp, nil
}

// SetGateOverride sets the per-session flag that unlocks forward
// navigation at checkpoint gates, persisted across reloads.
func (r *Runtime) SetGateOverride(v bool) {
	r.sc.GateOverride = v
	_ = r.repo.Set(config.RecordKey.PauseOverrideKey(r.sc.SessionID), v)
}

// Pause asks the pause collaborator to start a pause and adopts its clock.
func (r *Runtime) Pause(ctx context.Context) error {
	resp, err := r.api.PauseStart(ctx, r.sc.SessionID)
	if err != nil {
		return fmt.Errorf("start pause: %w", err)
	}
	r.adoptPause(resp)
	return nil
}

// SkipPause ends an active pause early.
func (r *Runtime) SkipPause(ctx context.Context) error {
	resp, err := r.api.PauseSkip(ctx, r.sc.SessionID)
	if err != nil {
		return fmt.Errorf("skip pause: %w", err)
	}
	r.adoptPause(resp)
	return nil
}

// RefreshPause re-reads the pause clock from the collaborator.
func (r *Runtime) RefreshPause(ctx context.Context) error {
	resp, err := r.api.PauseStatus(ctx, r.sc.SessionID)
	if err != nil {
		return fmt.Errorf("pause status: %w", err)
	}
	r.adoptPause(resp)
	return nil
}

func (r *Runtime) adoptPause(resp *model.PauseStatusResponse) {
	if !resp.Paused || resp.PausedUntil == "" {
		r.sc.PausedUntil = time.Time{}
		return
	}
	if until, err := time.Parse(time.RFC3339, resp.PausedUntil); err == nil {
		r.sc.PausedUntil = until
	}
}

func (r *Runtime) persistProgress() {
	prog := progressRecord{
		CurrentIndex:   r.sc.CurrentIndex,
		ElapsedSeconds: int(r.sc.Elapsed(r.now()).Seconds()),
		Barrier:        r.sc.Barrier,
	}
	_ = r.repo.Set(config.RecordKey.ProgressKey(r.sc.SessionID), prog)
}
