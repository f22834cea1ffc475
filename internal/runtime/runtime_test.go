package runtime

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/quizient/certlab-backend/internal/config"
	"github.com/quizient/certlab-backend/internal/model"
	"github.com/quizient/certlab-backend/internal/records"
	"github.com/rs/zerolog"
)

// fakeAPI is an in-memory ExamAPI double.
type fakeAPI struct {
	sessionID string
	blueprint model.ExamBlueprint
	questions []model.Question

	selectCalls     int
	questionAtCalls int

	submits   []model.SubmitRequest
	submitErr error

	checkResp  *model.CheckAnswerResponse
	pauseResp  *model.PauseStatusResponse
	resumeResp *model.ResumeResponse
}

func (f *fakeAPI) SelectExam(_ context.Context, req model.SelectExamRequest) (*model.SelectExamResponse, error) {
	f.selectCalls++
	if req.Count > len(f.questions) {
		return nil, &APIError{
			Status:    409,
			Code:      "INSUFFICIENT_QUESTIONS",
			Message:   "not enough questions",
			Available: len(f.questions),
		}
	}
	qs := f.questions[:req.Count]
	return &model.SelectExamResponse{
		SessionID: f.sessionID,
		Total:     len(qs),
		Exam:      f.blueprint,
		Questions: qs,
	}, nil
}

func (f *fakeAPI) StartOnDemand(_ context.Context, req model.StartOnDemandRequest) (*model.StartOnDemandResponse, error) {
	return &model.StartOnDemandResponse{
		SessionID: f.sessionID,
		Total:     len(f.questions),
		Exam:      f.blueprint,
	}, nil
}

func (f *fakeAPI) QuestionAt(_ context.Context, _ string, index int) (*model.Question, error) {
	f.questionAtCalls++
	if index < 0 || index >= len(f.questions) {
		return nil, fmt.Errorf("index %d out of range", index)
	}
	return &f.questions[index], nil
}

func (f *fakeAPI) Submit(_ context.Context, req model.SubmitRequest) (*model.SubmitResponse, error) {
	f.submits = append(f.submits, req)
	if !req.Partial && f.submitErr != nil {
		return nil, f.submitErr
	}
	return &model.SubmitResponse{TotalQuestions: len(req.Answers)}, nil
}

func (f *fakeAPI) Resume(_ context.Context, _ string) (*model.ResumeResponse, error) {
	if f.resumeResp == nil {
		return nil, errors.New("no session")
	}
	return f.resumeResp, nil
}

func (f *fakeAPI) CheckAnswer(_ context.Context, _ model.CheckAnswerRequest) (*model.CheckAnswerResponse, error) {
	if f.checkResp == nil {
		return nil, errors.New("no answer key")
	}
	return f.checkResp, nil
}

func (f *fakeAPI) PauseStart(_ context.Context, _ string) (*model.PauseStatusResponse, error) {
	return f.pause()
}

func (f *fakeAPI) PauseSkip(_ context.Context, _ string) (*model.PauseStatusResponse, error) {
	return f.pause()
}

func (f *fakeAPI) PauseStatus(_ context.Context, _ string) (*model.PauseStatusResponse, error) {
	return f.pause()
}

func (f *fakeAPI) pause() (*model.PauseStatusResponse, error) {
	if f.pauseResp == nil {
		return &model.PauseStatusResponse{}, nil
	}
	return f.pauseResp, nil
}

func (f *fakeAPI) partials() int {
	n := 0
	for _, s := range f.submits {
		if s.Partial {
			n++
		}
	}
	return n
}

func (f *fakeAPI) finals() []model.SubmitRequest {
	var out []model.SubmitRequest
	for _, s := range f.submits {
		if !s.Partial {
			out = append(out, s)
		}
	}
	return out
}

// fakePairReader is a stand-in for the live paired-matching widget.
type fakePairReader struct {
	pairs map[int]map[int]int
}

func (f *fakePairReader) LivePairs(questionID int) (map[int]int, bool) {
	p, ok := f.pairs[questionID]
	return p, ok
}

func singleQuestions(n int) []model.Question {
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{
			ID:   i + 1,
			Kind: model.KindSingleSelect,
			Text: fmt.Sprintf("question %d", i+1),
			Options: []model.Option{
				{ID: 1, Text: "a"}, {ID: 2, Text: "b"},
				{ID: 3, Text: "c"}, {ID: 4, Text: "d"},
			},
		}
	}
	return qs
}

func pairedQuestion(id int) model.Question {
	return model.Question{
		ID:   id,
		Kind: model.KindPairedMatching,
		Text: fmt.Sprintf("question %d", id),
		Pairs: &model.PairSpec{
			Left:  []model.PairItem{{ID: 1, Text: "l1"}, {ID: 2, Text: "l2"}},
			Right: []model.PairItem{{ID: 10, Text: "r1"}, {ID: 20, Text: "r2"}},
		},
	}
}

func newFakeAPI(n int, checkpoints []int) *fakeAPI {
	return &fakeAPI{
		sessionID: "srv-1",
		blueprint: model.ExamBlueprint{
			ExamType:        "net-fundamentals",
			TotalQuestions:  n,
			DurationMinutes: n,
			Checkpoints:     checkpoints,
		},
		questions: singleQuestions(n),
	}
}

func startedRuntime(t *testing.T, api *fakeAPI, repo records.Repository, params StartParams) *Runtime {
	t.Helper()
	rt := New(api, repo, zerolog.Nop())
	if err := rt.Start(context.Background(), params); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return rt
}

func TestStartPromotesSessionIdentity(t *testing.T) {
	repo := records.NewMemoryRepository()
	api := newFakeAPI(3, nil)

	rt := startedRuntime(t, api, repo, StartParams{Count: 3, ExamType: "net-fundamentals"})

	if rt.Context().SessionID != "srv-1" {
		t.Errorf("SessionID = %q, want srv-1", rt.Context().SessionID)
	}

	var sid string
	if err := repo.Get(config.RecordKey.CurrentSessionKey(), &sid); err != nil || sid != "srv-1" {
		t.Errorf("persisted session pointer = %q, %v", sid, err)
	}

	// No record may remain under the temporary namespace.
	keys, _ := repo.Keys("session:temp-")
	if len(keys) != 0 {
		t.Errorf("temporary records left behind: %v", keys)
	}
	if rt.State() != StateActive {
		t.Errorf("State = %v, want ACTIVE", rt.State())
	}
}

func TestStartReusesCachedQuestionSet(t *testing.T) {
	repo := records.NewMemoryRepository()
	api := newFakeAPI(3, nil)

	startedRuntime(t, api, repo, StartParams{Count: 3, ExamType: "net-fundamentals"})
	if api.selectCalls != 1 {
		t.Fatalf("selectCalls = %d, want 1", api.selectCalls)
	}

	// A reload is a fresh runtime over the same repository.
	rt2 := startedRuntime(t, api, repo, StartParams{Count: 3, ExamType: "net-fundamentals"})

	if api.selectCalls != 1 {
		t.Errorf("reload hit the network: selectCalls = %d", api.selectCalls)
	}
	if len(rt2.Context().Questions) != 3 {
		t.Errorf("questions after reload = %d, want 3", len(rt2.Context().Questions))
	}
}

func TestStartAutoAdjustsCount(t *testing.T) {
	repo := records.NewMemoryRepository()
	api := newFakeAPI(3, nil)

	rt := startedRuntime(t, api, repo, StartParams{
		Count:           5,
		ExamType:        "net-fundamentals",
		AutoAdjustCount: true,
	})

	if api.selectCalls != 2 {
		t.Errorf("selectCalls = %d, want 2 (original + adjusted retry)", api.selectCalls)
	}
	if len(rt.Context().Questions) != 3 {
		t.Errorf("questions = %d, want the 3 available", len(rt.Context().Questions))
	}
}

func TestStartWithoutAutoAdjustFails(t *testing.T) {
	repo := records.NewMemoryRepository()
	api := newFakeAPI(3, nil)

	rt := New(api, repo, zerolog.Nop())
	err := rt.Start(context.Background(), StartParams{Count: 5, ExamType: "net-fundamentals"})
	if err == nil {
		t.Fatal("expected error when count exceeds available without auto-adjust")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Available != 3 {
		t.Errorf("error should carry the available count, got %v", err)
	}
}

func TestShuffleOrderFrozenAcrossRendersAndReload(t *testing.T) {
	repo := records.NewMemoryRepository()
	api := newFakeAPI(3, nil)
	ctx := context.Background()

	rt := startedRuntime(t, api, repo, StartParams{Count: 3, ExamType: "net-fundamentals"})

	_, first, err := rt.CurrentQuestion(ctx)
	if err != nil {
		t.Fatalf("CurrentQuestion: %v", err)
	}
	_, second, _ := rt.CurrentQuestion(ctx)
	if !sameOrder(first, second) {
		t.Errorf("re-render changed the order: %v vs %v", first, second)
	}

	rt2 := startedRuntime(t, api, repo, StartParams{Count: 3, ExamType: "net-fundamentals"})
	_, third, err := rt2.CurrentQuestion(ctx)
	if err != nil {
		t.Fatalf("CurrentQuestion after reload: %v", err)
	}
	if !sameOrder(first, third) {
		t.Errorf("reload changed the order: %v vs %v", first, third)
	}
}

func sameOrder(a, b []model.Option) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

func TestShuffleInvalidatedOnlyOnOptionCountChange(t *testing.T) {
	repo := records.NewMemoryRepository()
	cache := NewShuffleCache(repo, "session:s1:shuffled_options", rand.New(rand.NewSource(1)))

	q := singleQuestions(1)[0]
	before := cache.EnsureShuffled(&q, 0)

	// Same count, different text: the frozen order survives.
	q.Options[0].Text = "edited"
	if !sameOrder(before, cache.EnsureShuffled(&q, 0)) {
		t.Error("text edit must not invalidate the order")
	}

	// Option added: the order for this question is recomputed.
	q.Options = append(q.Options, model.Option{ID: 5, Text: "e"})
	after := cache.EnsureShuffled(&q, 0)
	if len(after) != 5 {
		t.Errorf("new order has %d options, want 5", len(after))
	}
}

func TestCheckpointPartialSubmitExactlyOnce(t *testing.T) {
	repo := records.NewMemoryRepository()
	api := newFakeAPI(4, []int{2})
	ctx := context.Background()

	rt := startedRuntime(t, api, repo, StartParams{Count: 4, ExamType: "net-fundamentals"})
	rt.SetGateOverride(true)

	if err := rt.RecordSingle(2); err != nil {
		t.Fatalf("RecordSingle: %v", err)
	}

	if err := rt.NextQuestion(ctx); err != nil { // 0 -> 1
		t.Fatalf("NextQuestion: %v", err)
	}
	if api.partials() != 0 {
		t.Fatalf("partials before checkpoint = %d", api.partials())
	}

	if err := rt.NextQuestion(ctx); err != nil { // 1 -> 2, checkpoint
		t.Fatalf("NextQuestion: %v", err)
	}
	if api.partials() != 1 {
		t.Fatalf("partials on checkpoint arrival = %d, want 1", api.partials())
	}

	snap := api.submits[0]
	if !snap.Partial {
		t.Error("checkpoint submission must be partial")
	}
	if len(snap.Answers) != 1 || snap.Answers[0].OptionID != 2 {
		t.Errorf("snapshot answers = %+v", snap.Answers)
	}

	// Leaving and re-entering the checkpoint must not re-fire.
	if err := rt.PrevQuestion(); err != nil { // 2 -> 1
		t.Fatalf("PrevQuestion: %v", err)
	}
	if err := rt.NextQuestion(ctx); err != nil { // 1 -> 2 again
		t.Fatalf("NextQuestion: %v", err)
	}
	if api.partials() != 1 {
		t.Errorf("partials after revisit = %d, want 1", api.partials())
	}
}

func TestCheckpointGateBlocksForwardNavigation(t *testing.T) {
	repo := records.NewMemoryRepository()
	api := newFakeAPI(4, []int{2})
	ctx := context.Background()

	rt := startedRuntime(t, api, repo, StartParams{Count: 4, ExamType: "net-fundamentals"})

	if err := rt.NextQuestion(ctx); err != nil { // 0 -> 1
		t.Fatalf("NextQuestion: %v", err)
	}
	// Index 1 is the hard gate before checkpoint 2.
	if err := rt.NextQuestion(ctx); !errors.Is(err, ErrCheckpointGated) {
		t.Fatalf("gated NextQuestion = %v, want ErrCheckpointGated", err)
	}
	if rt.State() != StateCheckpointGated {
		t.Errorf("State = %v, want CHECKPOINT_GATED", rt.State())
	}

	rt.SetGateOverride(true)
	if err := rt.NextQuestion(ctx); err != nil {
		t.Fatalf("NextQuestion with override: %v", err)
	}

	// The override is persisted: a reload keeps the gates unlocked.
	rt2 := startedRuntime(t, api, repo, StartParams{Count: 4, ExamType: "net-fundamentals"})
	if !rt2.Context().GateOverride {
		t.Error("gate override lost across reload")
	}
}

func TestBackNavigationBarrier(t *testing.T) {
	repo := records.NewMemoryRepository()
	api := newFakeAPI(4, []int{2})
	ctx := context.Background()

	rt := startedRuntime(t, api, repo, StartParams{Count: 4, ExamType: "net-fundamentals"})
	rt.SetGateOverride(true)

	rt.NextQuestion(ctx) // 0 -> 1
	rt.NextQuestion(ctx) // 1 -> 2 (checkpoint)
	if err := rt.NextQuestion(ctx); err != nil {
		t.Fatalf("NextQuestion past checkpoint: %v", err) // 2 -> 3, barrier = 3
	}

	if err := rt.PrevQuestion(); !errors.Is(err, ErrBackBarrier) {
		t.Fatalf("PrevQuestion across barrier = %v, want ErrBackBarrier", err)
	}

	// The barrier survives a reload.
	rt2 := startedRuntime(t, api, repo, StartParams{Count: 4, ExamType: "net-fundamentals"})
	if rt2.Context().Barrier != 3 {
		t.Errorf("barrier after reload = %d, want 3", rt2.Context().Barrier)
	}
	if err := rt2.PrevQuestion(); !errors.Is(err, ErrBackBarrier) {
		t.Errorf("PrevQuestion after reload = %v, want ErrBackBarrier", err)
	}
}

func TestPauseBlocksForwardNavigation(t *testing.T) {
	repo := records.NewMemoryRepository()
	api := newFakeAPI(3, nil)
	ctx := context.Background()

	rt := startedRuntime(t, api, repo, StartParams{Count: 3, ExamType: "net-fundamentals"})

	api.pauseResp = &model.PauseStatusResponse{
		Paused:      true,
		PausedUntil: time.Now().Add(10 * time.Minute).UTC().Format(time.RFC3339),
	}
	if err := rt.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if rt.State() != StatePaused {
		t.Errorf("State = %v, want PAUSED", rt.State())
	}
	if err := rt.NextQuestion(ctx); !errors.Is(err, ErrPaused) {
		t.Fatalf("NextQuestion while paused = %v, want ErrPaused", err)
	}

	api.pauseResp = &model.PauseStatusResponse{Paused: false}
	if err := rt.SkipPause(ctx); err != nil {
		t.Fatalf("SkipPause: %v", err)
	}
	if err := rt.NextQuestion(ctx); err != nil {
		t.Errorf("NextQuestion after skip: %v", err)
	}
}

func TestSubmitAbortsOnIncompletePairs(t *testing.T) {
	repo := records.NewMemoryRepository()
	api := newFakeAPI(2, nil)
	api.questions[1] = pairedQuestion(2)
	ctx := context.Background()

	rt := startedRuntime(t, api, repo, StartParams{Count: 2, ExamType: "net-fundamentals"})
	rt.RecordSingle(1)

	_, err := rt.Submit(ctx)
	if !errors.Is(err, ErrPairsIncomplete) {
		t.Fatalf("Submit = %v, want ErrPairsIncomplete", err)
	}
	if !strings.Contains(err.Error(), "question 2") {
		t.Errorf("error should name the offending question: %v", err)
	}
	if len(api.finals()) != 0 {
		t.Error("an incomplete payload must never reach the network")
	}
}

func TestSubmitAbortsOnMissingQuestionID(t *testing.T) {
	repo := records.NewMemoryRepository()
	api := newFakeAPI(3, nil)
	ctx := context.Background()

	rt := startedRuntime(t, api, repo, StartParams{Count: 3, ExamType: "net-fundamentals"})
	rt.Context().Questions[2].ID = 0

	_, err := rt.Submit(ctx)
	if err == nil {
		t.Fatal("expected error for missing question id")
	}
	if !strings.Contains(err.Error(), "index 2") {
		t.Errorf("error should name the offending index: %v", err)
	}
	if len(api.finals()) != 0 {
		t.Error("payload with a missing id must never reach the network")
	}
}

func TestSubmitSingleFlight(t *testing.T) {
	repo := records.NewMemoryRepository()
	api := newFakeAPI(2, nil)

	rt := startedRuntime(t, api, repo, StartParams{Count: 2, ExamType: "net-fundamentals"})
	rt.Context().submitting = true

	if _, err := rt.Submit(context.Background()); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("Submit while in flight = %v, want ErrSubmitInFlight", err)
	}
}

func TestSubmitLivePairWidgetWins(t *testing.T) {
	repo := records.NewMemoryRepository()
	api := newFakeAPI(1, nil)
	api.questions[0] = pairedQuestion(1)
	ctx := context.Background()

	rt := startedRuntime(t, api, repo, StartParams{Count: 1, ExamType: "net-fundamentals"})

	// The stored record is incomplete, but the live widget has both pairs.
	rt.RecordPairs(map[int]int{1: 10})
	rt.SetPairReader(&fakePairReader{pairs: map[int]map[int]int{
		1: {1: 10, 2: 20},
	}})

	resp, err := rt.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp == nil {
		t.Fatal("nil response")
	}

	finals := api.finals()
	if len(finals) != 1 {
		t.Fatalf("finals = %d, want 1", len(finals))
	}
	got := finals[0].Answers[0].Pairs
	if got[1] != 10 || got[2] != 20 {
		t.Errorf("submitted pairs = %v, want widget state", got)
	}
}

func TestSubmitSuccessPurgesSessionRecords(t *testing.T) {
	repo := records.NewMemoryRepository()
	api := newFakeAPI(2, nil)
	ctx := context.Background()

	rt := startedRuntime(t, api, repo, StartParams{Count: 2, ExamType: "net-fundamentals"})
	rt.RecordSingle(3)

	if _, err := rt.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if rt.State() != StateTerminal {
		t.Errorf("State = %v, want TERMINAL", rt.State())
	}

	keys, _ := repo.Keys(config.RecordKey.SessionPrefix("srv-1"))
	if len(keys) != 0 {
		t.Errorf("session records not purged: %v", keys)
	}
	var sid string
	if err := repo.Get(config.RecordKey.CurrentSessionKey(), &sid); err != records.ErrNotFound {
		t.Errorf("session pointer not cleared: %q, %v", sid, err)
	}

	if err := rt.NextQuestion(ctx); !errors.Is(err, ErrTerminal) {
		t.Errorf("NextQuestion after submit = %v, want ErrTerminal", err)
	}
	if _, err := rt.Submit(ctx); !errors.Is(err, ErrTerminal) {
		t.Errorf("second Submit = %v, want ErrTerminal", err)
	}
}

func TestSubmitFailureKeepsStateAndPersistsDiagnostic(t *testing.T) {
	repo := records.NewMemoryRepository()
	api := newFakeAPI(2, nil)
	api.submitErr = &APIError{Status: 500, Code: "INTERNAL_ERROR", Message: "grading backend down"}
	ctx := context.Background()

	rt := startedRuntime(t, api, repo, StartParams{Count: 2, ExamType: "net-fundamentals"})
	rt.RecordSingle(1)

	if _, err := rt.Submit(ctx); err == nil {
		t.Fatal("expected submission failure")
	}

	if rt.State() == StateTerminal {
		t.Error("failed submission must not terminate the attempt")
	}
	if diag := rt.LastSubmitError(); diag == nil || diag.Code != "INTERNAL_ERROR" {
		t.Errorf("LastSubmitError = %+v", rt.LastSubmitError())
	}
	if rt.SubmitErrorJSON() == "" {
		t.Error("SubmitErrorJSON should render the diagnostic")
	}

	// The diagnostic survives a reload.
	rt2 := startedRuntime(t, api, repo, StartParams{Count: 2, ExamType: "net-fundamentals"})
	if diag := rt2.LastSubmitError(); diag == nil || diag.Code != "INTERNAL_ERROR" {
		t.Errorf("diagnostic lost across reload: %+v", rt2.LastSubmitError())
	}

	// Retrying after the backend recovers succeeds and clears everything.
	api.submitErr = nil
	if _, err := rt2.Submit(ctx); err != nil {
		t.Fatalf("retry Submit: %v", err)
	}
	if rt2.LastSubmitError() != nil {
		t.Error("diagnostic should clear on success")
	}
}

func TestVerifyWrongAnswerIsDisregarded(t *testing.T) {
	repo := records.NewMemoryRepository()
	api := newFakeAPI(1, nil)
	api.checkResp = &model.CheckAnswerResponse{QuestionID: 1, Correct: false, CorrectOptionIDs: []int{4}}
	ctx := context.Background()

	rt := startedRuntime(t, api, repo, StartParams{Count: 1, ExamType: "net-fundamentals"})
	rt.RecordSingle(2)

	resp, err := rt.VerifyAnswer(ctx)
	if err != nil {
		t.Fatalf("VerifyAnswer: %v", err)
	}
	if resp.Correct {
		t.Fatal("fake reports wrong answer")
	}

	// The cleared answer must go out as unanswered, not as the wrong pick.
	if _, err := rt.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	finals := api.finals()
	if len(finals) != 1 {
		t.Fatalf("finals = %d, want 1", len(finals))
	}
	if got := finals[0].Answers[0].OptionID; got != 0 {
		t.Errorf("disregarded answer submitted with option id %d", got)
	}
}

func TestWrongKindCaptureRejected(t *testing.T) {
	repo := records.NewMemoryRepository()
	api := newFakeAPI(1, nil)

	rt := startedRuntime(t, api, repo, StartParams{Count: 1, ExamType: "net-fundamentals"})

	if err := rt.RecordMulti([]int{1, 2}); !errors.Is(err, ErrWrongKind) {
		t.Errorf("RecordMulti on single-select = %v, want ErrWrongKind", err)
	}
	if err := rt.RecordPairs(map[int]int{1: 10}); !errors.Is(err, ErrWrongKind) {
		t.Errorf("RecordPairs on single-select = %v, want ErrWrongKind", err)
	}
}

func TestOnDemandFetchesLazily(t *testing.T) {
	repo := records.NewMemoryRepository()
	api := newFakeAPI(3, nil)
	ctx := context.Background()

	rt := startedRuntime(t, api, repo, StartParams{
		Count:    3,
		ExamType: "net-fundamentals",
		OnDemand: true,
	})

	if api.questionAtCalls != 1 {
		t.Fatalf("questionAtCalls after start = %d, want 1 (eager first)", api.questionAtCalls)
	}
	if rt.Context().Questions[1].ID != -1 {
		t.Errorf("slot 1 should be a placeholder, got id %d", rt.Context().Questions[1].ID)
	}

	if err := rt.NextQuestion(ctx); err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if api.questionAtCalls != 2 {
		t.Errorf("questionAtCalls after advance = %d, want 2", api.questionAtCalls)
	}
	if rt.Context().Questions[1].ID != 2 {
		t.Errorf("slot 1 = id %d, want 2", rt.Context().Questions[1].ID)
	}
}

func TestIdentityMigratorMovesEverything(t *testing.T) {
	repo := records.NewMemoryRepository()

	oldKeys := map[string]any{
		config.RecordKey.AnswersKey("old"):           map[string]int{"q:1": 2},
		config.RecordKey.ProgressKey("old"):          map[string]int{"current_index": 5},
		config.RecordKey.ShuffleKey("old"):           map[string][]int{"q:1": {3, 1, 2}},
		config.RecordKey.CheckpointFlagKey("old", 2): true,
	}
	for k, v := range oldKeys {
		if err := repo.Set(k, v); err != nil {
			t.Fatalf("seed %s: %v", k, err)
		}
	}
	repo.Set(config.RecordKey.CurrentSessionKey(), "old")

	if err := NewIdentityMigrator(repo).Migrate("old", "new"); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	left, _ := repo.Keys(config.RecordKey.SessionPrefix("old"))
	if len(left) != 0 {
		t.Errorf("old records remain: %v", left)
	}

	moved, _ := repo.Keys(config.RecordKey.SessionPrefix("new"))
	if len(moved) != len(oldKeys) {
		t.Errorf("moved %d records, want %d", len(moved), len(oldKeys))
	}

	var prog map[string]int
	if err := repo.Get(config.RecordKey.ProgressKey("new"), &prog); err != nil || prog["current_index"] != 5 {
		t.Errorf("progress after migration = %v, %v", prog, err)
	}

	var sid string
	repo.Get(config.RecordKey.CurrentSessionKey(), &sid)
	if sid != "new" {
		t.Errorf("session pointer = %q, want new", sid)
	}
}

func TestMigrateIsNoopForSameOrEmptyID(t *testing.T) {
	repo := records.NewMemoryRepository()
	repo.Set(config.RecordKey.AnswersKey("s1"), map[string]int{"q:1": 2})

	m := NewIdentityMigrator(repo)
	if err := m.Migrate("s1", "s1"); err != nil {
		t.Fatalf("same-id migrate: %v", err)
	}
	if err := m.Migrate("", "s1"); err != nil {
		t.Fatalf("empty-id migrate: %v", err)
	}

	keys, _ := repo.Keys(config.RecordKey.SessionPrefix("s1"))
	if len(keys) != 1 {
		t.Errorf("records disturbed: %v", keys)
	}
}
