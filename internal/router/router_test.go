package router

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/quizient/certlab-backend/internal/config"
	"github.com/quizient/certlab-backend/internal/handler"
	"github.com/quizient/certlab-backend/internal/model"
	"github.com/quizient/certlab-backend/internal/records"
	"github.com/quizient/certlab-backend/internal/repository"
	"github.com/quizient/certlab-backend/internal/runtime"
	"github.com/quizient/certlab-backend/internal/service"
	"github.com/quizient/certlab-backend/internal/sessionstore"
	"github.com/quizient/certlab-backend/internal/validator"
	wsschema "github.com/quizient/certlab-backend/internal/websocket"
	"github.com/rs/zerolog"
)

// memoryBank serves a fixed question set straight from memory.
type memoryBank struct {
	questions []model.Question
	keys      map[int]repository.AnswerKey
}

func newMemoryBank(n int) *memoryBank {
	b := &memoryBank{keys: make(map[int]repository.AnswerKey, n)}
	for i := 1; i <= n; i++ {
		b.questions = append(b.questions, model.Question{
			ID:   i,
			Kind: model.KindSingleSelect,
			Text: fmt.Sprintf("question %d", i),
			Options: []model.Option{
				{ID: 1, Text: "a"}, {ID: 2, Text: "b"},
				{ID: 3, Text: "c"}, {ID: 4, Text: "d"},
			},
		})
		b.keys[i] = repository.AnswerKey{QuestionID: i, Kind: model.KindSingleSelect, OptionIDs: []int{2}}
	}
	return b
}

func (b *memoryBank) CountAvailable(_ context.Context, _ string, _ map[string]string) (int, error) {
	return len(b.questions), nil
}

func (b *memoryBank) SelectRandom(_ context.Context, _ string, _ map[string]string, count int) ([]model.Question, error) {
	return b.questions[:count], nil
}

func (b *memoryBank) SelectByIDs(_ context.Context, ids []int) ([]model.Question, error) {
	out := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		for i := range b.questions {
			if b.questions[i].ID == id {
				out = append(out, b.questions[i])
			}
		}
	}
	return out, nil
}

func (b *memoryBank) GetByID(_ context.Context, id int) (*model.Question, error) {
	for i := range b.questions {
		if b.questions[i].ID == id {
			return &b.questions[i], nil
		}
	}
	return nil, fmt.Errorf("question %d not found", id)
}

func (b *memoryBank) AnswerKeys(_ context.Context, ids []int) (map[int]repository.AnswerKey, error) {
	out := make(map[int]repository.AnswerKey, len(ids))
	for _, id := range ids {
		if key, ok := b.keys[id]; ok {
			out[id] = key
		}
	}
	return out, nil
}

// newTestServer wires the full HTTP surface over in-memory collaborators.
func newTestServer(t *testing.T, bank *memoryBank) *httptest.Server {
	t.Helper()
	validator.Setup()

	cfg := &config.Config{
		GinMode:       "test",
		SessionTTL:    time.Hour,
		PauseCooldown: 30 * time.Minute,
		PauseDuration: 10 * time.Minute,
		MediaDir:      t.TempDir(),
	}

	log := zerolog.Nop()
	store := sessionstore.NewMemoryStore()
	exams := service.NewExamService(bank, store, cfg, log)
	grading := service.NewGradingService(bank, nil, exams, store, nil, log)
	pauses := service.NewPauseService(exams, store, log)

	engine := SetupRouter(&Handlers{
		Exam:   handler.NewExamHandler(exams, grading),
		Pause:  handler.NewPauseHandler(pauses),
		WS:     handler.NewWSHandler(exams, log, nil),
		System: handler.NewSystemHandler(exams, nil, log),
	}, cfg)

	ts := httptest.NewServer(engine)
	t.Cleanup(ts.Close)
	return ts
}

// TestCandidateJourney drives the client runtime against the real HTTP
// surface: start, answer, navigate, pause, submit.
func TestCandidateJourney(t *testing.T) {
	bank := newMemoryBank(5)
	ts := newTestServer(t, bank)
	ctx := context.Background()

	repo := records.NewMemoryRepository()
	api := runtime.NewHTTPExamAPI(ts.URL+"/api/v1", ts.Client())
	rt := runtime.New(api, repo, zerolog.Nop())

	if err := rt.Start(ctx, runtime.StartParams{Count: 5, ExamType: "net-fundamentals"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if strings.HasPrefix(rt.Context().SessionID, "temp-") {
		t.Fatalf("session identity not promoted: %s", rt.Context().SessionID)
	}

	q, options, err := rt.CurrentQuestion(ctx)
	if err != nil {
		t.Fatalf("CurrentQuestion: %v", err)
	}
	if len(options) != 4 {
		t.Fatalf("options = %d", len(options))
	}

	// Verify a wrong pick, then answer correctly.
	if err := rt.RecordSingle(1); err != nil {
		t.Fatalf("RecordSingle: %v", err)
	}
	check, err := rt.VerifyAnswer(ctx)
	if err != nil {
		t.Fatalf("VerifyAnswer: %v", err)
	}
	if check.Correct {
		t.Errorf("option 1 graded correct for question %d", q.ID)
	}
	rt.RecordSingle(2)

	if err := rt.NextQuestion(ctx); err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	rt.RecordSingle(2)

	// Pause through the real endpoint, then end it early.
	if err := rt.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := rt.NextQuestion(ctx); !errors.Is(err, runtime.ErrPaused) {
		t.Fatalf("NextQuestion while paused = %v", err)
	}
	if err := rt.SkipPause(ctx); err != nil {
		t.Fatalf("SkipPause: %v", err)
	}

	for i := 2; i < 4; i++ {
		if err := rt.NextQuestion(ctx); err != nil {
			t.Fatalf("NextQuestion to %d: %v", i, err)
		}
		rt.RecordSingle(2)
	}
	if err := rt.NextQuestion(ctx); err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	rt.RecordSingle(3)

	sessionID := rt.Context().SessionID

	resp, err := rt.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.TotalCorrect != 4 || resp.TotalQuestions != 5 {
		t.Errorf("score = %d/%d, want 4/5", resp.TotalCorrect, resp.TotalQuestions)
	}
	if rt.State() != runtime.StateTerminal {
		t.Errorf("State = %v", rt.State())
	}

	// Every session-keyed record is purged after a successful submit.
	if keys, _ := repo.Keys(config.RecordKey.SessionPrefix(sessionID)); len(keys) != 0 {
		t.Errorf("records left after submit: %v", keys)
	}

	// The server rejects anything further on this attempt.
	if _, err := api.Submit(ctx, model.SubmitRequest{
		SessionID: sessionID,
		Answers:   []model.AnswerRecord{},
	}); err == nil {
		t.Error("resubmission accepted")
	}
}

func TestInsufficientQuestionsAdjustedOverHTTP(t *testing.T) {
	bank := newMemoryBank(3)
	ts := newTestServer(t, bank)

	repo := records.NewMemoryRepository()
	api := runtime.NewHTTPExamAPI(ts.URL+"/api/v1", ts.Client())
	rt := runtime.New(api, repo, zerolog.Nop())

	err := rt.Start(context.Background(), runtime.StartParams{
		Count:           10,
		ExamType:        "net-fundamentals",
		AutoAdjustCount: true,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := len(rt.Context().Questions); got != 3 {
		t.Errorf("questions = %d, want the 3 available", got)
	}
}

func TestProgressStream(t *testing.T) {
	bank := newMemoryBank(2)
	ts := newTestServer(t, bank)
	ctx := context.Background()

	api := runtime.NewHTTPExamAPI(ts.URL+"/api/v1", ts.Client())
	resp, err := api.SelectExam(ctx, model.SelectExamRequest{Count: 2, ExamType: "net-fundamentals"})
	if err != nil {
		t.Fatalf("SelectExam: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") +
		"/ws/v1/exams/" + resp.SessionID + "/progress"
	conn, _, err := gws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The initial state frame arrives unprompted.
	var initial wsschema.StateResponse
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("read initial state: %v", err)
	}
	if initial.Event != wsschema.EventState || initial.CurrentIndex != 0 {
		t.Fatalf("initial state = %+v", initial)
	}

	// A progress report comes back mirrored with the updated clock.
	if err := conn.WriteJSON(wsschema.RequestPayload{
		Action:         wsschema.ActionProgress,
		CurrentIndex:   1,
		ElapsedSeconds: 45,
	}); err != nil {
		t.Fatalf("write progress: %v", err)
	}
	var state wsschema.StateResponse
	if err := conn.ReadJSON(&state); err != nil {
		t.Fatalf("read state: %v", err)
	}
	if state.CurrentIndex != 1 {
		t.Errorf("mirrored index = %d, want 1", state.CurrentIndex)
	}
	if state.RemainingSeconds <= 0 {
		t.Errorf("remaining = %d", state.RemainingSeconds)
	}

	// Ping round-trips.
	if err := conn.WriteJSON(wsschema.RequestPayload{Action: wsschema.ActionPing}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	var pong wsschema.PongResponse
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if pong.Event != wsschema.EventPong {
		t.Errorf("pong = %+v", pong)
	}
}
