package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/quizient/certlab-backend/internal/model"
)

// ExamAPI is the server collaborator boundary: question selection, pause
// lifecycle, submission, and answer verification. The runtime never talks
// HTTP directly; tests substitute this interface.
type ExamAPI interface {
	SelectExam(ctx context.Context, req model.SelectExamRequest) (*model.SelectExamResponse, error)
	StartOnDemand(ctx context.Context, req model.StartOnDemandRequest) (*model.StartOnDemandResponse, error)
	QuestionAt(ctx context.Context, sessionID string, index int) (*model.Question, error)
	Submit(ctx context.Context, req model.SubmitRequest) (*model.SubmitResponse, error)
	Resume(ctx context.Context, sessionID string) (*model.ResumeResponse, error)
	CheckAnswer(ctx context.Context, req model.CheckAnswerRequest) (*model.CheckAnswerResponse, error)
	PauseStart(ctx context.Context, sessionID string) (*model.PauseStatusResponse, error)
	PauseSkip(ctx context.Context, sessionID string) (*model.PauseStatusResponse, error)
	PauseStatus(ctx context.Context, sessionID string) (*model.PauseStatusResponse, error)
}

// APIError is a non-success server response with its full body preserved,
// so a failed submission can be surfaced as an inspectable diagnostic
// instead of a vanished toast.
type APIError struct {
	Status  int             `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	// Available carries the server's usable question count when a
	// selection failed for lack of questions.
	Available int             `json:"available,omitempty"`
	Body      json.RawMessage `json:"body,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server responded %d (%s): %s", e.Status, e.Code, e.Message)
}

// HTTPExamAPI talks to the exam endpoints over HTTP.
type HTTPExamAPI struct {
	base   string
	client *http.Client
}

// NewHTTPExamAPI creates an HTTPExamAPI. client may be nil for the default.
func NewHTTPExamAPI(base string, client *http.Client) *HTTPExamAPI {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPExamAPI{base: base, client: client}
}

// envelope mirrors the server's response wrapper.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func (a *HTTPExamAPI) SelectExam(ctx context.Context, req model.SelectExamRequest) (*model.SelectExamResponse, error) {
	var resp model.SelectExamResponse
	if err := a.do(ctx, http.MethodPost, "/exams/select", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *HTTPExamAPI) StartOnDemand(ctx context.Context, req model.StartOnDemandRequest) (*model.StartOnDemandResponse, error) {
	var resp model.StartOnDemandResponse
	if err := a.do(ctx, http.MethodPost, "/exams/on-demand", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *HTTPExamAPI) QuestionAt(ctx context.Context, sessionID string, index int) (*model.Question, error) {
	var resp struct {
		Question model.Question `json:"question"`
	}
	path := fmt.Sprintf("/exams/%s/questions/%d", sessionID, index)
	if err := a.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Question, nil
}

func (a *HTTPExamAPI) Submit(ctx context.Context, req model.SubmitRequest) (*model.SubmitResponse, error) {
	var resp model.SubmitResponse
	if err := a.do(ctx, http.MethodPost, "/exams/submit", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *HTTPExamAPI) Resume(ctx context.Context, sessionID string) (*model.ResumeResponse, error) {
	var resp model.ResumeResponse
	if err := a.do(ctx, http.MethodPost, "/exams/resume", model.ResumeRequest{SessionID: sessionID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *HTTPExamAPI) CheckAnswer(ctx context.Context, req model.CheckAnswerRequest) (*model.CheckAnswerResponse, error) {
	var resp model.CheckAnswerResponse
	if err := a.do(ctx, http.MethodPost, "/exams/check-answer", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *HTTPExamAPI) PauseStart(ctx context.Context, sessionID string) (*model.PauseStatusResponse, error) {
	return a.pauseCall(ctx, http.MethodPost, fmt.Sprintf("/exams/%s/pause", sessionID))
}

func (a *HTTPExamAPI) PauseSkip(ctx context.Context, sessionID string) (*model.PauseStatusResponse, error) {
	return a.pauseCall(ctx, http.MethodPost, fmt.Sprintf("/exams/%s/pause/skip", sessionID))
}

func (a *HTTPExamAPI) PauseStatus(ctx context.Context, sessionID string) (*model.PauseStatusResponse, error) {
	return a.pauseCall(ctx, http.MethodGet, fmt.Sprintf("/exams/%s/pause", sessionID))
}

func (a *HTTPExamAPI) pauseCall(ctx context.Context, method, path string) (*model.PauseStatusResponse, error) {
	var resp model.PauseStatusResponse
	if err := a.do(ctx, method, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *HTTPExamAPI) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	if resp.StatusCode >= 300 || env.Error != nil {
		apiErr := &APIError{Status: resp.StatusCode, Body: raw}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			if av, ok := env.Error.Fields["available"]; ok {
				fmt.Sscanf(av, "%d", &apiErr.Available)
			}
		}
		return apiErr
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("parse response data: %w", err)
		}
	}
	return nil
}
