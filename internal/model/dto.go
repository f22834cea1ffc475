package model

// SelectExamRequest starts an attempt with the full question set returned
// up front.
type SelectExamRequest struct {
	Count       int               `json:"count" binding:"required,min=1,max=300"`
	ExamType    string            `json:"exam_type" binding:"required,min=1,max=64"`
	Filters     map[string]string `json:"filters" binding:"omitempty"`
	QuestionIDs []int             `json:"question_ids" binding:"omitempty,dive,min=1"`
}

// SelectExamResponse carries the started attempt. When selection fails for
// lack of questions, the error body carries the Available count instead.
type SelectExamResponse struct {
	SessionID string        `json:"session_id"`
	Total     int           `json:"total"`
	Exam      ExamBlueprint `json:"exam"`
	Questions []Question    `json:"questions"`
}

// StartOnDemandRequest starts an attempt in server-paged mode: questions
// are fetched one by one through the question-by-index endpoint.
type StartOnDemandRequest struct {
	Count    int               `json:"count" binding:"required,min=1,max=300"`
	ExamType string            `json:"exam_type" binding:"required,min=1,max=64"`
	Filters  map[string]string `json:"filters" binding:"omitempty"`
}

// StartOnDemandResponse carries only the blueprint; questions follow lazily.
type StartOnDemandResponse struct {
	SessionID string        `json:"session_id"`
	Total     int           `json:"total"`
	Exam      ExamBlueprint `json:"exam"`
}

// SubmitRequest carries an ordered answer list, one entry per question.
type SubmitRequest struct {
	SessionID string         `json:"session_id" binding:"required"`
	Answers   []AnswerRecord `json:"answers" binding:"required,dive"`
	Partial   bool           `json:"partial"`
}

// SubmitDetail reports the grading outcome of a single question.
type SubmitDetail struct {
	QuestionID int  `json:"question_id"`
	Correct    bool `json:"correct"`
	Answered   bool `json:"answered"`
}

// SubmitResponse is the grading result of a final submission.
type SubmitResponse struct {
	TotalCorrect   int            `json:"total_correct"`
	TotalQuestions int            `json:"total_questions"`
	Details        []SubmitDetail `json:"details"`
}

// ResumeRequest rebuilds an in-memory attempt from the session store
// after a server restart or a page reload.
type ResumeRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// ResumeResponse returns the persisted attempt state.
type ResumeResponse struct {
	Session   *ExamSession `json:"session"`
	Questions []Question   `json:"questions,omitempty"`
}

// CheckAnswerRequest verifies a single answer out of band.
type CheckAnswerRequest struct {
	SessionID string       `json:"session_id" binding:"required"`
	Answer    AnswerRecord `json:"answer" binding:"required"`
}

// CheckAnswerResponse reveals correctness and the explanation. It never
// affects grading.
type CheckAnswerResponse struct {
	QuestionID       int    `json:"question_id"`
	Correct          bool   `json:"correct"`
	CorrectOptionIDs []int  `json:"correct_option_ids,omitempty"`
	Explanation      string `json:"explanation,omitempty"`
}

// PauseStatusResponse reports the pause clock of an attempt.
type PauseStatusResponse struct {
	Paused      bool   `json:"paused"`
	PausedUntil string `json:"paused_until,omitempty"`
	// CooldownRemainingSeconds is zero when a new pause may start.
	CooldownRemainingSeconds int `json:"cooldown_remaining_seconds"`
}
