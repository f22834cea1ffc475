package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/quizient/certlab-backend/internal/model"
	"github.com/quizient/certlab-backend/internal/response"
	"github.com/quizient/certlab-backend/internal/service"
	"github.com/quizient/certlab-backend/internal/validator"
)

// ExamHandler handles attempt lifecycle endpoints.
type ExamHandler struct {
	examService    *service.ExamService
	gradingService *service.GradingService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, gradingService *service.GradingService) *ExamHandler {
	return &ExamHandler{
		examService:    examService,
		gradingService: gradingService,
	}
}

// Select godoc
// POST /api/v1/exams/select
// Starts an attempt with the full question set returned up front. When the
// bank cannot serve the requested count, the error carries the available
// count so the client can offer a retry.
func (h *ExamHandler) Select(c *gin.Context) {
	var req model.SelectExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrCodeValidation, fields)
		return
	}

	resp, err := h.examService.Select(c.Request.Context(), &req)
	if err != nil {
		var insufficient *service.InsufficientQuestionsError
		if errors.As(err, &insufficient) {
			response.FailWithFields(c, http.StatusConflict, response.ErrCodeInsufficientQuestions, map[string]string{
				"available": strconv.Itoa(insufficient.Available),
			})
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrCodeInternal)
		return
	}

	response.Success(c, http.StatusCreated, resp)
}

// StartOnDemand godoc
// POST /api/v1/exams/on-demand
// Starts an attempt in server-paged mode; questions follow by index.
func (h *ExamHandler) StartOnDemand(c *gin.Context) {
	var req model.StartOnDemandRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrCodeValidation, fields)
		return
	}

	resp, err := h.examService.StartOnDemand(c.Request.Context(), &req)
	if err != nil {
		var insufficient *service.InsufficientQuestionsError
		if errors.As(err, &insufficient) {
			response.FailWithFields(c, http.StatusConflict, response.ErrCodeInsufficientQuestions, map[string]string{
				"available": strconv.Itoa(insufficient.Available),
			})
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrCodeInternal)
		return
	}

	response.Success(c, http.StatusCreated, resp)
}

// QuestionAt godoc
// GET /api/v1/exams/:session_id/questions/:index
// Serves one question by position for server-paged attempts.
func (h *ExamHandler) QuestionAt(c *gin.Context) {
	sessionID := c.Param("session_id")
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrCodeInvalidIndex)
		return
	}

	question, err := h.examService.QuestionAt(c.Request.Context(), sessionID, index)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrCodeSessionNotFound)
		case errors.Is(err, service.ErrInvalidIndex):
			response.Fail(c, http.StatusBadRequest, response.ErrCodeInvalidIndex)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrCodeInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question": question})
}

// Submit godoc
// POST /api/v1/exams/submit
// Accepts checkpoint snapshots (partial=true, acknowledged only) and the
// final submission (graded, closes the attempt).
func (h *ExamHandler) Submit(c *gin.Context) {
	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrCodeValidation, fields)
		return
	}

	resp, err := h.gradingService.Submit(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrCodeSessionNotFound)
		case errors.Is(err, service.ErrSessionSubmitted):
			response.Fail(c, http.StatusConflict, response.ErrCodeSessionSubmitted)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrCodeInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, resp)
}

// Resume godoc
// POST /api/v1/exams/resume
// Rebuilds an attempt from the session store and refreshes its TTL.
func (h *ExamHandler) Resume(c *gin.Context) {
	var req model.ResumeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrCodeValidation, fields)
		return
	}

	resp, err := h.examService.Resume(c.Request.Context(), req.SessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrCodeSessionNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrCodeInternal)
		return
	}

	response.Success(c, http.StatusOK, resp)
}

// CheckAnswer godoc
// POST /api/v1/exams/check-answer
// Verifies one answer out of band; never affects grading.
func (h *ExamHandler) CheckAnswer(c *gin.Context) {
	var req model.CheckAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrCodeValidation, fields)
		return
	}

	resp, err := h.gradingService.CheckAnswer(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrCodeSessionNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrCodeInternal)
		return
	}

	response.Success(c, http.StatusOK, resp)
}
