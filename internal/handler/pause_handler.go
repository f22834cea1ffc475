package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quizient/certlab-backend/internal/response"
	"github.com/quizient/certlab-backend/internal/service"
)

// PauseHandler handles the pause clock endpoints of an attempt.
type PauseHandler struct {
	pauseService *service.PauseService
}

// NewPauseHandler creates a new PauseHandler.
func NewPauseHandler(pauseService *service.PauseService) *PauseHandler {
	return &PauseHandler{pauseService: pauseService}
}

// Start godoc
// POST /api/v1/exams/:session_id/pause
// Begins a pause, subject to the cooldown between consecutive pauses.
func (h *PauseHandler) Start(c *gin.Context) {
	resp, err := h.pauseService.Start(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrCodeSessionNotFound)
		case errors.Is(err, service.ErrSessionSubmitted):
			response.Fail(c, http.StatusConflict, response.ErrCodeSessionSubmitted)
		case errors.Is(err, service.ErrPauseCooldown):
			response.Fail(c, http.StatusConflict, response.ErrCodePauseCooldown)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrCodeInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, resp)
}

// Skip godoc
// POST /api/v1/exams/:session_id/pause/skip
// Ends an active pause early. The cooldown keeps running from the
// pause's start.
func (h *PauseHandler) Skip(c *gin.Context) {
	resp, err := h.pauseService.Skip(c.Request.Context(), c.Param("session_id"))
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

// Status godoc
// GET /api/v1/exams/:session_id/pause
// Reports the current pause clock.
func (h *PauseHandler) Status(c *gin.Context) {
	resp, err := h.pauseService.Status(c.Request.Context(), c.Param("session_id"))
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
