package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quizient/certlab-backend/internal/config"
	"github.com/quizient/certlab-backend/internal/response"
	"github.com/quizient/certlab-backend/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SystemHandler serves health and maintenance endpoints.
type SystemHandler struct {
	examService *service.ExamService
	rdb         *redis.Client
	startTime   time.Time
	log         zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler. rdb may be nil when the
// deployment runs on the in-process session store.
func NewSystemHandler(examService *service.ExamService, rdb *redis.Client, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		examService: examService,
		rdb:         rdb,
		startTime:   time.Now(),
		log:         log.With().Str("component", "system_handler").Logger(),
	}
}

// Health godoc
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"uptime":     time.Since(h.startTime).Round(time.Second).String(),
		"go_version": runtime.Version(),
	})
}

// ListSessions godoc
// GET /api/v1/maintenance/sessions
// Enumerates live attempt ids plus the partial-persistence queue depth.
func (h *SystemHandler) ListSessions(c *gin.Context) {
	ids, err := h.examService.ListSessionIDs(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrCodeInternal)
		return
	}

	var queueDepth int64
	if h.rdb != nil {
		queueDepth, _ = h.rdb.LLen(c.Request.Context(), config.WorkerKey.PersistPartialQueue).Result()
	}

	response.Success(c, http.StatusOK, gin.H{
		"session_ids": ids,
		"total":       len(ids),
		"queue_depth": queueDepth,
	})
}
