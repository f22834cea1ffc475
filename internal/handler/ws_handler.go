package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/quizient/certlab-backend/internal/model"
	"github.com/quizient/certlab-backend/internal/service"
	ws "github.com/quizient/certlab-backend/internal/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams attempt progress over WebSocket. The client reports
// its position and elapsed time; the server mirrors the attempt clock
// back so a reconnecting tab can resynchronize.
type WSHandler struct {
	examService *service.ExamService
	log         zerolog.Logger
	upgrader    websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(examService *service.ExamService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		examService: examService,
		log:         log.With().Str("component", "ws_handler").Logger(),
		upgrader:    buildUpgrader(allowedOrigins),
	}
}

// ProgressStream godoc
// WS /ws/v1/exams/:session_id/progress
func (h *WSHandler) ProgressStream(c *gin.Context) {
	sessionID := c.Param("session_id")

	session, err := h.examService.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("session_id", sessionID).Logger()
	wsLog.Info().Msg("Progress stream connected")

	// Send the stored state right away so a fresh tab catches up.
	ws.WriteTyped(conn, buildState(session))

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Progress stream closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionProgress:
			h.handleProgress(conn, wsLog, sessionID, &msg)
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(msg.Action))
		}
	}
}

func (h *WSHandler) handleProgress(conn *websocket.Conn, wsLog zerolog.Logger, sessionID string, msg *ws.RequestPayload) {
	if msg.CurrentIndex < 0 || msg.ElapsedSeconds < 0 {
		ws.WriteError(conn, "current_index and elapsed_seconds must be non-negative")
		return
	}

	session, err := h.examService.UpdateProgress(context.Background(), sessionID, msg.CurrentIndex, msg.ElapsedSeconds)
	if err != nil {
		wsLog.Warn().Err(err).Msg("Progress update failed")
		ws.WriteError(conn, "progress update failed")
		return
	}

	ws.WriteTyped(conn, buildState(session))
}

func buildState(session *model.ExamSession) ws.StateResponse {
	resp := ws.StateResponse{
		Event:            ws.EventState,
		CurrentIndex:     session.CurrentIndex,
		RemainingSeconds: int(session.Remaining().Seconds()),
	}
	if session.PausedUntil != nil && time.Now().Before(*session.PausedUntil) {
		resp.Paused = true
		resp.PausedUntil = session.PausedUntil.UTC().Format(time.RFC3339)
	}
	return resp
}
