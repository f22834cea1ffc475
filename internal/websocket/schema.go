package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionProgress Action = "progress"
	ActionPing     Action = "ping"
)

// RequestPayload carries every client message; unused fields stay zero.
type RequestPayload struct {
	Action         Action `json:"action"`
	CurrentIndex   int    `json:"current_index"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState Event = "state"
	EventPong  Event = "pong"
	EventError Event = "error"
)

// StateResponse mirrors the attempt clock back after a progress report.
type StateResponse struct {
	Event            Event  `json:"event"`
	CurrentIndex     int    `json:"current_index"`
	RemainingSeconds int    `json:"remaining_seconds"`
	Paused           bool   `json:"paused"`
	PausedUntil      string `json:"paused_until,omitempty"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}
