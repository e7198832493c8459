package websocket

import "github.com/stemsi/quizspin-backend/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventTick    Event = "tick"
	EventTimeout Event = "timeout"
	EventError   Event = "error"
	EventPong    Event = "pong"
)

// TickResponse is the 1 Hz display frame. SecondsLeft is recomputed from
// the persisted start time on every frame.
type TickResponse struct {
	Event       Event       `json:"event"`
	Phase       model.Phase `json:"phase"`
	SecondsLeft int         `json:"secondsLeft"`
}

// TimeoutResponse is the final frame of a stream; the connection closes after it.
type TimeoutResponse struct {
	Event         Event       `json:"event"`
	Phase         model.Phase `json:"phase"`
	CorrectLetter string      `json:"correctLetter,omitempty"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
