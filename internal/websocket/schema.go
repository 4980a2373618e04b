package websocket

import (
	"github.com/prepdesk/examsim-backend/internal/session"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionStartTimer Action = "start_timer"
	ActionPauseTimer Action = "pause_timer"
	ActionAnswer     Action = "answer"
	ActionMark       Action = "mark"
	ActionNavigate   Action = "navigate"
	ActionScroll     Action = "scroll"
	ActionSubmit     Action = "submit"
	ActionPing       Action = "ping"
)

// IntentPayload is the single client message shape. Action selects which
// fields are meaningful.
type IntentPayload struct {
	Action    Action  `json:"action"`
	Index     int     `json:"index,omitempty"`
	Text      string  `json:"text"`
	ViewKey   string  `json:"view_key,omitempty"`
	Position  float64 `json:"position,omitempty"`
	Confirmed bool    `json:"confirmed,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState            Event = "state"
	EventTick             Event = "tick"
	EventExpired          Event = "expired"
	EventConfirmRequired  Event = "confirm_required"
	EventSubmitted        Event = "submitted"
	EventMarked           Event = "marked"
	EventAck              Event = "ack"
	EventResultSaved      Event = "result_saved"
	EventResultSaveFailed Event = "result_save_failed"
	EventError            Event = "error"
	EventPong             Event = "pong"
)

// StateResponse carries the full snapshot, sent once on connect.
type StateResponse struct {
	Event Event                 `json:"event"`
	State session.StateSnapshot `json:"state"`
}

// TickResponse is the once-per-second countdown update.
type TickResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
}

// AckResponse confirms a fire-and-forget intent was applied.
type AckResponse struct {
	Event  Event  `json:"event"`
	Action Action `json:"action"`
}

// MarkedResponse reports the new marked flag after a toggle.
type MarkedResponse struct {
	Event  Event `json:"event"`
	Index  int   `json:"index"`
	Marked bool  `json:"marked"`
}

// SubmitOutcomeResponse reports expiry, the confirmation demand or the
// completed submission.
type SubmitOutcomeResponse struct {
	Event Event `json:"event"`
}

// SaveOutcomeResponse reports the best-effort persistence outcome.
type SaveOutcomeResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error,omitempty"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
