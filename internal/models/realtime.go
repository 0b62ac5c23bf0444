package models

// Event types pushed to connected clients.
const (
	EventMatchFound   = "match_found"
	EventSessionEnded = "session_ended"
	EventMessage      = "message"
	EventSignal       = "signal"
)

// Event is a realtime notification addressed to a single user.
// It is a hint: the authoritative state is always re-read through the API.
type Event struct {
	Type      string            `json:"type"`
	UserID    string            `json:"user_id"`
	SessionID string            `json:"session_id"`
	Session   *ChatSession      `json:"session,omitempty"`
	Message   *Message          `json:"message,omitempty"`
	Signal    *SignalingMessage `json:"signal,omitempty"`
}

// Lean drops the record bodies so the event fits size-limited transports.
func (e Event) Lean() Event {
	return Event{Type: e.Type, UserID: e.UserID, SessionID: e.SessionID}
}

// DebugState is the diagnostic snapshot of the matchmaking tables.
type DebugState struct {
	CallerID       string         `json:"caller_id"`
	Waiting        []WaitingEntry `json:"waiting"`
	ActiveSessions []ChatSession  `json:"active_sessions"`
}
