package web

import "github.com/aidahome/go-aida/pkg/transcript"

// Event types carried on the /ws/events stream.
const (
	EventState      = "state"
	EventConnection = "connection"
	EventMessage    = "message"
	EventError      = "error"
)

// Event is one frame on the /ws/events stream. Type selects which of
// the optional fields is set.
type Event struct {
	Type       string              `json:"type"`
	State      string              `json:"state,omitempty"`
	Connection string              `json:"connection,omitempty"`
	Message    *transcript.Message `json:"message,omitempty"`
	Error      string              `json:"error,omitempty"`
}
