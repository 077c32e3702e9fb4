package session

// State identifies where the controller is in the interaction cycle.
// Exactly one state is active at a time for a given conversation.
type State int

const (
	// StateIdle means no capture, processing, or playback is active.
	StateIdle State = iota

	// StateListening means a capture session is recording the microphone.
	StateListening

	// StateProcessing means the recorded audio or typed message is in a
	// backend round trip.
	StateProcessing

	// StatePlayingResponse means the spoken reply is being played.
	StatePlayingResponse
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StatePlayingResponse:
		return "playing_response"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name, so JSON surfaces report "idle"
// rather than 0.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ConnectionStatus tracks backend reachability. It is an independent
// axis from State: the controller can be Idle while disconnected, and
// Listening may only be entered while connected.
type ConnectionStatus int

const (
	// StatusDisconnected means the last health probe failed.
	StatusDisconnected ConnectionStatus = iota

	// StatusConnecting means no probe has completed yet.
	StatusConnecting

	// StatusConnected means the backend answered the last health probe.
	StatusConnected
)

// String returns a human-readable status name.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// MarshalText renders the status name for JSON surfaces.
func (s ConnectionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
