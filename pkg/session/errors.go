package session

import "errors"

var (
	// ErrDeviceUnavailable is reported when the microphone cannot be
	// acquired or the capture driver dies mid-recording. The cycle is
	// finished; the user retries with a new toggle.
	ErrDeviceUnavailable = errors.New("session: audio device unavailable")

	// ErrEmptyRecording is reported when a capture finishes with no
	// usable speech. No backend call is made for the cycle.
	ErrEmptyRecording = errors.New("session: no speech captured")

	// ErrRemoteCallFailed is reported when a backend round trip fails,
	// whether by transport error or an error reply.
	ErrRemoteCallFailed = errors.New("session: backend request failed")

	// ErrPlaybackFailed is reported when the spoken reply could not be
	// decoded or played. The conversation log keeps the exchange.
	ErrPlaybackFailed = errors.New("session: response playback failed")

	// ErrNotConnected rejects a typed message while the backend is
	// unreachable. The conversation log is not touched.
	ErrNotConnected = errors.New("session: backend not connected")

	// ErrClosed is returned when using a controller after Close.
	ErrClosed = errors.New("session: controller closed")
)
