package capture

import "errors"

var (
	// ErrAlreadyActive is returned when starting a capture while one
	// is already recording or paused.
	ErrAlreadyActive = errors.New("capture: session already active")

	// ErrDeviceUnavailable is returned when the microphone cannot be
	// acquired. It is terminal for the attempted cycle; the caller
	// must retry with a new session.
	ErrDeviceUnavailable = errors.New("capture: device unavailable")

	// ErrCaptureFailed is returned when the capture driver dies
	// mid-recording. The session is finished; start a new one.
	ErrCaptureFailed = errors.New("capture: driver stopped unexpectedly")

	// ErrClosed is returned when using a recorder after Close.
	ErrClosed = errors.New("capture: recorder closed")
)
