package playback

import "errors"

var (
	// ErrPlaybackFailed indicates the payload could not be decoded or
	// the output device rejected the audio.
	ErrPlaybackFailed = errors.New("playback: output failed")

	// ErrClosed is returned when using a player after Close.
	ErrClosed = errors.New("playback: player is closed")
)
