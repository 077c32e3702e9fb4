// Package session sequences the end-to-end voice interaction cycle:
// capture the microphone, run the audio or a typed message through the
// backend gateway, record the exchange in the conversation log, and
// play the spoken reply.
//
// The controller is a single state machine per conversation. All
// public operations are guarded by one reentrancy gate, so overlapping
// triggers (a double-clicked talk button, a text send racing a voice
// cycle) become no-ops instead of concurrent cycles. Playback stop is
// the one exception: it is always available, so a user can cut audio
// off mid-reply.
//
// Example usage:
//
//	ctrl, err := session.NewController(backend, recorder, player, log,
//	    session.WithRoom("kitchen"),
//	    session.WithWakeWord("apartment"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer ctrl.Close()
//
//	ctrl.OnMessage(func(msg transcript.Message) {
//	    fmt.Printf("%s: %s\n", msg.Role, msg.Content)
//	})
//
//	if err := ctrl.Start(ctx); err != nil {
//	    return err
//	}
//
//	ctrl.ToggleListening(ctx) // begin recording
//	// ... user speaks ...
//	ctrl.ToggleListening(ctx) // stop, process, play the reply
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/aidahome/go-aida/pkg/capture"
	"github.com/aidahome/go-aida/pkg/gateway"
	"github.com/aidahome/go-aida/pkg/playback"
	"github.com/aidahome/go-aida/pkg/transcript"
	"github.com/aidahome/go-aida/pkg/wakeword"
)

// gate is the controller's reentrancy guard: a two-state machine
// (free or busy) claimed at the top of every state-mutating public
// operation and released in a deferred cleanup. Entry while busy
// fails instead of blocking, which is what turns overlapping triggers
// into no-ops.
type gate struct {
	mu   sync.Mutex
	busy bool
}

// enter claims the gate. It reports false when another operation
// holds it.
func (g *gate) enter() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy {
		return false
	}
	g.busy = true
	return true
}

// leave releases the gate.
func (g *gate) leave() {
	g.mu.Lock()
	g.busy = false
	g.mu.Unlock()
}

// active reports whether an operation holds the gate.
func (g *gate) active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}

// Controller drives one conversation. It owns the interaction state
// machine and sequences the capture, gateway, transcript, and playback
// components handed to it; their lifetimes belong to the caller.
type Controller struct {
	config   *Config
	backend  gateway.Backend
	recorder *capture.Recorder
	player   *playback.Player
	log      *transcript.Log
	wake     *wakeword.Detector
	logger   *slog.Logger

	tracer       trace.Tracer
	cycleLatency metric.Float64Histogram
	cycleErrors  metric.Int64Counter

	gate gate

	mu        sync.Mutex
	state     State
	conn      ConnectionStatus
	cycle     uint64
	lastErr   error
	closed    bool
	startedAt time.Time

	onState   func(State)
	onConn    func(ConnectionStatus)
	onMessage func(transcript.Message)
	onError   func(error)

	probeStop chan struct{}
	probeDone chan struct{}
}

// NewController creates a controller over the given components. The
// backend, recorder, player, and log are required; everything else is
// configured through options.
func NewController(backend gateway.Backend, recorder *capture.Recorder, player *playback.Player, log *transcript.Log, opts ...Option) (*Controller, error) {
	if backend == nil {
		return nil, errors.New("session: backend is required")
	}
	if recorder == nil {
		return nil, errors.New("session: recorder is required")
	}
	if player == nil {
		return nil, errors.New("session: player is required")
	}
	if log == nil {
		return nil, errors.New("session: transcript log is required")
	}

	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("session: invalid config: %w", err)
	}

	c := &Controller{
		config:    cfg,
		backend:   backend,
		recorder:  recorder,
		player:    player,
		log:       log,
		logger:    cfg.Logger.With("component", "session.controller"),
		tracer:    cfg.Tracer,
		state:     StateIdle,
		conn:      StatusConnecting,
		startedAt: time.Now(),
	}
	if cfg.WakeWord != "" {
		c.wake = wakeword.NewDetector(cfg.WakeWord)
	}

	var err error
	c.cycleLatency, err = cfg.Meter.Float64Histogram(
		"session.cycle.duration",
		metric.WithDescription("Time from cycle start to response delivery in milliseconds"),
	)
	if err != nil {
		c.logger.Warn("failed to create cycle duration histogram", "error", err)
	}
	c.cycleErrors, err = cfg.Meter.Int64Counter(
		"session.cycle.errors",
		metric.WithDescription("Interaction cycles that ended in error"),
	)
	if err != nil {
		c.logger.Warn("failed to create cycle error counter", "error", err)
	}

	return c, nil
}

// OnStateChange sets the callback for interaction state transitions.
func (c *Controller) OnStateChange(fn func(State)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// OnConnectionChange sets the callback for connection status changes.
func (c *Controller) OnConnectionChange(fn func(ConnectionStatus)) {
	c.mu.Lock()
	c.onConn = fn
	c.mu.Unlock()
}

// OnMessage sets the callback invoked for each message appended to the
// conversation log.
func (c *Controller) OnMessage(fn func(transcript.Message)) {
	c.mu.Lock()
	c.onMessage = fn
	c.mu.Unlock()
}

// OnError sets the callback for reported cycle errors.
func (c *Controller) OnError(fn func(error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

// ToggleListening flips the capture side of the cycle: in Idle while
// connected it starts a capture session and moves to Listening; in
// Listening it stops the capture and runs the recorded audio through
// the backend, playing the reply before returning to Idle. Calls made
// in any other state, while disconnected, or while another operation
// is in flight are silent no-ops.
func (c *Controller) ToggleListening(ctx context.Context) error {
	if !c.gate.enter() {
		c.logger.Debug("toggle ignored, operation in flight")
		return nil
	}
	defer c.gate.leave()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	state := c.state
	conn := c.conn
	c.mu.Unlock()

	switch state {
	case StateIdle:
		if conn != StatusConnected {
			c.logger.Debug("toggle ignored, backend not connected", "connection", conn)
			return nil
		}
		return c.startListening(ctx)
	case StateListening:
		return c.finishListening(ctx)
	default:
		c.logger.Debug("toggle ignored", "state", state)
		return nil
	}
}

// startListening begins a capture session. Callers hold the gate.
func (c *Controller) startListening(ctx context.Context) error {
	c.mu.Lock()
	c.lastErr = nil
	c.mu.Unlock()

	if err := c.recorder.Start(ctx); err != nil {
		if errors.Is(err, capture.ErrAlreadyActive) {
			c.logger.Warn("recorder already active, resyncing to listening")
			c.setState(StateListening)
			return nil
		}
		werr := fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		c.reportError(ctx, werr)
		return werr
	}

	c.setState(StateListening)
	c.logger.Info("listening started", "room", c.config.Room)
	return nil
}

// finishListening stops the capture and runs the voice cycle on the
// recorded audio. Callers hold the gate.
func (c *Controller) finishListening(ctx context.Context) error {
	token := c.newCycleToken()

	ctx, span := c.tracer.Start(ctx, "voice_cycle")
	defer span.End()
	start := time.Now()

	artifact, err := c.recorder.Stop().Wait(ctx)
	if err != nil {
		c.setState(StateIdle)
		werr := fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		c.reportError(ctx, werr)
		return werr
	}
	c.setState(StateProcessing)

	if artifact == nil || len(artifact.WAV) == 0 {
		c.setState(StateIdle)
		c.reportError(ctx, ErrEmptyRecording)
		return ErrEmptyRecording
	}
	c.logger.Info("capture finished",
		"chunks", artifact.Chunks,
		"duration", artifact.Duration,
	)

	heard, err := c.backend.SpeechToText(ctx, artifact.WAV)
	if err != nil {
		c.setState(StateIdle)
		werr := fmt.Errorf("%w: %v", ErrRemoteCallFailed, err)
		c.reportError(ctx, werr)
		return werr
	}
	if c.stale(token) {
		c.logger.Debug("stale transcript discarded", "cycle", token)
		c.setState(StateIdle)
		return nil
	}
	if heard == "" {
		c.setState(StateIdle)
		c.reportError(ctx, ErrEmptyRecording)
		return ErrEmptyRecording
	}

	if c.wake != nil {
		match := c.wake.Detect(heard)
		if !match.Detected {
			c.logger.Info("wake word not detected, dropping capture", "heard", heard)
			c.setState(StateIdle)
			return nil
		}
		command := c.wake.ExtractCommand(heard, match.MatchedWord)
		if command == "" {
			c.logger.Info("wake word without command, dropping capture")
			c.setState(StateIdle)
			return nil
		}
		c.logger.Debug("wake word detected",
			"method", match.Method,
			"confidence", match.Confidence,
		)
		return c.converse(ctx, token, command, start)
	}

	result, err := c.backend.VoiceCommand(ctx, artifact.WAV)
	if err != nil {
		c.setState(StateIdle)
		werr := fmt.Errorf("%w: %v", ErrRemoteCallFailed, err)
		c.reportError(ctx, werr)
		return werr
	}
	return c.deliver(ctx, token, heard, result.Text, result.Audio, start)
}

// SendText runs a typed message through the dialogue backend and plays
// the synthesized reply. Empty input and calls made outside Idle, or
// while another operation is in flight, are silent no-ops. A send
// while disconnected is rejected: lastError is set and the
// conversation log is not touched.
func (c *Controller) SendText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if !c.gate.enter() {
		c.logger.Debug("send ignored, operation in flight")
		return nil
	}
	defer c.gate.leave()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	state := c.state
	conn := c.conn
	c.mu.Unlock()

	if state != StateIdle {
		c.logger.Debug("send ignored", "state", state)
		return nil
	}
	if conn != StatusConnected {
		c.reportError(ctx, ErrNotConnected)
		return ErrNotConnected
	}

	token := c.newCycleToken()

	ctx, span := c.tracer.Start(ctx, "text_cycle")
	defer span.End()
	start := time.Now()

	c.setState(StateProcessing)
	return c.converse(ctx, token, text, start)
}

// converse runs the text dialogue: chat with history, synthesize the
// reply when configured, and deliver. Callers hold the gate and are in
// StateProcessing.
func (c *Controller) converse(ctx context.Context, token uint64, text string, start time.Time) error {
	reply, err := c.backend.Chat(ctx, text, c.history())
	if err != nil {
		c.setState(StateIdle)
		werr := fmt.Errorf("%w: %v", ErrRemoteCallFailed, err)
		c.reportError(ctx, werr)
		return werr
	}
	if c.stale(token) {
		c.logger.Debug("stale chat reply discarded", "cycle", token)
		c.setState(StateIdle)
		return nil
	}

	var audio []byte
	if c.config.SpeakReplies {
		audio, err = c.backend.TextToSpeech(ctx, reply)
		if err != nil {
			// The exchange succeeded; deliver the text without audio.
			c.logger.Warn("speech synthesis failed, delivering text only", "error", err)
			audio = nil
		}
	}

	return c.deliver(ctx, token, text, reply, audio, start)
}

// deliver finishes a cycle: append the exchange to the conversation
// log, archive, play the reply audio, and return to Idle. A stale
// token means the cycle was invalidated mid-flight; its result is
// discarded without touching the log. Callers hold the gate.
func (c *Controller) deliver(ctx context.Context, token uint64, userText, reply string, audio []byte, start time.Time) error {
	if c.stale(token) {
		c.logger.Debug("stale cycle result discarded", "cycle", token)
		c.setState(StateIdle)
		return nil
	}

	c.appendTurn(userText, reply)
	c.observeCycle(ctx, start)
	c.archive(ctx)

	if len(audio) > 0 {
		c.setState(StatePlayingResponse)
		if err := c.player.Play(ctx, audio); err != nil {
			c.setState(StateIdle)
			werr := fmt.Errorf("%w: %v", ErrPlaybackFailed, err)
			c.reportError(ctx, werr)
			return werr
		}
	}

	c.setState(StateIdle)
	return nil
}

// StopAudioPlayback cancels the active response playback, if any. It
// never claims the gate: stopping audio must work mid-cycle. The
// interrupted cycle sees its playback finish normally and returns to
// Idle without an error.
func (c *Controller) StopAudioPlayback() {
	c.player.Stop()
}

// ClearConversation archives and empties the dialogue log. Any
// in-flight cycle is invalidated so its result is discarded rather
// than appended to the fresh conversation.
func (c *Controller) ClearConversation(ctx context.Context) {
	c.mu.Lock()
	c.cycle++
	started := c.startedAt
	c.startedAt = time.Now()
	c.mu.Unlock()

	if c.config.Archive != nil && c.log.Len() > 0 {
		id := conversationID(c.config.Room, started)
		if err := c.config.Archive.Archive(ctx, id, started, c.log.Messages()); err != nil {
			c.logger.Warn("conversation archive failed", "error", err)
		}
	}
	c.log.Clear()
	c.logger.Info("conversation cleared", "room", c.config.Room)
}

// Close stops the connection monitor and any active playback and marks
// the controller finished. The capture, playback, gateway, and log
// components belong to the caller and stay open.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.cycle++
	stop, done := c.probeStop, c.probeDone
	c.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	c.player.Stop()
	c.logger.Info("session controller closed")
	return nil
}

// State returns the current interaction state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connection returns the current backend connection status.
func (c *Controller) Connection() ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// LastError returns the most recent reported error. It is retained
// until ClearError or the start of the next cycle.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// ClearError discards the retained error.
func (c *Controller) ClearError() {
	c.mu.Lock()
	c.lastErr = nil
	c.mu.Unlock()
}

// Transcript returns the conversation log backing this controller.
func (c *Controller) Transcript() *transcript.Log {
	return c.log
}

// Status is a point-in-time snapshot of the controller for state
// surfaces like the web API.
type Status struct {
	State      State            `json:"state"`
	Connection ConnectionStatus `json:"connection"`
	Busy       bool             `json:"busy"`
	Room       string           `json:"room"`
	WakeWord   string           `json:"wake_word,omitempty"`
	Recording  bool             `json:"recording"`
	Playing    bool             `json:"playing"`
	Messages   int              `json:"messages"`
	Cycles     uint64           `json:"cycles"`
	LastError  string           `json:"last_error,omitempty"`
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	st := Status{
		State:      c.state,
		Connection: c.conn,
		Room:       c.config.Room,
		WakeWord:   c.config.WakeWord,
		Cycles:     c.cycle,
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	c.mu.Unlock()

	st.Busy = c.gate.active()
	st.Recording = c.recorder.State() == capture.StateRecording
	st.Playing = c.player.IsPlaying()
	st.Messages = c.log.Len()
	return st
}

// newCycleToken starts a fresh cycle: the retained error is superseded
// and the token invalidates any result still in flight from an older
// cycle.
func (c *Controller) newCycleToken() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cycle++
	c.lastErr = nil
	return c.cycle
}

// stale reports whether token no longer identifies the active cycle.
func (c *Controller) stale(token uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cycle != token
}

// setState transitions the interaction state and notifies the
// callback. No-op when the state is unchanged.
func (c *Controller) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	prev := c.state
	c.state = s
	fn := c.onState
	c.mu.Unlock()

	c.logger.Debug("state changed", "from", prev, "to", s)
	if fn != nil {
		fn(s)
	}
}

// reportError retains err as the controller's last error and notifies
// the callback.
func (c *Controller) reportError(ctx context.Context, err error) {
	c.mu.Lock()
	c.lastErr = err
	fn := c.onError
	c.mu.Unlock()

	c.logger.Error("cycle failed", "error", err)
	if c.cycleErrors != nil {
		c.cycleErrors.Add(ctx, 1)
	}
	if fn != nil {
		fn(err)
	}
}

// appendTurn records a completed exchange, user message first.
func (c *Controller) appendTurn(user, reply string) {
	c.mu.Lock()
	fn := c.onMessage
	c.mu.Unlock()

	um := c.log.AddUserMessage(user)
	am := c.log.AddAssistantMessage(reply)
	if fn != nil {
		fn(um)
		fn(am)
	}
}

// history maps the recent conversation window into gateway messages.
func (c *Controller) history() []gateway.Message {
	h := c.log.History()
	if len(h) == 0 {
		return nil
	}
	msgs := make([]gateway.Message, len(h))
	for i, m := range h {
		msgs[i] = gateway.Message{Role: m.Role, Content: m.Content}
	}
	return msgs
}

// archive persists the running conversation. Failures are logged and
// never fail the cycle.
func (c *Controller) archive(ctx context.Context) {
	if c.config.Archive == nil {
		return
	}
	c.mu.Lock()
	started := c.startedAt
	c.mu.Unlock()

	id := conversationID(c.config.Room, started)
	if err := c.config.Archive.Archive(ctx, id, started, c.log.Messages()); err != nil {
		c.logger.Warn("conversation archive failed", "error", err)
	}
}

// observeCycle records the cycle latency histogram.
func (c *Controller) observeCycle(ctx context.Context, start time.Time) {
	if c.cycleLatency == nil {
		return
	}
	c.cycleLatency.Record(ctx, float64(time.Since(start).Milliseconds()))
}

// conversationID names one conversation epoch in the archive store.
func conversationID(room string, startedAt time.Time) string {
	return room + "-" + startedAt.UTC().Format("20060102-150405")
}
