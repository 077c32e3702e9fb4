package web

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/aidahome/go-aida/pkg/audioio"
	"github.com/aidahome/go-aida/pkg/capture"
	"github.com/aidahome/go-aida/pkg/gateway"
	"github.com/aidahome/go-aida/pkg/playback"
	"github.com/aidahome/go-aida/pkg/session"
	"github.com/aidahome/go-aida/pkg/transcript"
)

// statusBody mirrors the status snapshot's JSON wire shape.
type statusBody struct {
	State      string `json:"state"`
	Connection string `json:"connection"`
	Room       string `json:"room"`
	Messages   int    `json:"messages"`
	LastError  string `json:"last_error"`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := audioio.DefaultConfig()
	cfg.Backend = audioio.BackendMock

	src := audioio.NewMockSource(cfg, nil, audioio.WithManualFeed())
	rec, err := capture.NewRecorder(src)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}
	player := playback.NewPlayer(audioio.NewMockSink(cfg, nil), nil)
	logbook := transcript.NewLog()

	ctrl, err := session.NewController(gateway.NewMock(), rec, player, logbook,
		session.WithRoom("studio"))
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}

	t.Cleanup(func() {
		ctrl.Close()
		rec.Close()
		player.Close()
	})
	return NewServer(ctrl, ":0", nil)
}

func getStatus(t *testing.T, s *Server) statusBody {
	t.Helper()
	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/status", nil))
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body statusBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return body
}

func TestHandleStatus(t *testing.T) {
	s := newTestServer(t)

	body := getStatus(t, s)
	if body.State != "idle" {
		t.Errorf("state = %q, want idle", body.State)
	}
	if body.Connection != "connecting" {
		t.Errorf("connection = %q, want connecting", body.Connection)
	}
	if body.Room != "studio" {
		t.Errorf("room = %q, want studio", body.Room)
	}
}

func TestHandleTranscript(t *testing.T) {
	s := newTestServer(t)
	s.controller.Transcript().AddUserMessage("hello")
	s.controller.Transcript().AddAssistantMessage("hi there")

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/transcript", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var msgs []transcript.Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != transcript.RoleUser || msgs[0].Content != "hello" {
		t.Errorf("unexpected first message: %+v", msgs[0])
	}
}

func TestHandleClearTranscript(t *testing.T) {
	s := newTestServer(t)
	s.controller.Transcript().AddUserMessage("hello")

	resp, err := s.App().Test(httptest.NewRequest("POST", "/api/transcript/clear", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := s.controller.Transcript().Len(); got != 0 {
		t.Errorf("expected cleared transcript, got %d entries", got)
	}
}

func TestHandleMessageValidation(t *testing.T) {
	s := newTestServer(t)

	resp, err := s.App().Test(httptest.NewRequest("POST", "/api/message", strings.NewReader("not json")))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Errorf("malformed body status = %d, want 400", resp.StatusCode)
	}

	req := httptest.NewRequest("POST", "/api/message", strings.NewReader(`{"text":"   "}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = s.App().Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Errorf("blank text status = %d, want 400", resp.StatusCode)
	}

	req = httptest.NewRequest("POST", "/api/message", strings.NewReader(`{"text":"turn on lights"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = s.App().Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 202 {
		t.Errorf("valid text status = %d, want 202", resp.StatusCode)
	}
}

func TestHandleMessageDisconnectedSurfacesError(t *testing.T) {
	s := newTestServer(t)

	// The monitor never ran, so the controller is not connected and the
	// dispatched cycle must reject and retain the error.
	req := httptest.NewRequest("POST", "/api/message", strings.NewReader(`{"text":"turn on lights"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 202 {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if body := getStatus(t, s); body.LastError != "" {
			if !strings.Contains(body.LastError, "not connected") {
				t.Errorf("last_error = %q, want a not-connected rejection", body.LastError)
			}
			if body.Messages != 0 {
				t.Errorf("rejected send mutated the log: %d messages", body.Messages)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("rejection never surfaced on the status API")
}

func TestHandleToggle(t *testing.T) {
	s := newTestServer(t)

	resp, err := s.App().Test(httptest.NewRequest("POST", "/api/toggle", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 202 {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}
}

func TestHandleStopPlayback(t *testing.T) {
	s := newTestServer(t)

	resp, err := s.App().Test(httptest.NewRequest("POST", "/api/playback/stop", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestHandleSystem(t *testing.T) {
	s := newTestServer(t)

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/system", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "cpu_cores") {
		t.Error("response should contain host fields")
	}
}

func TestWebsocketUpgradeRequired(t *testing.T) {
	s := newTestServer(t)

	resp, err := s.App().Test(httptest.NewRequest("GET", "/ws/status", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusUpgradeRequired)
	}
}
