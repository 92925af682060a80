package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-gaze/pkg/engine"
	"github.com/teslashibe/go-gaze/pkg/input"
	"github.com/teslashibe/go-gaze/pkg/protocol"
	"github.com/teslashibe/go-gaze/pkg/region"
	"github.com/teslashibe/go-gaze/pkg/remote"
	"github.com/teslashibe/go-gaze/pkg/session"
)

// fakeEngine records calls instead of running a loop.
type fakeEngine struct {
	mu      sync.Mutex
	calls   []string
	regions map[string]region.Bounds
	width   int
	height  int
	extent  session.Extent
	err     error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{regions: make(map[string]region.Bounds)}
}

func (f *fakeEngine) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeEngine) called(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == name {
			return true
		}
	}
	return false
}

func (f *fakeEngine) Key(ctx context.Context, code string) (input.Command, bool, error) {
	if err := f.record("Key:" + code); err != nil {
		return input.None, false, err
	}
	if code == "Space" {
		return input.Confirm, true, nil
	}
	return input.None, false, nil
}

func (f *fakeEngine) Resize(ctx context.Context, width, height int) error {
	f.mu.Lock()
	f.width, f.height = width, height
	f.mu.Unlock()
	return f.record("Resize")
}

func (f *fakeEngine) SetRegion(ctx context.Context, id string, b region.Bounds) error {
	f.mu.Lock()
	f.regions[id] = b
	f.mu.Unlock()
	return f.record("SetRegion")
}

func (f *fakeEngine) RemoveRegion(ctx context.Context, id string) error {
	f.mu.Lock()
	delete(f.regions, id)
	f.mu.Unlock()
	return f.record("RemoveRegion")
}

func (f *fakeEngine) SetContentExtent(ctx context.Context, ext session.Extent) error {
	f.mu.Lock()
	f.extent = ext
	f.mu.Unlock()
	return f.record("SetContentExtent")
}

func (f *fakeEngine) OpenContent(ctx context.Context) error       { return f.record("OpenContent") }
func (f *fakeEngine) CloseContent(ctx context.Context) error      { return f.record("CloseContent") }
func (f *fakeEngine) Recalibrate(ctx context.Context) error       { return f.record("Recalibrate") }
func (f *fakeEngine) ToggleDiagnostics(ctx context.Context) error { return f.record("ToggleDiagnostics") }

func (f *fakeEngine) Snapshot(ctx context.Context) (session.Snapshot, error) {
	if err := f.record("Snapshot"); err != nil {
		return session.Snapshot{}, err
	}
	return f.Last(), nil
}

func (f *fakeEngine) Last() session.Snapshot {
	return session.Snapshot{Mode: "interacting", Calibrated: true}
}

func (f *fakeEngine) GetStats() engine.Stats {
	return engine.Stats{EventsProcessed: 7, Mode: "interacting"}
}

func newTestServer(t *testing.T) (*Server, *fakeEngine) {
	t.Helper()
	eng := newFakeEngine()
	tracker := remote.New(remote.DefaultConfig())
	return NewServer(DefaultConfig(), eng, tracker, WithVersion("test")), eng
}

func do(t *testing.T, s *Server, method, path, body string) (int, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatalf("%s %s error: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(data)
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	code, body := do(t, s, "GET", "/health", "")
	if code != 200 {
		t.Fatalf("status = %d", code)
	}
	var resp map[string]any
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "ok" || resp["version"] != "test" || resp["mode"] != "interacting" {
		t.Errorf("health = %v", resp)
	}
	if resp["tracker_connected"] != false {
		t.Errorf("tracker_connected = %v, want false", resp["tracker_connected"])
	}
}

func TestMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	code, body := do(t, s, "GET", "/metrics", "")
	if code != 200 {
		t.Fatalf("status = %d", code)
	}
	for _, want := range []string{
		"gaze_loop_events_total 7",
		"gaze_tracker_ready 0",
		"gaze_presentation_clients 0",
		"gaze_remote_connected 0",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestAPIRoutes(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		call   string
	}{
		{"status", "GET", "/api/status", "", 200, "Snapshot"},
		{"viewport", "POST", "/api/viewport", `{"width":1440,"height":900}`, 200, "Resize"},
		{"viewport zero", "POST", "/api/viewport", `{"width":0,"height":900}`, 400, ""},
		{"set layout", "PUT", "/api/layout/blog", `{"left":10,"top":10,"right":110,"bottom":60}`, 200, "SetRegion"},
		{"inverted layout", "PUT", "/api/layout/blog", `{"left":110,"top":10,"right":10,"bottom":60}`, 400, ""},
		{"remove layout", "DELETE", "/api/layout/blog", "", 200, "RemoveRegion"},
		{"recalibrate", "POST", "/api/recalibrate", "", 200, "Recalibrate"},
		{"diagnostics", "POST", "/api/diagnostics", "", 200, "ToggleDiagnostics"},
		{"open content", "POST", "/api/content/open", "", 200, "OpenContent"},
		{"close content", "POST", "/api/content/close", "", 200, "CloseContent"},
		{"content extent", "PUT", "/api/content", `{"scroll_height":2000,"client_height":800}`, 200, "SetContentExtent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, eng := newTestServer(t)
			code, body := do(t, s, tt.method, tt.path, tt.body)
			if code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", code, tt.status, body)
			}
			if tt.call != "" && !eng.called(tt.call) {
				t.Errorf("%s not called; calls = %v", tt.call, eng.calls)
			}
		})
	}
}

func TestAPIKey(t *testing.T) {
	s, _ := newTestServer(t)
	code, body := do(t, s, "POST", "/api/keys/Space", "")
	if code != 200 {
		t.Fatalf("status = %d", code)
	}
	var res protocol.KeyResultData
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Code != "Space" || res.Command != input.Confirm.String() || !res.Handled {
		t.Errorf("result = %+v", res)
	}
}

func TestAPIEngineStopped(t *testing.T) {
	s, eng := newTestServer(t)
	eng.err = engine.ErrNotRunning
	code, body := do(t, s, "POST", "/api/recalibrate", "")
	if code != 503 {
		t.Errorf("status = %d, want 503", code)
	}
	if !strings.Contains(body, engine.ErrNotRunning.Error()) {
		t.Errorf("body = %s", body)
	}
}

func TestTrackerRouteRegistered(t *testing.T) {
	s, _ := newTestServer(t)
	code, _ := do(t, s, "GET", "/ws/tracker", "")
	if code != 426 {
		t.Errorf("plain GET /ws/tracker status = %d, want 426", code)
	}
	code, _ = do(t, s, "GET", "/ws/session", "")
	if code != 426 {
		t.Errorf("plain GET /ws/session status = %d, want 426", code)
	}
}

func startServer(t *testing.T, port int) (*Server, *fakeEngine, *websocket.Conn) {
	t.Helper()
	eng := newFakeEngine()
	cfg := DefaultConfig()
	cfg.Port = port
	s := NewServer(cfg, eng, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Start(ctx)
	t.Cleanup(func() {
		cancel()
		s.Shutdown(context.Background())
	})
	time.Sleep(100 * time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://localhost:%d/ws/session", port), nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return s, eng, ws
}

func readMessage(t *testing.T, ws *websocket.Conn) *protocol.Message {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage error: %v", err)
	}
	return msg
}

func sender(t *testing.T, ws *websocket.Conn) func(*protocol.Message, error) {
	return func(msg *protocol.Message, err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("build message: %v", err)
		}
		data, err := msg.Bytes()
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}
}

func waitCalled(t *testing.T, eng *fakeEngine, name string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !eng.called(name) {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", name)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSessionSocket_GreetsAndRoutes(t *testing.T) {
	_, eng, ws := startServer(t, 18280)
	send := sender(t, ws)

	if msg := readMessage(t, ws); msg.Type != protocol.TypeState {
		t.Fatalf("first message type = %q, want state", msg.Type)
	}

	send(protocol.NewKeyMessage("Space"))
	msg := readMessage(t, ws)
	if msg.Type != protocol.TypeKeyResult {
		t.Fatalf("reply type = %q, want key_result", msg.Type)
	}
	res, err := msg.GetKeyResultData()
	if err != nil || !res.Handled || res.Code != "Space" {
		t.Errorf("key result = %+v, err = %v", res, err)
	}

	send(protocol.NewViewportMessage(1280, 800))
	send(protocol.NewLayoutMessage("game", 1, 2, 3, 4))
	waitCalled(t, eng, "SetRegion")

	eng.mu.Lock()
	defer eng.mu.Unlock()
	if eng.width != 1280 || eng.height != 800 {
		t.Errorf("viewport = %dx%d", eng.width, eng.height)
	}
	if b := eng.regions["game"]; b != (region.Bounds{Left: 1, Top: 2, Right: 3, Bottom: 4}) {
		t.Errorf("game bounds = %+v", b)
	}
}

func TestSessionSocket_Broadcasts(t *testing.T) {
	s, _, ws := startServer(t, 18281)
	readMessage(t, ws) // greeting

	s.PublishState(session.Snapshot{Mode: "reading_content"})
	msg := readMessage(t, ws)
	if msg.Type != protocol.TypeState {
		t.Fatalf("type = %q, want state", msg.Type)
	}
	var snap session.Snapshot
	if err := msg.ParseData(&snap); err != nil {
		t.Fatalf("ParseData error: %v", err)
	}
	if snap.Mode != "reading_content" {
		t.Errorf("mode = %q", snap.Mode)
	}
}

func TestSessionSocket_IgnoresGarbage(t *testing.T) {
	_, eng, ws := startServer(t, 18282)
	send := sender(t, ws)
	readMessage(t, ws)

	if err := ws.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	send(protocol.NewMessage(protocol.TypeOpenContent, nil))
	waitCalled(t, eng, "OpenContent")
}

func TestSessionSocket_RejectsInvalidGeometry(t *testing.T) {
	_, eng, ws := startServer(t, 18283)
	send := sender(t, ws)
	readMessage(t, ws)

	send(protocol.NewViewportMessage(0, 800))
	send(protocol.NewLayoutMessage("game", 100, 100, 10, 10))
	send(protocol.NewMessage(protocol.TypeOpenContent, nil))
	waitCalled(t, eng, "OpenContent")

	if eng.called("Resize") {
		t.Error("zero-width viewport must not reach the engine")
	}
	if eng.called("SetRegion") {
		t.Error("inverted bounds must not reach the engine")
	}
}
