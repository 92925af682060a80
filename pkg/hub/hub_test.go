package hub

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	fws "github.com/gofiber/websocket/v2"
	"github.com/gorilla/websocket"
)

func serve(t *testing.T, h *Hub, port int) string {
	t.Helper()
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use("/ws", func(c *fiber.Ctx) error {
		if fws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/test", fws.New(h.Serve))

	go app.Listen(fmt.Sprintf(":%d", port))
	t.Cleanup(func() { app.Shutdown() })
	time.Sleep(100 * time.Millisecond)

	return fmt.Sprintf("ws://localhost:%d/ws/test", port)
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func read(t *testing.T, ws *websocket.Conn) string {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	return string(data)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNew(t *testing.T) {
	h := New("test")
	if h.ClientCount() != 0 {
		t.Error("ClientCount should be 0 initially")
	}
	if h.IsRunning() {
		t.Error("hub should not be running before Run")
	}
}

func TestBroadcast(t *testing.T) {
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	url := serve(t, h, 18190)
	a := dial(t, url)
	b := dial(t, url)
	waitFor(t, "two clients", func() bool { return h.ClientCount() == 2 })

	if err := h.BroadcastJSON(map[string]string{"mode": "calibrating"}); err != nil {
		t.Fatalf("BroadcastJSON error: %v", err)
	}
	want := `{"mode":"calibrating"}`
	if got := read(t, a); got != want {
		t.Errorf("client a got %s, want %s", got, want)
	}
	if got := read(t, b); got != want {
		t.Errorf("client b got %s, want %s", got, want)
	}

	a.Close()
	waitFor(t, "disconnect", func() bool { return h.ClientCount() == 1 })
}

func TestInboundAndSendTo(t *testing.T) {
	var mu sync.Mutex
	var got []string
	var h *Hub
	h = New("test", WithHandler(func(c *Client, data []byte) {
		mu.Lock()
		got = append(got, string(data))
		mu.Unlock()
		h.SendTo(c, []byte("ack:"+string(data)))
	}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	url := serve(t, h, 18191)
	a := dial(t, url)
	b := dial(t, url)
	waitFor(t, "two clients", func() bool { return h.ClientCount() == 2 })

	if err := a.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if reply := read(t, a); reply != "ack:hello" {
		t.Errorf("reply = %q, want ack:hello", reply)
	}

	// b must not see a's reply.
	h.Broadcast([]byte("all"))
	if msg := read(t, b); msg != "all" {
		t.Errorf("b got %q, want all", msg)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "hello" {
		t.Errorf("handler got %v", got)
	}
	if h.GetStats().Received != 1 {
		t.Errorf("received = %d, want 1", h.GetStats().Received)
	}
}

func TestOnConnect(t *testing.T) {
	var h *Hub
	h = New("test", WithOnConnect(func(c *Client) {
		h.SendTo(c, []byte("welcome "+c.ID))
	}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	ws := dial(t, serve(t, h, 18192))
	msg := read(t, ws)
	if len(msg) <= len("welcome ") {
		t.Errorf("welcome = %q, want a client id", msg)
	}
}

func TestRunStopClosesClients(t *testing.T) {
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	ws := dial(t, serve(t, h, 18193))
	waitFor(t, "client", func() bool { return h.ClientCount() == 1 })

	cancel()
	waitFor(t, "stop", func() bool { return !h.IsRunning() })

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Error("client should be closed when the hub stops")
	}
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want 0", h.ClientCount())
	}
}
