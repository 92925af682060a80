// Package remote implements gaze.Tracker over a WebSocket connection to a
// tracker page running the estimation model in a browser.
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/protocol"
)

// Config holds remote tracker parameters.
type Config struct {
	// StartTimeout bounds Begin. Zero waits until the context ends.
	StartTimeout time.Duration `yaml:"start_timeout"`
}

// DefaultConfig returns the stock remote tracker configuration.
func DefaultConfig() Config {
	return Config{}
}

// conn is one attached tracker page.
type conn struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time

	lastSeen atomic.Int64 // unix nanoseconds
	mu       sync.Mutex   // serializes writes
}

func (c *conn) seen() {
	c.lastSeen.Store(time.Now().UnixNano())
}

// LastSeen returns when the page last sent a message.
func (c *conn) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

func (c *conn) send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

// Tracker is a gaze.Tracker backed by whichever tracker page is currently
// connected to /ws/tracker. A reconnecting page replaces the previous one.
type Tracker struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.RWMutex
	current  *conn
	begun    bool
	onSample func(gaze.Sample)
	waiter   chan error // pending Begin, nil once answered

	// Stats
	connections      atomic.Uint64
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	samplesReceived  atomic.Uint64
	trackerErrors    atomic.Uint64
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// New creates a remote tracker. Register its routes before serving.
func New(cfg Config, opts ...Option) *Tracker {
	t := &Tracker{
		cfg:    cfg,
		logger: slog.Default().With("component", "remote.tracker"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RegisterRoutes registers the tracker WebSocket endpoint.
func (t *Tracker) RegisterRoutes(r fiber.Router) {
	r.Use("/ws/tracker", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	r.Get("/ws/tracker", websocket.New(t.handle))
}

func (t *Tracker) handle(c *websocket.Conn) {
	tc := &conn{
		ID:        uuid.NewString(),
		Conn:      c,
		Connected: time.Now(),
	}
	tc.seen()

	t.mu.Lock()
	prev := t.current
	t.current = tc
	begun := t.begun
	t.mu.Unlock()

	t.connections.Add(1)
	t.logger.Info("tracker connected", "id", tc.ID, "replaces", prevID(prev))
	if prev != nil {
		prev.Conn.Close()
	}
	if begun {
		t.sendTo(tc, protocol.TypeBegin, nil)
	}

	defer func() {
		t.mu.Lock()
		if t.current == tc {
			t.current = nil
		}
		t.mu.Unlock()
		t.logger.Info("tracker disconnected", "id", tc.ID)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			t.logger.Debug("tracker read ended", "id", tc.ID, "error", err)
			return
		}
		tc.seen()

		t.messagesReceived.Add(1)
		t.handleMessage(tc, data)
	}
}

func prevID(c *conn) string {
	if c == nil {
		return ""
	}
	return c.ID
}

func (t *Tracker) handleMessage(tc *conn, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		t.logger.Warn("bad tracker message", "id", tc.ID, "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeReady:
		t.answer(nil)

	case protocol.TypeGaze:
		g, err := msg.GetGazeData()
		if err != nil {
			t.logger.Warn("bad gaze payload", "id", tc.ID, "error", err)
			return
		}
		t.samplesReceived.Add(1)
		t.mu.RLock()
		cb := t.onSample
		t.mu.RUnlock()
		if cb != nil {
			cb(gaze.Sample{X: g.X, Y: g.Y, At: msg.Time()})
		}

	case protocol.TypeError:
		t.trackerErrors.Add(1)
		e, err := msg.GetErrorData()
		if err != nil {
			return
		}
		t.logger.Warn("tracker reported error", "id", tc.ID, "op", e.Op, "message", e.Message)
		if e.Op == string(protocol.TypeBegin) {
			t.answer(fmt.Errorf("%w: %s", ErrTrackerFailed, e.Message))
		}

	default:
		t.logger.Debug("ignoring tracker message", "type", msg.Type)
	}
}

// answer resolves a pending Begin, if any.
func (t *Tracker) answer(err error) {
	t.mu.Lock()
	w := t.waiter
	t.waiter = nil
	t.mu.Unlock()
	if w != nil {
		w <- err
	}
}

// Begin implements gaze.Tracker. It waits for a tracker page, asks it to
// start and returns once it reports ready.
func (t *Tracker) Begin(ctx context.Context, onSample func(gaze.Sample)) error {
	w := make(chan error, 1)

	t.mu.Lock()
	if t.begun {
		t.mu.Unlock()
		return ErrAlreadyBegun
	}
	t.begun = true
	t.onSample = onSample
	t.waiter = w
	tc := t.current
	t.mu.Unlock()

	if tc != nil {
		t.sendTo(tc, protocol.TypeBegin, nil)
	} else {
		t.logger.Info("waiting for tracker to connect")
	}

	if t.cfg.StartTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.StartTimeout)
		defer cancel()
	}

	select {
	case err := <-w:
		if err != nil {
			t.abandon()
			return err
		}
		t.logger.Info("tracker ready")
		return nil
	case <-ctx.Done():
		t.abandon()
		return fmt.Errorf("%w: %v", ErrStartTimeout, ctx.Err())
	}
}

func (t *Tracker) abandon() {
	t.mu.Lock()
	t.begun = false
	t.onSample = nil
	t.waiter = nil
	t.mu.Unlock()
}

// End implements gaze.Tracker.
func (t *Tracker) End() error {
	t.abandon()
	err := t.send(protocol.TypeEnd, nil)
	if errors.Is(err, ErrNotConnected) {
		return nil
	}
	return err
}

// RecordScreenPosition implements gaze.Tracker.
func (t *Tracker) RecordScreenPosition(x, y float64) error {
	return t.send(protocol.TypeRecord, protocol.RecordData{X: x, Y: y})
}

// ClearData implements gaze.Tracker.
func (t *Tracker) ClearData() error {
	return t.send(protocol.TypeClear, nil)
}

// SetVideoVisible implements gaze.Tracker.
func (t *Tracker) SetVideoVisible(visible bool) error {
	return t.send(protocol.TypeDebug, protocol.DebugData{Video: &visible})
}

// SetPredictionPointsVisible implements gaze.Tracker.
func (t *Tracker) SetPredictionPointsVisible(visible bool) error {
	return t.send(protocol.TypeDebug, protocol.DebugData{PredictionPoints: &visible})
}

// SetKalmanFilter implements gaze.Tracker.
func (t *Tracker) SetKalmanFilter(enabled bool) error {
	return t.send(protocol.TypeSmoothing, protocol.SmoothingData{Enabled: enabled})
}

func (t *Tracker) send(typ protocol.MessageType, data any) error {
	t.mu.RLock()
	tc := t.current
	t.mu.RUnlock()
	if tc == nil {
		return ErrNotConnected
	}
	return t.sendTo(tc, typ, data)
}

func (t *Tracker) sendTo(tc *conn, typ protocol.MessageType, data any) error {
	msg, err := protocol.NewMessage(typ, data)
	if err != nil {
		return err
	}
	if err := tc.send(msg); err != nil {
		t.logger.Warn("tracker send failed", "id", tc.ID, "type", typ, "error", err)
		return fmt.Errorf("send %s: %w", typ, err)
	}
	t.messagesSent.Add(1)
	return nil
}

// Connected reports whether a tracker page is attached.
func (t *Tracker) Connected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current != nil
}

// Stats contains remote tracker statistics
type Stats struct {
	Connected        bool      `json:"connected"`
	ConnectionID     string    `json:"connection_id,omitempty"`
	LastSeen         time.Time `json:"last_seen,omitempty"`
	Connections      uint64    `json:"connections"`
	MessagesReceived uint64    `json:"messages_received"`
	MessagesSent     uint64    `json:"messages_sent"`
	SamplesReceived  uint64    `json:"samples_received"`
	TrackerErrors    uint64    `json:"tracker_errors"`
}

// GetStats returns remote tracker statistics
func (t *Tracker) GetStats() Stats {
	s := Stats{
		Connections:      t.connections.Load(),
		MessagesReceived: t.messagesReceived.Load(),
		MessagesSent:     t.messagesSent.Load(),
		SamplesReceived:  t.samplesReceived.Load(),
		TrackerErrors:    t.trackerErrors.Load(),
	}
	t.mu.RLock()
	tc := t.current
	t.mu.RUnlock()
	if tc != nil {
		s.Connected = true
		s.ConnectionID = tc.ID
		s.LastSeen = tc.LastSeen()
	}
	return s
}
