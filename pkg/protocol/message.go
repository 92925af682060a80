// Package protocol defines the WebSocket messages exchanged with the gaze
// tracker and with presentation clients.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Tracker → Server messages
	TypeReady MessageType = "ready" // Tracker started and acknowledged begin
	TypeGaze  MessageType = "gaze"  // One gaze estimate
	TypeError MessageType = "error" // Tracker-side failure

	// Server → Tracker messages
	TypeBegin     MessageType = "begin"     // Start estimating
	TypeEnd       MessageType = "end"       // Stop estimating
	TypeRecord    MessageType = "record"    // Training sample at a screen point
	TypeClear     MessageType = "clear"     // Drop all training data
	TypeDebug     MessageType = "debug"     // Show or hide debug outputs
	TypeSmoothing MessageType = "smoothing" // Toggle the Kalman filter

	// Presentation → Server messages
	TypeKey          MessageType = "key"           // Key-down
	TypeViewport     MessageType = "viewport"      // Viewport size
	TypeLayout       MessageType = "layout"        // Element bounds
	TypeRemoveRegion MessageType = "remove_region" // Element unmounted
	TypeContent      MessageType = "content"       // Content scroll geometry
	TypeOpenContent  MessageType = "open_content"
	TypeCloseContent MessageType = "close_content"

	// Server → Presentation messages
	TypeState     MessageType = "state"      // Session snapshot
	TypeClick     MessageType = "click"      // Gaze click
	TypeKeyResult MessageType = "key_result" // Whether the key was consumed
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s data: %w", msgType, err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into v. A message without data
// leaves v untouched.
func (m *Message) ParseData(v any) error {
	if len(m.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadPayload, m.Type, err)
	}
	return nil
}

// Time returns the message timestamp, or the zero time if unset.
func (m *Message) Time() time.Time {
	if m.Timestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(m.Timestamp)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return &msg, nil
}

// =============================================================================
// Tracker → Server Message Types
// =============================================================================

// GazeData is one gaze estimate in viewport px.
type GazeData struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ErrorData reports a tracker-side failure.
type ErrorData struct {
	Op      string `json:"op,omitempty"`
	Message string `json:"message"`
}

// =============================================================================
// Server → Tracker Message Types
// =============================================================================

// RecordData is a training sample: the user was looking at (X, Y).
type RecordData struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DebugData toggles the tracker's visual debug outputs.
type DebugData struct {
	Video            *bool `json:"video,omitempty"`
	PredictionPoints *bool `json:"prediction_points,omitempty"`
}

// SmoothingData toggles the tracker's Kalman filter.
type SmoothingData struct {
	Enabled bool `json:"enabled"`
}

// =============================================================================
// Presentation → Server Message Types
// =============================================================================

// KeyData is one key-down, identified by its physical key code ("Space").
type KeyData struct {
	Code string `json:"code"`
}

// ViewportData is the presentation surface size.
type ViewportData struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// LayoutData reports the live bounds of one element.
type LayoutData struct {
	ID     string  `json:"id"`
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// RemoveRegionData reports that an element is no longer mounted.
type RemoveRegionData struct {
	ID string `json:"id"`
}

// ContentData reports the scroll geometry of the open content.
type ContentData struct {
	ScrollHeight float64 `json:"scroll_height"`
	ClientHeight float64 `json:"client_height"`
}

// =============================================================================
// Server → Presentation Message Types
// =============================================================================

// ClickData is one gaze click.
type ClickData struct {
	ID       string  `json:"id"`
	RegionID string  `json:"region_id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// KeyResultData tells the presentation whether to suppress the key's
// default action.
type KeyResultData struct {
	Code    string `json:"code"`
	Command string `json:"command"`
	Handled bool   `json:"handled"`
}
