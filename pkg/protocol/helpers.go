package protocol

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewGazeMessage creates a gaze estimate message
func NewGazeMessage(x, y float64) (*Message, error) {
	return NewMessage(TypeGaze, GazeData{X: x, Y: y})
}

// NewErrorMessage creates a tracker error message
func NewErrorMessage(op string, err error) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Op: op, Message: err.Error()})
}

// NewRecordMessage creates a training sample message
func NewRecordMessage(x, y float64) (*Message, error) {
	return NewMessage(TypeRecord, RecordData{X: x, Y: y})
}

// NewVideoMessage toggles the camera preview only
func NewVideoMessage(visible bool) (*Message, error) {
	return NewMessage(TypeDebug, DebugData{Video: &visible})
}

// NewPredictionPointsMessage toggles the prediction marker only
func NewPredictionPointsMessage(visible bool) (*Message, error) {
	return NewMessage(TypeDebug, DebugData{PredictionPoints: &visible})
}

// NewSmoothingMessage toggles the Kalman filter
func NewSmoothingMessage(enabled bool) (*Message, error) {
	return NewMessage(TypeSmoothing, SmoothingData{Enabled: enabled})
}

// NewKeyMessage creates a key-down message
func NewKeyMessage(code string) (*Message, error) {
	return NewMessage(TypeKey, KeyData{Code: code})
}

// NewViewportMessage creates a viewport size message
func NewViewportMessage(width, height int) (*Message, error) {
	return NewMessage(TypeViewport, ViewportData{Width: width, Height: height})
}

// NewLayoutMessage reports element bounds
func NewLayoutMessage(id string, left, top, right, bottom float64) (*Message, error) {
	return NewMessage(TypeLayout, LayoutData{ID: id, Left: left, Top: top, Right: right, Bottom: bottom})
}

// NewStateMessage wraps a session snapshot
func NewStateMessage(snapshot any) (*Message, error) {
	return NewMessage(TypeState, snapshot)
}

// NewClickMessage creates a click message
func NewClickMessage(c ClickData) (*Message, error) {
	return NewMessage(TypeClick, c)
}

// NewKeyResultMessage reports how a key was routed
func NewKeyResultMessage(code, command string, handled bool) (*Message, error) {
	return NewMessage(TypeKeyResult, KeyResultData{Code: code, Command: command, Handled: handled})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

func decode[T any](m *Message) (*T, error) {
	var data T
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetGazeData extracts a gaze estimate from a message
func (m *Message) GetGazeData() (*GazeData, error) { return decode[GazeData](m) }

// GetErrorData extracts a tracker error from a message
func (m *Message) GetErrorData() (*ErrorData, error) { return decode[ErrorData](m) }

// GetRecordData extracts a training sample from a message
func (m *Message) GetRecordData() (*RecordData, error) { return decode[RecordData](m) }

// GetDebugData extracts debug toggles from a message
func (m *Message) GetDebugData() (*DebugData, error) { return decode[DebugData](m) }

// GetSmoothingData extracts the smoothing toggle from a message
func (m *Message) GetSmoothingData() (*SmoothingData, error) { return decode[SmoothingData](m) }

// GetKeyData extracts a key-down from a message
func (m *Message) GetKeyData() (*KeyData, error) { return decode[KeyData](m) }

// GetViewportData extracts a viewport size from a message
func (m *Message) GetViewportData() (*ViewportData, error) { return decode[ViewportData](m) }

// GetLayoutData extracts element bounds from a message
func (m *Message) GetLayoutData() (*LayoutData, error) { return decode[LayoutData](m) }

// GetRemoveRegionData extracts an unmounted element id from a message
func (m *Message) GetRemoveRegionData() (*RemoveRegionData, error) {
	return decode[RemoveRegionData](m)
}

// GetContentData extracts content geometry from a message
func (m *Message) GetContentData() (*ContentData, error) { return decode[ContentData](m) }

// GetClickData extracts a click from a message
func (m *Message) GetClickData() (*ClickData, error) { return decode[ClickData](m) }

// GetKeyResultData extracts a key result from a message
func (m *Message) GetKeyResultData() (*KeyResultData, error) { return decode[KeyResultData](m) }
