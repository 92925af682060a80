package gaze

import (
	"context"
	"sync"
	"time"
)

// Mock implements Tracker for testing.
// Methods can be customized via function fields; all calls are recorded.
type Mock struct {
	// BeginFunc is called when Begin is invoked.
	// If nil, Begin acknowledges immediately.
	BeginFunc func(ctx context.Context) error

	// RecordFunc is called when RecordScreenPosition is invoked.
	// If nil, returns nil.
	RecordFunc func(x, y float64) error

	// VisibilityFunc is called for both visibility toggles.
	// If nil, returns nil.
	VisibilityFunc func(visible bool) error

	mu       sync.Mutex
	onSample func(Sample)
	calls    []MockCall
	records  [][2]float64
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	X, Y   float64
	Flag   bool
}

// NewMock creates a mock tracker that starts successfully.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) record(c MockCall) {
	m.mu.Lock()
	m.calls = append(m.calls, c)
	m.mu.Unlock()
}

// Begin implements Tracker.
func (m *Mock) Begin(ctx context.Context, onSample func(Sample)) error {
	m.record(MockCall{Method: "Begin"})
	if m.BeginFunc != nil {
		if err := m.BeginFunc(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.onSample = onSample
	m.mu.Unlock()
	return nil
}

// End implements Tracker.
func (m *Mock) End() error {
	m.record(MockCall{Method: "End"})
	m.mu.Lock()
	m.onSample = nil
	m.mu.Unlock()
	return nil
}

// RecordScreenPosition implements Tracker.
func (m *Mock) RecordScreenPosition(x, y float64) error {
	m.record(MockCall{Method: "RecordScreenPosition", X: x, Y: y})
	if m.RecordFunc != nil {
		if err := m.RecordFunc(x, y); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.records = append(m.records, [2]float64{x, y})
	m.mu.Unlock()
	return nil
}

// ClearData implements Tracker.
func (m *Mock) ClearData() error {
	m.record(MockCall{Method: "ClearData"})
	m.mu.Lock()
	m.records = nil
	m.mu.Unlock()
	return nil
}

// SetVideoVisible implements Tracker.
func (m *Mock) SetVideoVisible(visible bool) error {
	m.record(MockCall{Method: "SetVideoVisible", Flag: visible})
	if m.VisibilityFunc != nil {
		return m.VisibilityFunc(visible)
	}
	return nil
}

// SetPredictionPointsVisible implements Tracker.
func (m *Mock) SetPredictionPointsVisible(visible bool) error {
	m.record(MockCall{Method: "SetPredictionPointsVisible", Flag: visible})
	if m.VisibilityFunc != nil {
		return m.VisibilityFunc(visible)
	}
	return nil
}

// SetKalmanFilter implements Tracker.
func (m *Mock) SetKalmanFilter(enabled bool) error {
	m.record(MockCall{Method: "SetKalmanFilter", Flag: enabled})
	return nil
}

// Emit pushes a sample as if the tracker produced it.
// It is a no-op before Begin or after End.
func (m *Mock) Emit(x, y float64) {
	m.mu.Lock()
	fn := m.onSample
	m.mu.Unlock()
	if fn != nil {
		fn(Sample{X: x, Y: y, At: time.Unix(0, 0)})
	}
}

// Calls returns a copy of recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times method was invoked.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Records returns the training points currently held (cleared by ClearData).
func (m *Mock) Records() [][2]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][2]float64, len(m.records))
	copy(out, m.records)
	return out
}

// LastFlag returns the flag of the most recent call to method.
func (m *Mock) LastFlag(method string) (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.calls) - 1; i >= 0; i-- {
		if m.calls[i].Method == method {
			return m.calls[i].Flag, true
		}
	}
	return false, false
}
