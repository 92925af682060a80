package click

import (
	"context"
	"testing"
	"time"

	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/input"
	"github.com/teslashibe/go-gaze/pkg/region"
	"github.com/teslashibe/go-gaze/pkg/sched"
)

type fixture struct {
	hub   *gaze.Hub
	mock  *gaze.Mock
	keys  *input.Keyboard
	clock *sched.Manual
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := sched.NewManual()
	mock := gaze.NewMock()
	h := gaze.NewHub(mock, clock)
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	return &fixture{hub: h, mock: mock, keys: input.NewKeyboard(input.DefaultKeymap()), clock: clock}
}

func (f *fixture) bind(id string, b region.Bounds, onClick Handler) *Target {
	return Bind(f.hub, f.hub, f.keys, f.clock, Binding{
		ID:      id,
		Locator: region.Fixed(b),
		Margin:  20,
		OnClick: onClick,
	}, DefaultConfig())
}

func TestTrigger_ClickOnlyWhileHovering(t *testing.T) {
	f := newFixture(t)

	var events []Event
	tgt := f.bind("btn", region.Rect(100, 100, 100, 100), func(e Event) { events = append(events, e) })
	defer tgt.Close()

	// 25 px outside with a 20 px margin.
	f.mock.Emit(75, 150)
	if _, handled := f.keys.Dispatch("Space"); handled {
		t.Error("press while not hovering must not be handled")
	}
	if len(events) != 0 {
		t.Fatalf("clicked while not hovering: %v", events)
	}

	// 15 px outside.
	f.mock.Emit(85, 150)
	if _, handled := f.keys.Dispatch("Space"); !handled {
		t.Error("press while hovering should suppress the default action")
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}

	ev := events[0]
	if ev.RegionID != "btn" || ev.X != 85 || ev.Y != 150 {
		t.Errorf("event = %+v", ev)
	}
}

func TestTrigger_EachPressClicksOnce(t *testing.T) {
	f := newFixture(t)

	n := 0
	tgt := f.bind("btn", region.Rect(0, 0, 100, 100), func(Event) { n++ })
	defer tgt.Close()

	f.mock.Emit(50, 50)
	for i := 0; i < 4; i++ {
		f.keys.Dispatch("Space")
	}
	if n != 4 {
		t.Errorf("clicks = %d, want 4", n)
	}
}

func TestTrigger_OtherKeysIgnored(t *testing.T) {
	f := newFixture(t)

	n := 0
	tgt := f.bind("btn", region.Rect(0, 0, 100, 100), func(Event) { n++ })
	defer tgt.Close()

	f.mock.Emit(50, 50)
	f.keys.Dispatch("KeyD")
	f.keys.Dispatch("KeyR")
	if n != 0 {
		t.Errorf("clicks = %d, want 0", n)
	}
}

func TestTrigger_FeedbackWindowRestarts(t *testing.T) {
	f := newFixture(t)

	var feedback []bool
	tgt := Bind(f.hub, f.hub, f.keys, f.clock, Binding{
		ID:         "btn",
		Locator:    region.Fixed(region.Rect(0, 0, 100, 100)),
		OnClick:    func(Event) {},
		OnFeedback: func(c bool) { feedback = append(feedback, c) },
	}, DefaultConfig())
	defer tgt.Close()

	f.mock.Emit(50, 50)
	f.keys.Dispatch("Space")
	if !tgt.Confirmed() {
		t.Fatal("should be confirmed right after a click")
	}

	f.clock.Advance(150 * time.Millisecond)
	f.keys.Dispatch("Space")

	// The first timer would have expired here.
	f.clock.Advance(100 * time.Millisecond)
	if !tgt.Confirmed() {
		t.Error("second press should restart the 200ms window")
	}

	f.clock.Advance(100 * time.Millisecond)
	if tgt.Confirmed() {
		t.Error("feedback should clear 200ms after the last press")
	}
	if f.clock.Pending() != 0 {
		t.Errorf("timers not stacked: pending = %d", f.clock.Pending())
	}

	want := []bool{true, false}
	if len(feedback) != len(want) || feedback[0] != want[0] || feedback[1] != want[1] {
		t.Errorf("feedback = %v, want %v", feedback, want)
	}
}

func TestTrigger_RegionsEvaluateIndependently(t *testing.T) {
	f := newFixture(t)

	var a, b int
	ta := f.bind("a", region.Rect(0, 0, 100, 100), func(Event) { a++ })
	tb := f.bind("b", region.Rect(600, 600, 100, 100), func(Event) { b++ })
	defer ta.Close()
	defer tb.Close()

	f.mock.Emit(50, 50)
	f.keys.Dispatch("Space")

	if a != 1 || b != 0 {
		t.Errorf("clicks a=%d b=%d, want 1/0", a, b)
	}
	if tb.Hovered() {
		t.Error("region b must not be hovered")
	}
}

func TestTarget_HoverOnly(t *testing.T) {
	f := newFixture(t)

	tgt := f.bind("label", region.Rect(0, 0, 100, 100), nil)
	defer tgt.Close()

	f.mock.Emit(50, 50)
	if !tgt.Hovered() {
		t.Error("hover-only target should still hover")
	}
	if _, handled := f.keys.Dispatch("Space"); handled {
		t.Error("hover-only target must not consume Confirm")
	}
	if tgt.Clickable() {
		t.Error("Clickable should be false")
	}
}

func TestTarget_CloseReleasesEverything(t *testing.T) {
	f := newFixture(t)

	n := 0
	tgt := f.bind("btn", region.Rect(0, 0, 100, 100), func(Event) { n++ })

	f.mock.Emit(50, 50)
	f.keys.Dispatch("Space")
	tgt.Close()

	if f.hub.ObserverCount() != 0 {
		t.Errorf("gaze observers leaked: %d", f.hub.ObserverCount())
	}
	if f.keys.ListenerCount() != 0 {
		t.Errorf("key listeners leaked: %d", f.keys.ListenerCount())
	}
	if f.clock.Pending() != 0 {
		t.Errorf("feedback timer leaked: %d", f.clock.Pending())
	}

	f.keys.Dispatch("Space")
	if n != 1 {
		t.Errorf("clicks after Close = %d, want 1", n)
	}
}

func TestTarget_DefaultMargin(t *testing.T) {
	f := newFixture(t)

	tgt := Bind(f.hub, f.hub, f.keys, f.clock, Binding{
		ID:      "btn",
		Locator: region.Fixed(region.Rect(100, 100, 100, 100)),
	}, DefaultConfig())
	defer tgt.Close()

	// 15 px left of the edge: inside only with the 20 px default margin.
	f.mock.Emit(85, 150)
	if !tgt.Hovered() {
		t.Error("unset Margin should keep the default tolerance")
	}
}

func TestTarget_RemovedRegionDoesNotClick(t *testing.T) {
	f := newFixture(t)
	layout := region.NewLayout()
	layout.Set("btn", region.Rect(0, 0, 100, 100))

	n := 0
	tgt := Bind(f.hub, f.hub, f.keys, f.clock, Binding{
		ID:      "btn",
		Locator: layout.Locator("btn"),
		OnClick: func(Event) { n++ },
	}, DefaultConfig())
	defer tgt.Close()

	f.mock.Emit(50, 50)
	layout.Remove("btn")
	f.mock.Emit(50, 50)

	if _, handled := f.keys.Dispatch("Space"); handled {
		t.Error("press on a removed region must not be consumed")
	}
	if n != 0 {
		t.Errorf("clicks = %d, want 0", n)
	}
}
