// Package input maps raw key codes from the presentation layer onto the
// logical commands the gaze engine understands.
package input

import "github.com/google/uuid"

// Command is a logical keyboard command.
type Command int

const (
	// None is any key the engine does not use.
	None Command = iota
	// Confirm completes a dwell into a click (spacebar).
	Confirm
	// ToggleDiagnostics shows or hides the diagnostic overlay.
	ToggleDiagnostics
	// Recalibrate restarts calibration from the first target.
	Recalibrate
)

func (c Command) String() string {
	switch c {
	case Confirm:
		return "confirm"
	case ToggleDiagnostics:
		return "toggle_diagnostics"
	case Recalibrate:
		return "recalibrate"
	default:
		return "none"
	}
}

// Keymap binds DOM KeyboardEvent.code values to commands.
type Keymap struct {
	Confirm           string `yaml:"confirm"`
	ToggleDiagnostics string `yaml:"toggle_diagnostics"`
	Recalibrate       string `yaml:"recalibrate"`
}

// DefaultKeymap returns the stock bindings: Space, D and R.
func DefaultKeymap() Keymap {
	return Keymap{
		Confirm:           "Space",
		ToggleDiagnostics: "KeyD",
		Recalibrate:       "KeyR",
	}
}

// Lookup returns the command bound to code.
func (k Keymap) Lookup(code string) Command {
	switch code {
	case "":
		return None
	case k.Confirm:
		return Confirm
	case k.ToggleDiagnostics:
		return ToggleDiagnostics
	case k.Recalibrate:
		return Recalibrate
	}
	return None
}

// Listener handles a command and reports whether it consumed it.
type Listener func(Command) bool

// Keyboard is the global key-down listener registry. Like the rest of the
// engine it is used from the scheduler goroutine only.
type Keyboard struct {
	keymap    Keymap
	listeners map[uuid.UUID]Listener
	order     []uuid.UUID
}

// NewKeyboard creates a keyboard with the given bindings.
func NewKeyboard(keymap Keymap) *Keyboard {
	return &Keyboard{
		keymap:    keymap,
		listeners: make(map[uuid.UUID]Listener),
	}
}

// Keymap returns the active bindings.
func (k *Keyboard) Keymap() Keymap {
	return k.keymap
}

// Listen registers fn and returns the function that removes it.
func (k *Keyboard) Listen(fn Listener) (unlisten func()) {
	id := uuid.New()
	k.listeners[id] = fn
	k.order = append(k.order, id)

	var done bool
	return func() {
		if done {
			return
		}
		done = true
		delete(k.listeners, id)
		for i, v := range k.order {
			if v == id {
				k.order = append(k.order[:i:i], k.order[i+1:]...)
				break
			}
		}
	}
}

// Dispatch delivers the command bound to code to every listener. Each
// listener decides independently. The result reports whether any listener
// consumed the key, in which case the presentation layer suppresses the
// browser's default action.
func (k *Keyboard) Dispatch(code string) (Command, bool) {
	cmd := k.keymap.Lookup(code)
	if cmd == None {
		return None, false
	}

	ids := make([]uuid.UUID, len(k.order))
	copy(ids, k.order)

	handled := false
	for _, id := range ids {
		fn, ok := k.listeners[id]
		if !ok {
			continue
		}
		if fn(cmd) {
			handled = true
		}
	}
	return cmd, handled
}

// ListenerCount returns the number of registered listeners.
func (k *Keyboard) ListenerCount() int {
	return len(k.listeners)
}
