package region

// Locator returns the live bounds of an on-screen element. ok is false when
// the element is not mounted.
type Locator interface {
	Locate() (b Bounds, ok bool)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func() (Bounds, bool)

// Locate implements Locator.
func (f LocatorFunc) Locate() (Bounds, bool) {
	return f()
}

// Fixed returns a Locator that always reports b.
func Fixed(b Bounds) Locator {
	return LocatorFunc(func() (Bounds, bool) { return b, true })
}

// Layout holds the bounds the presentation layer last reported for each
// element. Lookups always read the current entry, so layout shifts are
// picked up on the next sample. Use from the scheduler goroutine only.
type Layout struct {
	elements map[string]Bounds
}

// NewLayout creates an empty layout.
func NewLayout() *Layout {
	return &Layout{elements: make(map[string]Bounds)}
}

// Set mounts or moves element id.
func (l *Layout) Set(id string, b Bounds) {
	l.elements[id] = b
}

// Remove unmounts element id.
func (l *Layout) Remove(id string) {
	delete(l.elements, id)
}

// Get returns the bounds of element id.
func (l *Layout) Get(id string) (Bounds, bool) {
	b, ok := l.elements[id]
	return b, ok
}

// Locator returns a live Locator for element id.
func (l *Layout) Locator(id string) Locator {
	return LocatorFunc(func() (Bounds, bool) {
		return l.Get(id)
	})
}

// Elements returns a copy of every mounted element.
func (l *Layout) Elements() map[string]Bounds {
	out := make(map[string]Bounds, len(l.elements))
	for id, b := range l.elements {
		out[id] = b
	}
	return out
}
