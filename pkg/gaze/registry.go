package gaze

import "github.com/google/uuid"

// registry keeps callbacks keyed by handle, in registration order.
type registry[F any] struct {
	items map[uuid.UUID]F
	order []uuid.UUID
}

func newRegistry[F any]() *registry[F] {
	return &registry[F]{items: make(map[uuid.UUID]F)}
}

func (r *registry[F]) add(f F) uuid.UUID {
	id := uuid.New()
	r.items[id] = f
	r.order = append(r.order, id)
	return id
}

func (r *registry[F]) remove(id uuid.UUID) bool {
	if _, ok := r.items[id]; !ok {
		return false
	}
	delete(r.items, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *registry[F]) get(id uuid.UUID) (F, bool) {
	f, ok := r.items[id]
	return f, ok
}

// snapshot returns the handles registered right now. Callers iterate the
// copy so callbacks may add or remove entries mid-dispatch.
func (r *registry[F]) snapshot() []uuid.UUID {
	out := make([]uuid.UUID, len(r.order))
	copy(out, r.order)
	return out
}

func (r *registry[F]) len() int {
	return len(r.items)
}
