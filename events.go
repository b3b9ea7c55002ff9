package docview

import "sync"

// Signal is a typed event source. Subscribers register a callback and get
// back a disposer; Emit invokes every live subscriber in registration
// order.
//
// Signal replaces ad hoc callback fields so hosts can attach and detach
// observers independently.
//
// Thread safety: Signal is safe for concurrent use. Callbacks run on the
// emitting goroutine and must not block.
type Signal[T any] struct {
	mu   sync.Mutex
	subs []signalSub[T]
	next int
}

type signalSub[T any] struct {
	id int
	fn func(T)
}

// Subscribe registers fn and returns a disposer that removes it.
// The disposer is idempotent.
func (s *Signal[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs = append(s.subs, signalSub[T]{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers v to every subscriber.
func (s *Signal[T]) Emit(v T) {
	s.mu.Lock()
	subs := make([]signalSub[T], len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(v)
	}
}

// Len returns the number of live subscribers.
func (s *Signal[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// PageChangeEvent fires when the centered/current page changes.
type PageChangeEvent struct {
	Page int
}

// ZoomChangeEvent fires after any operation that changes the zoom factor.
type ZoomChangeEvent struct {
	Zoom float64
}

// SelectionEvent fires when the host reports a completed text selection.
type SelectionEvent struct {
	Page  int
	Text  string
	Rects []Rect
}

// HighlightClickEvent fires when the host reports a click on a highlight
// annotation.
type HighlightClickEvent struct {
	AnnotationID string
	Position     Point
}
