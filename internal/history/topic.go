package history

// Topic is a typed publish/subscribe channel. Observers are called synchronously,
// in registration order, on the goroutine that publishes.
type Topic[T any] struct {
	nextID    int
	observers []observer[T]
}

type observer[T any] struct {
	id int
	fn func(T)
}

// Subscription removes its observer when Unsubscribe is called
type Subscription struct {
	cancel func()
}

// Unsubscribe removes the observer. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
}

// Subscribe registers fn and returns its subscription
func (t *Topic[T]) Subscribe(fn func(T)) *Subscription {
	t.nextID++
	id := t.nextID
	t.observers = append(t.observers, observer[T]{id: id, fn: fn})
	return &Subscription{cancel: func() { t.remove(id) }}
}

// Publish calls every observer registered at the time of the call
func (t *Topic[T]) Publish(v T) {
	observers := make([]observer[T], len(t.observers))
	copy(observers, t.observers)
	for _, o := range observers {
		o.fn(v)
	}
}

// Len returns the number of registered observers
func (t *Topic[T]) Len() int { return len(t.observers) }

// Clear drops every observer
func (t *Topic[T]) Clear() { t.observers = nil }

func (t *Topic[T]) remove(id int) {
	for i, o := range t.observers {
		if o.id == id {
			t.observers = append(t.observers[:i:i], t.observers[i+1:]...)
			return
		}
	}
}
