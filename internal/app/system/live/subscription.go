package live

import "sync"

// Subscription is a cancellable handle on a live result set.
type Subscription[T any] struct {
	id      uint64
	feed    *Feed[T]
	keep    func(T) bool
	updates chan []T
	done    chan struct{}
	stopCtx func() bool

	once sync.Once
	mu   sync.Mutex
	err  error
}

// Updates yields snapshots. It is closed when the subscription ends.
func (s *Subscription[T]) Updates() <-chan []T {
	return s.updates
}

// Done is closed when the subscription ends.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Err returns the reason the subscription ended, or nil while it is open
// and after a plain Cancel.
func (s *Subscription[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Cancel ends the subscription and releases its slot in the feed.
// It is safe to call more than once and from any goroutine.
func (s *Subscription[T]) Cancel() {
	if s.feed.remove(s.id) {
		s.terminate(nil)
	}
}

// deliver runs with the feed lock held; it must not block.
func (s *Subscription[T]) deliver(items []T) {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if s.keep == nil || s.keep(it) {
			out = append(out, it)
		}
	}
	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- out:
	default:
	}
}

// terminate is called exactly once per subscription, always after it has
// been removed from the feed, so no deliver can race with the close.
func (s *Subscription[T]) terminate(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		if s.stopCtx != nil {
			s.stopCtx()
		}
		close(s.done)
		close(s.updates)
	})
}
