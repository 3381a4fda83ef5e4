// internal/app/system/auth/state.go
package auth

import (
	"context"
	"errors"
	"sync"
)

// ErrStateClosed ends auth state subscriptions still open at shutdown.
var ErrStateClosed = errors.New("auth state stream closed")

// StateSubscription is a cancellable stream of signed-in flags for one
// session. The first value is the state when the subscription was made;
// a later false means the session ended. Delivery is latest-wins.
type StateSubscription struct {
	sid     string
	broker  *stateBroker
	updates chan bool
	done    chan struct{}
	stopCtx func() bool
	touched bool // a value was pushed; guarded by the broker lock

	once sync.Once
	mu   sync.Mutex
	err  error
}

// Updates yields state changes and is closed when the subscription ends.
func (s *StateSubscription) Updates() <-chan bool { return s.updates }

// Done is closed when the subscription ends.
func (s *StateSubscription) Done() <-chan struct{} { return s.done }

// Err reports why the subscription ended (nil after Cancel).
func (s *StateSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Cancel ends the subscription. Safe to call more than once.
func (s *StateSubscription) Cancel() {
	if s.broker.remove(s) {
		s.terminate(nil)
	}
}

// push must be called with the broker lock held.
func (s *StateSubscription) push(v bool) {
	select {
	case <-s.updates:
	default:
	}
	s.updates <- v
	s.touched = true
}

func (s *StateSubscription) terminate(err error) {
	s.once.Do(func() {
		if s.stopCtx != nil {
			s.stopCtx()
		}
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
		close(s.updates)
	})
}

// stateBroker fans session state changes out to subscribers keyed by
// session id.
type stateBroker struct {
	mu     sync.Mutex
	subs   map[string]map[*StateSubscription]struct{}
	closed bool
}

func newStateBroker() *stateBroker {
	return &stateBroker{subs: make(map[string]map[*StateSubscription]struct{})}
}

// subscribe registers a subscription for sid. An empty sid yields a
// subscription that only ever sees the initial value.
func (b *stateBroker) subscribe(ctx context.Context, sid string) (*StateSubscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrStateClosed
	}

	s := &StateSubscription{
		sid:     sid,
		broker:  b,
		updates: make(chan bool, 1),
		done:    make(chan struct{}),
	}
	set := b.subs[sid]
	if set == nil {
		set = make(map[*StateSubscription]struct{})
		b.subs[sid] = set
	}
	set[s] = struct{}{}
	s.stopCtx = context.AfterFunc(ctx, s.Cancel)
	return s, nil
}

// seed delivers the initial state unless a publish already did.
func (b *stateBroker) seed(s *StateSubscription, v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s.sid][s]; !ok {
		return
	}
	if !s.touched {
		s.push(v)
	}
}

func (b *stateBroker) publish(sid string, v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs[sid] {
		s.push(v)
	}
}

func (b *stateBroker) remove(s *StateSubscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[s.sid]
	if !ok {
		return false
	}
	if _, ok := set[s]; !ok {
		return false
	}
	delete(set, s)
	if len(set) == 0 {
		delete(b.subs, s.sid)
	}
	return true
}

func (b *stateBroker) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, set := range b.subs {
		n += len(set)
	}
	return n
}

func (b *stateBroker) close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	all := b.subs
	b.subs = make(map[string]map[*StateSubscription]struct{})
	b.mu.Unlock()

	for _, set := range all {
		for s := range set {
			s.terminate(ErrStateClosed)
		}
	}
}
