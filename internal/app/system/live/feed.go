// Package live fans database snapshots out to long-lived subscribers.
//
// A Feed owns one loader (usually "find every document in a collection").
// Whenever Notify is called the feed reloads once and pushes the fresh
// result to every Subscription, each through its own filter. Notifies that
// arrive while a reload is pending are coalesced.
//
// Delivery is latest-wins: a subscriber that has not consumed the previous
// snapshot finds it replaced by the newer one. Subscribers never block the
// feed.
package live

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrStopped terminates subscriptions that were still open when the feed stopped.
var ErrStopped = errors.New("live feed stopped")

// DefaultLoadTimeout bounds a single reload.
const DefaultLoadTimeout = 10 * time.Second

// Loader returns the full current result set.
type Loader[T any] func(ctx context.Context) ([]T, error)

// Feed is safe for concurrent use. Start must be called before subscribers
// receive anything.
type Feed[T any] struct {
	name        string
	load        Loader[T]
	log         *zap.Logger
	loadTimeout time.Duration

	notify chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	subs    map[uint64]*Subscription[T]
	nextID  uint64
	started bool
	stopped bool
}

// New creates a feed. name is only used in log lines.
func New[T any](name string, load Loader[T], logger *zap.Logger) *Feed[T] {
	return &Feed[T]{
		name:        name,
		load:        load,
		log:         logger,
		loadTimeout: DefaultLoadTimeout,
		notify:      make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
		subs:        make(map[uint64]*Subscription[T]),
	}
}

// SetLoadTimeout overrides DefaultLoadTimeout. Call before Start.
func (f *Feed[T]) SetLoadTimeout(d time.Duration) {
	if d > 0 {
		f.loadTimeout = d
	}
}

// Start launches the reload loop. Calling Start twice is a no-op.
func (f *Feed[T]) Start() {
	f.mu.Lock()
	if f.started || f.stopped {
		f.mu.Unlock()
		return
	}
	f.started = true
	f.mu.Unlock()

	f.wg.Add(1)
	go f.run()
	f.log.Info("live feed started", zap.String("feed", f.name))
}

// Stop ends the reload loop and terminates every open subscription with
// ErrStopped.
func (f *Feed[T]) Stop() {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return
	}
	f.stopped = true
	f.mu.Unlock()

	close(f.stopCh)
	f.wg.Wait()

	f.mu.Lock()
	for id, s := range f.subs {
		delete(f.subs, id)
		s.terminate(ErrStopped)
	}
	f.mu.Unlock()
	f.log.Info("live feed stopped", zap.String("feed", f.name))
}

// Notify schedules a reload. It never blocks.
func (f *Feed[T]) Notify() {
	select {
	case f.notify <- struct{}{}:
	default:
	}
}

// Subscribe registers a subscriber. The first value on Updates is the
// result set as of subscription time; later values follow every change.
// keep selects which items this subscriber sees (nil keeps everything).
//
// The subscription ends when ctx is done, when Cancel is called, when a
// reload fails (Err reports the failure) or when the feed stops.
func (f *Feed[T]) Subscribe(ctx context.Context, keep func(T) bool) (*Subscription[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return nil, ErrStopped
	}
	f.nextID++
	s := &Subscription[T]{
		id:      f.nextID,
		feed:    f,
		keep:    keep,
		updates: make(chan []T, 1),
		done:    make(chan struct{}),
	}
	// The AfterFunc callback needs f.mu to remove s, so it cannot observe
	// a half-registered subscription.
	s.stopCtx = context.AfterFunc(ctx, s.Cancel)
	f.subs[s.id] = s
	f.mu.Unlock()

	// The reload triggered here happens after registration, so the first
	// snapshot this subscriber sees cannot predate it.
	f.Notify()
	return s, nil
}

// Len returns the number of open subscriptions.
func (f *Feed[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *Feed[T]) run() {
	defer f.wg.Done()
	for {
		select {
		case <-f.stopCh:
			return
		case <-f.notify:
			f.refresh()
		}
	}
}

func (f *Feed[T]) refresh() {
	f.mu.Lock()
	idle := len(f.subs) == 0
	f.mu.Unlock()
	if idle {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.loadTimeout)
	items, err := f.load(ctx)
	cancel()

	f.mu.Lock()
	defer f.mu.Unlock()

	if err != nil {
		f.log.Error("live feed reload failed",
			zap.String("feed", f.name),
			zap.Int("subscribers", len(f.subs)),
			zap.Error(err))
		for id, s := range f.subs {
			delete(f.subs, id)
			s.terminate(err)
		}
		return
	}

	for _, s := range f.subs {
		s.deliver(items)
	}
}

func (f *Feed[T]) remove(id uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[id]; !ok {
		return false
	}
	delete(f.subs, id)
	return true
}
