// internal/app/system/workers/changewatch.go
package workers

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	watchMinBackoff = time.Second
	watchMaxBackoff = 30 * time.Second
)

// ChangeWatcher tails a collection's change stream and calls notify after
// every change. A broken stream is reopened with exponential backoff, and
// notify is called once on reconnect since changes may have been missed.
type ChangeWatcher struct {
	coll   *mongo.Collection
	notify func()
	log    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewChangeWatcher creates a watcher. Change streams need a replica set.
func NewChangeWatcher(coll *mongo.Collection, notify func(), logger *zap.Logger) *ChangeWatcher {
	return &ChangeWatcher{coll: coll, notify: notify, log: logger}
}

// Start launches the watch loop.
func (w *ChangeWatcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.wg.Add(1)
	go w.run(ctx)
	w.log.Info("change watcher started", zap.String("collection", w.coll.Name()))
}

// Stop ends the loop and waits for it.
func (w *ChangeWatcher) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	w.wg.Wait()
	w.log.Info("change watcher stopped", zap.String("collection", w.coll.Name()))
}

func (w *ChangeWatcher) run(ctx context.Context) {
	defer w.wg.Done()

	backoff := watchMinBackoff
	first := true
	for {
		err := w.watch(ctx, !first)
		if ctx.Err() != nil {
			return
		}
		first = false
		w.log.Warn("change stream interrupted; reconnecting",
			zap.String("collection", w.coll.Name()),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > watchMaxBackoff {
			backoff = watchMaxBackoff
		}
	}
}

func (w *ChangeWatcher) watch(ctx context.Context, resync bool) error {
	cs, err := w.coll.Watch(ctx, mongo.Pipeline{}, options.ChangeStream().SetMaxAwaitTime(5*time.Second))
	if err != nil {
		return err
	}
	defer cs.Close(context.Background())

	if resync {
		w.notify()
	}
	for cs.Next(ctx) {
		w.notify()
	}
	return cs.Err()
}
