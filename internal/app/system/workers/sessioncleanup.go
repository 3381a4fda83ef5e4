// internal/app/system/workers/sessioncleanup.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/tellevo/internal/app/store/sessions"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// SessionCloser is the part of the sessions store the cleanup worker needs.
type SessionCloser interface {
	CloseExpired(ctx context.Context, inactiveThreshold time.Duration) ([]primitive.ObjectID, error)
}

var _ SessionCloser = (*sessions.Store)(nil)

// SessionCleanup closes expired and idle sessions on a fixed interval and
// reports each closed id to onClosed (the auth state broker).
type SessionCleanup struct {
	sessions          SessionCloser
	onClosed          func(primitive.ObjectID)
	log               *zap.Logger
	interval          time.Duration
	inactiveThreshold time.Duration
	stopCh            chan struct{}
	wg                sync.WaitGroup
}

// NewSessionCleanup creates the worker. inactiveThreshold of zero closes
// sessions on expiry only.
func NewSessionCleanup(store SessionCloser, onClosed func(primitive.ObjectID), logger *zap.Logger, interval, inactiveThreshold time.Duration) *SessionCleanup {
	return &SessionCleanup{
		sessions:          store,
		onClosed:          onClosed,
		log:               logger,
		interval:          interval,
		inactiveThreshold: inactiveThreshold,
		stopCh:            make(chan struct{}),
	}
}

// Start begins the cleanup loop.
func (w *SessionCleanup) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("session cleanup worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("inactive_threshold", w.inactiveThreshold))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *SessionCleanup) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("session cleanup worker stopped")
}

func (w *SessionCleanup) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce()
		}
	}
}

// RunOnce performs a single cleanup pass.
func (w *SessionCleanup) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ids, err := w.sessions.CloseExpired(ctx, w.inactiveThreshold)
	for _, id := range ids {
		if w.onClosed != nil {
			w.onClosed(id)
		}
	}
	if err != nil {
		w.log.Error("failed to close expired sessions", zap.Int("closed", len(ids)), zap.Error(err))
		return
	}
	if len(ids) > 0 {
		w.log.Info("closed expired sessions", zap.Int("count", len(ids)))
	}
}
