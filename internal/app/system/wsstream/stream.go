// Package wsstream pushes subscription values to a WebSocket client.
package wsstream

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	DefaultWriteWait    = 10 * time.Second
	DefaultPingInterval = 30 * time.Second
	DefaultPongWait     = 60 * time.Second

	// Clients only send control frames.
	maxMessageSize = 512
)

// Source is a cancellable stream of values, such as a live.Subscription
// or an auth.StateSubscription.
type Source[T any] interface {
	Updates() <-chan T
	Err() error
	Cancel()
}

// Config tunes connection keepalive. Zero fields take the defaults.
type Config struct {
	WriteWait    time.Duration
	PingInterval time.Duration
	PongWait     time.Duration
}

// Streamer upgrades requests and writes JSON frames.
type Streamer struct {
	cfg      Config
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Streamer {
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = DefaultWriteWait
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.PongWait <= cfg.PingInterval {
		cfg.PongWait = max(DefaultPongWait, 2*cfg.PingInterval)
	}
	return &Streamer{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Streams are guarded by the auth token, not the origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: logger,
	}
}

// Serve upgrades the request and writes frame(v) for every value src
// yields. src is cancelled when the client disconnects, and the socket is
// closed when src ends. Serve returns when either side goes away.
func Serve[T any](s *Streamer, w http.ResponseWriter, r *http.Request, src Source[T], frame func(T) any) error {
	defer src.Cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		s.log.Warn("websocket upgrade failed", zap.String("path", r.URL.Path), zap.Error(err))
		return err
	}
	defer conn.Close()

	streamID := uuid.NewString()
	log := s.log.With(zap.String("stream_id", streamID), zap.String("path", r.URL.Path))
	log.Debug("websocket stream opened")

	gone := make(chan struct{})
	go s.readPump(conn, gone)

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case v, ok := <-src.Updates():
			if !ok {
				reason := "stream ended"
				code := websocket.CloseNormalClosure
				if err := src.Err(); err != nil {
					log.Info("websocket source ended", zap.Error(err))
					code = websocket.CloseInternalServerErr
				}
				s.closeWith(conn, code, reason)
				return src.Err()
			}
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := conn.WriteJSON(frame(v)); err != nil {
				log.Debug("websocket write failed", zap.Error(err))
				return nil
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug("websocket ping failed", zap.Error(err))
				return nil
			}

		case <-gone:
			log.Debug("websocket client disconnected")
			return nil
		}
	}
}

// readPump discards client frames and closes gone when the connection
// drops or stops answering pings.
func (s *Streamer) readPump(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		if _, _, err := conn.NextReader(); err != nil {
			var ce *websocket.CloseError
			if !errors.As(err, &ce) {
				s.log.Debug("websocket read ended", zap.Error(err))
			}
			return
		}
	}
}

func (s *Streamer) closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.cfg.WriteWait))
}
