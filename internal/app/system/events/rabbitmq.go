package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("event publisher closed")

const publishTimeout = 5 * time.Second

// Config describes the broker connection.
type Config struct {
	URL        string
	Exchange   string
	MaxRetries int // connection attempts; defaults to 5
}

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQ publishes events to a durable topic exchange.
type RabbitMQ struct {
	exchange string
	log      *zap.Logger

	mu     sync.RWMutex
	conn   *amqp.Connection
	ch     channel
	closed bool
}

// Connect dials the broker, retrying with backoff, and declares the
// exchange. It returns Noop when cfg.URL is empty.
func Connect(ctx context.Context, cfg Config, logger *zap.Logger) (Publisher, error) {
	if cfg.URL == "" {
		logger.Info("journey events disabled (no amqp_url)")
		return Noop{}, nil
	}
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}

	delay := time.Second
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		conn, ch, err := dial(cfg.URL)
		if err == nil {
			p, err := newRabbitMQ(ch, cfg.Exchange, logger)
			if err != nil {
				_ = conn.Close()
				return nil, err
			}
			p.conn = conn
			logger.Info("connected to message broker",
				zap.String("exchange", cfg.Exchange),
				zap.Int("attempt", attempt))
			return p, nil
		}
		lastErr = err
		logger.Warn("message broker connection failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", cfg.MaxRetries),
			zap.Duration("retry_in", delay),
			zap.Error(err))

		if attempt == cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*3/2, 30*time.Second)
	}
	return nil, fmt.Errorf("connect to message broker after %d attempts: %w", cfg.MaxRetries, lastErr)
}

func dial(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return conn, ch, nil
}

func newRabbitMQ(ch channel, exchange string, logger *zap.Logger) (*RabbitMQ, error) {
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &RabbitMQ{exchange: exchange, ch: ch, log: logger}, nil
}

// Publish sends e with its type as the routing key.
func (p *RabbitMQ) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.ch.PublishWithContext(pctx, p.exchange, e.Type,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    e.ID,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    e.At,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	p.log.Debug("journey event published",
		zap.String("type", e.Type),
		zap.String("journey_id", e.JourneyID))
	return nil
}

// Close shuts the channel and connection. Safe to call more than once.
func (p *RabbitMQ) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if err := p.ch.Close(); err != nil {
		errs = append(errs, err)
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.log.Info("message broker connection closed")
	return errors.Join(errs...)
}
