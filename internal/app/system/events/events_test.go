package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	mu         sync.Mutex
	declared   []string
	declareErr error
	publishErr error
	sent       []published
	closed     int
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.declareErr != nil {
		return f.declareErr
	}
	f.declared = append(f.declared, name+":"+kind)
	return nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func TestNew(t *testing.T) {
	e := New(JourneyJoined, "65f0c0ffee", "rider@example.com")
	if e.ID == "" || e.At.IsZero() {
		t.Errorf("expected id and time to be stamped: %+v", e)
	}
	if e.Type != JourneyJoined || e.JourneyID != "65f0c0ffee" || e.Actor != "rider@example.com" {
		t.Errorf("unexpected event: %+v", e)
	}
	if other := New(JourneyJoined, "65f0c0ffee", "rider@example.com"); other.ID == e.ID {
		t.Error("event ids should be unique")
	}
}

func TestConnect_NoURLIsNoop(t *testing.T) {
	p, err := Connect(context.Background(), Config{}, zap.NewNop())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, ok := p.(Noop); !ok {
		t.Fatalf("expected Noop, got %T", p)
	}
	if err := p.Publish(context.Background(), New(JourneyCreated, "x", "y")); err != nil {
		t.Errorf("Noop.Publish: %v", err)
	}
}

func TestRabbitMQ_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newRabbitMQ(ch, "tellevo.test", zap.NewNop())
	if err != nil {
		t.Fatalf("newRabbitMQ: %v", err)
	}
	if len(ch.declared) != 1 || ch.declared[0] != "tellevo.test:topic" {
		t.Fatalf("declared: %v", ch.declared)
	}

	e := New(JourneyCreated, "j1", "driver@example.com")
	e.Capacity = 3
	if err := p.Publish(context.Background(), e); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(ch.sent) != 1 {
		t.Fatalf("sent %d messages", len(ch.sent))
	}
	got := ch.sent[0]
	if got.exchange != "tellevo.test" || got.key != JourneyCreated {
		t.Errorf("routing: %s/%s", got.exchange, got.key)
	}
	if got.msg.ContentType != "application/json" || got.msg.DeliveryMode != amqp.Persistent {
		t.Errorf("publishing: %+v", got.msg)
	}
	if got.msg.MessageId != e.ID {
		t.Errorf("MessageId: got %q, want %q", got.msg.MessageId, e.ID)
	}

	var body Event
	if err := json.Unmarshal(got.msg.Body, &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body.JourneyID != "j1" || body.Capacity != 3 {
		t.Errorf("body: %+v", body)
	}
}

func TestRabbitMQ_Errors(t *testing.T) {
	declareErr := errors.New("access refused")
	if _, err := newRabbitMQ(&fakeChannel{declareErr: declareErr}, "x", zap.NewNop()); !errors.Is(err, declareErr) {
		t.Errorf("declare: got %v", err)
	}

	publishErr := errors.New("channel closed")
	p, _ := newRabbitMQ(&fakeChannel{publishErr: publishErr}, "x", zap.NewNop())
	if err := p.Publish(context.Background(), New(JourneyLeft, "j", "a")); !errors.Is(err, publishErr) {
		t.Errorf("publish: got %v", err)
	}
}

func TestRabbitMQ_Close(t *testing.T) {
	ch := &fakeChannel{}
	p, _ := newRabbitMQ(ch, "x", zap.NewNop())

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if ch.closed != 1 {
		t.Errorf("channel closed %d times", ch.closed)
	}
	if err := p.Publish(context.Background(), New(JourneyDeleted, "j", "a")); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish after Close: got %v", err)
	}
}
