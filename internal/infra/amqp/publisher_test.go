package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/streadway/amqp"
)

type fakeChannel struct {
	published []published
	err       error
	closed    bool
}

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

func (c *fakeChannel) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.published = append(c.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestPublishUsesEventTypeAsRoutingKey(t *testing.T) {
	ch := &fakeChannel{}
	logger, _ := logtest.NewNullLogger()
	p := newPublisher(ch, "quiz.events", logger)
	p.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }

	payload := map[string]string{"quiz_id": "q1"}
	if err := p.Publish(context.Background(), "quiz.started", payload); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(ch.published) != 1 {
		t.Fatalf("expected 1 message, got %d", len(ch.published))
	}
	msg := ch.published[0]
	if msg.exchange != "quiz.events" || msg.key != "quiz.started" || msg.msg.ContentType != "application/json" {
		t.Fatalf("unexpected publishing %+v", msg)
	}

	var body struct {
		Type       string            `json:"type"`
		OccurredAt time.Time         `json:"occurred_at"`
		Payload    map[string]string `json:"payload"`
	}
	if err := json.Unmarshal(msg.msg.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Type != "quiz.started" || body.Payload["quiz_id"] != "q1" || body.OccurredAt.Year() != 2024 {
		t.Fatalf("unexpected body %+v", body)
	}

	p.Close()
	if !ch.closed {
		t.Fatalf("expected channel closed")
	}
}

func TestPublishReportsChannelErrors(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	logger, _ := logtest.NewNullLogger()
	p := newPublisher(ch, "quiz.events", logger)
	if err := p.Publish(context.Background(), "quiz.ended", nil); err == nil {
		t.Fatalf("expected publish error")
	}
}
