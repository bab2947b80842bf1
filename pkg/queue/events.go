// Package queue publishes content events to RabbitMQ for downstream
// consumers (moderation review, analytics).
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	contentExchange = "guttervoice.content"
	publishTimeout  = 3 * time.Second
)

// ContentEvent describes one line of flavor text that was served.
type ContentEvent struct {
	Kind     string    `json:"kind"`
	Category string    `json:"category,omitempty"`
	Text     string    `json:"text"`
	Source   string    `json:"source"`
	PlayerID string    `json:"playerId,omitempty"`
	ServedAt time.Time `json:"servedAt"`
}

// EventPublisher emits content events. Implementations must tolerate a
// broker outage without affecting request handling.
type EventPublisher interface {
	PublishContent(ctx context.Context, event ContentEvent) error
	Close() error
}

// AMQPPublisher publishes content events to a fanout exchange.
type AMQPPublisher struct {
	mu      sync.Mutex
	url     string
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewAMQPPublisher connects to RabbitMQ and declares the content
// exchange.
func NewAMQPPublisher(url string) (*AMQPPublisher, error) {
	p := &AMQPPublisher{url: url}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AMQPPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := channel.ExchangeDeclare(contentExchange, "fanout", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	p.conn = conn
	p.channel = channel
	return nil
}

// PublishContent emits one content event. The connection is re-dialed
// once if the channel has gone away.
func (p *AMQPPublisher) PublishContent(ctx context.Context, event ContentEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel == nil || p.channel.IsClosed() {
		if err := p.connect(); err != nil {
			return err
		}
	}
	err = p.channel.PublishWithContext(ctx, contentExchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now().UTC(),
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("publish content event: %w", err)
	}
	return nil
}

// Close shuts down the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}

// NopPublisher drops events, used when no broker is configured.
type NopPublisher struct{}

// PublishContent discards the event.
func (NopPublisher) PublishContent(context.Context, ContentEvent) error { return nil }

// Close is a no-op.
func (NopPublisher) Close() error { return nil }
