/**
 * @description
 * This package provides a producer for publishing ledger events to RabbitMQ.
 * It encapsulates the logic for connecting to RabbitMQ and publishing an event
 * envelope to a durable topic exchange, with the event type as the routing key.
 *
 * @dependencies
 * - context, encoding/json, time: Standard Go libraries.
 * - github.com/rabbitmq/amqp091-go: The RabbitMQ client library.
 */
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Event is the envelope wrapped around every published payload. Type doubles
// as the routing key on the exchange.
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// EventProducer holds the RabbitMQ connection and channel for publishing messages.
type EventProducer struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

// Publisher is the interface implemented by types that can publish events.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
	Close()
}

// FallbackPublisher is a minimal no-op publisher used when RabbitMQ is unavailable at startup.
type FallbackPublisher struct{}

func (p *FallbackPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	log.Printf("level=warn component=rabbitmq_producer mode=fallback msg=\"publish skipped\" event_type=%s", eventType)
	return nil
}

func (p *FallbackPublisher) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	// If any stray characters precede the scheme, slice from first occurrence of amqp
	idx := strings.Index(strings.ToLower(clean), "amqp")
	if idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewEventProducer creates a producer bound to the given exchange.
func NewEventProducer(amqpURL, exchange string) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	// Use a bounded dial timeout so startup does not hang indefinitely
	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &EventProducer{conn: conn, channel: ch, exchange: exchange}, nil
}

// Publish wraps the payload in an Event envelope and sends it to the exchange
// with the event type as the routing key. Messages are marked persistent so
// the broker survives a restart without losing them.
func (p *EventProducer) Publish(ctx context.Context, eventType string, payload interface{}) error {
	if err := p.declareExchange(); err != nil {
		return err
	}

	body, err := json.Marshal(Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		log.Printf("level=error component=rabbitmq_producer msg=\"json marshal failed\" event_type=%s err=%v", eventType, err)
		return err
	}

	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	}

	err = p.channel.PublishWithContext(ctx, p.exchange, eventType, false, false, publishing)
	if err != nil {
		log.Printf("level=warn component=rabbitmq_producer msg=\"publish failed; reopening channel\" event_type=%s err=%v", eventType, err)
		// One-shot retry: reopen channel and try again
		if p.conn == nil {
			return err
		}
		ch, chErr := p.conn.Channel()
		if chErr != nil {
			return err
		}
		p.channel = ch
		if exErr := p.declareExchange(); exErr != nil {
			return err
		}
		return p.channel.PublishWithContext(ctx, p.exchange, eventType, false, false, publishing)
	}
	return nil
}

func (p *EventProducer) declareExchange() error {
	err := p.channel.ExchangeDeclare(
		p.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,        // args
	)
	if err == nil {
		return nil
	}
	log.Printf("level=warn component=rabbitmq_producer msg=\"exchange declare failed; reopening channel\" exchange=%s err=%v", p.exchange, err)
	if p.conn == nil {
		return err
	}
	ch, chErr := p.conn.Channel()
	if chErr != nil {
		return chErr
	}
	p.channel = ch
	return p.channel.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil)
}

// Close gracefully closes the channel and connection to RabbitMQ.
func (p *EventProducer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
