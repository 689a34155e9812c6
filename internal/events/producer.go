// Package events publishes object lifecycle notifications and outgoing mail
// requests to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ObjectExchange = "object_exchange"
	EmailExchange  = "email_exchange"

	ObjectUploadedRoutingKey    = "object.uploaded"
	ObjectDeletedRoutingKey     = "object.deleted"
	EmailConfirmationRoutingKey = "email.confirmation"
)

// ObjectUploadedMessage announces a new content object, e.g. for a thumbnail worker.
type ObjectUploadedMessage struct {
	Key         string `json:"key"`
	SizeBytes   int64  `json:"size"`
	ContentType string `json:"content_type"`
	Timestamp   int64  `json:"timestamp"`
}

// ObjectDeletedMessage announces that a content object was removed.
type ObjectDeletedMessage struct {
	Key       string `json:"key"`
	Timestamp int64  `json:"timestamp"`
}

// EmailMessage is consumed by the mail service.
type EmailMessage struct {
	Type      string `json:"type"`
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
	ActionURL string `json:"actionUrl,omitempty"`
}

type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Producer publishes JSON messages on topic exchanges.
type Producer struct {
	conn    *amqp.Connection
	channel channel
	nowFunc func() time.Time
}

// Dial connects to the broker at url and declares the exchanges.
func Dial(url string) (*Producer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	p, err := newProducer(ch)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newProducer(ch channel) (*Producer, error) {
	for _, exchange := range []string{ObjectExchange, EmailExchange} {
		if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
		}
	}
	return &Producer{channel: ch, nowFunc: time.Now}, nil
}

// ObjectUploaded publishes object.uploaded.
func (p *Producer) ObjectUploaded(ctx context.Context, key string, sizeBytes int64, contentType string) error {
	return p.publish(ctx, ObjectExchange, ObjectUploadedRoutingKey, ObjectUploadedMessage{
		Key:         key,
		SizeBytes:   sizeBytes,
		ContentType: contentType,
		Timestamp:   p.nowFunc().Unix(),
	})
}

// ObjectDeleted publishes object.deleted.
func (p *Producer) ObjectDeleted(ctx context.Context, key string) error {
	return p.publish(ctx, ObjectExchange, ObjectDeletedRoutingKey, ObjectDeletedMessage{
		Key:       key,
		Timestamp: p.nowFunc().Unix(),
	})
}

// SendVerificationEmail asks the mail service to deliver an account
// confirmation link to email.
func (p *Producer) SendVerificationEmail(ctx context.Context, email, actionURL string) error {
	return p.publish(ctx, EmailExchange, EmailConfirmationRoutingKey, EmailMessage{
		Type:      "confirmation",
		Recipient: email,
		Content:   "Confirm your FileHub account",
		ActionURL: actionURL,
	})
}

// Close releases the channel and connection.
func (p *Producer) Close() error {
	if err := p.channel.Close(); err != nil {
		return fmt.Errorf("close rabbitmq channel: %w", err)
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func (p *Producer) publish(ctx context.Context, exchange, routingKey string, message any) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", routingKey, err)
	}

	err = p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s message: %w", routingKey, err)
	}
	return nil
}

// Noop drops every message. Used when no broker is configured.
type Noop struct{}

func (Noop) ObjectUploaded(context.Context, string, int64, string) error { return nil }
func (Noop) ObjectDeleted(context.Context, string) error                 { return nil }
func (Noop) SendVerificationEmail(context.Context, string, string) error  { return nil }
func (Noop) Close() error                                                { return nil }
