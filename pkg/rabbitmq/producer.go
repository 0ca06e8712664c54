/**
 * @description
 * This package provides the RabbitMQ notification sink. Every persisted portal
 * notification is published to a durable topic exchange under the routing key
 * `notification.<type>`; e-mail and SMS delivery consume from there.
 *
 * @dependencies
 * - github.com/rabbitmq/amqp091-go: The RabbitMQ client library.
 * - github.com/sirupsen/logrus: Structured logging.
 */
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/finsecure/portal-core/pkg/domain"
)

// Publisher is the interface implemented by types that can publish events.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
	PublishNotificationEvent(ctx context.Context, event domain.NotificationEvent) error
	Close()
}

// RoutingKey returns the routing key for a notification type.
func RoutingKey(t domain.NotificationType) string {
	return "notification." + strings.ToLower(string(t))
}

// EventProducer holds the RabbitMQ connection and channel for publishing messages.
type EventProducer struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	log      *logrus.Entry
}

// EventProducerFallback is a no-op publisher used when RabbitMQ is unavailable at startup.
type EventProducerFallback struct {
	Log *logrus.Entry
}

func (p *EventProducerFallback) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	if p.Log != nil {
		p.Log.WithFields(logrus.Fields{"mode": "fallback", "exchange": exchange, "routing_key": routingKey}).Warn("publish skipped")
	}
	return nil
}

func (p *EventProducerFallback) PublishNotificationEvent(ctx context.Context, event domain.NotificationEvent) error {
	if p.Log != nil {
		p.Log.WithFields(logrus.Fields{"mode": "fallback", "notification_id": event.NotificationID}).Warn("notification event publish skipped")
	}
	return nil
}

func (p *EventProducerFallback) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	// Drop stray characters in front of the scheme.
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

// NewEventProducer dials RabbitMQ and opens a channel for the notification exchange.
func NewEventProducer(amqpURL, exchange string, logger *logrus.Logger) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	// Bounded dial so startup does not hang.
	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &EventProducer{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		log:      logger.WithField("component", "rabbitmq_producer"),
	}, nil
}

func (p *EventProducer) declare(exchange string) error {
	return p.channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil)
}

func (p *EventProducer) reopen() error {
	if p.conn == nil {
		return amqp091.ErrClosed
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	p.channel = ch
	return nil
}

// Publish sends a JSON message to a durable topic exchange. A failed declare or
// publish reopens the channel once and retries.
func (p *EventProducer) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		p.log.WithFields(logrus.Fields{"exchange": exchange, "routing_key": routingKey}).WithError(err).Error("json marshal failed")
		return err
	}
	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         jsonBody,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.declare(exchange); err != nil {
		p.log.WithField("exchange", exchange).WithError(err).Warn("exchange declare failed; reopening channel")
		if err := p.reopen(); err != nil {
			return err
		}
		if err := p.declare(exchange); err != nil {
			return err
		}
	}

	err = p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, msg)
	if err == nil {
		return nil
	}

	p.log.WithFields(logrus.Fields{"exchange": exchange, "routing_key": routingKey}).WithError(err).Warn("publish failed; reopening channel")
	if reopenErr := p.reopen(); reopenErr != nil {
		return err
	}
	if declareErr := p.declare(exchange); declareErr != nil {
		return err
	}
	return p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, msg)
}

// PublishNotificationEvent publishes a notification to the configured exchange.
func (p *EventProducer) PublishNotificationEvent(ctx context.Context, event domain.NotificationEvent) error {
	return p.Publish(ctx, p.exchange, RoutingKey(event.Type), event)
}

// Close gracefully closes the channel and connection to RabbitMQ.
func (p *EventProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
