// Package events publishes escalation events to RabbitMQ so other systems
// (pagers, dashboards) can react to guests left waiting.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"seat-allocation-backend/internal/model"
)

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Dialer opens a channel and returns a func that closes everything it opened.
type Dialer func(url string) (Channel, func(), error)

// DialAMQP connects to the broker and opens one channel.
func DialAMQP(url string) (Channel, func(), error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, func() {
		_ = ch.Close()
		_ = conn.Close()
	}, nil
}

// Publisher sends one persistent message per escalation alert. A connection
// is opened per publish; alerts are rare.
type Publisher struct {
	url    string
	queue  string
	dial   Dialer
	logger *zap.Logger
}

func NewPublisher(url, queue string, dial Dialer, logger *zap.Logger) *Publisher {
	if dial == nil {
		dial = DialAMQP
	}
	return &Publisher{
		url:    url,
		queue:  queue,
		dial:   dial,
		logger: logger.With(zap.String("component", "events"), zap.String("queue", queue)),
	}
}

// Alert publishes the alert to the configured queue.
func (p *Publisher) Alert(ctx context.Context, alert model.EscalationAlert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	ch, closeFn, err := p.dial(p.url)
	if err != nil {
		p.logger.Warn("rabbitmq unavailable", zap.Error(err))
		return fmt.Errorf("%w: %v", model.ErrOperation, err)
	}
	defer closeFn()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		p.logger.Warn("queue declare failed", zap.Error(err))
		return fmt.Errorf("%w: queue declare: %v", model.ErrOperation, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    alert.AllocationID + "@" + alert.CallingSince.UTC().Format(time.RFC3339),
		Type:         "allocation.escalated",
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.logger.Warn("publish failed", zap.Error(err))
		return fmt.Errorf("%w: publish: %v", model.ErrOperation, err)
	}

	p.logger.Info("escalation published", zap.String("allocation_id", alert.AllocationID))
	return nil
}
