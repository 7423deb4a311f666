// Package rabbitmq wraps the AMQP transport: durable queues, confirmed
// persistent publishes and blocking consume loops with reconnect.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/medialens/medialens/config"
	"github.com/medialens/medialens/logging/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

const defaultPublishTimeout = 30 * time.Second

// RabbitMQ owns one broker connection. Each component receives its own
// instance explicitly; there is no process-wide singleton.
type RabbitMQ struct {
	cfg    *config.RabbitMQ
	logger *logger.Logger
	mu     sync.Mutex
	conn   *amqp.Connection
}

// New creates a RabbitMQ client. The connection is established lazily on
// first use.
func New(cfg *config.RabbitMQ, log *logger.Logger) *RabbitMQ {
	return &RabbitMQ{
		cfg:    cfg,
		logger: log,
	}
}

// IsConnected checks if the connection is valid.
func (s *RabbitMQ) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil && !s.conn.IsClosed()
}

// connection returns the live connection, dialing if necessary.
func (s *RabbitMQ) connection() (*amqp.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil && !s.conn.IsClosed() {
		return s.conn, nil
	}

	conn, err := amqp.DialConfig(s.cfg.URL, amqp.Config{
		SASL:      []amqp.Authentication{&amqp.PlainAuth{Username: s.cfg.Username, Password: s.cfg.Password}},
		Vhost:     s.cfg.Vhost,
		Heartbeat: s.cfg.HeartbeatInterval,
		Dial:      amqp.DefaultDial(s.cfg.ConnectionTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	s.conn = conn
	return conn, nil
}

// declareQueue ensures the named durable queue exists.
func declareQueue(ch *amqp.Channel, queue string) error {
	_, err := ch.QueueDeclare(
		queue, // queue name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	return nil
}

// Publish marshals the message to JSON and publishes it to the named
// durable queue with publisher confirms. A stale connection is re-dialed
// once; a publish that still fails after reconnect surfaces to the caller.
func (s *RabbitMQ) Publish(ctx context.Context, queue string, message any) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = s.publish(ctx, queue, body)
	if err == nil {
		return nil
	}

	s.logger.Warn(ctx, "publish failed, reconnecting", "queue", queue, "error", err)
	s.reset()

	if err := s.publish(ctx, queue, body); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}
	return nil
}

func (s *RabbitMQ) publish(ctx context.Context, queue string, body []byte) error {
	conn, err := s.connection()
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declareQueue(ch, queue); err != nil {
		return err
	}

	// Confirmation mode for reliable publishing
	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("failed to put channel in confirm mode: %w", err)
	}
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	timeout := defaultPublishTimeout
	pubCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err = ch.PublishWithContext(
		pubCtx,
		"",    // exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	select {
	case confirmed, ok := <-confirms:
		if !ok {
			return fmt.Errorf("confirmation channel closed")
		}
		if !confirmed.Ack {
			return fmt.Errorf("failed to receive publish confirmation")
		}
	case <-time.After(timeout):
		return fmt.Errorf("publish confirmation timed out after %v", timeout)
	}

	return nil
}

// ConsumeForever consumes the named queue until the context is cancelled.
// One message is fully processed before the next is dequeued; messages are
// acked after the handler returns. Connection loss triggers a fixed-delay
// reconnect loop that never gives up.
func (s *RabbitMQ) ConsumeForever(ctx context.Context, queue string, handler func(context.Context, []byte) error) {
	for {
		if err := s.consume(ctx, queue, handler); err != nil {
			s.logger.Error(ctx, "consumer stopped, retrying", "queue", queue, "delay", s.cfg.ReconnectDelay.String(), "error", err)
			s.reset()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.ReconnectDelay):
		}
	}
}

func (s *RabbitMQ) consume(ctx context.Context, queue string, handler func(context.Context, []byte) error) error {
	conn, err := s.connection()
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declareQueue(ch, queue); err != nil {
		return err
	}

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		queue, // queue
		"",    // consumer (auto-generated)
		false, // auto-ack off, manual ack after handling
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	s.logger.Info(ctx, "waiting for messages", "queue", queue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed for %s", queue)
			}
			if err := handler(ctx, d.Body); err != nil {
				s.logger.Error(ctx, "failed to process message", "queue", queue, "error", err)
			}
			if err := d.Ack(false); err != nil {
				s.logger.Error(ctx, "failed to acknowledge message", "queue", queue, "error", err)
			}
		}
	}
}

// reset drops the current connection so the next use re-dials.
func (s *RabbitMQ) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil && !s.conn.IsClosed() {
		_ = s.conn.Close()
	}
	s.conn = nil
}

// Close closes the broker connection.
func (s *RabbitMQ) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || s.conn.IsClosed() {
		return nil
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close rabbitmq connection: %w", err)
	}
	return nil
}
