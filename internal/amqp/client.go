package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"mkoba/internal/core"
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	// Declare exchange
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	// Declare queue
	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Bind queue to exchange
	err = c.channel.QueueBind(
		c.queueName,    // queue name
		c.queueName,    // routing key (same as queue name for direct exchange)
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishAuditFact publishes one audit fact for the worker
func (c *Client) PublishAuditFact(ctx context.Context, f core.AuditFact, periodID string) error {
	msg := NewAuditFactMessage(f, periodID)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent, // make message persistent
			MessageId:    msg.ID,
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	slog.InfoContext(ctx, "Published audit fact",
		"audit_id", msg.ID,
		"table", msg.Table,
		"action", msg.Action,
		"exchange", c.exchangeName,
		"queue", c.queueName)

	return nil
}

// AuditFactHandler processes one decoded audit fact.
type AuditFactHandler func(ctx context.Context, msg *AuditFactMessage) error

// Disposition is what the consumer does with a delivery after handling.
type Disposition int

const (
	Ack Disposition = iota
	Reject
	Requeue
)

// Dispatch decodes body and runs handler. Undecodable messages are rejected
// without requeue. A handler failure is requeued once; it is rejected when
// the delivery was already redelivered or the error can never clear (an
// unknown record or a precondition failure).
func Dispatch(ctx context.Context, body []byte, redelivered bool, handler AuditFactHandler) Disposition {
	msg, err := AuditFactMessageFromJSON(body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to unmarshal message", "error", err)
		return Reject
	}

	slog.InfoContext(ctx, "Processing audit fact", "audit_id", msg.ID, "table", msg.Table)

	if err := handler(ctx, msg); err != nil {
		permanent := isPermanent(err)
		slog.ErrorContext(ctx, "Failed to handle message",
			"error", err,
			"audit_id", msg.ID,
			"redelivered", redelivered,
			"permanent", permanent)
		if permanent || redelivered {
			return Reject
		}
		return Requeue
	}
	return Ack
}

func isPermanent(err error) bool {
	var (
		ve *core.ValidationError
		pe *core.PreconditionError
	)
	return core.IsNotFound(err) || errors.As(err, &ve) || errors.As(err, &pe)
}

// ConsumeAuditFacts consumes audit facts until ctx is cancelled
func (c *Client) ConsumeAuditFacts(ctx context.Context, handler AuditFactHandler) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming audit facts", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			switch Dispatch(ctx, delivery.Body, delivery.Redelivered, handler) {
			case Ack:
				delivery.Ack(false)
			case Reject:
				delivery.Nack(false, false) // reject and don't requeue
			case Requeue:
				delivery.Nack(false, true) // reject and requeue
			}
		}
	}
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
