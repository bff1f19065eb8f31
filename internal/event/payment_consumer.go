package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrRetryLater marks a callback that cannot be applied yet, e.g. while the
// payment's claim is locked by a running settlement. Such messages are
// requeued after a delay instead of immediately.
var ErrRetryLater = errors.New("payment callback deferred")

const defaultCallbackRetryDelay = 5 * time.Second

// PaymentCallbackHandler applies an asynchronous gateway result to a payment.
// Returning an error requeues the message.
type PaymentCallbackHandler interface {
	HandlePaymentCallback(ctx context.Context, callback PaymentCallback) error
}

// PaymentConsumer consumes gateway payment callbacks from RabbitMQ
type PaymentConsumer struct {
	conn       *RabbitMQConnection
	handler    PaymentCallbackHandler
	retryDelay time.Duration
}

func NewPaymentConsumer(conn *RabbitMQConnection, handler PaymentCallbackHandler) *PaymentConsumer {
	return &PaymentConsumer{
		conn:       conn,
		handler:    handler,
		retryDelay: defaultCallbackRetryDelay,
	}
}

// Start begins consuming payment callbacks until ctx is cancelled
func (c *PaymentConsumer) Start(ctx context.Context) error {
	ch, err := c.conn.OpenChannel()
	if err != nil {
		return err
	}

	_, err = ch.QueueDeclare(
		PaymentCallbackQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	msgs, err := ch.Consume(
		PaymentCallbackQueue,
		"",    // consumer tag (auto-generated)
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	slog.Info("Payment callback consumer started", "queue", PaymentCallbackQueue)

	go func() {
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				slog.Info("Payment callback consumer stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					slog.Warn("Payment callback consumer channel closed")
					return
				}
				c.processMessage(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *PaymentConsumer) processMessage(ctx context.Context, msg amqp.Delivery) {
	var callback PaymentCallback
	if err := json.Unmarshal(msg.Body, &callback); err != nil || callback.PaymentID <= 0 {
		slog.Error("malformed payment callback, dropping", "error", err, "body", string(msg.Body))
		_ = msg.Nack(false, false)
		return
	}

	slog.Info("Received payment callback",
		"payment_id", callback.PaymentID,
		"success", callback.Success,
		"transaction_id", callback.TransactionID,
	)

	if err := c.handler.HandlePaymentCallback(ctx, callback); err != nil {
		if errors.Is(err, ErrRetryLater) {
			slog.Info("payment callback deferred",
				"payment_id", callback.PaymentID,
				"retry_in", c.retryDelay,
				"reason", err,
			)
			// the delivery stays unacked until the timer requeues it
			time.AfterFunc(c.retryDelay, func() {
				_ = msg.Nack(false, true)
			})
			return
		}
		slog.Error("failed to handle payment callback",
			"payment_id", callback.PaymentID,
			"error", err,
		)
		_ = msg.Nack(false, true)
		return
	}

	_ = msg.Ack(false)
}
