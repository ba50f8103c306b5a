package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Handler processes one decoded message.
type Handler func(ctx context.Context, msg Message) error

func reconnectBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	return b
}

// Consume reads NotificationQueue until ctx is cancelled, reconnecting with
// exponential backoff when the broker goes away. Messages that fail to decode or
// handle are rejected without requeue.
func Consume(ctx context.Context, url string, log *zap.Logger, handle Handler) error {
	return consume(ctx, url, log, handle, reconnectBackOff())
}

func consume(ctx context.Context, url string, log *zap.Logger, handle Handler, b backoff.BackOff) error {
	for {
		conn, err := backoff.Retry(ctx,
			func() (*amqp.Connection, error) { return dial(url, dialTimeout) },
			backoff.WithBackOff(b),
			backoff.WithMaxElapsedTime(0),
			backoff.WithNotify(func(err error, next time.Duration) {
				log.Warn("rabbitmq dial failed", zap.Error(err), zap.Duration("retry_in", next))
			}),
		)
		if err != nil {
			return err
		}

		err = consumeLoop(ctx, conn, log, handle)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("consume loop ended, reconnecting", zap.Error(err))
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, log *zap.Logger, handle Handler) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("set qos failed", zap.Error(err))
	}
	if err := declare(ch); err != nil {
		return err
	}

	msgs, err := ch.Consume(NotificationQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := Dispatch(ctx, d.Body, handle); err != nil {
				log.Error("handle notification failed", zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Dispatch decodes body and passes it to handle.
func Dispatch(ctx context.Context, body []byte, handle Handler) error {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if msg.Type == "" {
		return errors.New("missing message type")
	}
	return handle(ctx, msg)
}
