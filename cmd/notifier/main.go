// Command notifier consumes account and booking messages and logs a notification for each.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"ticketing/internal/config"
	"ticketing/internal/logger"
	"ticketing/internal/queue"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		ServiceName: "ticketing-notifier",
		Development: cfg.LogDevelopment,
	})
	defer func() { _ = log.Sync() }()

	if cfg.RabbitMQURL == "" {
		log.Fatal("RABBITMQ_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("notifier started", zap.String("queue", queue.NotificationQueue))
	err := queue.Consume(ctx, cfg.RabbitMQURL, log, notify(log))
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("consume", zap.Error(err))
	}
	log.Info("notifier stopped")
}

func notify(log *zap.Logger) queue.Handler {
	return func(ctx context.Context, msg queue.Message) error {
		if msg.Type == queue.UserRegistered {
			log.Info("welcome email sent",
				zap.String("to", msg.UserEmail),
				zap.String("name", msg.UserName),
				zap.String("user_id", msg.UserID.String()),
			)
			return nil
		}

		fields := []zap.Field{
			zap.String("to", msg.UserEmail),
			zap.String("booking_id", msg.BookingID.String()),
			zap.String("event", msg.EventName),
			zap.Time("event_date", msg.EventDate),
			zap.Int("tickets", msg.Tickets),
			zap.String("total", msg.Total.StringFixed(2)),
		}
		switch msg.Type {
		case queue.BookingConfirmed:
			log.Info("booking confirmation sent", fields...)
		case queue.BookingCancelled:
			log.Info("booking cancellation sent", append(fields, zap.String("reason", msg.Reason))...)
		default:
			log.Warn("unknown notification type", zap.String("type", string(msg.Type)))
		}
		return nil
	}
}
