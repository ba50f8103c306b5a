// Package queue carries account and booking notifications over RabbitMQ.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
)

// NotificationQueue is the durable queue holding notification messages.
const NotificationQueue = "ticketing.notifications"

// dialTimeout bounds the TCP connect and the AMQP handshake.
const dialTimeout = 5 * time.Second

// EventType names the transition a message reports.
type EventType string

const (
	UserRegistered   EventType = "user.registered"
	BookingConfirmed EventType = "booking.confirmed"
	BookingCancelled EventType = "booking.cancelled"
)

// Message is the JSON payload published after a change commits. Booking fields are
// empty for account messages.
type Message struct {
	Type       EventType       `json:"type"`
	UserID     uuid.UUID       `json:"user_id"`
	UserName   string          `json:"user_name"`
	UserEmail  string          `json:"user_email"`
	BookingID  uuid.UUID       `json:"booking_id,omitzero"`
	EventID    uuid.UUID       `json:"event_id,omitzero"`
	EventName  string          `json:"event_name,omitempty"`
	EventDate  time.Time       `json:"event_date,omitzero"`
	Location   string          `json:"location,omitempty"`
	Tickets    int             `json:"tickets,omitempty"`
	Total      decimal.Decimal `json:"total_amount,omitzero"`
	Reason     string          `json:"reason,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Publisher delivers messages. Implementations must be safe for concurrent use and
// must not block on the broker.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// NopPublisher drops every message. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Message) error { return nil }

func dial(url string, timeout time.Duration) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
}

func declare(ch *amqp.Channel) error {
	if _, err := ch.QueueDeclare(NotificationQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	return nil
}
