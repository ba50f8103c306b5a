package main

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"ticketing/internal/queue"
)

func TestNotify(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handle := notify(zap.New(core))
	ctx := context.Background()

	require.NoError(t, handle(ctx, queue.Message{
		Type:      queue.UserRegistered,
		UserID:    uuid.New(),
		UserName:  "Ada",
		UserEmail: "ada@example.com",
	}))
	require.NoError(t, handle(ctx, queue.Message{
		Type:      queue.BookingConfirmed,
		BookingID: uuid.New(),
		UserEmail: "ada@example.com",
		EventName: "Go Conf",
		EventDate: time.Date(2030, 4, 1, 10, 0, 0, 0, time.UTC),
		Tickets:   2,
		Total:     decimal.NewFromInt(40),
	}))
	require.NoError(t, handle(ctx, queue.Message{Type: queue.BookingCancelled, Reason: "plans changed"}))
	require.NoError(t, handle(ctx, queue.Message{Type: "user.deleted"}))

	welcome := logs.FilterMessage("welcome email sent").All()
	require.Len(t, welcome, 1)
	assert.Equal(t, "ada@example.com", welcome[0].ContextMap()["to"])
	assert.Equal(t, 1, logs.FilterMessage("booking confirmation sent").Len())

	cancelled := logs.FilterMessage("booking cancellation sent").All()
	require.Len(t, cancelled, 1)
	assert.Equal(t, "plans changed", cancelled[0].ContextMap()["reason"])
	assert.Equal(t, 1, logs.FilterMessage("unknown notification type").Len())
}
